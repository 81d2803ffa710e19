package main

import (
	"github.com/LouYuanbo1/smartbills/internal/service/smart/param"
	"github.com/spf13/cobra"
)

var exportRange param.Range

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a range of bills in one pass without checkpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := openService(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer cleanup()

		res, err := svc.ExportRange(cmd.Context(), &exportRange)
		if err != nil {
			return err
		}
		printResult(cmd, res)
		return nil
	},
}

var exportAllCmd = &cobra.Command{
	Use:   "export-all",
	Short: "Export every bill in the listing in one pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := openService(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer cleanup()

		res, err := svc.ExportAll(cmd.Context())
		if err != nil {
			return err
		}
		printResult(cmd, res)
		return nil
	},
}

func init() {
	exportCmd.Flags().IntVar(&exportRange.Start, "start", 0, "zero-based index of the first bill")
	exportCmd.Flags().IntVar(&exportRange.Count, "count", 0, "number of bills, 0 means up to the end")
	exportCmd.Flags().BoolVar(&exportRange.DryRun, "dry-run", false, "log a preview instead of writing the CSV")
}
