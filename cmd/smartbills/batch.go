package main

import (
	"fmt"

	"github.com/LouYuanbo1/smartbills/internal/service/smart/param"
	"github.com/spf13/cobra"
)

var (
	batch      param.Batch
	reactivate bool
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a checkpointed batched export, replacing any previous checkpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := openService(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer cleanup()

		res, err := svc.StartBatched(cmd.Context(), &batch)
		if err != nil {
			return err
		}
		printResult(cmd, res)
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Continue the checkpointed export from the next unprocessed bill",
	Long: `resume continues an active checkpoint. A run that stopped on an error is
left inactive; pass --reactivate once the page is back on the Smart report.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := openService(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer cleanup()

		res, err := svc.Resume(cmd.Context(), reactivate)
		if err != nil {
			return err
		}
		printResult(cmd, res)
		return nil
	},
}

var downloadPartialCmd = &cobra.Command{
	Use:   "download-partial",
	Short: "Write the rows accumulated so far without touching the checkpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := openService(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer cleanup()

		res, err := svc.DownloadPartial(cmd.Context())
		if err != nil {
			return err
		}
		printResult(cmd, res)
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the checkpoint and the accumulated rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := openService(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer cleanup()
		return svc.ClearState(cmd.Context())
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the checkpoint and the number of accumulated rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := openService(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer cleanup()

		st, err := svc.Status(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if st.State == nil {
			fmt.Fprintln(out, "no checkpoint")
		} else {
			s := st.State
			fmt.Fprintf(out, "run:     %s\n", s.RunID)
			fmt.Fprintf(out, "active:  %t\n", s.Active)
			fmt.Fprintf(out, "range:   [%d,%d) next=%d\n", s.Start, s.End, s.Next)
			fmt.Fprintf(out, "batch:   %d reload=%t\n", s.BatchSize, s.ReloadBetween)
			fmt.Fprintf(out, "updated: %s\n", s.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		fmt.Fprintf(out, "rows:    %d\n", st.Rows)
		return nil
	},
}

func init() {
	startCmd.Flags().IntVar(&batch.Start, "start", 0, "zero-based index of the first bill")
	startCmd.Flags().IntVar(&batch.Total, "total", 0, "number of bills, 0 means up to the end")
	startCmd.Flags().IntVar(&batch.BatchSize, "batch-size", 25, "bills per batch")
	startCmd.Flags().BoolVar(&batch.ReloadBetween, "reload", true, "reload the page between batches")

	resumeCmd.Flags().BoolVar(&reactivate, "reactivate", false, "reactivate a checkpoint left inactive by a failure")
}
