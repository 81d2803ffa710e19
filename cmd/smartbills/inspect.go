package main

import (
	"fmt"

	"github.com/LouYuanbo1/smartbills/internal/infra/crawler/collector"
	"github.com/LouYuanbo1/smartbills/internal/service/smart"
	"github.com/LouYuanbo1/smartbills/internal/service/smart/param"
	"github.com/spf13/cobra"
)

var inspectFile string

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Run the listing and detail recognizers against a saved page",
	Long: `inspect loads a saved frameset (or any URL) without a browser, follows its
frames and prints what the extractor would see: the bill index and the detected
detail layout. Use it when the back office changes its markup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if inspectFile == "" {
			return fmt.Errorf("--file is required")
		}
		target, err := collector.ToURL(inspectFile)
		if err != nil {
			return err
		}
		frames, err := collector.InitSnapshotCollector(appcfg, logger).Collect(cmd.Context(), target)
		if err != nil {
			return err
		}
		r, err := smart.Inspect(frames, param.FromConfig(appcfg))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "frames: %d\n", r.Frames)
		for _, f := range frames {
			fmt.Fprintf(out, "  %s %s\n", f.Path, f.URL)
		}
		if r.Listing == nil {
			fmt.Fprintln(out, "listing: not found")
		} else {
			fmt.Fprintf(out, "listing: %s, %d bills\n", r.Listing.Path, len(r.Records))
			for _, rec := range r.Records {
				args := "unparsed trigger"
				if rec.Args != nil {
					args = fmt.Sprintf("mkt=%s settle=%s", rec.Args.MarketType, rec.Args.SettlementNumber)
				}
				fmt.Fprintf(out, "  [%d] %s %s %s debit=%v credit=%v (%s)\n",
					rec.Index, rec.TradeDate, rec.VoucherNo, rec.Segment, rec.Debit, rec.Credit, args)
			}
			if len(r.Duplicates) > 0 {
				fmt.Fprintf(out, "  duplicates dropped: %v\n", r.Duplicates)
			}
		}
		if r.Detail == nil {
			fmt.Fprintln(out, "detail: not found")
			return nil
		}
		fmt.Fprintf(out, "detail: %s at %s, %d items\n", r.Detail.Kind, r.Detail.Path, len(r.Items))
		if r.Detail.Header != "" {
			fmt.Fprintf(out, "  header: %s\n", r.Detail.Header)
		}
		for _, it := range r.Items {
			fmt.Fprintf(out, "  %s buy=%v/%v/%v sell=%v/%v/%v net=%v/%v/%v\n", it.Scrip,
				it.Buy.Qty, it.Buy.Avg, it.Buy.Amount,
				it.Sell.Qty, it.Sell.Avg, it.Sell.Amount,
				it.Net.Qty, it.Net.Avg, it.Net.Amount)
		}
		return nil
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectFile, "file", "", "saved HTML file or URL of the top-level page")
}
