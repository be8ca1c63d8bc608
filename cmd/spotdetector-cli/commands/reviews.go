package commands

import (
	"fmt"

	"spotdetector/cmd/spotdetector-cli/utils"
	"spotdetector/lib/scrapers/stackexchange"
	"spotdetector/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var reviewPages *int

func init() {
	reviewPages = reviewsCmd.Flags().Int("pages", 1, "How many history pages to fetch.")
	rootCmd.AddCommand(reviewsCmd)
}

var reviewsCmd = &cobra.Command{
	Use:   "reviews <queue> [--pages <n>]",
	Short: "Scrapes a review queue's history (first-posts, late-answers, low-quality-posts, suggested-edits).",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		browser := createBrowser(ctx)

		reviewType := stackexchange.ReviewType(args[0])
		records, err := stackexchange.ScrapeReviewHistory(ctx, stackexchange.HistoryScan{
			Type:        reviewType,
			Fetch:       browser.ReviewHistoryPages(reviewType),
			PageCeiling: *reviewPages,
		})
		if err != nil {
			serviceutil.Fatal("history scan failed", err)
		}

		t := utils.NewTable()
		t.AppendHeader(table.Row{"review", "user", "post", "action", "date"})
		for _, record := range records {
			t.AppendRow(table.Row{
				record.ReviewID,
				fmt.Sprintf("%s (%s)", record.UserName, record.UserID),
				fmt.Sprintf("%s %d", record.PostType, record.PostID),
				record.Action,
				record.Date.Format("2006-01-02 15:04"),
			})
		}
		t.Render()
	},
}
