package commands

import (
	"fmt"
	"strconv"
	"strings"

	"spotdetector/cmd/spotdetector-cli/utils"
	"spotdetector/lib/scrapers/stackexchange"
	"spotdetector/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(timelineCmd)
}

var timelineCmd = &cobra.Command{
	Use:   "timeline <postId>",
	Short: "Classifies one post's timeline and prints the result.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		postId, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			serviceutil.Fatal("invalid post id", err)
		}

		ctx := cmd.Context()
		browser := createBrowser(ctx)

		doc, err := browser.ScrapeDocument(ctx, fmt.Sprintf("/posts/%d/timeline", postId))
		if err != nil {
			serviceutil.Fatal("failed to fetch timeline", err)
		}
		timeline := stackexchange.ParseTimeline(doc)

		fmt.Printf("author: %s\ndeleted: %v\n", timeline.AuthorID, timeline.Deleted())

		t := utils.NewTable()
		t.AppendHeader(table.Row{"event", "date", "reason", "by"})
		for id, ev := range timeline.Deletions {
			t.AppendRow(table.Row{"deleted " + id, ev.Date.Format("2006-01-02 15:04"), ev.Reason, strings.Join(ev.By, ", ")})
		}
		for id, ev := range timeline.Undeletions {
			t.AppendRow(table.Row{"undeleted " + id, ev.Date.Format("2006-01-02 15:04"), ev.Reason, strings.Join(ev.By, ", ")})
		}
		t.Render()

		if len(timeline.Reviews) > 0 {
			r := utils.NewTable()
			r.AppendHeader(table.Row{"review", "type", "result", "votes"})
			for id, review := range timeline.Reviews {
				r.AppendRow(table.Row{id, review.Type, review.Result, fmt.Sprintf("%v", review.Votes)})
			}
			r.Render()
		}
	},
}
