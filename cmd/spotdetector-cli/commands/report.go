package commands

import (
	"fmt"

	"spotdetector/lib/serviceutil"
	"spotdetector/lib/sqliteutil"
	"spotdetector/services/detector"
	"spotdetector/services/detector/db"

	"github.com/spf13/cobra"
)

var (
	reportDb        *string
	reportDays      *int
	reportThreshold *int
)

func init() {
	reportDb = reportCmd.Flags().String("db", "posts.db", "The database to report from.")
	reportDays = reportCmd.Flags().Int("days", 30, "How many days back the report covers.")
	reportThreshold = reportCmd.Flags().Int("reviews", 5, "Minimum possible bad reviews per user.")
	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report [--db <path>] [--days <n>] [--reviews <n>]",
	Short: "Publishes a suspicious-reviewer report from an existing database.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		database, err := sqliteutil.OpenDB(db.Schema, *reportDb)
		if err != nil {
			serviceutil.Fatal("failed to open db", err)
		}

		browser := createBrowser(ctx)
		service := detector.NewService(database, browser, nil, nil, detector.Config{
			ReportsEndpoint: "https://reports.sobotics.org/api/v2/report/create",
		})

		report, err := service.GenerateReport(ctx, *reportDays, *reportThreshold)
		if err != nil {
			serviceutil.Fatal("failed to generate report", err)
		}
		if report == nil {
			fmt.Printf("no users matching %d or more possible bad reviews within %d days\n", *reportThreshold, *reportDays)
			return
		}
		fmt.Printf("report for %d user(s): %s\n", report.Users, report.URL)
	},
}
