package commands

import (
	"spotdetector/cmd/spotdetector-cli/utils"
	"spotdetector/lib/scrapers/stackexchange"
	"spotdetector/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	privilegesKey  *string
	privilegesSite *string
)

func init() {
	privilegesKey = privilegesCmd.Flags().String("key", "", "Stack Exchange API key.")
	privilegesSite = privilegesCmd.Flags().String("site", "stackoverflow", "API site parameter.")
	rootCmd.AddCommand(privilegesCmd)
}

var privilegesCmd = &cobra.Command{
	Use:   "privileges [--key <key>] [--site <site>]",
	Short: "Prints the site's reputation privilege thresholds.",
	Run: func(cmd *cobra.Command, args []string) {
		api := stackexchange.NewApi(*privilegesKey, *privilegesSite)
		privileges, err := api.Privileges(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to fetch privileges", err)
		}

		t := utils.NewTable()
		t.AppendHeader(table.Row{"reputation", "privilege"})
		for _, privilege := range privileges {
			t.AppendRow(table.Row{privilege.Reputation, privilege.ShortDesc})
		}
		t.Render()
	},
}
