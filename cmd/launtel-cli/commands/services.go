package commands

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"launtel-backend/lib/serviceutil"
)

func init() {
	rootCmd.AddCommand(servicesCmd)
}

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "Lists the services on the account.",
	Run: func(cmd *cobra.Command, args []string) {
		client := createClient()
		services, err := client.Services(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to fetch services", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Title", "Service ID", "AVC", "Speed Tier", "Status"})
		for _, svc := range services {
			status := "Active"
			if svc.ChangeInProgress {
				status = "Change in progress"
			}
			t.AppendRow(table.Row{svc.Title, svc.ServiceID, svc.AvcID, svc.SpeedLabel, status})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
