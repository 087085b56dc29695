package commands

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"launtel-backend/lib/serviceutil"
)

func init() {
	rootCmd.AddCommand(plansCmd)
}

var plansCmd = &cobra.Command{
	Use:   "plans <avcid>",
	Short: "Lists the plans available to a service.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := createClient()
		catalog, err := client.Catalog(cmd.Context(), args[0])
		if err != nil {
			serviceutil.Fatal("failed to fetch plan catalog", err)
		}
		if !catalog.Usable() {
			serviceutil.Fatal("plan catalog is unusable", fmt.Errorf("the service may be mid-change"))
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Plan", "PSID", "$/day", "Current"})
		for _, label := range catalog.Options {
			psid := catalog.LabelToPsid[label]
			price := ""
			if plan, ok := catalog.Plans[psid]; ok && plan.PricePerDay != nil {
				price = fmt.Sprintf("%.2f", *plan.PricePerDay)
			}
			current := ""
			if label == catalog.CurrentLabel {
				current = "*"
			}
			t.AppendRow(table.Row{label, psid, price, current})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
