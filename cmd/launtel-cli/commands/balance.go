package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"launtel-backend/lib/serviceutil"
)

func init() {
	rootCmd.AddCommand(balanceCmd)
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Prints the account balance.",
	Run: func(cmd *cobra.Command, args []string) {
		client := createClient()
		balance, known, err := client.Balance(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to fetch balance", err)
		}
		if !known {
			fmt.Println("balance unknown (not shown on any portal page)")
			return
		}
		fmt.Printf("$%.2f\n", balance)
	},
}
