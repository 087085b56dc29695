package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"launtel-backend/lib/serviceutil"
	"launtel-backend/services/planwatch"
)

var watchNormal *string
var watchChange *string

func init() {
	watchNormal = watchCmd.Flags().String("normal-interval", "6h", "Cadence while no change is in progress.")
	watchChange = watchCmd.Flags().String("change-interval", "1m", "Cadence while a change is in progress.")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch <service id>",
	Short: "Polls a service and prints each snapshot until interrupted.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		serviceId, err := strconv.Atoi(args[0])
		if err != nil {
			serviceutil.Fatal("invalid service id", err)
		}
		normal, err := time.ParseDuration(*watchNormal)
		if err != nil {
			serviceutil.Fatal("invalid --normal-interval", err)
		}
		change, err := time.ParseDuration(*watchChange)
		if err != nil {
			serviceutil.Fatal("invalid --change-interval", err)
		}

		client := createClient()
		coordinator := planwatch.NewCoordinator(client, planwatch.Options{
			ServiceID:      serviceId,
			NormalInterval: normal,
			ChangeInterval: change,
			Scheduler:      printScheduler{},
		})

		go func() {
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			var last time.Time
			for {
				select {
				case <-cmd.Context().Done():
					return
				case <-ticker.C:
				}
				snap, ok := coordinator.Snapshot()
				if !ok || snap.FetchedAt.Equal(last) {
					continue
				}
				last = snap.FetchedAt
				status := "active"
				if snap.ChangeInProgress {
					status = "change in progress"
				}
				fmt.Printf("%s  %-20s  %s  %s\n",
					snap.FetchedAt.Format(time.TimeOnly), status, snap.Title, snap.CurrentLabel)
			}
		}()

		coordinator.RunDaemon(cmd.Context())
	},
}

type printScheduler struct{}

func (printScheduler) SetInterval(d time.Duration) {
	fmt.Printf("polling every %s\n", d)
}
