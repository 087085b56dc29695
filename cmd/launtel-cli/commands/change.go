package commands

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/spf13/cobra"

	"launtel-backend/lib/scrapers/launtel"
	"launtel-backend/lib/serviceutil"
)

var changePsid *int
var changeYes *bool

func init() {
	changePsid = changeCmd.Flags().Int("psid", 0, "Change by plan id instead of label.")
	changeYes = changeCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt.")
	rootCmd.AddCommand(changeCmd)
}

var changeCmd = &cobra.Command{
	Use:   "change <service id> [plan label]",
	Short: "Changes a service to a different plan.",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		serviceId, err := strconv.Atoi(args[0])
		if err != nil {
			serviceutil.Fatal("invalid service id", err)
		}
		if *changePsid == 0 && len(args) < 2 {
			serviceutil.Fatal("nothing to change to", fmt.Errorf("provide a plan label or --psid"))
		}

		ctx := cmd.Context()
		client := createClient()

		services, err := client.Services(ctx)
		if err != nil {
			serviceutil.Fatal("failed to fetch services", err)
		}
		var target *launtel.Service
		for i := range services {
			if services[i].ServiceID == serviceId {
				target = &services[i]
				break
			}
		}
		if target == nil {
			serviceutil.Fatal("service not found", fmt.Errorf("no service with id %d on this account", serviceId))
		}
		if target.ChangeInProgress {
			serviceutil.Fatal("refusing to change plan", fmt.Errorf("a change is already in progress for %q", target.Title))
		}

		catalog, err := client.Catalog(ctx, target.AvcID)
		if err != nil {
			serviceutil.Fatal("failed to fetch plan catalog", err)
		}
		if !catalog.Usable() {
			serviceutil.Fatal("plan catalog is unusable", fmt.Errorf("the service may be mid-change"))
		}

		psid := *changePsid
		label := ""
		if psid == 0 {
			label = closestLabel(args[1], catalog.Options)
			if label == "" {
				serviceutil.Fatal("no matching plan", fmt.Errorf("nothing in the catalog resembles %q", args[1]))
			}
			psid = catalog.LabelToPsid[label]
		} else {
			for l, p := range catalog.LabelToPsid {
				if p == psid {
					label = l
					break
				}
			}
		}

		if !*changeYes {
			fmt.Printf("change %q to %q (psid %d)? [y/N] ", target.Title, label, psid)
			line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
			if answer := strings.ToLower(strings.TrimSpace(line)); answer != "y" && answer != "yes" {
				fmt.Println("aborted")
				return
			}
		}

		err = client.ChangePlan(ctx, launtel.ChangeRequest{
			UserID:     target.UserID,
			Psid:       psid,
			ServiceID:  target.ServiceID,
			AvcID:      target.AvcID,
			LocationID: catalog.LocationID,
		})
		if err != nil {
			serviceutil.Fatal("failed to change plan", err)
		}
		fmt.Println("plan change submitted")
	},
}

// closestLabel fuzzy-matches the user's input against the catalog so
// "100/40" finds "Fibre 100/40 Mbps - $3.30/day".
func closestLabel(input string, options []string) string {
	input = strings.ToLower(input)

	best := ""
	bestSimilarity := 0.0
	for _, label := range options {
		lower := strings.ToLower(label)
		if strings.Contains(lower, input) {
			return label
		}
		similarity := matchr.JaroWinkler(input, lower, false)
		if similarity > bestSimilarity {
			bestSimilarity = similarity
			best = label
		}
	}
	if bestSimilarity < 0.6 {
		return ""
	}
	return best
}
