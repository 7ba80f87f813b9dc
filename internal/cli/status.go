package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ampli-network/ampli/internal/app/orchestrator"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show engine status: budget burn, cost allocation, queues, breakers",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	var st orchestrator.Status
	if err := getJSON("/status", &st); err != nil {
		return err
	}

	fmt.Printf("Error budget: %d/%d consumed (burn rate %.2f)\n",
		st.SLO.Consumed, st.SLO.Allotted, st.SLO.BurnRate)

	fmt.Printf("Queues: tasks depth %d (%s), competitions depth %d (%s)\n",
		st.Queues.Tasks.Depth, st.Queues.Tasks.BackPressure,
		st.Queues.Competitions.Depth, st.Queues.Competitions.BackPressure)

	if len(st.Breakers) > 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "COLLABORATOR\tSTATE\tFAILURES\tTRIPS")
		for _, b := range st.Breakers {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", b.Name, b.State, b.Failures, b.TotalTrips)
		}
		w.Flush()
	}

	if len(st.Cost.Allocation) > 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TENANT\tSPEND (µ$)")
		for tenant, micro := range st.Cost.Allocation {
			fmt.Fprintf(w, "%s\t%d\n", tenant, micro)
		}
		w.Flush()
	}

	if len(st.Rollouts) > 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "FEATURE\tROLLOUT")
		for feature, pct := range st.Rollouts {
			fmt.Fprintf(w, "%s\t%d%%\n", feature, pct)
		}
		w.Flush()
	}
	return nil
}
