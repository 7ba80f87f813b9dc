package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ampli-network/ampli/internal/app/orchestrator"
	"github.com/ampli-network/ampli/internal/domain"
)

func init() {
	competeCmd.Flags().StringVar(&competePriority, "priority", "high", "Priority: urgent, high, medium, low")
	competeCmd.Flags().StringVar(&competeTenant, "tenant", "default", "Tenant the competition bills to")
	competeCmd.Flags().StringSliceVar(&competePlatforms, "platform", []string{"twitter"}, "Target platform (repeatable)")
	competeCmd.Flags().StringSliceVar(&competeVariants, "variant", nil, "Competitor variant (repeatable; defaults to the built-in four)")
	rootCmd.AddCommand(competeCmd)

	rootCmd.AddCommand(resultCmd)
}

var (
	competePriority  string
	competeTenant    string
	competePlatforms []string
	competeVariants  []string
)

var competeCmd = &cobra.Command{
	Use:   "compete <content>",
	Short: "Run a self-compete variant competition",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompete,
}

func runCompete(cmd *cobra.Command, args []string) error {
	var acc orchestrator.Accepted
	err := postJSON("/self-compete", map[string]string{"Tenant-ID": competeTenant},
		domain.CompetitionRequest{
			Content:     args[0],
			Platforms:   competePlatforms,
			Priority:    competePriority,
			Competitors: competeVariants,
		}, &acc)
	if err != nil {
		return err
	}
	fmt.Printf("Accepted %s  priority=%s  forecast=%dµ$\n", acc.ID, acc.Priority, acc.ForecastMicro)
	fmt.Printf("Fetch the result with: ampli result %s\n", acc.ID)
	return nil
}

var resultCmd = &cobra.Command{
	Use:   "result <competition-id>",
	Short: "Show a competition's champion and variant scores",
	Args:  cobra.ExactArgs(1),
	RunE:  runResult,
}

func runResult(cmd *cobra.Command, args []string) error {
	var payload struct {
		Competition domain.Competition        `json:"competition"`
		Result      *domain.CompetitionResult `json:"result"`
	}
	if err := getJSON("/self-compete/"+args[0], &payload); err != nil {
		return err
	}

	fmt.Printf("Competition %s  status=%s\n", payload.Competition.ID, payload.Competition.Status)
	if payload.Result == nil {
		fmt.Println("Still running — check again shortly.")
		return nil
	}

	res := payload.Result
	if res.Status == domain.CompetitionFailed {
		fmt.Printf("Failed: %s\n", res.Error)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VARIANT\tSCORE\tSTATUS")
	for _, v := range res.Variants {
		status := "ok"
		if v.Failed {
			status = "failed"
		}
		marker := ""
		if v.VariantID == res.Champion {
			marker = " *"
		}
		fmt.Fprintf(w, "%s%s\t%.4f\t%s\n", v.VariantID, marker, v.Score, status)
	}
	w.Flush()

	fmt.Printf("Champion: %s (score %.4f, win-rate delta %.4f)\n", res.Champion, res.ChampionScore, res.WinRateDelta)
	if res.Evolved {
		fmt.Println("Evolution pipeline triggered.")
	}
	return nil
}
