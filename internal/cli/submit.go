package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ampli-network/ampli/internal/app/orchestrator"
	"github.com/ampli-network/ampli/internal/domain"
)

func init() {
	submitCmd.Flags().StringVar(&submitType, "type", "post", "Task type: post, thread, article, campaign")
	submitCmd.Flags().StringVar(&submitPriority, "priority", "medium", "Priority: urgent, high, medium, low")
	submitCmd.Flags().StringVar(&submitTenant, "tenant", "default", "Tenant the task bills to")
	submitCmd.Flags().StringSliceVar(&submitPlatforms, "platform", nil, "Target platform (repeatable)")
	submitCmd.Flags().StringVar(&submitKey, "idempotency-key", "", "Idempotency key for safe retries")
	rootCmd.AddCommand(submitCmd)
}

var (
	submitType      string
	submitPriority  string
	submitTenant    string
	submitPlatforms []string
	submitKey       string
)

var submitCmd = &cobra.Command{
	Use:   "submit <description>",
	Short: "Submit an amplification task",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubmit,
}

func runSubmit(cmd *cobra.Command, args []string) error {
	headers := map[string]string{"Tenant-ID": submitTenant}
	if submitKey != "" {
		headers["Idempotency-Key"] = submitKey
	}

	var acc orchestrator.Accepted
	err := postJSON("/tasks", headers, domain.TaskRequest{
		Type:        submitType,
		Priority:    submitPriority,
		Description: args[0],
		Platforms:   submitPlatforms,
	}, &acc)
	if err != nil {
		return err
	}

	if acc.Idempotent {
		fmt.Printf("Replayed %s (already accepted)\n", acc.ID)
		return nil
	}
	fmt.Printf("Accepted %s  priority=%s  forecast=%dµ$\n", acc.ID, acc.Priority, acc.ForecastMicro)
	return nil
}
