package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rizk-nci-admin/prio-server/internal/telemetry"
	"github.com/rizk-nci-admin/prio-server/sqstask"
)

var consumeCmd = &cobra.Command{
	Use:   "consume <region> <queue-url>",
	Short: "pull a single task from an SQS queue and acknowledge it",
	Args:  cobra.ExactArgs(2),
	RunE:  runConsume,
}

var consumeArgs struct {
	nack bool
}

func init() {
	consumeCmd.Flags().BoolVar(&consumeArgs.nack, "nack", false, "release the task instead of acknowledging it")
	rootCmd.AddCommand(consumeCmd)
}

// genericTask is the demo task shape for the consume command: any
// well-formed JSON object, printed back once decoded.
type genericTask map[string]json.RawMessage

func runConsume(cmd *cobra.Command, args []string) error {
	region, queueURL := args[0], args[1]
	ctx := cmd.Context()

	log := telemetry.New(telemetry.Options{Pretty: true})
	consumer, err := sqstask.NewConsumer[genericTask](ctx, region, queueURL, log)
	if err != nil {
		return fmt.Errorf("build consumer: %w", err)
	}

	handle, err := consumer.Dequeue(ctx)
	if err != nil {
		return fmt.Errorf("dequeue: %w", err)
	}
	if handle == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "no task available")
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "task %s: %v\n", handle.LeaseID, handle.Task)

	if consumeArgs.nack {
		return consumer.Nacknowledge(ctx, handle)
	}
	return consumer.Acknowledge(ctx, handle)
}
