package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/frahmantamala/securemind/internal/core/events"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Publish events onto the bus and the event stream for testing and replay`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [event-type]",
	Short: "Publish an event",
	Long:  `Publish an event on the service bus. Forwarded types also reach the event stream when Kafka is configured.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := publishEvent(args[0], eventData); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

var eventData string

func publishEvent(eventType, data string) error {
	payload := map[string]interface{}{}
	if data != "" {
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			return fmt.Errorf("--data must be a JSON object: %w", err)
		}
	}
	payload["source"] = "cli-command"

	ctx := context.Background()
	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if !slices.Contains(events.ForwardedTypes, eventType) {
		app.Logger.Warn("event type is not forwarded to the stream", "event_type", eventType)
	}

	event := events.BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      payload,
	}

	app.Logger.Info("publishing event", "event_type", eventType, "event_id", event.ID)
	if err := app.Bus.PublishSync(ctx, event); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	app.Logger.Info("event published successfully")
	return nil
}

func init() {
	publishEventCmd.Flags().StringVar(&eventData, "data", "", `event payload as a JSON object, e.g. '{"uid":"U1"}'`)

	eventCmd.AddCommand(publishEventCmd)
}
