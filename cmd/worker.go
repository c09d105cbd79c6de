package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/frahmantamala/securemind/internal/core/events"
	"github.com/frahmantamala/securemind/internal/queue"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start the claim reconciler, the event stream consumer or the notification delivery consumer.`,
}

var reconcileWorkerCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Repair divergence between claim roles and profile roles",
	Run: func(cmd *cobra.Command, args []string) {
		startReconcileWorker()
	},
}

var eventWorkerCmd = &cobra.Command{
	Use:   "events",
	Short: "Consume the event stream and write the audit log",
	Run: func(cmd *cobra.Command, args []string) {
		startEventWorker()
	},
}

var deliveryWorkerCmd = &cobra.Command{
	Use:   "deliveries",
	Short: "Consume notification delivery jobs",
	Run: func(cmd *cobra.Command, args []string) {
		startDeliveryWorker()
	},
}

var (
	reconcileOnce bool
	eventGroupID  string
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func mustApp(ctx context.Context) *App {
	app, err := newApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	return app
}

func startReconcileWorker() {
	ctx, stop := signalContext()
	defer stop()
	app := mustApp(ctx)
	defer app.Close()

	if reconcileOnce {
		report, err := app.Reconciler.RunOnce(ctx)
		if err != nil {
			app.Logger.Error("reconcile failed", "error", err)
			return
		}
		app.Logger.Info("reconcile finished",
			"scanned", report.Scanned,
			"profile_repaired", report.ProfileRepaired,
			"claim_repaired", report.ClaimRepaired,
			"unresolvable", report.Unresolvable,
			"failed", report.Failed)
		return
	}

	app.Logger.Info("reconcile worker started", "interval", app.Config.Reconcile.Interval, "workers", app.Config.Reconcile.Workers)
	if err := app.Reconciler.Run(ctx, app.Config.Reconcile.Interval); err != nil && ctx.Err() == nil {
		app.Logger.Error("reconcile worker stopped", "error", err)
		return
	}
	app.Logger.Info("reconcile worker shutdown complete")
}

func startEventWorker() {
	ctx, stop := signalContext()
	defer stop()
	app := mustApp(ctx)
	defer app.Close()

	brokers := kafkaBrokers(app.Config)
	if len(brokers) == 0 {
		app.Logger.Error("messaging.kafka_brokers is not configured")
		return
	}

	// Replayed events go to a private bus so the service handlers do not run twice.
	audit := events.NewEventBus(app.Logger)
	for _, t := range events.ForwardedTypes {
		audit.Subscribe(t, func(ctx context.Context, event events.Event) error {
			app.Logger.InfoContext(ctx, "audit",
				"event_id", event.EventID(),
				"event_type", event.EventType(),
				"occurred_at", event.OccurredAt(),
				"payload", event.Payload())
			return nil
		})
	}

	reader := events.NewKafkaReader(brokers, app.Config.Messaging.KafkaTopic, eventGroupID)
	defer reader.Close()

	app.Logger.Info("event worker started", "topic", app.Config.Messaging.KafkaTopic, "group", eventGroupID)
	if err := events.Consume(ctx, reader, audit, app.Logger); err != nil {
		app.Logger.Error("event worker stopped", "error", err)
		return
	}
	app.Logger.Info("event worker shutdown complete")
}

func startDeliveryWorker() {
	ctx, stop := signalContext()
	defer stop()
	app := mustApp(ctx)
	defer app.Close()

	if app.Rabbit == nil {
		app.Logger.Error("messaging.rabbitmq_url is not configured or unreachable")
		return
	}
	deliveries, err := app.Rabbit.Consume(app.Config.Notifications.DeliveryQueue)
	if err != nil {
		app.Logger.Error("consume delivery queue failed", "error", err)
		return
	}

	app.Logger.Info("delivery worker started", "queue", app.Config.Notifications.DeliveryQueue)
	err = queue.ConsumeDeliveries(ctx, deliveries, func(ctx context.Context, job queue.DeliveryJob) error {
		// Push and email channels are external; the worker records the hand-off.
		app.Logger.InfoContext(ctx, "delivering notifications",
			"kind", job.Kind,
			"ref_id", job.RefID,
			"batch", job.BatchIndex,
			"recipients", len(job.UserIDs))
		return nil
	}, app.Logger)
	if err != nil && ctx.Err() == nil {
		app.Logger.Error("delivery worker stopped", "error", err)
		return
	}
	app.Logger.Info("delivery worker shutdown complete")
}

func init() {
	reconcileWorkerCmd.Flags().BoolVar(&reconcileOnce, "once", false, "run a single pass and exit")
	eventWorkerCmd.Flags().StringVar(&eventGroupID, "group", "securemind-audit", "kafka consumer group")

	workerCmd.AddCommand(reconcileWorkerCmd, eventWorkerCmd, deliveryWorkerCmd)
}
