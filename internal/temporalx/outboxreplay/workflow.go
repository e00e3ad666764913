package outboxreplay

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	defaultInterval = 5 * time.Second
	defaultMaxTicks = 500
	historyLimit    = 10000
)

// Workflow replays the outbox on a durable timer. A failed batch is logged and
// retried on the next tick; per-event attempts are tracked in the outbox rows.
func Workflow(ctx workflow.Context, in Input) error {
	if in.Interval <= 0 {
		in.Interval = defaultInterval
	}
	if in.MaxTicks <= 0 {
		in.MaxTicks = defaultMaxTicks
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2,
			MaximumAttempts:    3,
		},
	})
	log := workflow.GetLogger(ctx)

	for tick := 1; ; tick++ {
		var out BatchResult
		if err := workflow.ExecuteActivity(ctx, ActivityReplayBatch).Get(ctx, &out); err != nil {
			log.Warn("outbox replay batch failed", "error", err)
		} else if out.Delivered > 0 {
			log.Info("outbox replayed", "delivered", out.Delivered)
		}

		if tick >= in.MaxTicks || workflow.GetInfo(ctx).GetCurrentHistoryLength() >= historyLimit {
			return workflow.NewContinueAsNewError(ctx, Workflow, in)
		}
		if err := workflow.Sleep(ctx, in.Interval); err != nil {
			return err
		}
	}
}
