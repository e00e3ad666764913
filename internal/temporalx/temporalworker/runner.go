package temporalworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/maigie-backend/internal/platform/logger"
	"github.com/yungbote/maigie-backend/internal/temporalx"
	"github.com/yungbote/maigie-backend/internal/temporalx/outboxreplay"
)

// Runner hosts the outbox replay worker and keeps its singleton workflow running.
type Runner struct {
	log      *logger.Logger
	tc       temporalsdkclient.Client
	cfg      temporalx.Config
	replayer outboxreplay.Replayer
}

func NewRunner(log *logger.Logger, tc temporalsdkclient.Client, cfg temporalx.Config, replayer outboxreplay.Replayer) (*Runner, error) {
	if tc == nil {
		return nil, errors.New("temporal client is not configured")
	}
	if replayer == nil {
		return nil, errors.New("temporal worker missing outbox")
	}
	return &Runner{log: log.With("component", "TemporalWorker"), tc: tc, cfg: cfg, replayer: replayer}, nil
}

// Run starts the worker, ensures the replay workflow exists and blocks until ctx ends.
func (r *Runner) Run(ctx context.Context) error {
	w, err := r.startWorker(ctx)
	if err != nil {
		return err
	}
	defer w.Stop()

	if err := r.ensureWorkflow(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	r.log.Info("Temporal worker stopping")
	return nil
}

func (r *Runner) startWorker(ctx context.Context) (worker.Worker, error) {
	deadline := time.Now().Add(r.cfg.DialMaxWait)
	for attempt := 1; ; attempt++ {
		w := worker.New(r.tc, r.cfg.TaskQueue, worker.Options{
			MaxConcurrentActivityExecutionSize:     2,
			MaxConcurrentWorkflowTaskExecutionSize: 2,
		})
		acts := &outboxreplay.Activities{Outbox: r.replayer}
		w.RegisterWorkflowWithOptions(outboxreplay.Workflow, workflow.RegisterOptions{Name: outboxreplay.WorkflowName})
		w.RegisterActivityWithOptions(acts.ReplayBatch, activity.RegisterOptions{Name: outboxreplay.ActivityReplayBatch})

		startErr := w.Start()
		if startErr == nil {
			r.log.Info("Temporal worker started", "namespace", r.cfg.Namespace, "task_queue", r.cfg.TaskQueue, "attempts", attempt)
			return w, nil
		}
		w.Stop()

		var nfe *serviceerror.NamespaceNotFound
		if errors.As(startErr, &nfe) && r.cfg.AutoRegisterNamespace {
			if err := temporalx.EnsureNamespace(ctx, r.log, r.cfg); err != nil {
				r.log.Warn("Temporal namespace ensure failed", "namespace", r.cfg.Namespace, "error", err)
			}
		}
		if ctx.Err() != nil || time.Now().After(deadline) {
			return nil, fmt.Errorf("temporal worker start (namespace=%s): %w", r.cfg.Namespace, startErr)
		}
		r.log.Warn("Temporal worker failed to start; retrying", "attempt", attempt, "error", startErr)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
		}
	}
}

// ensureWorkflow starts the replay workflow, attaching to a running one.
func (r *Runner) ensureWorkflow(ctx context.Context) error {
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:                       r.cfg.ReplayWorkflowID,
		TaskQueue:                r.cfg.TaskQueue,
		WorkflowIDConflictPolicy: enumspb.WORKFLOW_ID_CONFLICT_POLICY_USE_EXISTING,
		WorkflowIDReusePolicy:    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}
	run, err := r.tc.ExecuteWorkflow(ctx, opts, outboxreplay.WorkflowName, outboxreplay.Input{Interval: r.cfg.ReplayInterval})
	if err != nil {
		return fmt.Errorf("start outbox replay workflow: %w", err)
	}
	r.log.Info("Outbox replay workflow running", "workflow_id", run.GetID(), "run_id", run.GetRunID())
	return nil
}
