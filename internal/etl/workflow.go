package etl

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// WorkflowName is the registered name external triggers start.
const WorkflowName = "ETLWorkflow"

var activityRetry = &temporal.RetryPolicy{
	InitialInterval:    10 * time.Second,
	BackoffCoefficient: 2.0,
	MaximumInterval:    5 * time.Minute,
	MaximumAttempts:    3,
}

// ETLWorkflow drives extract → transform → load sequentially, then removes
// the spill files whatever the outcome. The workflow does no I/O itself;
// spill paths travel between activities as arguments.
func ETLWorkflow(ctx workflow.Context) (string, error) {
	logger := workflow.GetLogger(ctx)
	runID := workflow.GetInfo(ctx).WorkflowExecution.RunID

	var spillPaths []string
	defer func() {
		// Disconnected so cleanup still runs after cancellation or a failed
		// activity. Failures here are logged and swallowed.
		dctx, cancel := workflow.NewDisconnectedContext(ctx)
		defer cancel()
		dctx = workflow.WithActivityOptions(dctx, workflow.ActivityOptions{
			StartToCloseTimeout: 5 * time.Minute,
			RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
		})
		var removed int
		if err := workflow.ExecuteActivity(dctx, "Cleanup", spillPaths).Get(dctx, &removed); err != nil {
			logger.Warn("spill cleanup failed", "error", err)
		} else {
			logger.Info("spill cleanup done", "removed", removed)
		}
	}()

	extractCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 60 * time.Minute,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy:         activityRetry,
	})
	var rawPath string
	if err := workflow.ExecuteActivity(extractCtx, "Extract", runID).Get(extractCtx, &rawPath); err != nil {
		return "", err
	}
	spillPaths = append(spillPaths, rawPath)
	logger.Info("extract finished", "raw_path", rawPath)

	transformCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy:         activityRetry,
	})
	var transformedPath string
	if err := workflow.ExecuteActivity(transformCtx, "Transform", rawPath).Get(transformCtx, &transformedPath); err != nil {
		return "", err
	}
	spillPaths = append(spillPaths, transformedPath)
	logger.Info("transform finished", "transformed_path", transformedPath)

	loadCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 45 * time.Minute,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy:         activityRetry,
	})
	var rows int
	if err := workflow.ExecuteActivity(loadCtx, "Load", transformedPath).Get(loadCtx, &rows); err != nil {
		return "", err
	}
	logger.Info("load finished", "rows", rows)

	return "completed", nil
}
