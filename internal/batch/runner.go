package batch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/promptlabs/enchanter-gateway/internal/credit"
	"github.com/promptlabs/enchanter-gateway/internal/telemetry"
	"github.com/promptlabs/enchanter-gateway/internal/templates"
	"github.com/promptlabs/enchanter-gateway/internal/types"
	"github.com/promptlabs/enchanter-gateway/internal/upstream"
)

// Enhancer is the slice of the enhancement orchestrator the runner needs.
type Enhancer interface {
	EnhanceAndComplete(ctx context.Context, req *types.CompletionRequest) (*types.CompletionResponse, error)
}

// Runner fans a list of independent tasks out to the enhancer under a global
// concurrency cap. Each task's outcome is captured independently: one task's
// failure never aborts its siblings, and the result list always has one
// entry per task, in task order, once the batch terminates.
type Runner struct {
	enhancer Enhancer
	ledger   credit.Ledger
	ceiling  int
	metrics  *telemetry.Metrics
	logger   *slog.Logger
}

func NewRunner(enhancer Enhancer, ledger credit.Ledger, ceiling int, metrics *telemetry.Metrics, logger *slog.Logger) *Runner {
	if ceiling <= 0 {
		ceiling = 10
	}
	return &Runner{
		enhancer: enhancer,
		ledger:   ledger,
		ceiling:  ceiling,
		metrics:  metrics,
		logger:   logger,
	}
}

// Run executes the batch and returns only after every task has reached a
// terminal state. In parallel mode the effective cap is
// min(maxParallel, configured ceiling).
func (r *Runner) Run(ctx context.Context, batchID string, tasks []types.CompletionRequest, mode types.BatchMode, maxParallel int) []types.BatchResult {
	start := time.Now()
	results := make([]types.BatchResult, len(tasks))

	r.logger.Info("batch started",
		"batch_id", batchID,
		"tasks", len(tasks),
		"mode", string(mode),
	)

	if mode == types.BatchParallel {
		limit := int64(maxParallel)
		if limit <= 0 || limit > int64(r.ceiling) {
			limit = int64(r.ceiling)
		}
		sem := semaphore.NewWeighted(limit)
		var wg sync.WaitGroup
		for i := range tasks {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if err := sem.Acquire(ctx, 1); err != nil {
					results[i] = failure(i, types.FailureCanceled, err.Error(), 0)
					return
				}
				defer sem.Release(1)
				results[i] = r.runTask(ctx, i, &tasks[i], mode)
			}(i)
		}
		wg.Wait()
	} else {
		for i := range tasks {
			results[i] = r.runTask(ctx, i, &tasks[i], mode)
		}
	}

	succeeded := 0
	for _, res := range results {
		if res.Success {
			succeeded++
		}
	}
	r.logger.Info("batch completed",
		"batch_id", batchID,
		"tasks", len(tasks),
		"succeeded", succeeded,
		"failed", len(tasks)-succeeded,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return results
}

// runTask reserves one credit, runs one task, and commits the reservation on
// success or returns it on failure. Reservation is atomic so concurrent tasks
// sharing a caller can never over-admit against the remaining balance.
func (r *Runner) runTask(ctx context.Context, index int, req *types.CompletionRequest, mode types.BatchMode) types.BatchResult {
	start := time.Now()

	reserved, err := r.ledger.Reserve(ctx, req.CallerID)
	if err != nil {
		r.record(mode, string(types.FailureInternal))
		return failure(index, types.FailureInternal, "credit reservation failed: "+err.Error(), elapsed(start))
	}
	if !reserved {
		r.record(mode, string(types.FailureCreditsExhausted))
		return failure(index, types.FailureCreditsExhausted, "no credits remaining", elapsed(start))
	}

	resp, err := r.enhancer.EnhanceAndComplete(ctx, req)
	if err != nil {
		if rerr := r.ledger.Release(ctx, req.CallerID); rerr != nil {
			r.logger.Error("credit release failed", "caller_id", req.CallerID, "error", rerr)
		}
		kind := classify(err)
		r.record(mode, string(kind))
		r.logger.Warn("batch task failed",
			"task_index", index,
			"kind", string(kind),
			"error", err,
		)
		return failure(index, kind, err.Error(), elapsed(start))
	}

	if err := r.ledger.Commit(ctx, req.CallerID); err != nil {
		// The task succeeded; a commit failure is the ledger's problem,
		// not the caller's.
		r.logger.Error("credit commit failed", "caller_id", req.CallerID, "error", err)
	}

	r.record(mode, "success")
	return types.BatchResult{
		Index:      index,
		Success:    true,
		Response:   resp,
		TokensUsed: resp.Usage.TotalTokens,
		DurationMs: elapsed(start),
	}
}

func classify(err error) types.FailureKind {
	switch {
	case errors.Is(err, templates.ErrUnknownStyle):
		return types.FailureUnknownStyle
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return types.FailureCanceled
	default:
		if _, ok := upstream.KindOf(err); ok {
			return types.FailureUpstream
		}
		return types.FailureInternal
	}
}

func failure(index int, kind types.FailureKind, msg string, durationMs int64) types.BatchResult {
	return types.BatchResult{
		Index:      index,
		Success:    false,
		ErrKind:    kind,
		Error:      msg,
		DurationMs: durationMs,
	}
}

func elapsed(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

func (r *Runner) record(mode types.BatchMode, outcome string) {
	if r.metrics != nil {
		r.metrics.RecordBatchTask(string(mode), outcome)
	}
}
