// Package simulation runs batches of independent trials on a bounded worker
// pool and merges their results.
package simulation

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"arena/internal/arena/game"
	appErr "arena/pkg/errors"
	"arena/pkg/utils/logger"

	"go.uber.org/zap"
)

// TrialFunc plays trial index with freshly created strategies.
type TrialFunc func(ctx context.Context, index int) (game.TrialResult, error)

// Config holds runner settings.
type Config struct {
	PoolSize     int
	TrialTimeout time.Duration
	// MaxWork caps Trials*Cost of one batch. Zero disables the cap.
	MaxWork int
}

// Batch describes one request's trials.
type Batch struct {
	Trials int
	// Cost is the per-trial work multiplier reported by the game.
	Cost int
}

// Result is the outcome of a batch.
type Result struct {
	AggregatedResult
	Requested int
	Effective int
	Failed    int
	TimedOut  bool
	Elapsed   time.Duration
}

// Runner executes batches. A Runner is safe for concurrent use; every Run
// starts its own workers.
type Runner struct {
	poolSize     int
	trialTimeout time.Duration
	maxWork      int
	now          func() time.Time
}

type outcome struct {
	index int
	res   game.TrialResult
	err   error
}

// NewRunner creates a runner.
func NewRunner(cfg Config) *Runner {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}
	return &Runner{
		poolSize:     poolSize,
		trialTimeout: cfg.TrialTimeout,
		maxWork:      cfg.MaxWork,
		now:          time.Now,
	}
}

// EffectiveTrials applies the work ceiling to a batch.
func (r *Runner) EffectiveTrials(b Batch) int {
	if b.Trials <= 0 {
		return 0
	}
	if r.maxWork <= 0 {
		return b.Trials
	}
	cost := b.Cost
	if cost < 1 {
		cost = 1
	}
	limit := r.maxWork / cost
	if limit < 1 {
		limit = 1
	}
	if b.Trials < limit {
		return b.Trials
	}
	return limit
}

// Run plays the batch and aggregates every trial that succeeded. When ctx
// ends first the trials completed so far are returned with TimedOut set.
func (r *Runner) Run(ctx context.Context, b Batch, fn TrialFunc) Result {
	start := r.now()
	effective := r.EffectiveTrials(b)
	result := Result{Requested: b.Trials, Effective: effective}
	agg := NewAggregator()
	if effective == 0 {
		result.AggregatedResult = agg.Result()
		return result
	}

	tasks := make(chan int)
	results := make(chan outcome, effective)
	workers := r.poolSize
	if workers > effective {
		workers = effective
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range tasks {
				results <- r.runOne(ctx, idx, fn)
			}
		}()
	}
	go func() {
		defer close(tasks)
		for i := 0; i < effective; i++ {
			select {
			case tasks <- i:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	collect := func(out outcome) {
		if out.err != nil {
			result.Failed++
			logger.Debug(ctx, "trial failed",
				zap.Int("trial", out.index),
				zap.Error(out.err),
			)
			return
		}
		agg.Add(out.res)
	}

loop:
	for {
		select {
		case out, ok := <-results:
			if !ok {
				break loop
			}
			collect(out)
		case <-ctx.Done():
			result.TimedOut = true
			// keep whatever already finished
			for {
				select {
				case out, ok := <-results:
					if !ok {
						break loop
					}
					collect(out)
				default:
					break loop
				}
			}
		}
	}

	result.AggregatedResult = agg.Result()
	result.Elapsed = r.now().Sub(start)
	if result.TimedOut {
		logger.Warn(ctx, "batch timed out, returning partial result",
			zap.Int("requested", result.Requested),
			zap.Int("effective", result.Effective),
			zap.Int("completed", result.NumTrials),
			zap.Int("failed", result.Failed),
		)
	}
	return result
}

func (r *Runner) runOne(ctx context.Context, index int, fn TrialFunc) (out outcome) {
	out.index = index
	trialCtx := ctx
	if r.trialTimeout > 0 {
		var cancel context.CancelFunc
		trialCtx, cancel = context.WithTimeout(ctx, r.trialTimeout)
		defer cancel()
	}
	defer func() {
		if rec := recover(); rec != nil {
			out.err = appErr.Newf(appErr.TrialFailed, "trial panicked: %v", rec).
				WithDetail("stack", string(debug.Stack()))
		}
	}()
	res, err := fn(trialCtx, index)
	if err != nil {
		out.err = appErr.Wrapf(err, appErr.TrialFailed, "trial %d failed: %v", index, err)
		return out
	}
	if res.Points == nil {
		out.err = appErr.Newf(appErr.TrialFailed, "trial %d returned no points", index)
		return out
	}
	out.res = res
	return out
}
