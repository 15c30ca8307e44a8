package checker

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/agrotrace/agrocheck/internal/cache"
	"github.com/agrotrace/agrocheck/internal/metrics"
	"github.com/agrotrace/agrocheck/internal/model"
)

// Runner executes checkers behind the result cache. Concurrent misses for
// the same fingerprint collapse into one execution via singleflight.
type Runner struct {
	cache *cache.ResultCache
	group singleflight.Group
}

// NewRunner creates a Runner over the given result cache.
func NewRunner(resultCache *cache.ResultCache) *Runner {
	return &Runner{cache: resultCache}
}

// Run executes one checker for one input: cache lookup, singleflight-guarded
// execution under the checker's timeout, cache store. Failures of any kind
// become an ERROR result; they never propagate.
func (r *Runner) Run(ctx context.Context, c Checker, input model.NormalizedInput) model.SourceResult {
	desc := c.Descriptor()
	start := time.Now()

	if !desc.Supports(input.Type) {
		return sourceResult(desc, &model.CheckerResult{
			Status:   model.StatusNotApplicable,
			Message:  "input type not supported",
			Evidence: model.Evidence{DataSource: desc.Name},
		})
	}

	if cached, ok := r.cache.Get(ctx, desc.Name, input.CanonicalValue); ok {
		cached.Cached = true
		metrics.ObserveChecker(desc.Name, string(cached.Status), time.Since(start), true)
		return sourceResult(desc, cached)
	}

	key := cache.Fingerprint(desc.Name, input.CanonicalValue)
	v, _, shared := r.group.Do(key, func() (any, error) {
		return r.execute(ctx, c, desc, input), nil
	})

	result := v.(*model.CheckerResult)
	if shared {
		// Joined an in-flight execution; report it as a cache-level hit.
		copied := *result
		copied.Cached = true
		result = &copied
	}

	metrics.ObserveChecker(desc.Name, string(result.Status), time.Since(start), false)
	return sourceResult(desc, result)
}

// execute runs the checker under its own timeout and normalizes the outcome.
func (r *Runner) execute(ctx context.Context, c Checker, desc model.Descriptor, input model.NormalizedInput) (result *model.CheckerResult) {
	timeout := desc.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Error("checker panicked",
				zap.String("checker", desc.Name),
				zap.Any("panic", rec),
			)
			result = errorResult(desc, "internal error", start)
		}
	}()

	res, err := c.Execute(execCtx, input)
	elapsed := time.Since(start)

	switch {
	case execCtx.Err() == context.DeadlineExceeded:
		zap.L().Warn("checker timed out",
			zap.String("checker", desc.Name),
			zap.Duration("timeout", timeout),
		)
		return errorResult(desc, "timeout", start)
	case err != nil:
		zap.L().Warn("checker failed",
			zap.String("checker", desc.Name),
			zap.Error(err),
		)
		return errorResult(desc, err.Error(), start)
	case res == nil:
		return errorResult(desc, "checker returned no result", start)
	}

	res.ExecutionTimeMs = elapsed.Milliseconds()
	res.Cached = false

	// Severity is meaningful only on FAIL.
	if res.Status != model.StatusFail {
		res.Severity = ""
	} else if res.Severity == "" {
		res.Severity = model.SeverityMedium
	}

	// ERROR results are transient; only settled outcomes are cached.
	if res.Status != model.StatusError {
		r.cache.Set(ctx, desc.Name, input.CanonicalValue, res, desc.CacheTTL)
	}
	return res
}

func errorResult(desc model.Descriptor, message string, start time.Time) *model.CheckerResult {
	return &model.CheckerResult{
		Status:          model.StatusError,
		Message:         message,
		Evidence:        model.Evidence{DataSource: desc.Name},
		ExecutionTimeMs: time.Since(start).Milliseconds(),
	}
}

func sourceResult(desc model.Descriptor, res *model.CheckerResult) model.SourceResult {
	return model.SourceResult{
		Name:          desc.Name,
		Category:      desc.Category,
		Priority:      desc.Priority,
		CheckerResult: *res,
	}
}
