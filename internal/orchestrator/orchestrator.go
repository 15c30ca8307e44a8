// Package orchestrator drives a single check request: normalization,
// applicability-based fan-out, result collection, verdict synthesis, and
// asynchronous audit persistence.
package orchestrator

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agrotrace/agrocheck/internal/audit"
	"github.com/agrotrace/agrocheck/internal/checker"
	"github.com/agrotrace/agrocheck/internal/input"
	"github.com/agrotrace/agrocheck/internal/metrics"
	"github.com/agrotrace/agrocheck/internal/model"
	"github.com/agrotrace/agrocheck/internal/verdict"
)

// Orchestrator executes check requests end to end.
type Orchestrator struct {
	normalizer *input.Normalizer
	registry   *checker.Registry
	runner     *checker.Runner
	auditStore audit.Store
	apiVersion string
	slack      time.Duration
}

// New creates an Orchestrator. The audit store may be nil, disabling audit
// persistence.
func New(
	normalizer *input.Normalizer,
	registry *checker.Registry,
	runner *checker.Runner,
	auditStore audit.Store,
	apiVersion string,
	slack time.Duration,
) *Orchestrator {
	if slack <= 0 {
		slack = 2 * time.Second
	}
	return &Orchestrator{
		normalizer: normalizer,
		registry:   registry,
		runner:     runner,
		auditStore: auditStore,
		apiVersion: apiVersion,
		slack:      slack,
	}
}

// Execute runs one check request. Request-level failures (validation,
// geocoding) return an error; checker-level failures surface as ERROR
// results inside a successful response.
func (o *Orchestrator) Execute(ctx context.Context, req model.CheckRequest) (*model.CheckResponse, error) {
	start := time.Now()

	normalized, err := o.normalizer.Normalize(ctx, req.Input)
	if err != nil {
		return nil, err
	}

	selected := o.selectCheckers(normalized.Type, req.Options.Sources)

	// The request deadline covers the slowest selected checker plus slack,
	// so one stuck checker cannot hold the request open indefinitely.
	deadline := o.maxTimeout(selected) + o.slack
	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	results := make([]model.SourceResult, len(selected))

	g, gCtx := errgroup.WithContext(runCtx)
	for i, c := range selected {
		i, c := i, c // per-iteration copies; required while go.mod targets go < 1.22
		g.Go(func() error {
			results[i] = o.runner.Run(gCtx, c, normalized)
			return nil
		})
	}
	// Workers never return errors; failures are ERROR results.
	_ = g.Wait()

	// Deterministic response ordering regardless of completion order.
	sort.Slice(results, func(i, j int) bool {
		if results[i].Priority != results[j].Priority {
			return results[i].Priority > results[j].Priority
		}
		return results[i].Name < results[j].Name
	})

	eval := verdict.Evaluate(results)
	elapsed := time.Since(start)

	resp := &model.CheckResponse{
		CheckID:   uuid.New().String(),
		Input:     normalized,
		Timestamp: time.Now().UTC(),
		Verdict:   eval.Verdict,
		Score:     eval.Score,
		Sources:   results,
		Summary:   eval.Summary,
		Metadata: model.ResponseMetadata{
			ProcessingTimeMs: elapsed.Milliseconds(),
			CacheHitRate:     eval.CacheHitRate,
			APIVersion:       o.apiVersion,
		},
	}

	metrics.RequestsTotal.WithLabelValues(string(resp.Verdict)).Inc()
	metrics.RequestDuration.Observe(elapsed.Seconds())

	o.persistAsync(req.Input, resp)

	return resp, nil
}

// selectCheckers returns the applicable checkers, intersected with the
// requested source names when present.
func (o *Orchestrator) selectCheckers(t model.InputType, sources []string) []checker.Checker {
	applicable := o.registry.Applicable(t)
	if len(sources) == 0 {
		return applicable
	}

	wanted := make(map[string]bool, len(sources))
	for _, s := range sources {
		wanted[s] = true
	}

	var out []checker.Checker
	for _, c := range applicable {
		if wanted[c.Descriptor().Name] {
			out = append(out, c)
		}
	}
	return out
}

func (o *Orchestrator) maxTimeout(selected []checker.Checker) time.Duration {
	max := 5 * time.Second
	for _, c := range selected {
		if t := c.Descriptor().Timeout; t > max {
			max = t
		}
	}
	return max
}

// persistAsync writes the audit row in a detached goroutine. The response
// does not wait for it and persistence failures only log.
func (o *Orchestrator) persistAsync(raw model.RawInput, resp *model.CheckResponse) {
	if o.auditStore == nil {
		return
	}

	row := audit.RowFromResponse(raw, resp)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := o.auditStore.Persist(ctx, row); err != nil {
			zap.L().Warn("audit persist failed",
				zap.String("check_id", row.ID),
				zap.Error(err),
			)
		}
	}()
}
