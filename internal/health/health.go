// Package health reports service status and data-source freshness.
//
// Each row in data_sources declares an update cadence (daily, weekly,
// monthly); freshness thresholds are configured per cadence, so a weekly
// source is not flagged stale on a daily schedule.
package health

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agrotrace/agrocheck/internal/config"
	"github.com/agrotrace/agrocheck/internal/db"
)

// Freshness states for a single data source.
const (
	FreshnessFresh        = "fresh"
	FreshnessWarning      = "warning"
	FreshnessStale        = "stale"
	FreshnessNeverUpdated = "never_updated"
)

// Overall service states.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusDown     = "down"
)

// SourceStatus is the freshness report for one data source.
type SourceStatus struct {
	Name        string     `json:"name"`
	Cadence     string     `json:"cadence"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
	RecordCount int64      `json:"record_count"`
	Freshness   string     `json:"freshness"`
}

// Report is the full health snapshot returned by /health.
type Report struct {
	Status    string         `json:"status"`
	Database  bool           `json:"database"`
	Cache     bool           `json:"cache"`
	Sources   []SourceStatus `json:"sources"`
	CheckedAt time.Time      `json:"checked_at"`
}

// Pinger is the cache-side dependency; nil means no cache configured.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor snapshots health on demand and on a background interval.
type Monitor struct {
	pool       db.Pool
	cache      Pinger
	thresholds map[string]config.FreshnessThreshold
	interval   time.Duration

	mu   sync.RWMutex
	last *Report
}

// NewMonitor creates a Monitor. cache may be nil.
func NewMonitor(pool db.Pool, cache Pinger, cfg config.HealthConfig) *Monitor {
	interval := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Monitor{
		pool:       pool,
		cache:      cache,
		thresholds: cfg.Thresholds,
		interval:   interval,
	}
}

// Run refreshes the snapshot on the configured interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.refresh(ctx)
		}
	}
}

// Report returns the current health state. Database and cache liveness are
// probed on every call so an outage surfaces immediately; only the freshness
// table is served from the background snapshot.
func (m *Monitor) Report(ctx context.Context) *Report {
	m.mu.RLock()
	last := m.last
	m.mu.RUnlock()
	if last == nil {
		return m.refresh(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	report := &Report{CheckedAt: time.Now().UTC(), Sources: last.Sources}
	report.Database = m.pool.Ping(ctx) == nil
	if m.cache != nil {
		report.Cache = m.cache.Ping(ctx) == nil
	}
	report.Status = m.overall(report)
	return report
}

func (m *Monitor) refresh(ctx context.Context) *Report {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	report := &Report{CheckedAt: time.Now().UTC()}

	report.Database = m.pool.Ping(ctx) == nil
	if m.cache != nil {
		report.Cache = m.cache.Ping(ctx) == nil
	}

	if report.Database {
		sources, err := m.sourceStatuses(ctx)
		if err != nil {
			zap.L().Warn("health: source freshness query failed", zap.Error(err))
		} else {
			report.Sources = sources
		}
	}

	report.Status = m.overall(report)

	m.mu.Lock()
	m.last = report
	m.mu.Unlock()

	for _, s := range report.Sources {
		if s.Freshness == FreshnessStale || s.Freshness == FreshnessNeverUpdated {
			zap.L().Warn("health: data source not fresh",
				zap.String("source", s.Name),
				zap.String("freshness", s.Freshness),
			)
		}
	}

	return report
}

// overall derives the service state: down when the database is unreachable,
// degraded when the cache is down or any source is stale, ok otherwise.
func (m *Monitor) overall(r *Report) string {
	if !r.Database {
		return StatusDown
	}
	if m.cache != nil && !r.Cache {
		return StatusDegraded
	}
	for _, s := range r.Sources {
		if s.Freshness == FreshnessStale || s.Freshness == FreshnessNeverUpdated {
			return StatusDegraded
		}
	}
	return StatusOK
}

func (m *Monitor) sourceStatuses(ctx context.Context) ([]SourceStatus, error) {
	rows, err := m.pool.Query(ctx, `
		SELECT name, cadence, last_updated, record_count
		FROM data_sources
		ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	now := time.Now()
	var out []SourceStatus
	for rows.Next() {
		var (
			s           SourceStatus
			lastUpdated *time.Time
		)
		if err := rows.Scan(&s.Name, &s.Cadence, &lastUpdated, &s.RecordCount); err != nil {
			return nil, err
		}
		s.LastUpdated = lastUpdated
		s.Freshness = m.classify(s.Cadence, lastUpdated, now)
		out = append(out, s)
	}
	return out, rows.Err()
}

// classify buckets a source's staleness by its cadence thresholds. Unknown
// cadences fall back to the monthly thresholds.
func (m *Monitor) classify(cadence string, lastUpdated *time.Time, now time.Time) string {
	if lastUpdated == nil || lastUpdated.IsZero() {
		return FreshnessNeverUpdated
	}

	threshold, ok := m.thresholds[strings.ToLower(cadence)]
	if !ok {
		threshold = m.thresholds["monthly"]
	}
	if threshold.WarningHours <= 0 {
		threshold = config.FreshnessThreshold{WarningHours: 720, StaleHours: 1440}
	}

	age := now.Sub(*lastUpdated)
	switch {
	case age >= time.Duration(threshold.StaleHours)*time.Hour:
		return FreshnessStale
	case age >= time.Duration(threshold.WarningHours)*time.Hour:
		return FreshnessWarning
	default:
		return FreshnessFresh
	}
}
