package health

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agrotrace/agrocheck/internal/config"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func testHealthConfig() config.HealthConfig {
	return config.HealthConfig{
		CheckIntervalSecs: 300,
		Thresholds: map[string]config.FreshnessThreshold{
			"daily":   {WarningHours: 48, StaleHours: 96},
			"weekly":  {WarningHours: 168, StaleHours: 336},
			"monthly": {WarningHours: 720, StaleHours: 1440},
		},
	}
}

type stubPinger struct{ err error }

func (s *stubPinger) Ping(ctx context.Context) error { return s.err }

func hoursAgo(h int) *time.Time {
	t := time.Now().Add(-time.Duration(h) * time.Hour)
	return &t
}

func TestClassify(t *testing.T) {
	m := NewMonitor(nil, nil, testHealthConfig())
	now := time.Now()

	tests := []struct {
		name    string
		cadence string
		last    *time.Time
		want    string
	}{
		{"daily fresh", "daily", hoursAgo(12), FreshnessFresh},
		{"daily warning", "daily", hoursAgo(60), FreshnessWarning},
		{"daily stale", "daily", hoursAgo(100), FreshnessStale},
		{"weekly fresh", "weekly", hoursAgo(100), FreshnessFresh},
		{"weekly warning", "weekly", hoursAgo(200), FreshnessWarning},
		{"weekly stale", "weekly", hoursAgo(400), FreshnessStale},
		{"monthly fresh", "monthly", hoursAgo(400), FreshnessFresh},
		{"monthly stale", "monthly", hoursAgo(1500), FreshnessStale},
		{"never updated", "daily", nil, FreshnessNeverUpdated},
		{"unknown cadence uses monthly", "quarterly", hoursAgo(400), FreshnessFresh},
		{"case insensitive cadence", "DAILY", hoursAgo(12), FreshnessFresh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.classify(tt.cadence, tt.last, now))
		})
	}
}

func TestOverall(t *testing.T) {
	cfg := testHealthConfig()

	t.Run("database down is down", func(t *testing.T) {
		m := NewMonitor(nil, nil, cfg)
		assert.Equal(t, StatusDown, m.overall(&Report{Database: false}))
	})

	t.Run("cache down is degraded", func(t *testing.T) {
		m := NewMonitor(nil, &stubPinger{}, cfg)
		assert.Equal(t, StatusDegraded, m.overall(&Report{Database: true, Cache: false}))
	})

	t.Run("stale source is degraded", func(t *testing.T) {
		m := NewMonitor(nil, nil, cfg)
		r := &Report{
			Database: true,
			Sources:  []SourceStatus{{Name: "prodes_deforestation", Freshness: FreshnessStale}},
		}
		assert.Equal(t, StatusDegraded, m.overall(r))
	})

	t.Run("warning source is still ok", func(t *testing.T) {
		m := NewMonitor(nil, nil, cfg)
		r := &Report{
			Database: true,
			Sources:  []SourceStatus{{Name: "deter_alerts", Freshness: FreshnessWarning}},
		}
		assert.Equal(t, StatusOK, m.overall(r))
	})
}

func TestReport_Snapshot(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectPing()
	rows := pgxmock.NewRows([]string{"name", "cadence", "last_updated", "record_count"}).
		AddRow("deter_alerts", "daily", hoursAgo(5), int64(120000)).
		AddRow("prodes_deforestation", "monthly", hoursAgo(2000), int64(800000))
	mock.ExpectQuery("FROM data_sources").WillReturnRows(rows)

	m := NewMonitor(mock, &stubPinger{}, testHealthConfig())
	report := m.Report(context.Background())

	require.NotNil(t, report)
	assert.True(t, report.Database)
	assert.True(t, report.Cache)
	require.Len(t, report.Sources, 2)
	assert.Equal(t, FreshnessFresh, report.Sources[0].Freshness)
	assert.Equal(t, FreshnessStale, report.Sources[1].Freshness)
	assert.Equal(t, StatusDegraded, report.Status)

	// Follow-up reports re-probe liveness but reuse the freshness table
	// without another data_sources query.
	mock.ExpectPing()
	again := m.Report(context.Background())
	require.Len(t, again.Sources, 2)
	assert.Equal(t, StatusDegraded, again.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReport_DatabaseLossAfterSnapshotIsDown(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectPing()
	rows := pgxmock.NewRows([]string{"name", "cadence", "last_updated", "record_count"}).
		AddRow("deter_alerts", "daily", hoursAgo(5), int64(120000))
	mock.ExpectQuery("FROM data_sources").WillReturnRows(rows)

	m := NewMonitor(mock, nil, testHealthConfig())
	require.Equal(t, StatusOK, m.Report(context.Background()).Status)

	// The database goes away between snapshots; the next report must not
	// keep serving the stale ok.
	mock.ExpectPing().WillReturnError(assert.AnError)
	report := m.Report(context.Background())

	assert.False(t, report.Database)
	assert.Equal(t, StatusDown, report.Status)
}

func TestReport_DatabaseDown(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectPing().WillReturnError(assert.AnError)

	m := NewMonitor(mock, nil, testHealthConfig())
	report := m.Report(context.Background())

	assert.False(t, report.Database)
	assert.Equal(t, StatusDown, report.Status)
	assert.Empty(t, report.Sources)
}
