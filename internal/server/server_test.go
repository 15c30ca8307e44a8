package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agrotrace/agrocheck/internal/auth"
	"github.com/agrotrace/agrocheck/internal/cache"
	"github.com/agrotrace/agrocheck/internal/checker"
	"github.com/agrotrace/agrocheck/internal/config"
	"github.com/agrotrace/agrocheck/internal/health"
	"github.com/agrotrace/agrocheck/internal/input"
	"github.com/agrotrace/agrocheck/internal/model"
	"github.com/agrotrace/agrocheck/internal/orchestrator"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type stubChecker struct {
	desc   model.Descriptor
	result *model.CheckerResult
}

func (s *stubChecker) Descriptor() model.Descriptor { return s.desc }

func (s *stubChecker) Execute(ctx context.Context, in model.NormalizedInput) (*model.CheckerResult, error) {
	return s.result, nil
}

const testRawKey = "abcd1234.secret"

type serverFixture struct {
	srv    *Server
	mock   pgxmock.PgxPoolIface
	hash   string
	router http.Handler
}

func newFixture(t *testing.T) *serverFixture {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	hash, err := auth.HashKey(testRawKey)
	require.NoError(t, err)

	passing := &stubChecker{
		desc: model.Descriptor{
			Name:                "slave_labor",
			Category:            model.CategorySocial,
			Description:         "Federal registry of employers caught using forced labor",
			Priority:            10,
			SupportedInputTypes: []model.InputType{model.InputCPF, model.InputCNPJ},
			CacheTTL:            time.Hour,
			Timeout:             time.Second,
			Enabled:             true,
		},
		result: &model.CheckerResult{Status: model.StatusPass, Message: "not listed"},
	}

	disabled := &stubChecker{
		desc: model.Descriptor{
			Name:                "deter_alerts",
			Category:            model.CategoryEnvironmental,
			Description:         "INPE DETER real-time deforestation alerts",
			Priority:            9,
			SupportedInputTypes: []model.InputType{model.InputCoordinates},
			CacheTTL:            time.Hour,
			Timeout:             time.Second,
			Enabled:             false,
		},
		result: &model.CheckerResult{Status: model.StatusPass},
	}

	registry, err := checker.NewRegistry(passing, disabled)
	require.NoError(t, err)

	orch := orchestrator.New(
		input.NewNormalizer(nil),
		registry,
		checker.NewRunner(cache.NewResultCache(nil, false)),
		nil,
		"1.0.0",
		time.Second,
	)

	monitor := health.NewMonitor(mock, nil, config.HealthConfig{
		CheckIntervalSecs: 300,
		Thresholds: map[string]config.FreshnessThreshold{
			"daily": {WarningHours: 48, StaleHours: 96},
		},
	})

	srv := New(
		config.ServerConfig{Port: 0, APIVersion: "1.0.0", CORSAllowedOrigins: []string{"*"}},
		orch, registry, auth.New(mock), monitor, mock,
	)

	return &serverFixture{srv: srv, mock: mock, hash: hash, router: srv.Router()}
}

// expectHealthy satisfies the availability gate's first report, which pings
// the database and snapshots the freshness table.
func (f *serverFixture) expectHealthy() {
	f.mock.ExpectPing()
	f.mock.ExpectQuery("FROM data_sources").
		WillReturnRows(pgxmock.NewRows([]string{"name", "cadence", "last_updated", "record_count"}))
}

func (f *serverFixture) expectAuth() {
	f.mock.ExpectQuery("FROM api_keys").
		WithArgs("abcd1234").
		WillReturnRows(pgxmock.NewRows([]string{"key_hash", "permissions", "rate_limit", "active"}).
			AddRow(f.hash, []string{"read"}, 0, true))
}

func TestCheck_MissingAPIKey(t *testing.T) {
	f := newFixture(t)
	f.expectHealthy()

	req := httptest.NewRequest(http.MethodPost, "/check", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheck_InvalidKey(t *testing.T) {
	f := newFixture(t)
	f.expectHealthy()
	f.mock.ExpectQuery("FROM api_keys").
		WithArgs("wrongpre").
		WillReturnRows(pgxmock.NewRows([]string{"key_hash", "permissions", "rate_limit", "active"}))

	req := httptest.NewRequest(http.MethodPost, "/check", strings.NewReader(`{}`))
	req.Header.Set("X-API-Key", "wrongpre.secret")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheck_HappyPath(t *testing.T) {
	f := newFixture(t)
	f.expectHealthy()
	f.expectAuth()

	body := `{"input":{"type":"CPF","value":"123.456.789-01"}}`
	req := httptest.NewRequest(http.MethodPost, "/check", strings.NewReader(body))
	req.Header.Set("X-API-Key", testRawKey)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.CheckResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, model.VerdictCompliant, resp.Verdict)
	assert.Equal(t, "12345678901", resp.Input.CanonicalValue)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "slave_labor", resp.Sources[0].Name)
}

func TestCheck_ValidationErrorIs400(t *testing.T) {
	f := newFixture(t)
	f.expectHealthy()
	f.expectAuth()

	body := `{"input":{"type":"CPF","value":"123"}}`
	req := httptest.NewRequest(http.MethodPost, "/check", strings.NewReader(body))
	req.Header.Set("X-API-Key", testRawKey)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheck_MalformedBodyIs400(t *testing.T) {
	f := newFixture(t)
	f.expectHealthy()
	f.expectAuth()

	req := httptest.NewRequest(http.MethodPost, "/check", strings.NewReader(`{not json`))
	req.Header.Set("X-API-Key", testRawKey)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSources_ListsCheckers(t *testing.T) {
	f := newFixture(t)
	f.expectHealthy()
	f.expectAuth()

	req := httptest.NewRequest(http.MethodGet, "/sources", nil)
	req.Header.Set("X-API-Key", testRawKey)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Sources []sourceInfo `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Sources, 2, "disabled checkers are listed too")
	assert.Equal(t, "slave_labor", resp.Sources[0].Name)
	assert.Equal(t, model.CategorySocial, resp.Sources[0].Category)
	assert.True(t, resp.Sources[0].Enabled)
	assert.Equal(t, "deter_alerts", resp.Sources[1].Name)
	assert.False(t, resp.Sources[1].Enabled)
}

func TestSourcesByCategory_UnknownIs404(t *testing.T) {
	f := newFixture(t)
	f.expectHealthy()
	f.expectAuth()

	req := httptest.NewRequest(http.MethodGet, "/sources/fiscal", nil)
	req.Header.Set("X-API-Key", testRawKey)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSamples_UnknownSourceIs404(t *testing.T) {
	f := newFixture(t)
	f.expectHealthy()
	f.expectAuth()

	req := httptest.NewRequest(http.MethodGet, "/samples/nonexistent", nil)
	req.Header.Set("X-API-Key", testRawKey)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth_NoAuthRequired(t *testing.T) {
	f := newFixture(t)

	f.mock.ExpectPing()
	f.mock.ExpectQuery("FROM data_sources").
		WillReturnRows(pgxmock.NewRows([]string{"name", "cadence", "last_updated", "record_count"}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var report health.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, health.StatusOK, report.Status)
}

func TestCheck_DatabaseDownIs503(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectPing().WillReturnError(assert.AnError)

	body := `{"input":{"type":"CPF","value":"123.456.789-01"}}`
	req := httptest.NewRequest(http.MethodPost, "/check", strings.NewReader(body))
	req.Header.Set("X-API-Key", testRawKey)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NoError(t, f.mock.ExpectationsWereMet(), "the outage must surface before the key lookup")
}

func TestHealth_DatabaseDownIs503(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectPing().WillReturnError(assert.AnError)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetrics_Exposed(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
