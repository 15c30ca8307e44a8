package checkers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrotrace/agrocheck/internal/config"
	"github.com/agrotrace/agrocheck/internal/model"
)

func cnpjInput(value string) model.NormalizedInput {
	return model.NormalizedInput{Type: model.InputCNPJ, CanonicalValue: value}
}

func embargoRows(areas ...float64) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{"tad_number", "municipality", "state", "area_ha", "embargo_date"})
	for i, area := range areas {
		rows.AddRow(fmt.Sprintf("TAD-%03d", i), "Sorriso", "MT", area, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC))
	}
	return rows
}

func runEmbargoes(t *testing.T, areas ...float64) *model.CheckerResult {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM ibama_embargoes").
		WithArgs("12345678000190").
		WillReturnRows(embargoRows(areas...))
	expectLastUpdate(mock, "ibama_embargoes")

	c := &EmbargoesChecker{pool: mock, cfg: config.CheckersConfig{}}
	res, err := c.Execute(context.Background(), cnpjInput("12345678000190"))
	require.NoError(t, err)
	return res
}

func TestEmbargoes_PassWhenNone(t *testing.T) {
	res := runEmbargoes(t)
	assert.Equal(t, model.StatusPass, res.Status)
}

func TestEmbargoes_SeverityByAggregateArea(t *testing.T) {
	tests := []struct {
		name  string
		areas []float64
		want  model.Severity
	}{
		{"small area is medium", []float64{40}, model.SeverityMedium},
		{"hundred hectares is high", []float64{60, 40}, model.SeverityHigh},
		{"over a thousand is critical", []float64{900, 600}, model.SeverityCritical},
		{"exactly one thousand is high", []float64{1000}, model.SeverityHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runEmbargoes(t, tt.areas...)
			assert.Equal(t, model.StatusFail, res.Status)
			assert.Equal(t, tt.want, res.Severity)
		})
	}
}

func TestEmbargoes_DetailsCappedAtFive(t *testing.T) {
	res := runEmbargoes(t, 10, 10, 10, 10, 10, 10, 10)

	assert.Equal(t, 7, res.Details["totalEmbargoes"])
	shown, ok := res.Details["embargoes"].([]embargoRecord)
	require.True(t, ok)
	assert.Len(t, shown, 5)
}

func TestEmbargoProximity_SeverityByDistance(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		want     model.Severity
	}{
		{"adjacent is critical", 300, model.SeverityCritical},
		{"near is high", 1500, model.SeverityHigh},
		{"within buffer is medium", 4000, model.SeverityMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			rows := pgxmock.NewRows([]string{"tad_number", "municipality", "state", "area_ha", "distance_m"}).
				AddRow("TAD-001", "Sorriso", "MT", 150.0, tt.distance)
			mock.ExpectQuery("ST_DWithin").
				WillReturnRows(rows)
			expectLastUpdate(mock, "ibama_embargoes")

			c := &EmbargoProximityChecker{pool: mock, cfg: config.CheckersConfig{}, bufferMeters: 5000}
			res, err := c.Execute(context.Background(), coordsInput(-10.5, -62.5))
			require.NoError(t, err)

			assert.Equal(t, model.StatusFail, res.Status)
			assert.Equal(t, tt.want, res.Severity)
		})
	}
}
