package checkers

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agrotrace/agrocheck/internal/config"
	"github.com/agrotrace/agrocheck/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func expectLastUpdate(mock pgxmock.PgxPoolIface, source string) {
	mock.ExpectQuery("SELECT last_updated FROM data_sources").
		WithArgs(source).
		WillReturnRows(pgxmock.NewRows([]string{"last_updated"}).AddRow(time.Now()))
}

func cpfInput(value string) model.NormalizedInput {
	return model.NormalizedInput{Type: model.InputCPF, CanonicalValue: value}
}

func TestSlaveLabor_PassWhenAbsent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM slave_labor_registry").
		WithArgs("12345678901").
		WillReturnRows(pgxmock.NewRows([]string{"year", "state", "employer_name", "workers_affected"}))
	expectLastUpdate(mock, "slave_labor")

	c := &SlaveLaborChecker{pool: mock, cfg: config.CheckersConfig{}}
	res, err := c.Execute(context.Background(), cpfInput("12345678901"))
	require.NoError(t, err)

	assert.Equal(t, model.StatusPass, res.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlaveLabor_FailCriticalWhenPresent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"year", "state", "employer_name", "workers_affected"}).
		AddRow(2023, "PA", "Fazenda Santa Fe", 14).
		AddRow(2019, "PA", "Fazenda Santa Fe", 6)
	mock.ExpectQuery("FROM slave_labor_registry").
		WithArgs("12345678901").
		WillReturnRows(rows)
	expectLastUpdate(mock, "slave_labor")

	c := &SlaveLaborChecker{pool: mock, cfg: config.CheckersConfig{}}
	res, err := c.Execute(context.Background(), cpfInput("12345678901"))
	require.NoError(t, err)

	assert.Equal(t, model.StatusFail, res.Status)
	assert.Equal(t, model.SeverityCritical, res.Severity)
	assert.Equal(t, 2, res.Details["occurrences"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlaveLabor_QueryErrorPropagates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM slave_labor_registry").
		WithArgs("12345678901").
		WillReturnError(assert.AnError)

	c := &SlaveLaborChecker{pool: mock, cfg: config.CheckersConfig{}}
	_, err = c.Execute(context.Background(), cpfInput("12345678901"))
	assert.Error(t, err)
}

func TestSlaveLabor_Descriptor(t *testing.T) {
	c := &SlaveLaborChecker{cfg: config.CheckersConfig{}}
	d := c.Descriptor()

	assert.Equal(t, "slave_labor", d.Name)
	assert.Equal(t, model.CategorySocial, d.Category)
	assert.True(t, d.Supports(model.InputCPF))
	assert.True(t, d.Supports(model.InputCNPJ))
	assert.False(t, d.Supports(model.InputCoordinates))
}

func TestSlaveLabor_DescriptorOverrides(t *testing.T) {
	disabled := false
	c := &SlaveLaborChecker{cfg: config.CheckersConfig{
		Overrides: map[string]config.CheckerConfig{
			"slave_labor": {Enabled: &disabled, TimeoutMs: 1500},
		},
	}}
	d := c.Descriptor()

	assert.False(t, d.Enabled)
	assert.Equal(t, 1500*time.Millisecond, d.Timeout)
}
