package checkers

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrotrace/agrocheck/internal/config"
	"github.com/agrotrace/agrocheck/internal/model"
)

func coordsInput(lat, lon float64) model.NormalizedInput {
	c := model.Coordinates{Lat: lat, Lon: lon}
	return model.NormalizedInput{
		Type:           model.InputCoordinates,
		CanonicalValue: c.Canonical(),
		Coordinates:    &c,
	}
}

func fireChecker(pool pgxmock.PgxPoolIface) *FireHotspotsChecker {
	return &FireHotspotsChecker{pool: pool, cfg: config.CheckersConfig{}, bufferMeters: 10000}
}

func TestFireHotspots_PassWhenNone(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM fire_hotspots").
		WillReturnRows(pgxmock.NewRows([]string{"count", "max"}).AddRow(0, (*time.Time)(nil)))
	expectLastUpdate(mock, "fire_hotspots")

	res, err := fireChecker(mock).Execute(context.Background(), coordsInput(-10.5, -62.5))
	require.NoError(t, err)

	assert.Equal(t, model.StatusPass, res.Status)
}

func TestFireHotspots_FewDetectionsIsMedium(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	latest := time.Now().Add(-24 * time.Hour)
	mock.ExpectQuery("FROM fire_hotspots").
		WillReturnRows(pgxmock.NewRows([]string{"count", "max"}).AddRow(3, &latest))
	expectLastUpdate(mock, "fire_hotspots")

	res, err := fireChecker(mock).Execute(context.Background(), coordsInput(-10.5, -62.5))
	require.NoError(t, err)

	assert.Equal(t, model.StatusFail, res.Status)
	assert.Equal(t, model.SeverityMedium, res.Severity)
	assert.Equal(t, 3, res.Details["count"])
}

func TestFireHotspots_ManyDetectionsIsHigh(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	latest := time.Now().Add(-2 * time.Hour)
	mock.ExpectQuery("FROM fire_hotspots").
		WillReturnRows(pgxmock.NewRows([]string{"count", "max"}).AddRow(12, &latest))
	expectLastUpdate(mock, "fire_hotspots")

	res, err := fireChecker(mock).Execute(context.Background(), coordsInput(-10.5, -62.5))
	require.NoError(t, err)

	assert.Equal(t, model.StatusFail, res.Status)
	assert.Equal(t, model.SeverityHigh, res.Severity)
}

func TestFireHotspots_CARInputResolvesCentroid(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("ST_Centroid").
		WithArgs("MT-5103403-XYZ").
		WillReturnRows(pgxmock.NewRows([]string{"lat", "lon"}).AddRow(-12.5, -55.5))
	mock.ExpectQuery("FROM fire_hotspots").
		WillReturnRows(pgxmock.NewRows([]string{"count", "max"}).AddRow(0, (*time.Time)(nil)))
	expectLastUpdate(mock, "fire_hotspots")

	res, err := fireChecker(mock).Execute(context.Background(), model.NormalizedInput{
		Type:           model.InputCAR,
		CanonicalValue: "MT-5103403-XYZ",
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusPass, res.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolvePoint_UnknownCAR(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("ST_Centroid").
		WithArgs("XX-0000000-AAA").
		WillReturnRows(pgxmock.NewRows([]string{"lat", "lon"}))

	_, _, err = resolvePoint(context.Background(), mock, model.NormalizedInput{
		Type:           model.InputCAR,
		CanonicalValue: "XX-0000000-AAA",
	})
	assert.Error(t, err)
}
