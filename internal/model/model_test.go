package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoordinates_Canonical(t *testing.T) {
	c := Coordinates{Lat: -15.1234567, Lon: -47.9876543}
	assert.Equal(t, "-15.123457,-47.987654", c.Canonical())

	// Same point at higher precision collapses to the same canonical form.
	c2 := Coordinates{Lat: -15.12345671, Lon: -47.98765432}
	assert.Equal(t, c.Canonical(), c2.Canonical())
}

func TestCoordinates_InBrazil(t *testing.T) {
	tests := []struct {
		name string
		lat  float64
		lon  float64
		want bool
	}{
		{"brasilia", -15.79, -47.88, true},
		{"manaus", -3.10, -60.02, true},
		{"north of bbox", 7.0, -60.0, false},
		{"south of bbox", -35.0, -55.0, false},
		{"atlantic", -15.0, -20.0, false},
		{"pacific", -15.0, -80.0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Coordinates{Lat: tt.lat, Lon: tt.lon}
			assert.Equal(t, tt.want, c.InBrazil())
		})
	}
}

func TestInputType_Valid(t *testing.T) {
	for _, valid := range []InputType{InputCPF, InputCNPJ, InputCoordinates, InputAddress, InputCAR} {
		assert.True(t, valid.Valid(), string(valid))
	}
	assert.False(t, InputType("EMAIL").Valid())
	assert.False(t, InputType("").Valid())
}

func TestSeverity_Weight(t *testing.T) {
	assert.Equal(t, 1.0, SeverityCritical.Weight())
	assert.Equal(t, 0.75, SeverityHigh.Weight())
	assert.Equal(t, 0.5, SeverityMedium.Weight())
	assert.Equal(t, 0.25, SeverityLow.Weight())
}

func TestStatus_Applicable(t *testing.T) {
	assert.True(t, StatusPass.Applicable())
	assert.True(t, StatusFail.Applicable())
	assert.True(t, StatusWarning.Applicable())
	assert.False(t, StatusError.Applicable())
	assert.False(t, StatusNotApplicable.Applicable())
}

func TestDescriptor_Supports(t *testing.T) {
	d := Descriptor{SupportedInputTypes: []InputType{InputCPF, InputCNPJ}}
	assert.True(t, d.Supports(InputCPF))
	assert.False(t, d.Supports(InputCoordinates))
}

func TestValidationError_Message(t *testing.T) {
	err := NewValidationError("input.value", "document has wrong length")
	assert.Contains(t, err.Error(), "input.value")

	ve, ok := AsValidationError(err)
	assert.True(t, ok)
	assert.Equal(t, "input.value", ve.Field)
}

func TestGeocodingError_Unwrap(t *testing.T) {
	var err error = &GeocodingError{Address: "Fazenda X", Reason: "no provider match"}
	ge, ok := AsGeocodingError(err)
	assert.True(t, ok)
	assert.Equal(t, "Fazenda X", ge.Address)

	_, ok = AsValidationError(err)
	assert.False(t, ok)
}

func TestJSONMap_Clone(t *testing.T) {
	m := JSONMap{"a": 1, "nested": JSONMap{"b": 2}}
	c := m.Clone()
	c["a"] = 99
	assert.Equal(t, 1, m["a"])
}
