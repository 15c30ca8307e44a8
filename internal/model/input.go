// Package model defines the request, result, and response types shared across
// the check pipeline.
package model

import "fmt"

// InputType classifies what kind of identifier a check request carries.
type InputType string

const (
	InputCPF         InputType = "CPF"         // 11-digit person tax ID
	InputCNPJ        InputType = "CNPJ"        // 14-digit legal entity tax ID
	InputCoordinates InputType = "COORDINATES" // lat/lon pair inside Brazil
	InputAddress     InputType = "ADDRESS"     // free text, resolved to coordinates
	InputCAR         InputType = "CAR"         // rural property registry code
)

// Valid reports whether t is a known input type.
func (t InputType) Valid() bool {
	switch t {
	case InputCPF, InputCNPJ, InputCoordinates, InputAddress, InputCAR:
		return true
	}
	return false
}

// Brazil bounding box. Inputs outside it are rejected before any checker runs.
const (
	BrazilMinLat = -34.0
	BrazilMaxLat = 6.0
	BrazilMinLon = -74.0
	BrazilMaxLon = -34.0
)

// Coordinates is a geographic point in EPSG:4326.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// InBrazil reports whether the point falls inside Brazil's bounding box.
func (c Coordinates) InBrazil() bool {
	return c.Lat >= BrazilMinLat && c.Lat <= BrazilMaxLat &&
		c.Lon >= BrazilMinLon && c.Lon <= BrazilMaxLon
}

// Canonical returns the cache-stable form of the point, rounded to 6 decimals
// so semantically equal inputs share cache entries.
func (c Coordinates) Canonical() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}

// RawInput is the identifier exactly as received from the client.
type RawInput struct {
	Type  InputType `json:"type"`
	Value any       `json:"value"`
}

// NormalizedInput is the canonical form of a request identifier. Address
// inputs are promoted to COORDINATES with the original preserved in Metadata.
type NormalizedInput struct {
	Type           InputType    `json:"type"`
	CanonicalValue string       `json:"canonicalValue"`
	OriginalValue  string       `json:"originalValue"`
	Coordinates    *Coordinates `json:"coordinates,omitempty"`
	Metadata       JSONMap      `json:"metadata,omitempty"`
}
