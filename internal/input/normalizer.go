// Package input parses and canonicalizes check request identifiers.
package input

import (
	"context"
	"strings"
	"unicode"

	"github.com/agrotrace/agrocheck/internal/geocode"
	"github.com/agrotrace/agrocheck/internal/model"
)

// Geocoder resolves free-text addresses to coordinates. Satisfied by
// *geocode.CascadeClient.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*geocode.Result, error)
}

// Normalizer converts raw request inputs to their canonical form.
type Normalizer struct {
	geocoder Geocoder
}

// NewNormalizer creates a Normalizer. The geocoder is only consulted for
// ADDRESS inputs.
func NewNormalizer(geocoder Geocoder) *Normalizer {
	return &Normalizer{geocoder: geocoder}
}

// Normalize validates and canonicalizes a raw input. ADDRESS inputs are
// promoted to COORDINATES with provenance kept in metadata.
func (n *Normalizer) Normalize(ctx context.Context, raw model.RawInput) (model.NormalizedInput, error) {
	if !raw.Type.Valid() {
		return model.NormalizedInput{}, model.NewValidationError("input.type", "unknown input type")
	}

	switch raw.Type {
	case model.InputCPF:
		return normalizeDocument(raw, 11)
	case model.InputCNPJ:
		return normalizeDocument(raw, 14)
	case model.InputCoordinates:
		return normalizeCoordinates(raw)
	case model.InputAddress:
		return n.normalizeAddress(ctx, raw)
	case model.InputCAR:
		return normalizeCAR(raw)
	}
	return model.NormalizedInput{}, model.NewValidationError("input.type", "unknown input type")
}

// normalizeDocument strips non-digits and verifies length. Check digits are
// not validated; the source registries store unvalidated documents too.
func normalizeDocument(raw model.RawInput, wantLen int) (model.NormalizedInput, error) {
	s, ok := raw.Value.(string)
	if !ok {
		return model.NormalizedInput{}, model.NewValidationError("input.value", "document must be a string")
	}

	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if len(digits) != wantLen {
		return model.NormalizedInput{}, model.NewValidationError("input.value", "document has wrong length")
	}

	return model.NormalizedInput{
		Type:           raw.Type,
		CanonicalValue: digits,
		OriginalValue:  s,
	}, nil
}

func normalizeCoordinates(raw model.RawInput) (model.NormalizedInput, error) {
	coords, err := parseCoordinates(raw.Value)
	if err != nil {
		return model.NormalizedInput{}, err
	}
	if !coords.InBrazil() {
		return model.NormalizedInput{}, model.NewValidationError("input.value", "coordinates outside Brazil")
	}

	return model.NormalizedInput{
		Type:           model.InputCoordinates,
		CanonicalValue: coords.Canonical(),
		OriginalValue:  coords.Canonical(),
		Coordinates:    &coords,
	}, nil
}

// parseCoordinates accepts either a model.Coordinates value or the generic
// map shape produced by JSON decoding.
func parseCoordinates(v any) (model.Coordinates, error) {
	switch val := v.(type) {
	case model.Coordinates:
		return val, nil
	case *model.Coordinates:
		if val == nil {
			return model.Coordinates{}, model.NewValidationError("input.value", "coordinates required")
		}
		return *val, nil
	case map[string]any:
		lat, latOK := asFloat(val["lat"])
		lon, lonOK := asFloat(val["lon"])
		if !latOK || !lonOK {
			return model.Coordinates{}, model.NewValidationError("input.value", "lat and lon must be numeric")
		}
		return model.Coordinates{Lat: lat, Lon: lon}, nil
	}
	return model.Coordinates{}, model.NewValidationError("input.value", "coordinates must be an object with lat and lon")
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// normalizeAddress geocodes the address and promotes the input to
// COORDINATES. The original address and geocoding provenance stay in
// metadata.
func (n *Normalizer) normalizeAddress(ctx context.Context, raw model.RawInput) (model.NormalizedInput, error) {
	s, ok := raw.Value.(string)
	if !ok {
		return model.NormalizedInput{}, model.NewValidationError("input.value", "address must be a string")
	}
	addr := strings.TrimSpace(s)
	if addr == "" {
		return model.NormalizedInput{}, model.NewValidationError("input.value", "address is empty")
	}
	if n.geocoder == nil {
		return model.NormalizedInput{}, model.NewValidationError("input.type", "address input not supported: no geocoder configured")
	}

	res, err := n.geocoder.Geocode(ctx, addr)
	if err != nil {
		return model.NormalizedInput{}, err
	}

	coords := model.Coordinates{Lat: res.Lat, Lon: res.Lon}
	return model.NormalizedInput{
		Type:           model.InputCoordinates,
		CanonicalValue: coords.Canonical(),
		OriginalValue:  addr,
		Coordinates:    &coords,
		Metadata: model.JSONMap{
			"originalType": string(model.InputAddress),
			"geocodingResult": model.JSONMap{
				"displayName": res.DisplayName,
				"source":      res.Source,
			},
		},
	}, nil
}

func normalizeCAR(raw model.RawInput) (model.NormalizedInput, error) {
	s, ok := raw.Value.(string)
	if !ok {
		return model.NormalizedInput{}, model.NewValidationError("input.value", "CAR code must be a string")
	}
	code := strings.ToUpper(strings.TrimSpace(s))
	if code == "" {
		return model.NormalizedInput{}, model.NewValidationError("input.value", "CAR code is empty")
	}

	// CAR formats vary by state; no structural validation beyond non-empty.
	return model.NormalizedInput{
		Type:           model.InputCAR,
		CanonicalValue: code,
		OriginalValue:  s,
	}, nil
}
