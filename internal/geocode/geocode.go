// Package geocode resolves Brazilian addresses to coordinates via Nominatim
// (primary) and LocationIQ (fallback), with a Postgres-backed cache.
package geocode

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Result holds the geocoding output for an address.
type Result struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	DisplayName string  `json:"displayName"`
	Source      string  `json:"source"` // "primary", "fallback" or "cache"
	Matched     bool    `json:"matched"`
}

// Provider represents a single geocoding backend.
type Provider interface {
	Name() string
	Geocode(ctx context.Context, address string) (*Result, error)
	Available() bool
}

// brazilStates maps the two-letter state codes to full names. Nominatim hit
// rates improve noticeably with expanded names.
var brazilStates = map[string]string{
	"AC": "Acre", "AL": "Alagoas", "AP": "Amapá", "AM": "Amazonas",
	"BA": "Bahia", "CE": "Ceará", "DF": "Distrito Federal",
	"ES": "Espírito Santo", "GO": "Goiás", "MA": "Maranhão",
	"MT": "Mato Grosso", "MS": "Mato Grosso do Sul", "MG": "Minas Gerais",
	"PA": "Pará", "PB": "Paraíba", "PR": "Paraná", "PE": "Pernambuco",
	"PI": "Piauí", "RJ": "Rio de Janeiro", "RN": "Rio Grande do Norte",
	"RS": "Rio Grande do Sul", "RO": "Rondônia", "RR": "Roraima",
	"SC": "Santa Catarina", "SP": "São Paulo", "SE": "Sergipe",
	"TO": "Tocantins",
}

// NormalizeAddress canonicalizes an address for querying: trims, collapses
// whitespace, expands state abbreviations, and appends the country when
// absent.
func NormalizeAddress(addr string) string {
	parts := strings.Split(addr, ",")
	out := make([]string, 0, len(parts)+1)
	for _, p := range parts {
		p = strings.Join(strings.Fields(p), " ")
		if p == "" {
			continue
		}
		if full, ok := brazilStates[strings.ToUpper(p)]; ok {
			p = full
		}
		out = append(out, p)
	}

	joined := strings.Join(out, ", ")
	lower := strings.ToLower(joined)
	if !strings.Contains(lower, "brasil") && !strings.Contains(lower, "brazil") {
		joined += ", Brasil"
	}
	return joined
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldAddress lowercases and strips diacritics so cache keys are stable
// across accent variants.
func foldAddress(addr string) string {
	folded, _, err := transform.String(foldTransformer, addr)
	if err != nil {
		folded = addr
	}
	return strings.ToLower(folded)
}
