// Package checker defines the uniform checker contract, the immutable
// registry, and the runner that wraps every execution with caching, timing,
// timeout, and error capture.
package checker

import (
	"context"

	"github.com/agrotrace/agrocheck/internal/model"
)

// Checker is a single per-source compliance test. Implementations are pure
// functions of the normalized input and the external data stores; they must
// respect ctx cancellation.
type Checker interface {
	// Descriptor returns the checker's static metadata.
	Descriptor() model.Descriptor

	// Execute runs the check. It returns an error only for transport or
	// query failures; domain outcomes (including FAIL) are results.
	Execute(ctx context.Context, input model.NormalizedInput) (*model.CheckerResult, error)
}
