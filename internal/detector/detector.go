package detector

import (
	"context"

	"github.com/vigilhq/vigil/internal/biz/domain"
)

// Detector probes one aspect of the host and reports alert candidates.
// A healthy probe returns no candidates; a failed probe returns an error
// and contributes nothing to the tick.
type Detector interface {
	// Name identifies the detector in logs
	Name() string

	// Check probes once, returning zero or more candidates
	Check(ctx context.Context) ([]domain.Candidate, error)
}
