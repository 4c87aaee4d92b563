package checkpoint

import "fmt"

var (
	// ErrNotFound is returned when no artifact exists for the requested
	// turn, or a run directory contains no checkpoints at all.
	ErrNotFound = fmt.Errorf("checkpoint not found")

	// ErrVersionMismatch is returned when an artifact's major schema version
	// differs from the one this package writes. Minor version drift is
	// tolerated; major drift is not.
	ErrVersionMismatch = fmt.Errorf("checkpoint schema version mismatch")

	// ErrInvalidBranchPoint is returned when a branch turn lies outside
	// [0, source.Turn]. The source run is left untouched.
	ErrInvalidBranchPoint = fmt.Errorf("invalid branch point")
)
