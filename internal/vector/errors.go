package vector

import "errors"

var (
	// ErrDimensionMismatch reports a vector whose length does not match the
	// index dimensionality. The insert is rejected as a whole.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrCorruptState reports persisted state that cannot be trusted: one of
	// the two index artifacts is missing, or their entry counts disagree.
	ErrCorruptState = errors.New("corrupt index state")

	// ErrInvalidTopK reports a search with top_k below 1.
	ErrInvalidTopK = errors.New("top_k must be at least 1")
)
