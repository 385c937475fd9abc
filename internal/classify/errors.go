package classify

import "errors"

// Classifier failure modes. Individual failures are recovered by the
// ensemble through weight redistribution; they only surface to the caller
// when every classifier fails.
var (
	ErrClassifierFailure = errors.New("classifier failed")
	ErrClassifierTimeout = errors.New("classifier timed out")
)
