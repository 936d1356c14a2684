package costengine

import "errors"

// Fatal run errors. Both abort the run before or during row
// processing; nothing partially computed is returned alongside them.
var (
	// ErrAlignment is returned when the weight series and gross-return
	// series do not share the same date axis, or weight data is
	// malformed for a traded security.
	ErrAlignment = errors.New("weight/return date axis misaligned")

	// ErrInvalidAUM is returned when the run AUM is not a positive
	// finite number.
	ErrInvalidAUM = errors.New("aum_usd must be positive and finite")
)
