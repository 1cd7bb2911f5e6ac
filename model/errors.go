package model

import "errors"

// Callers match these with errors.Is; the returned errors carry the offending
// coordinate, length or code in their message.
var (
	ErrOutOfBounds    = errors.New("coordinate out of bounds")
	ErrLengthMismatch = errors.New("terrain length mismatch")
	ErrInvalidFlag    = errors.New("invalid terrain code")
	ErrInvalidRoom    = errors.New("invalid room snapshot")
)
