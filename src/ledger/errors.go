package ledger

import "errors"

var (
	ErrValidation             = errors.New("validation failed")
	ErrInsufficientShares     = errors.New("insufficient shares")
	ErrMissingPrice           = errors.New("missing price")
	ErrConcurrentModification = errors.New("concurrent modification")
)
