package errors

import "errors"

var (
	ErrInvalidEntityID     = errors.New("invalid entity id")
	ErrInvalidEntityKind   = errors.New("invalid entity kind")
	ErrEntityNotFound      = errors.New("rewardable entity not found")
	ErrNothingToDistribute = errors.New("entity has no reward to distribute")
	ErrInvalidWinnerCount  = errors.New("winner count must be positive")
	ErrDrawNotFound        = errors.New("lottery draw not found")
)
