package errors

import "errors"

var (
	ErrInvalidSubjectID     = errors.New("invalid subject id")
	ErrInvalidEntryKind     = errors.New("invalid ledger entry kind")
	ErrZeroDelta            = errors.New("ledger entry delta must not be zero")
	ErrInsufficientBalance  = errors.New("insufficient credit balance")
	ErrBalanceOverflow      = errors.New("credit balance out of range")
	ErrSubjectNotFound      = errors.New("subject not found")
	ErrSubjectAlreadyExists = errors.New("subject already exists")
	ErrEntryNotFound        = errors.New("ledger entry not found")
	ErrInvalidHistoryQuery  = errors.New("invalid history query")
	ErrInvalidAdjustment    = errors.New("invalid administrative adjustment")
)
