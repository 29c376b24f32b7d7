package errors

import "errors"

var (
	ErrInvalidEntityID         = errors.New("entity id is required")
	ErrInvalidEntityKind       = errors.New("entity kind must be research or vote")
	ErrInvalidSubjectID        = errors.New("subject id is required")
	ErrInvalidTitle            = errors.New("title is required")
	ErrInvalidEstimatedMinutes = errors.New("estimated minutes must be positive")
	ErrInvalidExtraCredit      = errors.New("extra credit and winner count must not be negative")
	ErrInvalidDeadline         = errors.New("deadline must be in the future")
	ErrEntityNotFound          = errors.New("entity not found")
	ErrEntityAlreadyExists     = errors.New("entity already exists")
	ErrEntityClosed            = errors.New("entity is closed")
	ErrNotAuthor               = errors.New("only the author may perform this action")
	ErrAuthorCannotParticipate = errors.New("author cannot participate in own entity")
	ErrAlreadyParticipated     = errors.New("subject already participated")
	ErrParticipationNotFound   = errors.New("participation not found")
	ErrUnsupportedKind         = errors.New("operation not supported for this entity kind")
	ErrEntityDeleted           = errors.New("entity is deleted")
	ErrIdempotencyConflict     = errors.New("idempotency key reused with a different upload")
)
