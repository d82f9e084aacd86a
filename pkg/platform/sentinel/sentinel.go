package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors:
//   - ErrNotFound: entity does not exist in the store
//   - ErrAlreadyUsed: unique key (submitter email) already taken
//   - ErrInvalidState: entity in the wrong state for the requested operation
//   - ErrUnavailable: backing service temporarily unavailable
//
// For validation errors use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
