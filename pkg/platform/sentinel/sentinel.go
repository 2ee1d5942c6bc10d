package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and enablement-service
// adapters return these (optionally wrapped) so services can translate them
// into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity absent in the metadata store or remote system
// - ErrConflict: uniqueness violated (duplicate row, racing create)
// - ErrInvalidState: entity in the wrong state for the requested operation
// - ErrUnavailable: external service temporarily unreachable
//
// For validation errors (bad input, missing mappings), use pkg/domain-errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
