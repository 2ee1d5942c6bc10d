package twin

import (
	"context"

	"twinhub/pkg/domain"
)

// Store is the metadata boundary for twins and their registration state.
// Implementations return sentinel.ErrNotFound for absent rows and
// sentinel.ErrConflict for uniqueness violations; the status-advancing
// methods must be conditional (never regress a stored status) so concurrent
// orchestrator calls cannot corrupt progress.
type Store interface {
	CreateTwin(ctx context.Context, t *Twin) error
	GetTwinByID(ctx context.Context, id int64) (Twin, error)
	GetTwinByGlobalID(ctx context.Context, globalID domain.GlobalID) (Twin, error)

	GetStackByName(ctx context.Context, name string) (EnablementServiceStack, error)
	CreateStack(ctx context.Context, s *EnablementServiceStack) error
	FindStacksByLegalEntity(ctx context.Context, legalEntityID int64) ([]EnablementServiceStack, error)

	// EnsureTwinRegistration returns the (twin, stack) registration row,
	// creating it unregistered when absent. A racing create must yield the
	// existing row, not a duplicate.
	EnsureTwinRegistration(ctx context.Context, twinID, stackID int64) (TwinRegistration, error)
	// MarkTwinRegistered flips the registered flag. Idempotent.
	MarkTwinRegistered(ctx context.Context, twinID, stackID int64) error

	CreateAspect(ctx context.Context, a *TwinAspect) error
	GetAspect(ctx context.Context, twinID int64, semanticID string) (TwinAspect, error)
	ListAspectsByTwin(ctx context.Context, twinID int64) ([]TwinAspect, error)

	// EnsureAspectRegistration returns the (aspect, stack) registration row,
	// creating it at StatusPlanned when absent.
	EnsureAspectRegistration(ctx context.Context, aspectID, stackID int64, mode RegistrationMode) (TwinAspectRegistration, error)
	GetAspectRegistration(ctx context.Context, aspectID, stackID int64) (TwinAspectRegistration, error)
	// AdvanceAspectStatus raises the stored status to target only when the
	// stored value is still below it; a lost race is not an error.
	AdvanceAspectStatus(ctx context.Context, aspectID, stackID int64, target RegistrationStatus) error

	CreateAgreement(ctx context.Context, a *DataExchangeAgreement) error
	ListAgreementsByPartner(ctx context.Context, businessPartnerID int64) ([]DataExchangeAgreement, error)

	// EnsureTwinExchange records the share and reports whether it was newly
	// created.
	EnsureTwinExchange(ctx context.Context, twinID, agreementID int64) (created bool, err error)
	// TwinSharedWith reports whether any agreement links the twin to the
	// partner with the given BPN.
	TwinSharedWith(ctx context.Context, globalID domain.GlobalID, partner domain.BPN) (bool, error)
}
