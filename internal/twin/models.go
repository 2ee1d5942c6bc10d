// Package twin holds the digital twin metadata model and the persisted
// registration state that the orchestrator resumes from.
package twin

import (
	"encoding/json"
	"time"

	"twinhub/pkg/domain"
)

// Twin represents one physical-part digital twin. Created on the first
// registration request for a part; never deleted.
type Twin struct {
	ID       int64
	GlobalID domain.GlobalID
	// ShellID is the registry-facing identifier of the twin's shell
	// descriptor.
	ShellID           domain.ShellID
	CreatedAt         time.Time
	ModifiedAt        time.Time
	AdditionalContext string
}

// EnablementServiceStack is a named deployment of connector + registry
// endpoints for one legal entity. Connection settings override the server
// defaults when present.
type EnablementServiceStack struct {
	ID                 int64
	Name               string
	LegalEntityID      int64
	ConnectionSettings json.RawMessage
}

// TwinRegistration tracks how far a twin's shell has progressed against one
// stack. At most one row per (twin, stack).
type TwinRegistration struct {
	TwinID     int64
	StackID    int64
	Registered bool
}

// TwinAspect is one submodel attached to a twin. At most one per
// (twin, semantic type).
type TwinAspect struct {
	ID         int64
	TwinID     int64
	SubmodelID domain.SubmodelID
	SemanticID string
}

// TwinAspectRegistration tracks the registration stage of an aspect against
// one stack. Status only ever advances.
type TwinAspectRegistration struct {
	TwinAspectID int64
	StackID      int64
	Status       RegistrationStatus
	Mode         RegistrationMode
	CreatedAt    time.Time
	ModifiedAt   time.Time
}

// DataExchangeAgreement names the terms under which twins are shared with
// one business partner. PartnerBPN is denormalized on reads so the share
// check does not need the partner record.
type DataExchangeAgreement struct {
	ID                int64
	Name              string
	BusinessPartnerID int64
	PartnerBPN        domain.BPN
}

// TwinExchange records that a twin is visible to a partner under a data
// exchange agreement. Its presence is the "shared" signal; there is no
// intermediate state and no revocation.
type TwinExchange struct {
	TwinID      int64
	AgreementID int64
}
