// Package events publishes registration lifecycle events to Kafka so
// downstream consumers can react to twin and sharing progress without
// polling the metadata store.
package events

import "time"

// Event types emitted on the registrations topic.
const (
	TypeTwinRegistered   = "twin.registered"
	TypeAspectAdvanced   = "twin.aspect.advanced"
	TypeTwinShared       = "twin.shared"
	TypeRegistrationFail = "twin.registration.failed"
)

// RegistrationEvent is the wire shape for all registration events. Keys on
// the topic are the twin global ID so per-twin ordering is preserved.
type RegistrationEvent struct {
	Type       string    `json:"type"`
	GlobalID   string    `json:"globalId"`
	StackName  string    `json:"stackName,omitempty"`
	SemanticID string    `json:"semanticId,omitempty"`
	Status     string    `json:"status,omitempty"`
	Partner    string    `json:"partner,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}
