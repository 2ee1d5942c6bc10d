// Package submodelstore persists submodel payloads. Payload content is opaque
// to the orchestrator; keys are content-addressed from the aspect's semantic
// type and the twin identifier, so the dispatcher can resolve a payload from
// the same inputs a consumer presents.
package submodelstore

import (
	"context"
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/blake2b"

	"twinhub/pkg/domain"
)

// Payload is an opaque submodel document.
type Payload = json.RawMessage

// Store is the submodel store boundary. Get and Delete return
// sentinel.ErrNotFound for absent keys.
type Store interface {
	Put(ctx context.Context, key string, payload Payload) error
	Get(ctx context.Context, key string) (Payload, error)
	Delete(ctx context.Context, key string) error
}

// Key derives the storage key for an aspect payload from the hash of its
// semantic type plus the twin's global identifier.
func Key(semanticID domain.SemanticID, globalID domain.GlobalID) string {
	sum := blake2b.Sum256([]byte(semanticID.Value))
	return hex.EncodeToString(sum[:16]) + "/" + globalID.String()
}
