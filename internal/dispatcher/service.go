// Package dispatcher serves submodel payloads to dataspace consumers after
// their connector negotiated access. It is the backend the provisioned
// connector assets proxy to.
package dispatcher

import (
	"context"
	"errors"
	"log/slog"

	"twinhub/internal/submodelstore"
	"twinhub/internal/twin"
	"twinhub/pkg/domain"
	dErrors "twinhub/pkg/domain-errors"
	"twinhub/pkg/platform/sentinel"
)

// Service resolves submodel reads against the share state: a consumer only
// gets a payload when the twin was shared with its BPN.
type Service struct {
	twins     twin.Store
	submodels submodelstore.Store
	log       *slog.Logger
}

// NewService wires the dispatcher.
func NewService(twins twin.Store, submodels submodelstore.Store, log *slog.Logger) *Service {
	return &Service{twins: twins, submodels: submodels, log: log}
}

// GetSubmodelContent returns the payload for (semanticID, globalID) when the
// twin has been shared with the consumer. An unshared twin is a validation
// failure, not a not-found, so consumers cannot probe for existence.
func (s *Service) GetSubmodelContent(ctx context.Context, consumer domain.BPN, semanticID string, globalID domain.GlobalID) (submodelstore.Payload, error) {
	sem, err := domain.ParseSemanticID(semanticID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid semantic ID")
	}

	shared, err := s.twins.TwinSharedWith(ctx, globalID, consumer)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "check twin share")
	}
	if !shared {
		s.log.Warn("submodel read rejected",
			"globalId", globalID.String(),
			"consumer", consumer.String())
		return nil, dErrors.New(dErrors.CodeValidation, "submodel is not shared with this partner")
	}

	payload, err := s.submodels.Get(ctx, submodelstore.Key(sem, globalID))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "submodel content not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeExternal, "read submodel content")
	}
	return payload, nil
}

// UploadSubmodelContent writes a payload directly into the store, bypassing
// the registration stages. Used for corrections of already registered data.
func (s *Service) UploadSubmodelContent(ctx context.Context, semanticID string, globalID domain.GlobalID, payload submodelstore.Payload) error {
	sem, err := domain.ParseSemanticID(semanticID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid semantic ID")
	}
	if err := s.submodels.Put(ctx, submodelstore.Key(sem, globalID), payload); err != nil {
		return dErrors.Wrap(err, dErrors.CodeExternal, "store submodel content")
	}
	return nil
}

// DeleteSubmodelContent removes a payload from the store.
func (s *Service) DeleteSubmodelContent(ctx context.Context, semanticID string, globalID domain.GlobalID) error {
	sem, err := domain.ParseSemanticID(semanticID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid semantic ID")
	}
	if err := s.submodels.Delete(ctx, submodelstore.Key(sem, globalID)); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "submodel content not found")
		}
		return dErrors.Wrap(err, dErrors.CodeExternal, "delete submodel content")
	}
	return nil
}
