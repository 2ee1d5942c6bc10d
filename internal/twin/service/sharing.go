package service

import (
	"context"
	"errors"
	"log/slog"

	"twinhub/internal/events"
	"twinhub/internal/part"
	"twinhub/internal/twin"
	"twinhub/internal/twin/metrics"
	"twinhub/pkg/domain"
	dErrors "twinhub/pkg/domain-errors"
	"twinhub/pkg/platform/sentinel"
)

// Sharing records which partners a twin is visible to. Sharing is additive;
// there is no revocation path.
type Sharing struct {
	twins   twin.Store
	parts   part.Store
	events  events.Publisher
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewSharing wires the sharing coordinator.
func NewSharing(twins twin.Store, parts part.Store, publisher events.Publisher, m *metrics.Metrics, log *slog.Logger) *Sharing {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Sharing{twins: twins, parts: parts, events: publisher, metrics: m, log: log}
}

// ShareTwin makes the part's twin visible to the named partner under the
// partner's first data exchange agreement. It reports true when the share
// was newly created and false when the twin was already shared. The partner
// must already have a customer part mapping for the part; without one no
// exchange is recorded.
func (s *Sharing) ShareTwin(ctx context.Context, manufacturerID domain.BPN, manufacturerPartID, partnerName string) (bool, error) {
	entity, err := s.parts.GetLegalEntityByBPNL(ctx, manufacturerID)
	if err != nil {
		return false, translateLookup(err, "legal entity "+manufacturerID.String())
	}
	catalogPart, err := s.parts.GetCatalogPart(ctx, entity.ID, manufacturerPartID)
	if err != nil {
		return false, translateLookup(err, "catalog part "+manufacturerPartID)
	}
	if catalogPart.TwinID == 0 {
		s.metrics.IncrementShareOutcome("rejected")
		return false, dErrors.New(dErrors.CodeValidation, "part has no registered twin")
	}

	partner, err := s.parts.GetPartnerByName(ctx, partnerName)
	if err != nil {
		return false, translateLookup(err, "partner "+partnerName)
	}
	if _, err := s.parts.GetMapping(ctx, catalogPart.ID, partner.ID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncrementShareOutcome("rejected")
			return false, dErrors.New(dErrors.CodeValidation, "partner has no customer part mapping for this part")
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "load customer part mapping")
	}

	agreements, err := s.twins.ListAgreementsByPartner(ctx, partner.ID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "list data exchange agreements")
	}
	if len(agreements) == 0 {
		s.metrics.IncrementShareOutcome("rejected")
		return false, dErrors.New(dErrors.CodeValidation, "partner has no data exchange agreement")
	}

	created, err := s.twins.EnsureTwinExchange(ctx, catalogPart.TwinID, agreements[0].ID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "record twin exchange")
	}
	if !created {
		s.metrics.IncrementShareOutcome("already_shared")
		return false, nil
	}

	t, err := s.twins.GetTwinByID(ctx, catalogPart.TwinID)
	if err != nil {
		return true, nil
	}
	s.metrics.IncrementShareOutcome("shared")
	s.log.Info("twin shared",
		"globalId", t.GlobalID.String(),
		"partner", partner.BPNL.String(),
		"manufacturerPartId", manufacturerPartID)
	s.events.Publish(ctx, events.RegistrationEvent{
		Type:     events.TypeTwinShared,
		GlobalID: t.GlobalID.String(),
		Partner:  partner.BPNL.String(),
	})
	return true, nil
}
