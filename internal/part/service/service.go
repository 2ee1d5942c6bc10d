// Package service exposes catalog part and partner management. Parts are the
// anchor records twins are registered for; partners and their part mappings
// control descriptor visibility and sharing.
package service

import (
	"context"
	"errors"
	"log/slog"

	"twinhub/internal/part"
	"twinhub/internal/twin"
	"twinhub/pkg/domain"
	dErrors "twinhub/pkg/domain-errors"
	"twinhub/pkg/platform/sentinel"
	"twinhub/pkg/platform/tx"
)

// MappingInput is one customer part mapping created together with a part.
type MappingInput struct {
	PartnerName    string
	CustomerPartID string
}

// CreatePartInput carries everything needed to create a catalog part.
type CreatePartInput struct {
	ManufacturerID     domain.BPN
	ManufacturerPartID string
	Name               string
	Category           string
	SiteBPNS           string
	Mappings           []MappingInput
}

// PartWithMappings is a catalog part together with its customer mappings.
type PartWithMappings struct {
	Part     part.CatalogPart
	Mappings []part.CustomerMapping
}

// Service manages the part catalog. Agreements live with the twin store
// because the share check joins through them.
type Service struct {
	parts  part.Store
	twins  twin.Store
	runner tx.Runner
	log    *slog.Logger
}

// NewService wires the part service.
func NewService(parts part.Store, twins twin.Store, runner tx.Runner, log *slog.Logger) *Service {
	return &Service{parts: parts, twins: twins, runner: runner, log: log}
}

// CreateCatalogPart creates a part and its optional customer mappings in one
// transaction. The manufacturer's legal entity must already exist.
func (s *Service) CreateCatalogPart(ctx context.Context, in CreatePartInput) (PartWithMappings, error) {
	if in.ManufacturerPartID == "" {
		return PartWithMappings{}, dErrors.New(dErrors.CodeValidation, "manufacturerPartId is required")
	}
	if in.Name == "" {
		return PartWithMappings{}, dErrors.New(dErrors.CodeValidation, "name is required")
	}
	for _, m := range in.Mappings {
		if m.PartnerName == "" || m.CustomerPartID == "" {
			return PartWithMappings{}, dErrors.New(dErrors.CodeValidation, "each mapping needs a partner name and a customerPartId")
		}
	}

	entity, err := s.parts.GetLegalEntityByBPNL(ctx, in.ManufacturerID)
	if err != nil {
		return PartWithMappings{}, translateLookup(err, "legal entity "+in.ManufacturerID.String())
	}

	created := part.CatalogPart{
		LegalEntityID:      entity.ID,
		ManufacturerPartID: in.ManufacturerPartID,
		Name:               in.Name,
		Category:           in.Category,
		SiteBPNS:           in.SiteBPNS,
	}
	var mappings []part.CustomerMapping
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.parts.CreateCatalogPart(ctx, &created); err != nil {
			return err
		}
		for _, m := range in.Mappings {
			partner, err := s.parts.GetPartnerByName(ctx, m.PartnerName)
			if err != nil {
				return err
			}
			mapping := part.CustomerMapping{
				CatalogPartID:     created.ID,
				BusinessPartnerID: partner.ID,
				CustomerPartID:    m.CustomerPartID,
			}
			if err := s.parts.CreateMapping(ctx, &mapping); err != nil {
				return err
			}
			mappings = append(mappings, mapping)
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			return PartWithMappings{}, dErrors.Wrap(err, dErrors.CodeConflict, "catalog part already exists")
		case errors.Is(err, sentinel.ErrNotFound):
			return PartWithMappings{}, dErrors.Wrap(err, dErrors.CodeValidation, "mapping references an unknown partner")
		default:
			return PartWithMappings{}, dErrors.Wrap(err, dErrors.CodeInternal, "create catalog part")
		}
	}

	s.log.Info("catalog part created",
		"manufacturerPartId", created.ManufacturerPartID,
		"legalEntity", in.ManufacturerID.String(),
		"mappings", len(mappings))
	return PartWithMappings{Part: created, Mappings: mappings}, nil
}

// GetCatalogPart returns a part and its customer mappings.
func (s *Service) GetCatalogPart(ctx context.Context, manufacturerID domain.BPN, manufacturerPartID string) (PartWithMappings, error) {
	entity, err := s.parts.GetLegalEntityByBPNL(ctx, manufacturerID)
	if err != nil {
		return PartWithMappings{}, translateLookup(err, "legal entity "+manufacturerID.String())
	}
	p, err := s.parts.GetCatalogPart(ctx, entity.ID, manufacturerPartID)
	if err != nil {
		return PartWithMappings{}, translateLookup(err, "catalog part "+manufacturerPartID)
	}
	mappings, err := s.parts.ListMappingsByPart(ctx, p.ID)
	if err != nil {
		return PartWithMappings{}, dErrors.Wrap(err, dErrors.CodeInternal, "list mappings")
	}
	return PartWithMappings{Part: p, Mappings: mappings}, nil
}

// ListCatalogParts returns all of a manufacturer's parts with mappings.
func (s *Service) ListCatalogParts(ctx context.Context, manufacturerID domain.BPN) ([]PartWithMappings, error) {
	entity, err := s.parts.GetLegalEntityByBPNL(ctx, manufacturerID)
	if err != nil {
		return nil, translateLookup(err, "legal entity "+manufacturerID.String())
	}
	parts, err := s.parts.ListCatalogParts(ctx, entity.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list catalog parts")
	}
	out := make([]PartWithMappings, 0, len(parts))
	for _, p := range parts {
		mappings, err := s.parts.ListMappingsByPart(ctx, p.ID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list mappings")
		}
		out = append(out, PartWithMappings{Part: p, Mappings: mappings})
	}
	return out, nil
}

// CreateLegalEntity registers an owning organization.
func (s *Service) CreateLegalEntity(ctx context.Context, bpnl domain.BPN) (part.LegalEntity, error) {
	entity := part.LegalEntity{BPNL: bpnl}
	if err := s.parts.CreateLegalEntity(ctx, &entity); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return part.LegalEntity{}, dErrors.Wrap(err, dErrors.CodeConflict, "legal entity already exists")
		}
		return part.LegalEntity{}, dErrors.Wrap(err, dErrors.CodeInternal, "create legal entity")
	}
	return entity, nil
}

// CreatePartner registers a business partner.
func (s *Service) CreatePartner(ctx context.Context, name string, bpnl domain.BPN) (part.BusinessPartner, error) {
	if name == "" {
		return part.BusinessPartner{}, dErrors.New(dErrors.CodeValidation, "partner name is required")
	}
	partner := part.BusinessPartner{Name: name, BPNL: bpnl}
	if err := s.parts.CreatePartner(ctx, &partner); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return part.BusinessPartner{}, dErrors.Wrap(err, dErrors.CodeConflict, "partner already exists")
		}
		return part.BusinessPartner{}, dErrors.Wrap(err, dErrors.CodeInternal, "create partner")
	}
	return partner, nil
}

// GetPartner returns a partner by name.
func (s *Service) GetPartner(ctx context.Context, name string) (part.BusinessPartner, error) {
	partner, err := s.parts.GetPartnerByName(ctx, name)
	if err != nil {
		return part.BusinessPartner{}, translateLookup(err, "partner "+name)
	}
	return partner, nil
}

// ListPartners returns all known partners.
func (s *Service) ListPartners(ctx context.Context) ([]part.BusinessPartner, error) {
	partners, err := s.parts.ListPartners(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list partners")
	}
	return partners, nil
}

// CreateMapping attaches a customer part number to an existing part.
func (s *Service) CreateMapping(ctx context.Context, manufacturerID domain.BPN, manufacturerPartID, partnerName, customerPartID string) (part.CustomerMapping, error) {
	if customerPartID == "" {
		return part.CustomerMapping{}, dErrors.New(dErrors.CodeValidation, "customerPartId is required")
	}
	entity, err := s.parts.GetLegalEntityByBPNL(ctx, manufacturerID)
	if err != nil {
		return part.CustomerMapping{}, translateLookup(err, "legal entity "+manufacturerID.String())
	}
	p, err := s.parts.GetCatalogPart(ctx, entity.ID, manufacturerPartID)
	if err != nil {
		return part.CustomerMapping{}, translateLookup(err, "catalog part "+manufacturerPartID)
	}
	partner, err := s.parts.GetPartnerByName(ctx, partnerName)
	if err != nil {
		return part.CustomerMapping{}, translateLookup(err, "partner "+partnerName)
	}
	mapping := part.CustomerMapping{
		CatalogPartID:     p.ID,
		BusinessPartnerID: partner.ID,
		CustomerPartID:    customerPartID,
	}
	if err := s.parts.CreateMapping(ctx, &mapping); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return part.CustomerMapping{}, dErrors.Wrap(err, dErrors.CodeConflict, "mapping already exists")
		}
		return part.CustomerMapping{}, dErrors.Wrap(err, dErrors.CodeInternal, "create mapping")
	}
	return mapping, nil
}

// CreateAgreement records a data exchange agreement for a partner.
func (s *Service) CreateAgreement(ctx context.Context, partnerName, agreementName string) (twin.DataExchangeAgreement, error) {
	if agreementName == "" {
		return twin.DataExchangeAgreement{}, dErrors.New(dErrors.CodeValidation, "agreement name is required")
	}
	partner, err := s.parts.GetPartnerByName(ctx, partnerName)
	if err != nil {
		return twin.DataExchangeAgreement{}, translateLookup(err, "partner "+partnerName)
	}
	agreement := twin.DataExchangeAgreement{
		Name:              agreementName,
		BusinessPartnerID: partner.ID,
		PartnerBPN:        partner.BPNL,
	}
	if err := s.twins.CreateAgreement(ctx, &agreement); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return twin.DataExchangeAgreement{}, dErrors.Wrap(err, dErrors.CodeConflict, "agreement already exists")
		}
		return twin.DataExchangeAgreement{}, dErrors.Wrap(err, dErrors.CodeInternal, "create agreement")
	}
	return agreement, nil
}

// ListAgreements returns a partner's data exchange agreements.
func (s *Service) ListAgreements(ctx context.Context, partnerName string) ([]twin.DataExchangeAgreement, error) {
	partner, err := s.parts.GetPartnerByName(ctx, partnerName)
	if err != nil {
		return nil, translateLookup(err, "partner "+partnerName)
	}
	agreements, err := s.twins.ListAgreementsByPartner(ctx, partner.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list agreements")
	}
	return agreements, nil
}

func translateLookup(err error, what string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, what+" not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "load "+what)
}
