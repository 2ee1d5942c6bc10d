package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"twinhub/internal/docgen"
	"twinhub/internal/part"
	"twinhub/internal/submodelstore"
	"twinhub/internal/twin"
	"twinhub/pkg/domain"
	dErrors "twinhub/pkg/domain-errors"
	"twinhub/pkg/platform/sentinel"
)

// TwinRegistrar is the orchestrator surface the shortcut needs.
type TwinRegistrar interface {
	EnsureTwinRegistered(ctx context.Context, manufacturerID domain.BPN, manufacturerPartID, stackName string) (twin.Twin, error)
	EnsureAspectRegistered(ctx context.Context, globalID domain.GlobalID, semanticID string, payload submodelstore.Payload, stackName string) (twin.TwinAspectRegistration, error)
}

// Shortcut shares a part with a partner in one call, creating every missing
// prerequisite with generated defaults along the way.
type Shortcut struct {
	parts     part.Store
	twins     twin.Store
	registrar TwinRegistrar
	log       *slog.Logger
}

// NewShortcut wires the sharing shortcut.
func NewShortcut(parts part.Store, twins twin.Store, registrar TwinRegistrar, log *slog.Logger) *Shortcut {
	return &Shortcut{parts: parts, twins: twins, registrar: registrar, log: log}
}

// ShortcutResult reports what the shortcut did.
type ShortcutResult struct {
	Twin         twin.Twin
	StackName    string
	PartnerName  string
	NewlyShared  bool
	AspectStatus twin.RegistrationStatus
}

// ShareWithPartner resolves the part, creates the default stack, partner
// record, agreement, and customer mapping when missing, registers the twin,
// records the exchange, and (when generateDocument is set) registers a
// generated part type information aspect.
func (s *Shortcut) ShareWithPartner(ctx context.Context, manufacturerID domain.BPN, manufacturerPartID string, partnerBPN domain.BPN, generateDocument bool) (ShortcutResult, error) {
	entity, err := s.parts.GetLegalEntityByBPNL(ctx, manufacturerID)
	if err != nil {
		return ShortcutResult{}, translateLookup(err, "legal entity "+manufacturerID.String())
	}
	catalogPart, err := s.parts.GetCatalogPart(ctx, entity.ID, manufacturerPartID)
	if err != nil {
		return ShortcutResult{}, translateLookup(err, "catalog part "+manufacturerPartID)
	}

	stack, err := s.ensureDefaultStack(ctx, entity)
	if err != nil {
		return ShortcutResult{}, err
	}
	partner, err := s.ensurePartner(ctx, partnerBPN)
	if err != nil {
		return ShortcutResult{}, err
	}
	agreement, err := s.ensureAgreement(ctx, partner)
	if err != nil {
		return ShortcutResult{}, err
	}
	if err := s.ensureMapping(ctx, catalogPart, partner, manufacturerPartID); err != nil {
		return ShortcutResult{}, err
	}

	t, err := s.registrar.EnsureTwinRegistered(ctx, manufacturerID, manufacturerPartID, stack.Name)
	if err != nil {
		return ShortcutResult{}, err
	}

	created, err := s.twins.EnsureTwinExchange(ctx, t.ID, agreement.ID)
	if err != nil {
		return ShortcutResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "record twin exchange")
	}

	result := ShortcutResult{
		Twin:        t,
		StackName:   stack.Name,
		PartnerName: partner.Name,
		NewlyShared: created,
	}

	if generateDocument {
		payload, err := docgen.PartTypeInformationV1(t.GlobalID, manufacturerPartID, catalogPart.Name, catalogPart.SiteBPNS)
		if err != nil {
			return result, dErrors.Wrap(err, dErrors.CodeInternal, "generate part type information")
		}
		reg, err := s.registrar.EnsureAspectRegistered(ctx, t.GlobalID, docgen.SemIDPartTypeInformationV1, payload, stack.Name)
		if err != nil {
			return result, err
		}
		result.AspectStatus = reg.Status
	}

	s.log.Info("sharing shortcut completed",
		"manufacturerPartId", manufacturerPartID,
		"partner", partnerBPN.String(),
		"newlyShared", created)
	return result, nil
}

// ensureDefaultStack returns the legal entity's default stack, creating it on
// first use. The name embeds the BPNL because stack names are unique.
func (s *Shortcut) ensureDefaultStack(ctx context.Context, entity part.LegalEntity) (twin.EnablementServiceStack, error) {
	name := fmt.Sprintf("Default %s", entity.BPNL)
	stack, err := s.twins.GetStackByName(ctx, name)
	if err == nil {
		return stack, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return twin.EnablementServiceStack{}, dErrors.Wrap(err, dErrors.CodeInternal, "load default stack")
	}
	stack = twin.EnablementServiceStack{Name: name, LegalEntityID: entity.ID}
	if err := s.twins.CreateStack(ctx, &stack); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return s.ensureDefaultStack(ctx, entity)
		}
		return twin.EnablementServiceStack{}, dErrors.Wrap(err, dErrors.CodeInternal, "create default stack")
	}
	return stack, nil
}

func (s *Shortcut) ensurePartner(ctx context.Context, bpnl domain.BPN) (part.BusinessPartner, error) {
	partner, err := s.parts.GetPartnerByBPNL(ctx, bpnl)
	if err == nil {
		return partner, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return part.BusinessPartner{}, dErrors.Wrap(err, dErrors.CodeInternal, "load partner")
	}
	partner = part.BusinessPartner{Name: "Partner_" + bpnl.String(), BPNL: bpnl}
	if err := s.parts.CreatePartner(ctx, &partner); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return s.ensurePartner(ctx, bpnl)
		}
		return part.BusinessPartner{}, dErrors.Wrap(err, dErrors.CodeInternal, "create partner")
	}
	return partner, nil
}

func (s *Shortcut) ensureAgreement(ctx context.Context, partner part.BusinessPartner) (twin.DataExchangeAgreement, error) {
	agreements, err := s.twins.ListAgreementsByPartner(ctx, partner.ID)
	if err != nil {
		return twin.DataExchangeAgreement{}, dErrors.Wrap(err, dErrors.CodeInternal, "list agreements")
	}
	if len(agreements) > 0 {
		return agreements[0], nil
	}
	agreement := twin.DataExchangeAgreement{
		Name:              "Default",
		BusinessPartnerID: partner.ID,
		PartnerBPN:        partner.BPNL,
	}
	if err := s.twins.CreateAgreement(ctx, &agreement); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return s.ensureAgreement(ctx, partner)
		}
		return twin.DataExchangeAgreement{}, dErrors.Wrap(err, dErrors.CodeInternal, "create agreement")
	}
	return agreement, nil
}

func (s *Shortcut) ensureMapping(ctx context.Context, catalogPart part.CatalogPart, partner part.BusinessPartner, manufacturerPartID string) error {
	_, err := s.parts.GetMapping(ctx, catalogPart.ID, partner.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "load mapping")
	}
	mapping := part.CustomerMapping{
		CatalogPartID:     catalogPart.ID,
		BusinessPartnerID: partner.ID,
		CustomerPartID:    partner.BPNL.String() + "_" + manufacturerPartID,
	}
	if err := s.parts.CreateMapping(ctx, &mapping); err != nil && !errors.Is(err, sentinel.ErrConflict) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "create mapping")
	}
	return nil
}
