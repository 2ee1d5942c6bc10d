package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"twinhub/internal/part"
	partstore "twinhub/internal/part/store"
	"twinhub/internal/twin"
	twinstore "twinhub/internal/twin/store"
	"twinhub/pkg/domain"
	dErrors "twinhub/pkg/domain-errors"
)

type SharingSuite struct {
	suite.Suite
	ctx      context.Context
	twins    *twinstore.MemoryStore
	parts    *partstore.MemoryStore
	recorder *eventRecorder
	sharing  *Sharing

	entity  part.LegalEntity
	partner part.BusinessPartner
}

func TestSharingSuite(t *testing.T) {
	suite.Run(t, new(SharingSuite))
}

func (s *SharingSuite) SetupTest() {
	s.ctx = context.Background()
	s.twins = twinstore.NewMemory()
	s.parts = partstore.NewMemory()
	s.recorder = &eventRecorder{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.sharing = NewSharing(s.twins, s.parts, s.recorder, nil, log)

	entity := &part.LegalEntity{BPNL: "BPNL000000000001"}
	s.Require().NoError(s.parts.CreateLegalEntity(s.ctx, entity))
	s.entity = *entity

	partner := &part.BusinessPartner{Name: "Customer A", BPNL: "BPNL000000000002"}
	s.Require().NoError(s.parts.CreatePartner(s.ctx, partner))
	s.partner = *partner
}

// createSharedSetup builds a part with a registered twin, a customer mapping
// and a data exchange agreement, i.e. everything a share needs.
func (s *SharingSuite) createSharedSetup() (part.CatalogPart, twin.Twin) {
	p := &part.CatalogPart{LegalEntityID: s.entity.ID, ManufacturerPartID: "MPN-001"}
	s.Require().NoError(s.parts.CreateCatalogPart(s.ctx, p))

	t := &twin.Twin{GlobalID: domain.NewGlobalID(), ShellID: domain.NewShellID()}
	s.Require().NoError(s.twins.CreateTwin(s.ctx, t))
	s.Require().NoError(s.parts.LinkTwin(s.ctx, p.ID, t.ID))
	p.TwinID = t.ID

	s.Require().NoError(s.parts.CreateMapping(s.ctx, &part.CustomerMapping{
		CatalogPartID:     p.ID,
		BusinessPartnerID: s.partner.ID,
		CustomerPartID:    "CUST-7",
	}))
	s.Require().NoError(s.twins.CreateAgreement(s.ctx, &twin.DataExchangeAgreement{
		Name:              "Default",
		BusinessPartnerID: s.partner.ID,
		PartnerBPN:        s.partner.BPNL,
	}))
	return *p, *t
}

func (s *SharingSuite) TestShareTwin() {
	_, t := s.createSharedSetup()

	s.Run("first share creates the exchange", func() {
		created, err := s.sharing.ShareTwin(s.ctx, s.entity.BPNL, "MPN-001", "Customer A")
		s.Require().NoError(err)
		s.True(created)

		shared, err := s.twins.TwinSharedWith(s.ctx, t.GlobalID, s.partner.BPNL)
		s.Require().NoError(err)
		s.True(shared)
		s.Equal([]string{"twin.shared"}, s.recorder.types())
	})

	s.Run("second share reports already shared", func() {
		created, err := s.sharing.ShareTwin(s.ctx, s.entity.BPNL, "MPN-001", "Customer A")
		s.Require().NoError(err)
		s.False(created)
		s.Len(s.recorder.types(), 1)
	})
}

func (s *SharingSuite) TestShareTwin_PartWithoutTwin() {
	p := &part.CatalogPart{LegalEntityID: s.entity.ID, ManufacturerPartID: "MPN-002"}
	s.Require().NoError(s.parts.CreateCatalogPart(s.ctx, p))

	_, err := s.sharing.ShareTwin(s.ctx, s.entity.BPNL, "MPN-002", "Customer A")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *SharingSuite) TestShareTwin_NoMapping() {
	p, t := s.createSharedSetup()

	other := &part.BusinessPartner{Name: "Customer B", BPNL: "BPNL000000000003"}
	s.Require().NoError(s.parts.CreatePartner(s.ctx, other))
	s.Require().NoError(s.twins.CreateAgreement(s.ctx, &twin.DataExchangeAgreement{
		Name:              "Default",
		BusinessPartnerID: other.ID,
		PartnerBPN:        other.BPNL,
	}))

	_, err := s.sharing.ShareTwin(s.ctx, s.entity.BPNL, p.ManufacturerPartID, "Customer B")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	// The rejected share must leave no exchange behind.
	shared, err := s.twins.TwinSharedWith(s.ctx, t.GlobalID, other.BPNL)
	s.Require().NoError(err)
	s.False(shared)
}

func (s *SharingSuite) TestShareTwin_NoAgreement() {
	p := &part.CatalogPart{LegalEntityID: s.entity.ID, ManufacturerPartID: "MPN-003"}
	s.Require().NoError(s.parts.CreateCatalogPart(s.ctx, p))
	t := &twin.Twin{GlobalID: domain.NewGlobalID(), ShellID: domain.NewShellID()}
	s.Require().NoError(s.twins.CreateTwin(s.ctx, t))
	s.Require().NoError(s.parts.LinkTwin(s.ctx, p.ID, t.ID))
	s.Require().NoError(s.parts.CreateMapping(s.ctx, &part.CustomerMapping{
		CatalogPartID:     p.ID,
		BusinessPartnerID: s.partner.ID,
		CustomerPartID:    "CUST-9",
	}))

	_, err := s.sharing.ShareTwin(s.ctx, s.entity.BPNL, "MPN-003", "Customer A")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *SharingSuite) TestShareTwin_UnknownPartner() {
	s.createSharedSetup()

	_, err := s.sharing.ShareTwin(s.ctx, s.entity.BPNL, "MPN-001", "Nobody")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
