package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"twinhub/internal/part/service"
	partstore "twinhub/internal/part/store"
	"twinhub/internal/platform/middleware"
	"twinhub/internal/twin"
	twinstore "twinhub/internal/twin/store"
	"twinhub/pkg/domain"
	dErrors "twinhub/pkg/domain-errors"
	"twinhub/pkg/platform/tx"
	"twinhub/pkg/testutil"
)

type stubValidator struct{}

func (stubValidator) ValidateToken(token string) (*middleware.JWTClaims, error) {
	if token != "good-token" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return &middleware.JWTClaims{Subject: "tester"}, nil
}

type stubShortcut struct {
	result service.ShortcutResult
	err    error
}

func (s *stubShortcut) ShareWithPartner(context.Context, domain.BPN, string, domain.BPN, bool) (service.ShortcutResult, error) {
	return s.result, s.err
}

type PartHandlerSuite struct {
	suite.Suite
	shortcut *stubShortcut
	router   chi.Router
}

func TestPartHandlerSuite(t *testing.T) {
	suite.Run(t, new(PartHandlerSuite))
}

func (s *PartHandlerSuite) SetupTest() {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	parts := partstore.NewMemory()
	twins := twinstore.NewMemory()
	svc := service.NewService(parts, twins, tx.NopRunner{}, log)
	s.shortcut = &stubShortcut{}
	h := New(svc, s.shortcut, log, stubValidator{})
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *PartHandlerSuite) authed(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer good-token")
	return req
}

func (s *PartHandlerSuite) createLegalEntity(bpnl string) {
	req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/legal-entities", map[string]string{"bpnl": bpnl}))
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
}

func (s *PartHandlerSuite) createPart(manufacturerID, manufacturerPartID string) {
	req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/parts", map[string]any{
		"manufacturerId":     manufacturerID,
		"manufacturerPartId": manufacturerPartID,
		"name":               "Gearbox Housing",
	}))
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
}

func (s *PartHandlerSuite) TestCreatePart() {
	s.createLegalEntity("BPNL000000000001")

	s.Run("creates and returns the part", func() {
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/parts", map[string]any{
			"manufacturerId":     "BPNL000000000001",
			"manufacturerPartId": "MPN-001",
			"name":               "Gearbox Housing",
			"category":           "drivetrain",
		}))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		testutil.AssertJSONContains(s.T(), rr, "manufacturerPartId", "MPN-001")
		testutil.AssertJSONContains(s.T(), rr, "category", "drivetrain")
		testutil.AssertJSONContains(s.T(), rr, "twinLinked", false)
	})

	s.Run("rejects a duplicate part", func() {
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/parts", map[string]any{
			"manufacturerId":     "BPNL000000000001",
			"manufacturerPartId": "MPN-001",
			"name":               "Gearbox Housing",
		}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
	})

	s.Run("rejects unknown manufacturer", func() {
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/parts", map[string]any{
			"manufacturerId":     "BPNL000000000099",
			"manufacturerPartId": "MPN-002",
			"name":               "Shaft",
		}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})

	s.Run("rejects invalid manufacturer BPN", func() {
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/parts", map[string]any{
			"manufacturerId": "nope",
		}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, "validation")
	})

	s.Run("rejects unauthenticated requests", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/parts", map[string]any{})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	})
}

func (s *PartHandlerSuite) TestGetAndListParts() {
	s.createLegalEntity("BPNL000000000001")
	s.createPart("BPNL000000000001", "MPN-001")

	s.Run("returns a single part", func() {
		req := s.authed(testutil.NewRequest(s.T(), http.MethodGet, "/parts/BPNL000000000001/MPN-001"))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "name", "Gearbox Housing")
	})

	s.Run("404 for a missing part", func() {
		req := s.authed(testutil.NewRequest(s.T(), http.MethodGet, "/parts/BPNL000000000001/MPN-404"))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})

	s.Run("lists parts for a manufacturer", func() {
		s.createPart("BPNL000000000001", "MPN-002")
		req := s.authed(testutil.NewRequest(s.T(), http.MethodGet, "/parts/BPNL000000000001"))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusOK(s.T(), rr)
		parts := testutil.UnmarshalResponse[[]map[string]any](s.T(), rr)
		s.Len(*parts, 2)
	})
}

func (s *PartHandlerSuite) TestPartnersAndMappings() {
	s.createLegalEntity("BPNL000000000001")
	s.createPart("BPNL000000000001", "MPN-001")

	s.Run("creates a partner", func() {
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/partners", map[string]string{
			"name": "CustomerA",
			"bpnl": "BPNL000000000002",
		}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		testutil.AssertJSONContains(s.T(), rr, "bpnl", "BPNL000000000002")
	})

	s.Run("lists partners", func() {
		req := s.authed(testutil.NewRequest(s.T(), http.MethodGet, "/partners"))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(s.T(), rr)
		partners := testutil.UnmarshalResponse[[]map[string]any](s.T(), rr)
		s.Len(*partners, 1)
	})

	s.Run("creates a mapping and exposes it on the part", func() {
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/parts/BPNL000000000001/MPN-001/mappings", map[string]string{
			"partnerName":    "CustomerA",
			"customerPartId": "CUST-7",
		}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		testutil.AssertJSONContains(s.T(), rr, "customerPartId", "CUST-7")
		testutil.AssertJSONContains(s.T(), rr, "partnerBpnl", "BPNL000000000002")

		getReq := s.authed(testutil.NewRequest(s.T(), http.MethodGet, "/parts/BPNL000000000001/MPN-001"))
		getRR := testutil.DoRequest(s.router, getReq)
		got := testutil.UnmarshalResponse[map[string]any](s.T(), getRR)
		s.Len((*got)["customerPartIds"], 1)
	})

	s.Run("creates an agreement for a partner", func() {
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/partners/CustomerA/agreements", map[string]string{
			"name": "Frame Agreement",
		}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		testutil.AssertJSONContains(s.T(), rr, "name", "Frame Agreement")
	})

	s.Run("rejects mapping for an unknown partner", func() {
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/parts/BPNL000000000001/MPN-001/mappings", map[string]string{
			"partnerName":    "Nobody",
			"customerPartId": "CUST-9",
		}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})
}

func (s *PartHandlerSuite) TestShortcut() {
	s.shortcut.result = service.ShortcutResult{
		Twin:         twin.Twin{GlobalID: domain.NewGlobalID()},
		StackName:    "Default BPNL000000000001",
		PartnerName:  "Partner_BPNL000000000002",
		NewlyShared:  true,
		AspectStatus: twin.StatusDTRRegistered,
	}

	s.Run("runs the one-call flow", func() {
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/parts/BPNL000000000001/MPN-001/share-shortcut", map[string]any{
			"partnerBpnl": "BPNL000000000002",
		}))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "globalId", s.shortcut.result.Twin.GlobalID.URN())
		testutil.AssertJSONContains(s.T(), rr, "newlyShared", true)
		testutil.AssertJSONContains(s.T(), rr, "aspectStatus", "DTR_REGISTERED")
	})

	s.Run("rejects an invalid partner BPN", func() {
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/parts/BPNL000000000001/MPN-001/share-shortcut", map[string]any{
			"partnerBpnl": "bad",
		}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, "validation")
	})
}
