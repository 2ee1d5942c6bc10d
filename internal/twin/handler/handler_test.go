package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"twinhub/internal/connector"
	"twinhub/internal/platform/middleware"
	"twinhub/internal/submodelstore"
	"twinhub/internal/twin"
	"twinhub/pkg/domain"
	dErrors "twinhub/pkg/domain-errors"
	"twinhub/pkg/testutil"
)

type stubValidator struct{}

func (stubValidator) ValidateToken(token string) (*middleware.JWTClaims, error) {
	if token != "good-token" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return &middleware.JWTClaims{Subject: "tester"}, nil
}

type stubOrchestrator struct {
	twin      twin.Twin
	reg       twin.TwinAspectRegistration
	offer     connector.Offer
	err       error
	lastStack string
}

func (s *stubOrchestrator) EnsureTwinRegistered(_ context.Context, _ domain.BPN, _, stackName string) (twin.Twin, error) {
	s.lastStack = stackName
	return s.twin, s.err
}

func (s *stubOrchestrator) EnsureAspectRegistered(_ context.Context, _ domain.GlobalID, _ string, _ submodelstore.Payload, stackName string) (twin.TwinAspectRegistration, error) {
	s.lastStack = stackName
	return s.reg, s.err
}

func (s *stubOrchestrator) RegisterRegistryOffer(context.Context) (connector.Offer, error) {
	return s.offer, s.err
}

type stubSharing struct {
	created bool
	err     error
}

func (s *stubSharing) ShareTwin(context.Context, domain.BPN, string, string) (bool, error) {
	return s.created, s.err
}

type HandlerSuite struct {
	suite.Suite
	orchestrator *stubOrchestrator
	sharing      *stubSharing
	router       chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.orchestrator = &stubOrchestrator{
		twin: twin.Twin{ID: 1, GlobalID: domain.NewGlobalID(), ShellID: domain.NewShellID()},
		reg:  twin.TwinAspectRegistration{Status: twin.StatusDTRRegistered, Mode: twin.ModeSingle},
	}
	s.sharing = &stubSharing{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(s.orchestrator, s.sharing, log, stubValidator{})
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *HandlerSuite) authed(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer good-token")
	return req
}

func (s *HandlerSuite) TestRegisterTwin() {
	s.Run("returns urn identifiers", func() {
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/twins", map[string]string{
			"manufacturerId":     "BPNL000000000001",
			"manufacturerPartId": "MPN-001",
			"stackName":          "default",
		}))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "globalId", s.orchestrator.twin.GlobalID.URN())
		testutil.AssertJSONContains(s.T(), rr, "aasId", s.orchestrator.twin.ShellID.URN())
		s.Equal("default", s.orchestrator.lastStack)
	})

	s.Run("rejects missing bearer token", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/twins", map[string]string{})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	})

	s.Run("rejects malformed body", func() {
		req := s.authed(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/twins", "{not json"))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("rejects invalid manufacturer BPN", func() {
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/twins", map[string]string{
			"manufacturerId": "not-a-bpn",
		}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, "validation")
	})

	s.Run("maps not-found from the orchestrator", func() {
		s.orchestrator.err = dErrors.New(dErrors.CodeNotFound, "catalog part MPN-404 not found")
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/twins", map[string]string{
			"manufacturerId":     "BPNL000000000001",
			"manufacturerPartId": "MPN-404",
			"stackName":          "default",
		}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})
}

func (s *HandlerSuite) TestRegisterAspect() {
	globalID := domain.NewGlobalID()

	s.Run("returns status and mode", func() {
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/twins/"+globalID.URN()+"/aspects", map[string]any{
			"semanticId": "ns:1.0.0#Aspect",
			"stackName":  "default",
			"payload":    map[string]string{"k": "v"},
		}))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "status", "DTR_REGISTERED")
		testutil.AssertJSONContains(s.T(), rr, "mode", "SINGLE")
	})

	s.Run("accepts plain uuid path parameter", func() {
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/twins/"+globalID.String()+"/aspects", map[string]any{
			"semanticId": "ns:1.0.0#Aspect",
			"stackName":  "default",
		}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("rejects malformed global ID", func() {
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/twins/garbage/aspects", map[string]any{}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, "validation")
	})

	s.Run("maps external failures to bad gateway", func() {
		s.orchestrator.err = dErrors.Wrap(errors.New("edc down"), dErrors.CodeExternal, "provision connector offer")
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/twins/"+globalID.URN()+"/aspects", map[string]any{
			"semanticId": "ns:1.0.0#Aspect",
		}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadGateway, "external")
	})
}

func (s *HandlerSuite) TestShare() {
	s.Run("reports newly shared", func() {
		s.sharing.created = true
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/twins/share", map[string]string{
			"manufacturerId":     "BPNL000000000001",
			"manufacturerPartId": "MPN-001",
			"partnerName":        "Customer A",
		}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "newlyShared", true)
	})

	s.Run("maps validation failures", func() {
		s.sharing.err = dErrors.New(dErrors.CodeValidation, "partner has no customer part mapping for this part")
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/twins/share", map[string]string{
			"manufacturerId": "BPNL000000000001",
		}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, "validation")
	})
}

func (s *HandlerSuite) TestRegistryOffer() {
	s.orchestrator.offer = connector.Offer{
		AssetID:        "twinhub:asset:dtr:abc",
		UsagePolicyID:  "twinhub:policy:u",
		AccessPolicyID: "twinhub:policy:a",
		ContractID:     "twinhub:contract:c",
	}
	req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/registry-offer", nil))
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "assetId", "twinhub:asset:dtr:abc")
	testutil.AssertJSONContains(s.T(), rr, "contractId", "twinhub:contract:c")
}
