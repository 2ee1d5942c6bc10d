// Package handler exposes the twin registration and sharing endpoints.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"twinhub/internal/connector"
	"twinhub/internal/platform/middleware"
	"twinhub/internal/submodelstore"
	"twinhub/internal/transport/http/shared"
	"twinhub/internal/twin"
	"twinhub/pkg/domain"
	dErrors "twinhub/pkg/domain-errors"
)

// Orchestrator defines the registration operations the handler needs.
type Orchestrator interface {
	EnsureTwinRegistered(ctx context.Context, manufacturerID domain.BPN, manufacturerPartID, stackName string) (twin.Twin, error)
	EnsureAspectRegistered(ctx context.Context, globalID domain.GlobalID, semanticID string, payload submodelstore.Payload, stackName string) (twin.TwinAspectRegistration, error)
	RegisterRegistryOffer(ctx context.Context) (connector.Offer, error)
}

// SharingCoordinator records twin shares.
type SharingCoordinator interface {
	ShareTwin(ctx context.Context, manufacturerID domain.BPN, manufacturerPartID, partnerName string) (bool, error)
}

// Handler handles twin registration endpoints.
type Handler struct {
	logger       *slog.Logger
	orchestrator Orchestrator
	sharing      SharingCoordinator
	jwtValidator middleware.JWTValidator
}

// New creates a new twin Handler.
func New(orchestrator Orchestrator, sharing SharingCoordinator, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{logger: logger, orchestrator: orchestrator, sharing: sharing, jwtValidator: jwtValidator}
}

// Register registers the twin routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(g chi.Router) {
		g.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		g.Post("/twins", h.handleRegisterTwin)
		g.Post("/twins/{globalId}/aspects", h.handleRegisterAspect)
		g.Post("/twins/share", h.handleShare)
		g.Post("/registry-offer", h.handleRegistryOffer)
	})
}

func (h *Handler) handleRegisterTwin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ManufacturerID     string `json:"manufacturerId"`
		ManufacturerPartID string `json:"manufacturerPartId"`
		StackName          string `json:"stackName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	bpn, err := domain.ParseBPN(req.ManufacturerID)
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid manufacturerId"))
		return
	}
	t, err := h.orchestrator.EnsureTwinRegistered(r.Context(), bpn, req.ManufacturerPartID, req.StackName)
	if err != nil {
		h.logger.WarnContext(r.Context(), "twin registration failed",
			"manufacturerPartId", req.ManufacturerPartID,
			"stack", req.StackName,
			"error", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"globalId": t.GlobalID.URN(),
		"aasId":    t.ShellID.URN(),
	})
}

func (h *Handler) handleRegisterAspect(w http.ResponseWriter, r *http.Request) {
	globalID, err := domain.ParseGlobalID(chi.URLParam(r, "globalId"))
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid globalId"))
		return
	}
	var req struct {
		SemanticID string          `json:"semanticId"`
		StackName  string          `json:"stackName"`
		Payload    json.RawMessage `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	reg, err := h.orchestrator.EnsureAspectRegistered(r.Context(), globalID, req.SemanticID, submodelstore.Payload(req.Payload), req.StackName)
	if err != nil {
		h.logger.WarnContext(r.Context(), "aspect registration failed",
			"globalId", globalID.String(),
			"semanticId", req.SemanticID,
			"status", reg.Status.String(),
			"error", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"status": reg.Status.String(),
		"mode":   reg.Mode.String(),
	})
}

func (h *Handler) handleShare(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ManufacturerID     string `json:"manufacturerId"`
		ManufacturerPartID string `json:"manufacturerPartId"`
		PartnerName        string `json:"partnerName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	bpn, err := domain.ParseBPN(req.ManufacturerID)
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid manufacturerId"))
		return
	}
	created, err := h.sharing.ShareTwin(r.Context(), bpn, req.ManufacturerPartID, req.PartnerName)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"newlyShared": created})
}

func (h *Handler) handleRegistryOffer(w http.ResponseWriter, r *http.Request) {
	offer, err := h.orchestrator.RegisterRegistryOffer(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"assetId":        offer.AssetID,
		"usagePolicyId":  offer.UsagePolicyID,
		"accessPolicyId": offer.AccessPolicyID,
		"contractId":     offer.ContractID,
	})
}
