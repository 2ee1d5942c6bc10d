// Package handler exposes the part catalog management endpoints.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"twinhub/internal/part"
	"twinhub/internal/part/service"
	"twinhub/internal/platform/middleware"
	"twinhub/internal/transport/http/shared"
	"twinhub/internal/twin"
	"twinhub/pkg/domain"
	dErrors "twinhub/pkg/domain-errors"
)

// Service defines the part operations the handler needs.
type Service interface {
	CreateCatalogPart(ctx context.Context, in service.CreatePartInput) (service.PartWithMappings, error)
	GetCatalogPart(ctx context.Context, manufacturerID domain.BPN, manufacturerPartID string) (service.PartWithMappings, error)
	ListCatalogParts(ctx context.Context, manufacturerID domain.BPN) ([]service.PartWithMappings, error)
	CreateLegalEntity(ctx context.Context, bpnl domain.BPN) (part.LegalEntity, error)
	CreatePartner(ctx context.Context, name string, bpnl domain.BPN) (part.BusinessPartner, error)
	ListPartners(ctx context.Context) ([]part.BusinessPartner, error)
	CreateMapping(ctx context.Context, manufacturerID domain.BPN, manufacturerPartID, partnerName, customerPartID string) (part.CustomerMapping, error)
	CreateAgreement(ctx context.Context, partnerName, agreementName string) (twin.DataExchangeAgreement, error)
}

// ShortcutService runs the one-call sharing flow.
type ShortcutService interface {
	ShareWithPartner(ctx context.Context, manufacturerID domain.BPN, manufacturerPartID string, partnerBPN domain.BPN, generateDocument bool) (service.ShortcutResult, error)
}

// Handler handles part catalog endpoints.
type Handler struct {
	logger       *slog.Logger
	parts        Service
	shortcut     ShortcutService
	jwtValidator middleware.JWTValidator
}

// New creates a new part Handler.
func New(parts Service, shortcut ShortcutService, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{logger: logger, parts: parts, shortcut: shortcut, jwtValidator: jwtValidator}
}

// Register registers the part routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(g chi.Router) {
		g.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		g.Post("/legal-entities", h.handleCreateLegalEntity)
		g.Post("/parts", h.handleCreatePart)
		g.Get("/parts/{manufacturerId}", h.handleListParts)
		g.Get("/parts/{manufacturerId}/{manufacturerPartId}", h.handleGetPart)
		g.Post("/parts/{manufacturerId}/{manufacturerPartId}/mappings", h.handleCreateMapping)
		g.Post("/parts/{manufacturerId}/{manufacturerPartId}/share-shortcut", h.handleShortcut)
		g.Post("/partners", h.handleCreatePartner)
		g.Get("/partners", h.handleListPartners)
		g.Post("/partners/{partnerName}/agreements", h.handleCreateAgreement)
	})
}

type createPartRequest struct {
	ManufacturerID     string `json:"manufacturerId"`
	ManufacturerPartID string `json:"manufacturerPartId"`
	Name               string `json:"name"`
	Category           string `json:"category,omitempty"`
	SiteBPNS           string `json:"bpns,omitempty"`
	Mappings           []struct {
		PartnerName    string `json:"partnerName"`
		CustomerPartID string `json:"customerPartId"`
	} `json:"customerPartIds,omitempty"`
}

func (h *Handler) handleCreatePart(w http.ResponseWriter, r *http.Request) {
	var req createPartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	bpn, err := domain.ParseBPN(req.ManufacturerID)
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid manufacturerId"))
		return
	}
	in := service.CreatePartInput{
		ManufacturerID:     bpn,
		ManufacturerPartID: req.ManufacturerPartID,
		Name:               req.Name,
		Category:           req.Category,
		SiteBPNS:           req.SiteBPNS,
	}
	for _, m := range req.Mappings {
		in.Mappings = append(in.Mappings, service.MappingInput{
			PartnerName:    m.PartnerName,
			CustomerPartID: m.CustomerPartID,
		})
	}
	created, err := h.parts.CreateCatalogPart(r.Context(), in)
	if err != nil {
		h.logger.WarnContext(r.Context(), "create catalog part failed",
			"manufacturerPartId", req.ManufacturerPartID,
			"error", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toPartResponse(created))
}

func (h *Handler) handleGetPart(w http.ResponseWriter, r *http.Request) {
	bpn, err := domain.ParseBPN(chi.URLParam(r, "manufacturerId"))
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid manufacturerId"))
		return
	}
	result, err := h.parts.GetCatalogPart(r.Context(), bpn, chi.URLParam(r, "manufacturerPartId"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toPartResponse(result))
}

func (h *Handler) handleListParts(w http.ResponseWriter, r *http.Request) {
	bpn, err := domain.ParseBPN(chi.URLParam(r, "manufacturerId"))
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid manufacturerId"))
		return
	}
	results, err := h.parts.ListCatalogParts(r.Context(), bpn)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	out := make([]partResponse, 0, len(results))
	for _, result := range results {
		out = append(out, toPartResponse(result))
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreateLegalEntity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BPNL string `json:"bpnl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	bpn, err := domain.ParseBPN(req.BPNL)
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid bpnl"))
		return
	}
	entity, err := h.parts.CreateLegalEntity(r.Context(), bpn)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, map[string]any{
		"id":   entity.ID,
		"bpnl": entity.BPNL.String(),
	})
}

func (h *Handler) handleCreatePartner(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		BPNL string `json:"bpnl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	bpn, err := domain.ParseBPN(req.BPNL)
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid bpnl"))
		return
	}
	partner, err := h.parts.CreatePartner(r.Context(), req.Name, bpn)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toPartnerResponse(partner))
}

func (h *Handler) handleListPartners(w http.ResponseWriter, r *http.Request) {
	partners, err := h.parts.ListPartners(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	out := make([]partnerResponse, 0, len(partners))
	for _, p := range partners {
		out = append(out, toPartnerResponse(p))
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreateMapping(w http.ResponseWriter, r *http.Request) {
	bpn, err := domain.ParseBPN(chi.URLParam(r, "manufacturerId"))
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid manufacturerId"))
		return
	}
	var req struct {
		PartnerName    string `json:"partnerName"`
		CustomerPartID string `json:"customerPartId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	mapping, err := h.parts.CreateMapping(r.Context(), bpn, chi.URLParam(r, "manufacturerPartId"), req.PartnerName, req.CustomerPartID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toMappingResponse(mapping))
}

func (h *Handler) handleCreateAgreement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	agreement, err := h.parts.CreateAgreement(r.Context(), chi.URLParam(r, "partnerName"), req.Name)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, map[string]any{
		"id":   agreement.ID,
		"name": agreement.Name,
	})
}

func (h *Handler) handleShortcut(w http.ResponseWriter, r *http.Request) {
	bpn, err := domain.ParseBPN(chi.URLParam(r, "manufacturerId"))
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid manufacturerId"))
		return
	}
	var req struct {
		PartnerBPNL      string `json:"partnerBpnl"`
		GenerateDocument bool   `json:"generateDocument"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	partnerBPN, err := domain.ParseBPN(req.PartnerBPNL)
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid partnerBpnl"))
		return
	}
	result, err := h.shortcut.ShareWithPartner(r.Context(), bpn, chi.URLParam(r, "manufacturerPartId"), partnerBPN, req.GenerateDocument)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"globalId":     result.Twin.GlobalID.URN(),
		"stackName":    result.StackName,
		"partnerName":  result.PartnerName,
		"newlyShared":  result.NewlyShared,
		"aspectStatus": result.AspectStatus.String(),
	})
}

type partResponse struct {
	ManufacturerPartID string            `json:"manufacturerPartId"`
	Name               string            `json:"name"`
	Category           string            `json:"category,omitempty"`
	SiteBPNS           string            `json:"bpns,omitempty"`
	TwinLinked         bool              `json:"twinLinked"`
	CustomerPartIDs    []mappingResponse `json:"customerPartIds"`
}

type mappingResponse struct {
	PartnerName    string `json:"partnerName"`
	PartnerBPNL    string `json:"partnerBpnl"`
	CustomerPartID string `json:"customerPartId"`
}

type partnerResponse struct {
	Name string `json:"name"`
	BPNL string `json:"bpnl"`
}

func toPartResponse(in service.PartWithMappings) partResponse {
	out := partResponse{
		ManufacturerPartID: in.Part.ManufacturerPartID,
		Name:               in.Part.Name,
		Category:           in.Part.Category,
		SiteBPNS:           in.Part.SiteBPNS,
		TwinLinked:         in.Part.TwinID != 0,
		CustomerPartIDs:    make([]mappingResponse, 0, len(in.Mappings)),
	}
	for _, m := range in.Mappings {
		out.CustomerPartIDs = append(out.CustomerPartIDs, toMappingResponse(m))
	}
	return out
}

func toMappingResponse(m part.CustomerMapping) mappingResponse {
	return mappingResponse{
		PartnerName:    m.PartnerName,
		PartnerBPNL:    m.PartnerBPN.String(),
		CustomerPartID: m.CustomerPartID,
	}
}

func toPartnerResponse(p part.BusinessPartner) partnerResponse {
	return partnerResponse{Name: p.Name, BPNL: p.BPNL.String()}
}
