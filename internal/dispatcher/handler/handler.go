// Package handler exposes the submodel dispatcher surface the connector data
// plane proxies to. Authentication is a shared API key, not JWT: the caller
// is the data plane, and the consumer identity arrives in the Edc-Bpn header
// it injects after contract negotiation.
package handler

import (
	"context"
	"crypto/subtle"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"twinhub/internal/submodelstore"
	"twinhub/internal/transport/http/shared"
	"twinhub/pkg/domain"
	dErrors "twinhub/pkg/domain-errors"
)

// Service defines the dispatcher operations the handler needs.
type Service interface {
	GetSubmodelContent(ctx context.Context, consumer domain.BPN, semanticID string, globalID domain.GlobalID) (submodelstore.Payload, error)
	UploadSubmodelContent(ctx context.Context, semanticID string, globalID domain.GlobalID, payload submodelstore.Payload) error
	DeleteSubmodelContent(ctx context.Context, semanticID string, globalID domain.GlobalID) error
}

// Handler handles dispatcher endpoints.
type Handler struct {
	logger     *slog.Logger
	dispatcher Service
	apiKey     string
}

// New creates a new dispatcher Handler.
func New(dispatcher Service, apiKey string, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, dispatcher: dispatcher, apiKey: apiKey}
}

// Register registers the dispatcher routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(h.requireAPIKey)
	router.Get("/{semanticId}/{globalId}/submodel", h.handleGet)
	router.Put("/{semanticId}/{globalId}/submodel", h.handleUpload)
	router.Delete("/{semanticId}/{globalId}/submodel", h.handleDelete)

	r.Mount("/submodel-dispatcher", router)
}

func (h *Handler) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.apiKey == "" || subtle.ConstantTimeCompare([]byte(r.Header.Get("X-Api-Key")), []byte(h.apiKey)) != 1 {
			shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid API key"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	semanticID, globalID, ok := h.pathParams(w, r)
	if !ok {
		return
	}
	consumer, err := domain.ParseBPN(r.Header.Get("Edc-Bpn"))
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "missing or invalid Edc-Bpn header"))
		return
	}
	payload, err := h.dispatcher.GetSubmodelContent(r.Context(), consumer, semanticID, globalID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	semanticID, globalID, ok := h.pathParams(w, r)
	if !ok {
		return
	}
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unreadable request body"))
		return
	}
	if err := h.dispatcher.UploadSubmodelContent(r.Context(), semanticID, globalID, payload); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	semanticID, globalID, ok := h.pathParams(w, r)
	if !ok {
		return
	}
	if err := h.dispatcher.DeleteSubmodelContent(r.Context(), semanticID, globalID); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathParams(w http.ResponseWriter, r *http.Request) (string, domain.GlobalID, bool) {
	globalID, err := domain.ParseGlobalID(chi.URLParam(r, "globalId"))
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid globalId"))
		return "", domain.GlobalID{}, false
	}
	return chi.URLParam(r, "semanticId"), globalID, true
}
