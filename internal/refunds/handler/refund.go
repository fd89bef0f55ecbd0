package handler

import (
	"net/http"

	"staybook/internal/refunds/service"
	httputil "staybook/pkg/http"
	"staybook/pkg/logger"
	"staybook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type RefundHandler struct {
	service service.RefundService
	log     *logger.Logger
}

func NewRefundHandler(service service.RefundService, log *logger.Logger) *RefundHandler {
	return &RefundHandler{
		service: service,
		log:     log,
	}
}

type policyRequest struct {
	AccommodationID string                   `json:"accommodation_id"`
	Name            string                   `json:"name"`
	IsActive        *bool                    `json:"is_active,omitempty"`
	Tiers           []model.RefundPolicyTier `json:"tiers"`
}

func (h *RefundHandler) CreatePolicy(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req policyRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "CreatePolicy", err)
		return
	}

	policy := &model.RefundPolicy{
		AccommodationID: req.AccommodationID,
		Name:            req.Name,
		IsActive:        req.IsActive == nil || *req.IsActive,
		Tiers:           req.Tiers,
	}
	created, err := h.service.CreatePolicy(r.Context(), policy)
	if err != nil {
		h.writeError(w, "CreatePolicy", err)
		return
	}

	if err := httputil.WriteCreated(w, created); err != nil {
		h.log.Error("failed to write created response", "handler", "CreatePolicy", "operation", "WriteCreated", "error", err)
	}
}

func (h *RefundHandler) GetPolicy(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	policy, err := h.service.GetPolicy(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetPolicy", err)
		return
	}

	if err := httputil.WriteSuccess(w, policy); err != nil {
		h.log.Error("failed to write success response", "handler", "GetPolicy", "operation", "WriteSuccess", "error", err)
	}
}

func (h *RefundHandler) GetActivePolicy(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	policy, err := h.service.GetActivePolicy(r.Context(), ps.ByName("accommodation_id"))
	if err != nil {
		h.writeError(w, "GetActivePolicy", err)
		return
	}

	if err := httputil.WriteSuccess(w, policy); err != nil {
		h.log.Error("failed to write success response", "handler", "GetActivePolicy", "operation", "WriteSuccess", "error", err)
	}
}

func (h *RefundHandler) Evaluate(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	request, err := h.service.Evaluate(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Evaluate", err)
		return
	}

	if err := httputil.WriteSuccess(w, request); err != nil {
		h.log.Error("failed to write success response", "handler", "Evaluate", "operation", "WriteSuccess", "error", err)
	}
}

func (h *RefundHandler) GetRequest(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	request, err := h.service.GetRequest(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetRequest", err)
		return
	}

	if err := httputil.WriteSuccess(w, request); err != nil {
		h.log.Error("failed to write success response", "handler", "GetRequest", "operation", "WriteSuccess", "error", err)
	}
}

func (h *RefundHandler) Process(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var decision model.RefundDecision
	if err := httputil.DecodeJSON(r, &decision); err != nil {
		h.writeError(w, "Process", err)
		return
	}

	request, err := h.service.Process(r.Context(), ps.ByName("id"), &decision)
	if err != nil {
		h.writeError(w, "Process", err)
		return
	}

	if err := httputil.WriteSuccess(w, request); err != nil {
		h.log.Error("failed to write success response", "handler", "Process", "operation", "WriteSuccess", "error", err)
	}
}

func (h *RefundHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *RefundHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/refund-policies", h.CreatePolicy)
	router.GET("/api/v1/refund-policies/:id", h.GetPolicy)
	router.GET("/api/v1/accommodations/:accommodation_id/refund-policy", h.GetActivePolicy)
	router.POST("/api/v1/bookings/:id/refund", h.Evaluate)
	router.GET("/api/v1/refunds/:id", h.GetRequest)
	router.POST("/api/v1/refunds/:id/process", h.Process)
}
