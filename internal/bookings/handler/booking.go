package handler

import (
	"net/http"

	"staybook/internal/bookings/service"
	httputil "staybook/pkg/http"
	"staybook/pkg/logger"
	"staybook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) ListByUser(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListByUser", err)
		return
	}

	bookings, total, err := h.service.ListByUser(r.Context(), ps.ByName("user_id"), limit, offset)
	if err != nil {
		h.writeError(w, "ListByUser", err)
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListByUser", "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) CheckIn(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.CheckIn(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "CheckIn", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "CheckIn", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) CheckOut(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.CheckOut(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "CheckOut", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "CheckOut", "operation", "WriteSuccess", "error", err)
	}
}

// Cancel accepts an empty body.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var cancellation model.BookingCancellation
	if err := httputil.DecodeOptionalJSON(r, &cancellation); err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	result, err := h.service.Cancel(r.Context(), ps.ByName("id"), &cancellation)
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "Cancel", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/bookings/:id", h.GetByID)
	router.POST("/api/v1/bookings/:id/check-in", h.CheckIn)
	router.POST("/api/v1/bookings/:id/check-out", h.CheckOut)
	router.POST("/api/v1/bookings/:id/cancel", h.Cancel)
	router.GET("/api/v1/users/:user_id/bookings", h.ListByUser)
}
