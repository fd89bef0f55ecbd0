package handler

import (
	"net/http"
	"time"

	"staybook/internal/reservations/service"
	"staybook/pkg/calendar"
	apperrors "staybook/pkg/errors"
	httputil "staybook/pkg/http"
	"staybook/pkg/logger"
	"staybook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type ReservationHandler struct {
	service service.ReservationService
	log     *logger.Logger
}

func NewReservationHandler(service service.ReservationService, log *logger.Logger) *ReservationHandler {
	return &ReservationHandler{
		service: service,
		log:     log,
	}
}

type createRequest struct {
	RoomID   string `json:"room_id"`
	UserID   string `json:"user_id"`
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
	Quantity int    `json:"quantity"`
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req createRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	checkIn, err := parseDate("check_in", req.CheckIn)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}
	checkOut, err := parseDate("check_out", req.CheckOut)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	reservation, err := h.service.Create(r.Context(), &model.ReservationRequest{
		RoomID:   req.RoomID,
		UserID:   req.UserID,
		CheckIn:  checkIn,
		CheckOut: checkOut,
		Quantity: req.Quantity,
	})
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, reservation); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *ReservationHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	reservation, err := h.service.Get(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, reservation); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) ListByUser(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListByUser", err)
		return
	}

	reservations, total, err := h.service.ListByUser(r.Context(), ps.ByName("user_id"), limit, offset)
	if err != nil {
		h.writeError(w, "ListByUser", err)
		return
	}

	if err := httputil.WritePaginated(w, reservations, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListByUser", "operation", "WritePaginated", "error", err)
	}
}

func (h *ReservationHandler) Extend(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	reservation, err := h.service.Extend(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Extend", err)
		return
	}

	if err := httputil.WriteSuccess(w, reservation); err != nil {
		h.log.Error("failed to write success response", "handler", "Extend", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) AttachPayment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var payment model.PaymentAttachment
	if err := httputil.DecodeJSON(r, &payment); err != nil {
		h.writeError(w, "AttachPayment", err)
		return
	}

	reservation, err := h.service.AttachPayment(r.Context(), ps.ByName("id"), &payment)
	if err != nil {
		h.writeError(w, "AttachPayment", err)
		return
	}

	if err := httputil.WriteSuccess(w, reservation); err != nil {
		h.log.Error("failed to write success response", "handler", "AttachPayment", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) Confirm(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var confirmation model.ReservationConfirmation
	if err := httputil.DecodeJSON(r, &confirmation); err != nil {
		h.writeError(w, "Confirm", err)
		return
	}

	reservation, err := h.service.Confirm(r.Context(), ps.ByName("id"), confirmation.PaymentReference)
	if err != nil {
		h.writeError(w, "Confirm", err)
		return
	}

	if err := httputil.WriteSuccess(w, reservation); err != nil {
		h.log.Error("failed to write success response", "handler", "Confirm", "operation", "WriteSuccess", "error", err)
	}
}

// Cancel accepts an empty body.
func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var cancellation model.ReservationCancellation
	if err := httputil.DecodeOptionalJSON(r, &cancellation); err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	reservation, err := h.service.Cancel(r.Context(), ps.ByName("id"), cancellation.Reason)
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	if err := httputil.WriteSuccess(w, reservation); err != nil {
		h.log.Error("failed to write success response", "handler", "Cancel", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *ReservationHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/reservations", h.Create)
	router.GET("/api/v1/reservations/:id", h.GetByID)
	router.POST("/api/v1/reservations/:id/extend", h.Extend)
	router.POST("/api/v1/reservations/:id/payment", h.AttachPayment)
	router.POST("/api/v1/reservations/:id/confirm", h.Confirm)
	router.POST("/api/v1/reservations/:id/cancel", h.Cancel)
	router.GET("/api/v1/users/:user_id/reservations", h.ListByUser)
}

func parseDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, apperrors.InvalidInput(field + " is required")
	}
	date, err := calendar.ParseDate(value)
	if err != nil {
		return time.Time{}, apperrors.InvalidInput(field + ": " + err.Error())
	}
	return date, nil
}
