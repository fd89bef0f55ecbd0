package handler

import (
	"net/http"
	"time"

	"staybook/internal/inventory/service"
	"staybook/pkg/calendar"
	apperrors "staybook/pkg/errors"
	httputil "staybook/pkg/http"
	"staybook/pkg/logger"
	"staybook/pkg/model"
	"staybook/pkg/money"

	"github.com/julienschmidt/httprouter"
)

type RoomHandler struct {
	rooms service.RoomService
	locks service.LockManager
	log   *logger.Logger
}

func NewRoomHandler(rooms service.RoomService, locks service.LockManager, log *logger.Logger) *RoomHandler {
	return &RoomHandler{
		rooms: rooms,
		locks: locks,
		log:   log,
	}
}

type overrideRequest struct {
	IsAvailable    *bool        `json:"is_available,omitempty"`
	AvailableCount *int         `json:"available_count,omitempty"`
	OverridePrice  *money.Money `json:"override_price,omitempty"`
	Note           string       `json:"note,omitempty"`
}

func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var room model.Room
	if err := httputil.DecodeJSON(r, &room); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := h.rooms.CreateRoom(r.Context(), &room); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, room); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *RoomHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, err := h.rooms.GetRoom(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, room); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *RoomHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	rooms, total, err := h.rooms.ListRooms(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	if err := httputil.WritePaginated(w, rooms, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *RoomHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var updates model.RoomUpdate
	if err := httputil.DecodeJSON(r, &updates); err != nil {
		h.writeError(w, "Update", err)
		return
	}

	room, err := h.rooms.UpdateRoom(r.Context(), ps.ByName("id"), &updates)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	if err := httputil.WriteSuccess(w, room); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

func (h *RoomHandler) Deactivate(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.rooms.DeactivateRoom(r.Context(), ps.ByName("id")); err != nil {
		h.writeError(w, "Deactivate", err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *RoomHandler) SetOverride(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	date, err := parseDateParam(ps.ByName("date"))
	if err != nil {
		h.writeError(w, "SetOverride", err)
		return
	}

	var req overrideRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "SetOverride", err)
		return
	}

	override, err := h.rooms.SetOverride(r.Context(), &model.AvailabilityOverride{
		RoomID:         ps.ByName("id"),
		Date:           date,
		IsAvailable:    req.IsAvailable,
		AvailableCount: req.AvailableCount,
		OverridePrice:  req.OverridePrice,
		Note:           req.Note,
	})
	if err != nil {
		h.writeError(w, "SetOverride", err)
		return
	}

	if err := httputil.WriteSuccess(w, override); err != nil {
		h.log.Error("failed to write success response", "handler", "SetOverride", "operation", "WriteSuccess", "error", err)
	}
}

func (h *RoomHandler) DeleteOverride(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	date, err := parseDateParam(ps.ByName("date"))
	if err != nil {
		h.writeError(w, "DeleteOverride", err)
		return
	}

	if err := h.rooms.DeleteOverride(r.Context(), ps.ByName("id"), date); err != nil {
		h.writeError(w, "DeleteOverride", err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *RoomHandler) ListOverrides(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rng, err := httputil.ExtractDateRange(r)
	if err != nil {
		h.writeError(w, "ListOverrides", err)
		return
	}

	overrides, err := h.rooms.ListOverrides(r.Context(), ps.ByName("id"), rng)
	if err != nil {
		h.writeError(w, "ListOverrides", err)
		return
	}

	if err := httputil.WriteSuccess(w, overrides); err != nil {
		h.log.Error("failed to write success response", "handler", "ListOverrides", "operation", "WriteSuccess", "error", err)
	}
}

func (h *RoomHandler) Availability(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rng, err := httputil.ExtractDateRange(r)
	if err != nil {
		h.writeError(w, "Availability", err)
		return
	}

	nights, err := h.locks.Availability(r.Context(), ps.ByName("id"), rng)
	if err != nil {
		h.writeError(w, "Availability", err)
		return
	}

	if err := httputil.WriteSuccess(w, nights); err != nil {
		h.log.Error("failed to write success response", "handler", "Availability", "operation", "WriteSuccess", "error", err)
	}
}

func (h *RoomHandler) GetHold(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	lock, err := h.locks.ResolveToken(r.Context(), ps.ByName("token"))
	if err != nil {
		h.writeError(w, "GetHold", err)
		return
	}

	if err := httputil.WriteSuccess(w, lock); err != nil {
		h.log.Error("failed to write success response", "handler", "GetHold", "operation", "WriteSuccess", "error", err)
	}
}

func (h *RoomHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func parseDateParam(s string) (time.Time, error) {
	d, err := calendar.ParseDate(s)
	if err != nil {
		return time.Time{}, apperrors.InvalidInput("date must be a YYYY-MM-DD date")
	}
	return d, nil
}

func (h *RoomHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/rooms", h.Create)
	router.GET("/api/v1/rooms", h.GetAll)
	router.GET("/api/v1/rooms/:id", h.GetByID)
	router.PATCH("/api/v1/rooms/:id", h.Update)
	router.DELETE("/api/v1/rooms/:id", h.Deactivate)
	router.GET("/api/v1/rooms/:id/availability", h.Availability)
	router.GET("/api/v1/rooms/:id/overrides", h.ListOverrides)
	router.PUT("/api/v1/rooms/:id/overrides/:date", h.SetOverride)
	router.DELETE("/api/v1/rooms/:id/overrides/:date", h.DeleteOverride)
	router.GET("/api/v1/holds/:token", h.GetHold)
}
