package handler

import (
	"net/http"

	"staybook/internal/pricecache/service"
	apperrors "staybook/pkg/errors"
	httputil "staybook/pkg/http"
	"staybook/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type CacheHandler struct {
	service service.PriceCacheService
	log     *logger.Logger
}

func NewCacheHandler(service service.PriceCacheService, log *logger.Logger) *CacheHandler {
	return &CacheHandler{
		service: service,
		log:     log,
	}
}

func (h *CacheHandler) Get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	mode := service.ReadTolerant
	switch r.URL.Query().Get("mode") {
	case "", "tolerant":
	case "strict":
		mode = service.ReadStrict
	default:
		h.writeError(w, "Get", apperrors.InvalidInput("mode must be strict or tolerant"))
		return
	}

	entry, err := h.service.Get(r.Context(), ps.ByName("id"), mode)
	if err != nil {
		h.writeError(w, "Get", err)
		return
	}

	if err := httputil.WriteSuccess(w, entry); err != nil {
		h.log.Error("failed to write success response", "handler", "Get", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CacheHandler) Refresh(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	entry, err := h.service.Refresh(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Refresh", err)
		return
	}

	if err := httputil.WriteSuccess(w, entry); err != nil {
		h.log.Error("failed to write success response", "handler", "Refresh", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CacheHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *CacheHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/rooms/:id/price-summary", h.Get)
	router.POST("/api/v1/rooms/:id/price-summary/refresh", h.Refresh)
}
