package app

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/mongo"

	httputil "staybook/pkg/http"
	"staybook/pkg/logger"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Storage  string `json:"storage,omitempty"`
	Database string `json:"database,omitempty"`
}

type HealthHandler struct {
	mongoClient *mongo.Client
	storage     string
	log         *logger.Logger
}

// NewHealthHandler reports readiness from a Mongo ping. A nil client means
// in-memory storage, which is always ready.
func NewHealthHandler(mongoClient *mongo.Client, storage string, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		mongoClient: mongoClient,
		storage:     storage,
		log:         log,
	}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
	}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Health", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if h.mongoClient == nil {
		h.write(w, "Ready", http.StatusOK, HealthResponse{Status: "ready", Storage: h.storage})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.mongoClient.Ping(ctx, nil); err != nil {
		h.log.Error("Database health check failed",
			"error", err,
			"path", r.URL.Path,
		)
		h.write(w, "Ready", http.StatusServiceUnavailable, HealthResponse{
			Status:   "unavailable",
			Storage:  h.storage,
			Database: "error",
		})
		return
	}

	h.write(w, "Ready", http.StatusOK, HealthResponse{
		Status:   "ready",
		Storage:  h.storage,
		Database: "ok",
	})
}

func (h *HealthHandler) write(w http.ResponseWriter, handler string, status int, body HealthResponse) {
	if err := httputil.WriteJSON(w, status, body); err != nil {
		h.log.Error("failed to write JSON response", "handler", handler, "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}
