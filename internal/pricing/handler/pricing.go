package handler

import (
	"net/http"
	"strconv"
	"time"

	"staybook/internal/pricing/service"
	"staybook/pkg/calendar"
	apperrors "staybook/pkg/errors"
	httputil "staybook/pkg/http"
	"staybook/pkg/logger"
	"staybook/pkg/model"
	"staybook/pkg/money"

	"github.com/julienschmidt/httprouter"
)

type PricingHandler struct {
	service service.PricingService
	log     *logger.Logger
}

func NewPricingHandler(service service.PricingService, log *logger.Logger) *PricingHandler {
	return &PricingHandler{
		service: service,
		log:     log,
	}
}

type ruleRequest struct {
	Name          string         `json:"name,omitempty"`
	RuleType      model.RuleType `json:"rule_type"`
	DayOfWeek     *time.Weekday  `json:"day_of_week,omitempty"`
	StartDate     *string        `json:"start_date,omitempty"`
	EndDate       *string        `json:"end_date,omitempty"`
	FixedPrice    money.Money    `json:"fixed_price"`
	Priority      int            `json:"priority"`
	MinimumNights int            `json:"minimum_nights"`
	IsActive      *bool          `json:"is_active,omitempty"`
}

func (req *ruleRequest) toRule(roomID string) (*model.PricingRule, error) {
	rule := &model.PricingRule{
		RoomID:        roomID,
		Name:          req.Name,
		RuleType:      req.RuleType,
		DayOfWeek:     req.DayOfWeek,
		FixedPrice:    req.FixedPrice,
		Priority:      req.Priority,
		MinimumNights: req.MinimumNights,
		IsActive:      req.IsActive == nil || *req.IsActive,
	}
	var err error
	if rule.StartDate, err = optionalDate("start_date", req.StartDate); err != nil {
		return nil, err
	}
	if rule.EndDate, err = optionalDate("end_date", req.EndDate); err != nil {
		return nil, err
	}
	return rule, nil
}

func optionalDate(field string, s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	d, err := calendar.ParseDate(*s)
	if err != nil {
		return nil, apperrors.InvalidInput(field + " must be a YYYY-MM-DD date")
	}
	return &d, nil
}

func (h *PricingHandler) Quote(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rng, err := httputil.ExtractDateRange(r)
	if err != nil {
		h.writeError(w, "Quote", err)
		return
	}

	quantity := 1
	if q := r.URL.Query().Get("quantity"); q != "" {
		quantity, err = strconv.Atoi(q)
		if err != nil {
			h.writeError(w, "Quote", apperrors.InvalidInput("quantity must be an integer"))
			return
		}
	}

	quote, err := h.service.Quote(r.Context(), ps.ByName("id"), rng, quantity)
	if err != nil {
		h.writeError(w, "Quote", err)
		return
	}

	if err := httputil.WriteSuccess(w, quote); err != nil {
		h.log.Error("failed to write success response", "handler", "Quote", "operation", "WriteSuccess", "error", err)
	}
}

func (h *PricingHandler) Price(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	date, err := httputil.ExtractDate(r, "date")
	if err != nil {
		h.writeError(w, "Price", err)
		return
	}

	nights := 1
	if n := r.URL.Query().Get("nights"); n != "" {
		nights, err = strconv.Atoi(n)
		if err != nil {
			h.writeError(w, "Price", apperrors.InvalidInput("nights must be an integer"))
			return
		}
	}

	price, err := h.service.PriceFor(r.Context(), ps.ByName("id"), date, nights)
	if err != nil {
		h.writeError(w, "Price", err)
		return
	}

	body := map[string]any{
		"room_id": ps.ByName("id"),
		"date":    date.Format(time.DateOnly),
		"nights":  nights,
		"price":   price,
	}
	if err := httputil.WriteSuccess(w, body); err != nil {
		h.log.Error("failed to write success response", "handler", "Price", "operation", "WriteSuccess", "error", err)
	}
}

func (h *PricingHandler) CreateRule(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req ruleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "CreateRule", err)
		return
	}

	rule, err := req.toRule(ps.ByName("id"))
	if err != nil {
		h.writeError(w, "CreateRule", err)
		return
	}

	if err := h.service.CreateRule(r.Context(), rule); err != nil {
		h.writeError(w, "CreateRule", err)
		return
	}

	if err := httputil.WriteCreated(w, rule); err != nil {
		h.log.Error("failed to write created response", "handler", "CreateRule", "operation", "WriteCreated", "error", err)
	}
}

func (h *PricingHandler) ListRules(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rules, err := h.service.ListRules(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "ListRules", err)
		return
	}

	if err := httputil.WriteSuccess(w, rules); err != nil {
		h.log.Error("failed to write success response", "handler", "ListRules", "operation", "WriteSuccess", "error", err)
	}
}

func (h *PricingHandler) GetRule(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rule, err := h.service.GetRule(r.Context(), ps.ByName("rule_id"))
	if err != nil {
		h.writeError(w, "GetRule", err)
		return
	}

	if err := httputil.WriteSuccess(w, rule); err != nil {
		h.log.Error("failed to write success response", "handler", "GetRule", "operation", "WriteSuccess", "error", err)
	}
}

func (h *PricingHandler) UpdateRule(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req ruleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "UpdateRule", err)
		return
	}

	rule, err := req.toRule("")
	if err != nil {
		h.writeError(w, "UpdateRule", err)
		return
	}

	updated, err := h.service.UpdateRule(r.Context(), ps.ByName("rule_id"), rule)
	if err != nil {
		h.writeError(w, "UpdateRule", err)
		return
	}

	if err := httputil.WriteSuccess(w, updated); err != nil {
		h.log.Error("failed to write success response", "handler", "UpdateRule", "operation", "WriteSuccess", "error", err)
	}
}

func (h *PricingHandler) DeactivateRule(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.DeactivateRule(r.Context(), ps.ByName("rule_id")); err != nil {
		h.writeError(w, "DeactivateRule", err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *PricingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *PricingHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/rooms/:id/quote", h.Quote)
	router.GET("/api/v1/rooms/:id/price", h.Price)
	router.POST("/api/v1/rooms/:id/rules", h.CreateRule)
	router.GET("/api/v1/rooms/:id/rules", h.ListRules)
	router.GET("/api/v1/rules/:rule_id", h.GetRule)
	router.PUT("/api/v1/rules/:rule_id", h.UpdateRule)
	router.DELETE("/api/v1/rules/:rule_id", h.DeactivateRule)
}
