package alert

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/klokku/pennywise/internal/rest"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type BudgetStatusDTO struct {
	BudgetName            string          `json:"budgetName"`
	BudgetAmount          decimal.Decimal `json:"budgetAmount"`
	Spent                 decimal.Decimal `json:"spent"`
	DaysRemaining         int             `json:"daysRemaining"`
	AverageDailySpend     decimal.Decimal `json:"averageDailySpend"`
	RecommendedDailyLimit decimal.Decimal `json:"recommendedDailyLimit"`
	ProjectedTotal        decimal.Decimal `json:"projectedTotal"`
}

type AlertDTO struct {
	Id       string    `json:"id"`
	Type     string    `json:"type"`
	Title    string    `json:"title"`
	Message  string    `json:"message"`
	Priority string    `json:"priority"`
	BudgetId string    `json:"budgetId"`
	Created  time.Time `json:"created"`
	IsRead   bool      `json:"isRead"`
}

type AlertListDTO struct {
	Alerts      []AlertDTO `json:"alerts"`
	UnreadCount int        `json:"unreadCount"`
}

type Handler struct {
	engine  *Engine
	service *Service
}

func NewHandler(engine *Engine, service *Service) *Handler {
	return &Handler{engine: engine, service: service}
}

// Evaluate godoc
// @Summary Evaluate a budget status snapshot and produce alerts
// @Tags Alert
// @Accept json
// @Produce json
// @Param budgetId path string true "Budget ID"
// @Param status body BudgetStatusDTO true "Budget status"
// @Success 200 {array} AlertDTO
// @Router /api/budget/{budgetId}/evaluate [post]
// @Security XUserId
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var dto BudgetStatusDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", err.Error())
		return
	}
	alerts, err := h.engine.Evaluate(r.Context(), BudgetStatus{
		BudgetId:              mux.Vars(r)["budgetId"],
		BudgetName:            dto.BudgetName,
		BudgetAmount:          dto.BudgetAmount,
		Spent:                 dto.Spent,
		DaysRemaining:         dto.DaysRemaining,
		AverageDailySpend:     dto.AverageDailySpend,
		RecommendedDailyLimit: dto.RecommendedDailyLimit,
		ProjectedTotal:        dto.ProjectedTotal,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			rest.WriteError(w, http.StatusBadRequest, "Invalid budget status", err.Error())
			return
		}
		log.Errorf("budget evaluation failed: %v", err)
		rest.WriteError(w, http.StatusInternalServerError, "Could not evaluate budget", err.Error())
		return
	}
	rest.WriteJSON(w, http.StatusOK, toDTOs(alerts))
}

// List godoc
// @Summary List alerts, newest first
// @Tags Alert
// @Produce json
// @Success 200 {object} AlertListDTO
// @Router /api/alert [get]
// @Security XUserId
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.service.List(r.Context())
	if err != nil {
		rest.WriteError(w, http.StatusInternalServerError, "Could not list alerts", err.Error())
		return
	}
	unread, err := h.service.UnreadCount(r.Context())
	if err != nil {
		rest.WriteError(w, http.StatusInternalServerError, "Could not count unread alerts", err.Error())
		return
	}
	rest.WriteJSON(w, http.StatusOK, AlertListDTO{Alerts: toDTOs(alerts), UnreadCount: unread})
}

// MarkRead godoc
// @Summary Mark an alert as read
// @Tags Alert
// @Param id path string true "Alert ID"
// @Success 204
// @Failure 404 {object} rest.ErrorResponse
// @Router /api/alert/{id}/read [put]
// @Security XUserId
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.service.MarkRead(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead godoc
// @Summary Mark every alert as read
// @Tags Alert
// @Success 204
// @Router /api/alert/read [put]
// @Security XUserId
func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	if _, err := h.service.MarkAllRead(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete godoc
// @Summary Delete an alert
// @Tags Alert
// @Param id path string true "Alert ID"
// @Success 204
// @Failure 404 {object} rest.ErrorResponse
// @Router /api/alert/{id} [delete]
// @Security XUserId
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrAlertNotFound) {
		rest.WriteError(w, http.StatusNotFound, "Alert not found", "")
		return
	}
	log.Errorf("alert request failed: %v", err)
	rest.WriteError(w, http.StatusInternalServerError, "Could not process alert", err.Error())
}

func toDTOs(alerts []BudgetAlert) []AlertDTO {
	result := make([]AlertDTO, 0, len(alerts))
	for _, alert := range alerts {
		result = append(result, AlertDTO{
			Id:       alert.Id,
			Type:     alert.Type.String(),
			Title:    alert.Title,
			Message:  alert.Message,
			Priority: alert.Priority.String(),
			BudgetId: alert.BudgetId,
			Created:  alert.Created,
			IsRead:   alert.IsRead,
		})
	}
	return result
}
