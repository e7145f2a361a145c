package pending

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/klokku/pennywise/internal/rest"
	"github.com/klokku/pennywise/internal/utils"
	"github.com/klokku/pennywise/pkg/daterule"
	"github.com/klokku/pennywise/pkg/expense"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type PendingDTO struct {
	Id            int             `json:"id"`
	RecurringId   int             `json:"recurringId"`
	ScheduledDate string          `json:"scheduledDate"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	Status        string          `json:"status"`
}

type OverdueDTO struct {
	PendingDTO
	DaysOverdue int    `json:"daysOverdue"`
	Priority    string `json:"priority"`
}

type OverdueSummaryDTO struct {
	Count       int             `json:"count"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	ByPriority  map[string]int  `json:"byPriority"`
	Highest     string          `json:"highest,omitempty"`
}

type ConfirmRequest struct {
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Description *string          `json:"description,omitempty"`
}

type Handler struct {
	service Service
	clock   utils.Clock
}

func NewHandler(service Service, clock utils.Clock) *Handler {
	return &Handler{service: service, clock: clock}
}

// List godoc
// @Summary List pending expenses awaiting confirmation
// @Tags Pending
// @Produce json
// @Success 200 {array} PendingDTO
// @Router /api/pending [get]
// @Security XUserId
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	occurrences, err := h.service.List(r.Context())
	if err != nil {
		rest.WriteError(w, http.StatusInternalServerError, "Could not list pending expenses", err.Error())
		return
	}
	result := make([]PendingDTO, 0, len(occurrences))
	for _, occurrence := range occurrences {
		result = append(result, toDTO(occurrence))
	}
	rest.WriteJSON(w, http.StatusOK, result)
}

// Confirm godoc
// @Summary Confirm a pending expense, optionally overriding amount and description
// @Tags Pending
// @Accept json
// @Produce json
// @Param id path int true "Pending expense ID"
// @Param override body ConfirmRequest false "Override"
// @Success 200 {object} expense.ExpenseDTO
// @Failure 404 {object} rest.ErrorResponse
// @Failure 409 {object} rest.ErrorResponse
// @Router /api/pending/{id}/confirm [post]
// @Security XUserId
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid pending expense id", err.Error())
		return
	}
	var request ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil && !errors.Is(err, io.EOF) {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", err.Error())
		return
	}

	posted, err := h.service.Confirm(r.Context(), id, ConfirmOverride{
		Amount:      request.Amount,
		Description: request.Description,
	})
	if err != nil {
		h.writeLifecycleError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, expense.ToDTO(posted))
}

// Skip godoc
// @Summary Skip a pending expense
// @Tags Pending
// @Param id path int true "Pending expense ID"
// @Success 204
// @Failure 404 {object} rest.ErrorResponse
// @Router /api/pending/{id}/skip [post]
// @Security XUserId
func (h *Handler) Skip(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid pending expense id", err.Error())
		return
	}
	if err := h.service.Skip(r.Context(), id); err != nil {
		h.writeLifecycleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListOverdue godoc
// @Summary List overdue expenses, most overdue first
// @Tags Pending
// @Produce json
// @Success 200 {array} OverdueDTO
// @Router /api/pending/overdue [get]
// @Security XUserId
func (h *Handler) ListOverdue(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListOverdue(r.Context(), h.clock.Now())
	if err != nil {
		rest.WriteError(w, http.StatusInternalServerError, "Could not list overdue expenses", err.Error())
		return
	}
	result := make([]OverdueDTO, 0, len(items))
	for _, item := range items {
		result = append(result, OverdueDTO{
			PendingDTO:  toDTO(item.Occurrence),
			DaysOverdue: item.DaysOverdue,
			Priority:    item.Priority.String(),
		})
	}
	rest.WriteJSON(w, http.StatusOK, result)
}

// Summary godoc
// @Summary Overdue banner data
// @Tags Pending
// @Produce json
// @Success 200 {object} OverdueSummaryDTO
// @Router /api/pending/overdue/summary [get]
// @Security XUserId
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context(), h.clock.Now())
	if err != nil {
		rest.WriteError(w, http.StatusInternalServerError, "Could not summarize overdue expenses", err.Error())
		return
	}
	dto := OverdueSummaryDTO{
		Count:       summary.Count,
		TotalAmount: summary.TotalAmount,
		ByPriority:  map[string]int{},
	}
	for priority, count := range summary.ByPriority {
		dto.ByPriority[priority.String()] = count
	}
	if summary.Highest != 0 {
		dto.Highest = summary.Highest.String()
	}
	rest.WriteJSON(w, http.StatusOK, dto)
}

func (h *Handler) writeLifecycleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrPendingNotFound):
		rest.WriteError(w, http.StatusNotFound, "Pending expense not found", "")
	case errors.Is(err, ErrInvalidTransition):
		rest.WriteError(w, http.StatusConflict, "Pending expense already resolved", err.Error())
	case errors.Is(err, ErrInvalidOverride), errors.Is(err, expense.ErrInvalidExpense):
		rest.WriteError(w, http.StatusBadRequest, "Invalid confirmation", err.Error())
	default:
		log.Errorf("pending expense lifecycle failed: %v", err)
		rest.WriteError(w, http.StatusInternalServerError, "Could not resolve pending expense", err.Error())
	}
}

func toDTO(occurrence PendingOccurrence) PendingDTO {
	return PendingDTO{
		Id:            occurrence.Id,
		RecurringId:   occurrence.RecurringId,
		ScheduledDate: daterule.FormatDate(occurrence.ScheduledDate),
		Amount:        occurrence.Amount,
		Description:   occurrence.Description,
		Category:      occurrence.Category,
		Status:        occurrence.Status.String(),
	}
}
