package expense

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/klokku/pennywise/internal/rest"
	"github.com/klokku/pennywise/pkg/daterule"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type ExpenseDTO struct {
	Id          int             `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Date        string          `json:"date,omitempty"`
	RecurringId *int            `json:"recurringId,omitempty"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// List godoc
// @Summary List posted expenses in a date range
// @Tags Expense
// @Produce json
// @Param from query string true "YYYY-MM-DD"
// @Param to query string true "YYYY-MM-DD"
// @Success 200 {array} ExpenseDTO
// @Router /api/expense [get]
// @Security XUserId
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	from, err := daterule.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid from (date) format", "Date must be in YYYY-MM-DD format")
		return
	}
	to, err := daterule.ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid to (date) format", "Date must be in YYYY-MM-DD format")
		return
	}

	expenses, err := h.service.List(r.Context(), from, to)
	if err != nil {
		if errors.Is(err, ErrInvalidExpense) {
			rest.WriteError(w, http.StatusBadRequest, "Invalid date range", err.Error())
			return
		}
		rest.WriteError(w, http.StatusInternalServerError, "Could not list expenses", err.Error())
		return
	}

	result := make([]ExpenseDTO, 0, len(expenses))
	for _, expense := range expenses {
		result = append(result, ToDTO(expense))
	}
	rest.WriteJSON(w, http.StatusOK, result)
}

// Create godoc
// @Summary Post a manual expense
// @Tags Expense
// @Accept json
// @Produce json
// @Param expense body ExpenseDTO true "Expense"
// @Success 201 {object} ExpenseDTO
// @Failure 400 {object} rest.ErrorResponse
// @Router /api/expense [post]
// @Security XUserId
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating expense")
	var dto ExpenseDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", err.Error())
		return
	}
	var date time.Time
	if dto.Date != "" {
		parsed, err := daterule.ParseDate(dto.Date)
		if err != nil {
			rest.WriteError(w, http.StatusBadRequest, "Invalid date format", "Date must be in YYYY-MM-DD format")
			return
		}
		date = parsed
	}

	created, err := h.service.Add(r.Context(), Expense{
		Amount:      dto.Amount,
		Description: dto.Description,
		Category:    dto.Category,
		Date:        date,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidExpense) {
			rest.WriteError(w, http.StatusBadRequest, "Invalid expense", err.Error())
			return
		}
		rest.WriteError(w, http.StatusInternalServerError, "Could not create expense", err.Error())
		return
	}
	rest.WriteJSON(w, http.StatusCreated, ToDTO(created))
}

// Delete godoc
// @Summary Delete a posted expense
// @Tags Expense
// @Param id path int true "Expense ID"
// @Success 204
// @Failure 404 {object} rest.ErrorResponse
// @Router /api/expense/{id} [delete]
// @Security XUserId
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid expense id", err.Error())
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrExpenseNotFound) {
			rest.WriteError(w, http.StatusNotFound, "Expense not found", "")
			return
		}
		rest.WriteError(w, http.StatusInternalServerError, "Could not delete expense", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func ToDTO(expense Expense) ExpenseDTO {
	return ExpenseDTO{
		Id:          expense.Id,
		Amount:      expense.Amount,
		Description: expense.Description,
		Category:    expense.Category,
		Date:        daterule.FormatDate(expense.Date),
		RecurringId: expense.RecurringId,
	}
}
