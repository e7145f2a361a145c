package recurring

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

type DefinitionDTO struct {
	Id             int             `json:"id"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description"`
	Category       string          `json:"category"`
	IntervalDays   int             `json:"intervalDays,omitempty"`
	ExecutionDates []int           `json:"executionDates,omitempty"`
	StartDate      string          `json:"startDate"`
	NextDueDate    string          `json:"nextDueDate,omitempty"`
	IsActive       bool            `json:"isActive"`
	LastExecuted   string          `json:"lastExecuted,omitempty"`
	Stale          bool            `json:"stale"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// List godoc
// @Summary List recurring expenses
// @Tags Recurring
// @Produce json
// @Success 200 {array} DefinitionDTO
// @Router /api/recurring [get]
// @Security XUserId
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	definitions, err := h.service.List(r.Context())
	if err != nil {
		rest.WriteError(w, http.StatusInternalServerError, "Could not list recurring expenses", err.Error())
		return
	}
	result := make([]DefinitionDTO, 0, len(definitions))
	for _, definition := range definitions {
		result = append(result, h.toDTO(r, definition))
	}
	rest.WriteJSON(w, http.StatusOK, result)
}

// Get godoc
// @Summary Get a recurring expense
// @Tags Recurring
// @Produce json
// @Param id path int true "Recurring expense ID"
// @Success 200 {object} DefinitionDTO
// @Failure 404 {object} rest.ErrorResponse
// @Router /api/recurring/{id} [get]
// @Security XUserId
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathId(w, r)
	if !ok {
		return
	}
	definition, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, h.toDTO(r, definition))
}

// Create godoc
// @Summary Create a recurring expense
// @Tags Recurring
// @Accept json
// @Produce json
// @Param definition body DefinitionDTO true "Recurring expense"
// @Success 201 {object} DefinitionDTO
// @Failure 400 {object} rest.ErrorResponse
// @Router /api/recurring [post]
// @Security XUserId
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	definition, ok := decodeDefinition(w, r)
	if !ok {
		return
	}
	created, err := h.service.Create(r.Context(), definition)
	if err != nil {
		writeError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, h.toDTO(r, created))
}

// Update godoc
// @Summary Update a recurring expense
// @Tags Recurring
// @Accept json
// @Produce json
// @Param id path int true "Recurring expense ID"
// @Param definition body DefinitionDTO true "Recurring expense"
// @Success 200 {object} DefinitionDTO
// @Failure 400 {object} rest.ErrorResponse
// @Failure 404 {object} rest.ErrorResponse
// @Router /api/recurring/{id} [put]
// @Security XUserId
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathId(w, r)
	if !ok {
		return
	}
	definition, ok := decodeDefinition(w, r)
	if !ok {
		return
	}
	definition.Id = id
	updated, err := h.service.Update(r.Context(), definition)
	if err != nil {
		writeError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, h.toDTO(r, updated))
}

// Delete godoc
// @Summary Delete a recurring expense and its pending occurrences
// @Tags Recurring
// @Param id path int true "Recurring expense ID"
// @Success 204
// @Failure 404 {object} rest.ErrorResponse
// @Router /api/recurring/{id} [delete]
// @Security XUserId
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathId(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Pause godoc
// @Summary Pause a recurring expense
// @Tags Recurring
// @Produce json
// @Param id path int true "Recurring expense ID"
// @Success 200 {object} DefinitionDTO
// @Router /api/recurring/{id}/pause [post]
// @Security XUserId
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	id, ok := pathId(w, r)
	if !ok {
		return
	}
	definition, err := h.service.Pause(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, h.toDTO(r, definition))
}

// Resume godoc
// @Summary Resume a paused recurring expense
// @Description A stale definition needs mode=keep (materialize the backlog) or mode=recompute (start from today).
// @Tags Recurring
// @Produce json
// @Param id path int true "Recurring expense ID"
// @Param mode query string false "keep or recompute"
// @Success 200 {object} DefinitionDTO
// @Failure 409 {object} rest.ErrorResponse
// @Router /api/recurring/{id}/resume [post]
// @Security XUserId
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	id, ok := pathId(w, r)
	if !ok {
		return
	}
	mode, ok := ParseResumeMode(r.URL.Query().Get("mode"))
	if !ok {
		rest.WriteError(w, http.StatusBadRequest, "Invalid resume mode", "mode must be keep or recompute")
		return
	}
	definition, err := h.service.Resume(r.Context(), id, mode)
	if err != nil {
		writeError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, h.toDTO(r, definition))
}

func (h *Handler) toDTO(r *http.Request, definition Definition) DefinitionDTO {
	dto := DefinitionDTO{
		Id:             definition.Id,
		Amount:         definition.Amount,
		Description:    definition.Description,
		Category:       definition.Category,
		IntervalDays:   definition.IntervalDays,
		ExecutionDates: definition.ExecutionDates,
		StartDate:      daterule.FormatDate(definition.StartDate),
		IsActive:       definition.IsActive,
	}
	if !definition.NextDueDate.IsZero() {
		dto.NextDueDate = daterule.FormatDate(definition.NextDueDate)
	}
	if definition.LastExecuted != nil {
		dto.LastExecuted = daterule.FormatDate(*definition.LastExecuted)
	}
	stale, err := h.service.IsStale(r.Context(), definition)
	if err != nil {
		log.Warnf("could not evaluate staleness of recurring expense %d: %v", definition.Id, err)
	}
	dto.Stale = stale
	return dto
}

func decodeDefinition(w http.ResponseWriter, r *http.Request) (Definition, bool) {
	var dto DefinitionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", err.Error())
		return Definition{}, false
	}
	var startDate time.Time
	if dto.StartDate != "" {
		parsed, err := daterule.ParseDate(dto.StartDate)
		if err != nil {
			rest.WriteError(w, http.StatusBadRequest, "Invalid startDate format", "Date must be in YYYY-MM-DD format")
			return Definition{}, false
		}
		startDate = parsed
	}
	return Definition{
		Amount:         dto.Amount,
		Description:    dto.Description,
		Category:       dto.Category,
		IntervalDays:   dto.IntervalDays,
		ExecutionDates: dto.ExecutionDates,
		StartDate:      startDate,
	}, true
}

func pathId(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid recurring expense id", err.Error())
		return 0, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidDefinition):
		rest.WriteError(w, http.StatusBadRequest, "Invalid recurring expense", err.Error())
	case errors.Is(err, ErrDefinitionNotFound):
		rest.WriteError(w, http.StatusNotFound, "Recurring expense not found", "")
	case errors.Is(err, ErrResumeChoiceRequired):
		rest.WriteError(w, http.StatusConflict, "Resume mode required", err.Error())
	default:
		log.Errorf("recurring expense request failed: %v", err)
		rest.WriteError(w, http.StatusInternalServerError, "Could not process recurring expense", err.Error())
	}
}
