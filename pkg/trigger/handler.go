package trigger

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/klokku/pennywise/internal/rest"
	log "github.com/sirupsen/logrus"
)

type TriggerRequest struct {
	Kind string `json:"kind"`
}

type TriggerResponse struct {
	Kind          string `json:"kind"`
	Ran           bool   `json:"ran"`
	Skipped       string `json:"skipped,omitempty"`
	Processed     int    `json:"processed"`
	Created       int    `json:"created"`
	Failed        int    `json:"failed"`
	MarkedOverdue int    `json:"markedOverdue"`
}

type Handler struct {
	trigger *Trigger
}

func NewHandler(trigger *Trigger) *Handler {
	return &Handler{trigger: trigger}
}

// Fire godoc
// @Summary Run a processing pass for the current user
// @Description Foreground resumes are ignored within five minutes of the last successful pass.
// @Tags Processing
// @Accept json
// @Produce json
// @Param request body TriggerRequest true "Trigger"
// @Success 200 {object} TriggerResponse
// @Failure 503 {object} rest.ErrorResponse
// @Router /api/processing/trigger [post]
// @Security XUserId
func (h *Handler) Fire(w http.ResponseWriter, r *http.Request) {
	var request TriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", err.Error())
		return
	}
	kind, err := ParseKind(request.Kind)
	if err != nil || kind == KindExpenseMutation {
		rest.WriteError(w, http.StatusBadRequest, "Invalid trigger kind", "kind must be start, foreground or manual")
		return
	}

	result, err := h.trigger.Fire(r.Context(), kind)
	if err != nil && !errors.Is(err, ErrPassInProgress) {
		log.Errorf("processing pass failed: %v", err)
		rest.WriteError(w, http.StatusServiceUnavailable, "Could not refresh", err.Error())
		return
	}
	rest.WriteJSON(w, http.StatusOK, TriggerResponse{
		Kind:          result.Kind.String(),
		Ran:           result.Skipped == SkipNone,
		Skipped:       string(result.Skipped),
		Processed:     result.Report.Processed,
		Created:       result.Report.Created,
		Failed:        result.Report.Failed,
		MarkedOverdue: result.MarkedOverdue,
	})
}
