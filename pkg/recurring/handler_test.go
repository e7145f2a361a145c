package recurring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/klokku/pennywise/pkg/daterule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHandlerTest(t *testing.T) (*mux.Router, Definition) {
	service, repo, _ := setupService(time.Date(2024, time.March, 3, 9, 0, 0, 0, time.UTC))
	paused := validDefinition()
	paused.NextDueDate = daterule.Date(2024, time.February, 5)
	paused.IsActive = false
	created, err := repo.Create(ctx, 5, paused)
	require.NoError(t, err)

	handler := NewHandler(service)
	r := mux.NewRouter()
	r.HandleFunc("/api/recurring/{id}/resume", handler.Resume).Methods("POST")
	return r, created
}

func resume(r *mux.Router, id int, query string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/recurring/"+strconv.Itoa(id)+"/resume"+query, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req.WithContext(ctx))
	return w
}

func TestHandler_Resume(t *testing.T) {
	t.Run("should ask for a mode when the definition is stale", func(t *testing.T) {
		r, definition := setupHandlerTest(t)

		w := resume(r, definition.Id, "")

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("should reject unknown mode", func(t *testing.T) {
		r, definition := setupHandlerTest(t)

		w := resume(r, definition.Id, "?mode=later")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("should recompute next due date from today", func(t *testing.T) {
		// given
		r, definition := setupHandlerTest(t)

		// when
		w := resume(r, definition.Id, "?mode=recompute")

		// then
		require.Equal(t, http.StatusOK, w.Code)
		var dto DefinitionDTO
		require.NoError(t, json.NewDecoder(w.Body).Decode(&dto))
		assert.True(t, dto.IsActive)
		assert.Equal(t, "2024-03-05", dto.NextDueDate)
		assert.False(t, dto.Stale)
	})

	t.Run("should keep the stale next due date", func(t *testing.T) {
		r, definition := setupHandlerTest(t)

		w := resume(r, definition.Id, "?mode=keep")

		require.Equal(t, http.StatusOK, w.Code)
		var dto DefinitionDTO
		require.NoError(t, json.NewDecoder(w.Body).Decode(&dto))
		assert.True(t, dto.IsActive)
		assert.Equal(t, "2024-02-05", dto.NextDueDate)
		assert.True(t, dto.Stale)
	})

	t.Run("should return 404 for unknown definition", func(t *testing.T) {
		r, _ := setupHandlerTest(t)

		w := resume(r, 999, "?mode=keep")

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
