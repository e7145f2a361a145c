package pending

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/klokku/pennywise/internal/utils"
	"github.com/klokku/pennywise/pkg/daterule"
	"github.com/klokku/pennywise/pkg/expense"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHandlerTest(t *testing.T) (*fixture, *mux.Router) {
	f := setup(t)
	handler := NewHandler(f.service, utils.NewMockClock(time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)))
	r := mux.NewRouter()
	r.HandleFunc("/api/pending/overdue", handler.ListOverdue).Methods("GET")
	r.HandleFunc("/api/pending/{id}/confirm", handler.Confirm).Methods("POST")
	r.HandleFunc("/api/pending/{id}/skip", handler.Skip).Methods("POST")
	return f, r
}

func serve(r *mux.Router, method string, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req.WithContext(ctx))
	return w
}

func TestHandler_Confirm(t *testing.T) {
	t.Run("should post expense with overridden amount", func(t *testing.T) {
		// given
		f, r := setupHandlerTest(t)
		occurrence := f.givenPending(t, 3, daterule.Date(2024, time.March, 5), "1200.00")
		body := []byte(`{"amount": 1150.50}`)

		// when
		w := serve(r, http.MethodPost, "/api/pending/"+strconv.Itoa(occurrence.Id)+"/confirm", body)

		// then
		require.Equal(t, http.StatusOK, w.Code)
		var posted expense.ExpenseDTO
		require.NoError(t, json.NewDecoder(w.Body).Decode(&posted))
		assert.Equal(t, "1150.5", posted.Amount.String())
		assert.Equal(t, "2024-03-05", posted.Date)
		require.NotNil(t, posted.RecurringId)
		assert.Equal(t, 3, *posted.RecurringId)
	})

	t.Run("should accept empty body", func(t *testing.T) {
		f, r := setupHandlerTest(t)
		occurrence := f.givenPending(t, 3, daterule.Date(2024, time.March, 5), "80")

		w := serve(r, http.MethodPost, "/api/pending/"+strconv.Itoa(occurrence.Id)+"/confirm", nil)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("should return 404 for unknown pending expense", func(t *testing.T) {
		_, r := setupHandlerTest(t)

		w := serve(r, http.MethodPost, "/api/pending/999/confirm", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("should reject non positive override", func(t *testing.T) {
		f, r := setupHandlerTest(t)
		occurrence := f.givenPending(t, 3, daterule.Date(2024, time.March, 5), "80")

		w := serve(r, http.MethodPost, "/api/pending/"+strconv.Itoa(occurrence.Id)+"/confirm", []byte(`{"amount": 0}`))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Len(t, f.repo.occurrences, 1)
	})
}

func TestHandler_Skip(t *testing.T) {
	f, r := setupHandlerTest(t)
	occurrence := f.givenPending(t, 3, daterule.Date(2024, time.March, 5), "80")

	w := serve(r, http.MethodPost, "/api/pending/"+strconv.Itoa(occurrence.Id)+"/skip", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = serve(r, http.MethodPost, "/api/pending/"+strconv.Itoa(occurrence.Id)+"/skip", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, f.expenses.All())
}

func TestHandler_ListOverdue(t *testing.T) {
	// given
	f, r := setupHandlerTest(t)
	f.givenPending(t, 1, daterule.Date(2024, time.March, 8), "10")
	f.givenPending(t, 2, daterule.Date(2024, time.February, 20), "20")
	f.givenPending(t, 3, daterule.Date(2024, time.March, 12), "30")

	// when
	w := serve(r, http.MethodGet, "/api/pending/overdue", nil)

	// then
	require.Equal(t, http.StatusOK, w.Code)
	var items []OverdueDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&items))
	require.Len(t, items, 2)
	assert.Equal(t, 2, items[0].RecurringId)
	assert.Equal(t, 19, items[0].DaysOverdue)
	assert.Equal(t, "urgent", items[0].Priority)
	assert.Equal(t, 2, items[1].DaysOverdue)
	assert.Equal(t, "medium", items[1].Priority)
}
