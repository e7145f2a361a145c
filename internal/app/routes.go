package app

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies) {

	// Recurring definitions
	r.HandleFunc("/api/recurring", deps.RecurringHandler.List).Methods("GET")
	r.HandleFunc("/api/recurring", deps.RecurringHandler.Create).Methods("POST")
	r.HandleFunc("/api/recurring/{id}", deps.RecurringHandler.Get).Methods("GET")
	r.HandleFunc("/api/recurring/{id}", deps.RecurringHandler.Update).Methods("PUT")
	r.HandleFunc("/api/recurring/{id}", deps.RecurringHandler.Delete).Methods("DELETE")
	r.HandleFunc("/api/recurring/{id}/pause", deps.RecurringHandler.Pause).Methods("POST")
	r.HandleFunc("/api/recurring/{id}/resume", deps.RecurringHandler.Resume).Methods("POST")

	// Pending occurrences
	r.HandleFunc("/api/pending", deps.PendingHandler.List).Methods("GET")
	r.HandleFunc("/api/pending/overdue", deps.PendingHandler.ListOverdue).Methods("GET")
	r.HandleFunc("/api/pending/overdue/summary", deps.PendingHandler.Summary).Methods("GET")
	r.HandleFunc("/api/pending/{id}/confirm", deps.PendingHandler.Confirm).Methods("POST")
	r.HandleFunc("/api/pending/{id}/skip", deps.PendingHandler.Skip).Methods("POST")

	// Expenses
	r.HandleFunc("/api/expense", deps.ExpenseHandler.List).Methods("GET")
	r.HandleFunc("/api/expense", deps.ExpenseHandler.Create).Methods("POST")
	r.HandleFunc("/api/expense/{id}", deps.ExpenseHandler.Delete).Methods("DELETE")

	// Budget alerts
	r.HandleFunc("/api/budget/{budgetId}/evaluate", deps.AlertHandler.Evaluate).Methods("POST")
	r.HandleFunc("/api/alert", deps.AlertHandler.List).Methods("GET")
	r.HandleFunc("/api/alert/read", deps.AlertHandler.MarkAllRead).Methods("PUT")
	r.HandleFunc("/api/alert/{id}/read", deps.AlertHandler.MarkRead).Methods("PUT")
	r.HandleFunc("/api/alert/{id}", deps.AlertHandler.Delete).Methods("DELETE")

	// Processing
	r.HandleFunc("/api/processing/trigger", deps.TriggerHandler.Fire).Methods("POST")

	// User management
	r.HandleFunc("/api/user/current", deps.UserHandler.CurrentUser).Methods("GET")
	r.HandleFunc("/api/user", deps.UserHandler.CreateUser).Methods("POST")
}
