package alert

import (
	"context"
	"errors"
	"slices"
	"sync"
)

var ErrAlertNotFound = errors.New("alert not found")

// DefaultRetention is the number of alerts kept per user.
const DefaultRetention = 50

// Store keeps the newest alerts of each user, newest first.
type Store interface {
	// Add inserts the alert at the front and evicts the oldest ones beyond retention.
	Add(ctx context.Context, userId int, alert BudgetAlert) error
	List(ctx context.Context, userId int) ([]BudgetAlert, error)
	MarkRead(ctx context.Context, userId int, id string) (bool, error)
	MarkAllRead(ctx context.Context, userId int) (int, error)
	Delete(ctx context.Context, userId int, id string) (bool, error)
	UnreadCount(ctx context.Context, userId int) (int, error)
}

type MemoryStore struct {
	mu        sync.Mutex
	retention int
	alerts    map[int][]BudgetAlert
}

func NewMemoryStore(retention int) *MemoryStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &MemoryStore{retention: retention, alerts: map[int][]BudgetAlert{}}
}

func (m *MemoryStore) Add(ctx context.Context, userId int, alert BudgetAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	alerts := append([]BudgetAlert{alert}, m.alerts[userId]...)
	if len(alerts) > m.retention {
		alerts = alerts[:m.retention]
	}
	m.alerts[userId] = alerts
	return nil
}

func (m *MemoryStore) List(ctx context.Context, userId int) ([]BudgetAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.alerts[userId]), nil
}

func (m *MemoryStore) MarkRead(ctx context.Context, userId int, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.alerts[userId] {
		if m.alerts[userId][i].Id == id {
			m.alerts[userId][i].IsRead = true
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) MarkAllRead(ctx context.Context, userId int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	marked := 0
	for i := range m.alerts[userId] {
		if !m.alerts[userId][i].IsRead {
			m.alerts[userId][i].IsRead = true
			marked++
		}
	}
	return marked, nil
}

func (m *MemoryStore) Delete(ctx context.Context, userId int, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	alerts := m.alerts[userId]
	for i := range alerts {
		if alerts[i].Id == id {
			m.alerts[userId] = slices.Delete(alerts, i, i+1)
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) UnreadCount(ctx context.Context, userId int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, alert := range m.alerts[userId] {
		if !alert.IsRead {
			count++
		}
	}
	return count, nil
}
