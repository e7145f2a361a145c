package expense

import (
	"context"
	"sort"
	"sync"
	"time"
)

type RepositoryStub struct {
	mu       sync.Mutex
	expenses map[int]Expense
	userIds  map[int]int
	nextId   int
	// FailAdd makes Add return the given error, to simulate storage failures.
	FailAdd error
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{
		expenses: map[int]Expense{},
		userIds:  map[int]int{},
	}
}

func (s *RepositoryStub) Add(ctx context.Context, userId int, expense Expense) (Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAdd != nil {
		return Expense{}, s.FailAdd
	}
	s.nextId++
	expense.Id = s.nextId
	s.expenses[expense.Id] = expense
	s.userIds[expense.Id] = userId
	return expense, nil
}

func (s *RepositoryStub) Get(ctx context.Context, userId int, id int) (Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expense, ok := s.expenses[id]
	if !ok || s.userIds[id] != userId {
		return Expense{}, ErrExpenseNotFound
	}
	return expense, nil
}

func (s *RepositoryStub) List(ctx context.Context, userId int, from time.Time, to time.Time) ([]Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []Expense
	for id, expense := range s.expenses {
		if s.userIds[id] != userId || expense.Date.Before(from) || expense.Date.After(to) {
			continue
		}
		result = append(result, expense)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date.Equal(result[j].Date) {
			return result[i].Id > result[j].Id
		}
		return result[i].Date.After(result[j].Date)
	})
	return result, nil
}

func (s *RepositoryStub) Delete(ctx context.Context, userId int, id int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expenses[id]; !ok || s.userIds[id] != userId {
		return false, nil
	}
	delete(s.expenses, id)
	delete(s.userIds, id)
	return true, nil
}

// All returns every stored expense regardless of owner.
func (s *RepositoryStub) All() []Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]Expense, 0, len(s.expenses))
	for _, expense := range s.expenses {
		result = append(result, expense)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Id < result[j].Id })
	return result
}

func (s *RepositoryStub) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses = map[int]Expense{}
	s.userIds = map[int]int{}
	s.nextId = 0
	s.FailAdd = nil
}
