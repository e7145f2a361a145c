package recurring

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"
)

type RepositoryStub struct {
	mu          sync.Mutex
	definitions map[int]Definition
	userIds     map[int]int
	nextId      int
	// FailScheduleFor makes UpdateSchedule fail for the given definition ids.
	FailScheduleFor map[int]error
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{
		definitions:     map[int]Definition{},
		userIds:         map[int]int{},
		FailScheduleFor: map[int]error{},
	}
}

func (s *RepositoryStub) Create(ctx context.Context, userId int, definition Definition) (Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextId++
	definition.Id = s.nextId
	definition.ExecutionDates = slices.Clone(definition.ExecutionDates)
	s.definitions[definition.Id] = definition
	s.userIds[definition.Id] = userId
	return definition, nil
}

func (s *RepositoryStub) Get(ctx context.Context, userId int, id int) (Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	definition, ok := s.definitions[id]
	if !ok || s.userIds[id] != userId {
		return Definition{}, ErrDefinitionNotFound
	}
	return definition, nil
}

func (s *RepositoryStub) List(ctx context.Context, userId int) ([]Definition, error) {
	return s.filter(userId, func(Definition) bool { return true }), nil
}

func (s *RepositoryStub) ListActive(ctx context.Context, userId int) ([]Definition, error) {
	return s.filter(userId, func(d Definition) bool { return d.IsActive }), nil
}

func (s *RepositoryStub) filter(userId int, keep func(Definition) bool) []Definition {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []Definition
	for id, definition := range s.definitions {
		if s.userIds[id] == userId && keep(definition) {
			result = append(result, definition)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Id < result[j].Id })
	return result
}

func (s *RepositoryStub) Update(ctx context.Context, userId int, definition Definition) (Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.definitions[definition.Id]; !ok || s.userIds[definition.Id] != userId {
		return Definition{}, ErrDefinitionNotFound
	}
	s.definitions[definition.Id] = definition
	return definition, nil
}

func (s *RepositoryStub) UpdateSchedule(ctx context.Context, userId int, id int, nextDueDate time.Time, lastExecuted time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.FailScheduleFor[id]; err != nil {
		return false, err
	}
	definition, ok := s.definitions[id]
	if !ok || s.userIds[id] != userId {
		return false, nil
	}
	definition.NextDueDate = nextDueDate
	definition.LastExecuted = &lastExecuted
	s.definitions[id] = definition
	return true, nil
}

func (s *RepositoryStub) SetActive(ctx context.Context, userId int, id int, active bool, nextDueDate time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	definition, ok := s.definitions[id]
	if !ok || s.userIds[id] != userId {
		return false, nil
	}
	definition.IsActive = active
	definition.NextDueDate = nextDueDate
	s.definitions[id] = definition
	return true, nil
}

func (s *RepositoryStub) Delete(ctx context.Context, userId int, id int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.definitions[id]; !ok || s.userIds[id] != userId {
		return false, nil
	}
	delete(s.definitions, id)
	delete(s.userIds, id)
	return true, nil
}
