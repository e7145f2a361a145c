package pending

import (
	"context"
	"sort"
	"sync"
	"time"
)

type RepositoryStub struct {
	mu          sync.Mutex
	occurrences map[int]PendingOccurrence
	userIds     map[int]int
	nextId      int
	// FailCreateFor makes Create fail for the given recurring ids.
	FailCreateFor map[int]error
	// MissingRecurring makes Create behave as if the recurring definition was deleted.
	MissingRecurring map[int]bool
	CreateCalls      int
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{
		occurrences:      map[int]PendingOccurrence{},
		userIds:          map[int]int{},
		FailCreateFor:    map[int]error{},
		MissingRecurring: map[int]bool{},
	}
}

func (s *RepositoryStub) Create(ctx context.Context, userId int, occurrence PendingOccurrence) (PendingOccurrence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CreateCalls++
	if err := s.FailCreateFor[occurrence.RecurringId]; err != nil {
		return PendingOccurrence{}, err
	}
	if s.MissingRecurring[occurrence.RecurringId] {
		return PendingOccurrence{}, ErrRecurringNotFound
	}
	for _, existing := range s.occurrences {
		if existing.RecurringId == occurrence.RecurringId && existing.ScheduledDate.Equal(occurrence.ScheduledDate) {
			return PendingOccurrence{}, ErrAlreadyExists
		}
	}
	s.nextId++
	occurrence.Id = s.nextId
	s.occurrences[occurrence.Id] = occurrence
	s.userIds[occurrence.Id] = userId
	return occurrence, nil
}

func (s *RepositoryStub) Get(ctx context.Context, userId int, id int) (PendingOccurrence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	occurrence, ok := s.occurrences[id]
	if !ok || s.userIds[id] != userId {
		return PendingOccurrence{}, ErrPendingNotFound
	}
	return occurrence, nil
}

func (s *RepositoryStub) List(ctx context.Context, userId int) ([]PendingOccurrence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []PendingOccurrence
	for id, occurrence := range s.occurrences {
		if s.userIds[id] == userId {
			result = append(result, occurrence)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ScheduledDate.Equal(result[j].ScheduledDate) {
			return result[i].Id < result[j].Id
		}
		return result[i].ScheduledDate.Before(result[j].ScheduledDate)
	})
	return result, nil
}

func (s *RepositoryStub) FindByDate(ctx context.Context, userId int, recurringId int, date time.Time) (PendingOccurrence, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, occurrence := range s.occurrences {
		if s.userIds[id] == userId && occurrence.RecurringId == recurringId && occurrence.ScheduledDate.Equal(date) {
			return occurrence, true, nil
		}
	}
	return PendingOccurrence{}, false, nil
}

func (s *RepositoryStub) UpdateStatus(ctx context.Context, userId int, id int, status Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	occurrence, ok := s.occurrences[id]
	if !ok || s.userIds[id] != userId {
		return false, nil
	}
	occurrence.Status = status
	s.occurrences[id] = occurrence
	return true, nil
}

func (s *RepositoryStub) Delete(ctx context.Context, userId int, id int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.occurrences[id]; !ok || s.userIds[id] != userId {
		return false, nil
	}
	delete(s.occurrences, id)
	delete(s.userIds, id)
	return true, nil
}

func (s *RepositoryStub) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.occurrences = map[int]PendingOccurrence{}
	s.userIds = map[int]int{}
	s.nextId = 0
	s.FailCreateFor = map[int]error{}
	s.MissingRecurring = map[int]bool{}
	s.CreateCalls = 0
}

// NoopTransactor runs the function directly, for use with in-memory stubs.
type NoopTransactor struct{}

func (NoopTransactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
