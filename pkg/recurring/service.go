package recurring

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/klokku/pennywise/internal/utils"
	"github.com/klokku/pennywise/pkg/daterule"
	"github.com/klokku/pennywise/pkg/user"
	log "github.com/sirupsen/logrus"
)

// ErrResumeChoiceRequired is returned when a stale definition is resumed without saying whether
// its next due date should be kept or recomputed.
var ErrResumeChoiceRequired = errors.New("recurring expense is stale, choose to keep or recompute the next due date")

type Service interface {
	Create(ctx context.Context, definition Definition) (Definition, error)
	Get(ctx context.Context, id int) (Definition, error)
	List(ctx context.Context) ([]Definition, error)
	Update(ctx context.Context, definition Definition) (Definition, error)
	Delete(ctx context.Context, id int) error
	Pause(ctx context.Context, id int) (Definition, error)
	Resume(ctx context.Context, id int, mode ResumeMode) (Definition, error)
	IsStale(ctx context.Context, definition Definition) (bool, error)
}

type ServiceImpl struct {
	repo  Repository
	clock utils.Clock
}

func NewService(repo Repository, clock utils.Clock) *ServiceImpl {
	return &ServiceImpl{repo: repo, clock: clock}
}

func (s *ServiceImpl) Create(ctx context.Context, definition Definition) (Definition, error) {
	currentUser, err := user.CurrentUser(ctx)
	if err != nil {
		return Definition{}, fmt.Errorf("failed to get current user: %w", err)
	}
	definition = normalize(definition)
	if err := Validate(definition); err != nil {
		return Definition{}, err
	}

	today := daterule.DateOf(s.clock.Now(), currentUser.Location())
	definition.NextDueDate = daterule.InitialDueDate(definition.Rule(), today)
	definition.IsActive = true
	definition.LastExecuted = nil

	created, err := s.repo.Create(ctx, currentUser.Id, definition)
	if err != nil {
		return Definition{}, err
	}
	log.Infof("Recurring expense %d created, first due on %s", created.Id, daterule.FormatDate(created.NextDueDate))
	return created, nil
}

func (s *ServiceImpl) Get(ctx context.Context, id int) (Definition, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Definition{}, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.Get(ctx, userId, id)
}

func (s *ServiceImpl) List(ctx context.Context) ([]Definition, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.List(ctx, userId)
}

// Update replaces the editable fields. Changing the rule or the start date recomputes the next
// due date from today; other edits leave the schedule untouched.
func (s *ServiceImpl) Update(ctx context.Context, definition Definition) (Definition, error) {
	currentUser, err := user.CurrentUser(ctx)
	if err != nil {
		return Definition{}, fmt.Errorf("failed to get current user: %w", err)
	}
	definition = normalize(definition)
	if err := Validate(definition); err != nil {
		return Definition{}, err
	}
	existing, err := s.repo.Get(ctx, currentUser.Id, definition.Id)
	if err != nil {
		return Definition{}, err
	}

	definition.IsActive = existing.IsActive
	definition.LastExecuted = existing.LastExecuted
	definition.NextDueDate = existing.NextDueDate
	if !existing.sameRule(definition) {
		today := daterule.DateOf(s.clock.Now(), currentUser.Location())
		definition.NextDueDate = daterule.InitialDueDate(definition.Rule(), today)
		log.Debugf("Rule of recurring expense %d changed, next due date moved to %s",
			definition.Id, daterule.FormatDate(definition.NextDueDate))
	}
	return s.repo.Update(ctx, currentUser.Id, definition)
}

func (s *ServiceImpl) Delete(ctx context.Context, id int) error {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	deleted, err := s.repo.Delete(ctx, userId, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrDefinitionNotFound
	}
	return nil
}

// Pause deactivates the definition. Paused definitions are ignored by processing passes.
func (s *ServiceImpl) Pause(ctx context.Context, id int) (Definition, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Definition{}, fmt.Errorf("failed to get current user: %w", err)
	}
	definition, err := s.repo.Get(ctx, userId, id)
	if err != nil {
		return Definition{}, err
	}
	if !definition.IsActive {
		return definition, nil
	}
	if err := s.setActive(ctx, userId, &definition, false); err != nil {
		return Definition{}, err
	}
	return definition, nil
}

// Resume reactivates a paused definition. When its next due date is stale the caller has to
// pick a mode: ResumeKeepStale leaves the date so the next pass materializes the backlog,
// ResumeRecompute moves it to the first occurrence on or after today.
func (s *ServiceImpl) Resume(ctx context.Context, id int, mode ResumeMode) (Definition, error) {
	currentUser, err := user.CurrentUser(ctx)
	if err != nil {
		return Definition{}, fmt.Errorf("failed to get current user: %w", err)
	}
	definition, err := s.repo.Get(ctx, currentUser.Id, id)
	if err != nil {
		return Definition{}, err
	}
	if definition.IsActive {
		return definition, nil
	}

	today := daterule.DateOf(s.clock.Now(), currentUser.Location())
	switch {
	case mode == ResumeRecompute:
		definition.NextDueDate = daterule.InitialDueDate(definition.Rule(), today)
	case definition.IsStale(today) && mode != ResumeKeepStale:
		return Definition{}, ErrResumeChoiceRequired
	}
	if err := s.setActive(ctx, currentUser.Id, &definition, true); err != nil {
		return Definition{}, err
	}
	log.Infof("Recurring expense %d resumed, next due on %s", id, daterule.FormatDate(definition.NextDueDate))
	return definition, nil
}

func (s *ServiceImpl) IsStale(ctx context.Context, definition Definition) (bool, error) {
	currentUser, err := user.CurrentUser(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get current user: %w", err)
	}
	return definition.IsStale(daterule.DateOf(s.clock.Now(), currentUser.Location())), nil
}

func (s *ServiceImpl) setActive(ctx context.Context, userId int, definition *Definition, active bool) error {
	updated, err := s.repo.SetActive(ctx, userId, definition.Id, active, definition.NextDueDate)
	if err != nil {
		return err
	}
	if !updated {
		return ErrDefinitionNotFound
	}
	definition.IsActive = active
	return nil
}

func normalize(definition Definition) Definition {
	definition.Description = strings.TrimSpace(definition.Description)
	definition.Category = strings.TrimSpace(definition.Category)
	if !definition.StartDate.IsZero() {
		definition.StartDate = daterule.Date(definition.StartDate.Date())
	}
	if len(definition.ExecutionDates) > 0 {
		definition.ExecutionDates = slices.Clone(definition.ExecutionDates)
		slices.Sort(definition.ExecutionDates)
	}
	return definition
}
