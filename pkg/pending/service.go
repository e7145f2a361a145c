package pending

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/klokku/pennywise/internal/database"
	"github.com/klokku/pennywise/internal/event_bus"
	"github.com/klokku/pennywise/pkg/daterule"
	"github.com/klokku/pennywise/pkg/expense"
	"github.com/klokku/pennywise/pkg/user"
	log "github.com/sirupsen/logrus"
)

var ErrInvalidTransition = errors.New("invalid pending expense transition")
var ErrInvalidOverride = errors.New("invalid confirmation override")

// ExpenseWriter posts the expense produced by a confirmation.
type ExpenseWriter interface {
	AddFromPending(ctx context.Context, userId int, expense expense.Expense) (expense.Expense, error)
}

type Service interface {
	List(ctx context.Context) ([]PendingOccurrence, error)
	Confirm(ctx context.Context, id int, override ConfirmOverride) (expense.Expense, error)
	Skip(ctx context.Context, id int) error
	MarkOverdue(ctx context.Context, now time.Time) (int, error)
	ListOverdue(ctx context.Context, now time.Time) ([]OverdueItem, error)
	Summary(ctx context.Context, now time.Time) (OverdueSummary, error)
}

type ServiceImpl struct {
	repo       Repository
	expenses   ExpenseWriter
	transactor database.Transactor
	tracker    *OverdueTracker
	eventBus   *event_bus.EventBus
}

func NewService(
	repo Repository,
	expenses ExpenseWriter,
	transactor database.Transactor,
	tracker *OverdueTracker,
	eventBus *event_bus.EventBus,
) *ServiceImpl {
	return &ServiceImpl{
		repo:       repo,
		expenses:   expenses,
		transactor: transactor,
		tracker:    tracker,
		eventBus:   eventBus,
	}
}

func (s *ServiceImpl) List(ctx context.Context) ([]PendingOccurrence, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.List(ctx, userId)
}

// Confirm posts the occurrence as an expense dated on its scheduled date and removes the
// pending record. Both happen in one transaction: either the expense exists and the record
// is gone, or nothing changed.
func (s *ServiceImpl) Confirm(ctx context.Context, id int, override ConfirmOverride) (expense.Expense, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return expense.Expense{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if override.Amount != nil && !override.Amount.IsPositive() {
		return expense.Expense{}, fmt.Errorf("%w: amount must be greater than zero", ErrInvalidOverride)
	}
	if override.Description != nil && strings.TrimSpace(*override.Description) == "" {
		return expense.Expense{}, fmt.Errorf("%w: description must not be empty", ErrInvalidOverride)
	}

	var (
		occurrence PendingOccurrence
		posted     expense.Expense
	)
	err = s.transactor.WithTransaction(ctx, func(ctx context.Context) error {
		occurrence, err = s.repo.Get(ctx, userId, id)
		if err != nil {
			return err
		}
		if !occurrence.Status.CanTransition(StatusConfirmed) {
			return fmt.Errorf("%w: cannot confirm %s expense", ErrInvalidTransition, occurrence.Status)
		}

		recurringId := occurrence.RecurringId
		toPost := expense.Expense{
			Amount:      occurrence.Amount,
			Description: occurrence.Description,
			Category:    occurrence.Category,
			Date:        occurrence.ScheduledDate,
			RecurringId: &recurringId,
		}
		if override.Amount != nil {
			toPost.Amount = *override.Amount
		}
		if override.Description != nil {
			toPost.Description = strings.TrimSpace(*override.Description)
		}

		posted, err = s.expenses.AddFromPending(ctx, userId, toPost)
		if err != nil {
			return fmt.Errorf("could not post expense: %w", err)
		}
		deleted, err := s.repo.Delete(ctx, userId, id)
		if err != nil {
			return err
		}
		if !deleted {
			// resolved concurrently
			return ErrPendingNotFound
		}
		return nil
	})
	if err != nil {
		return expense.Expense{}, err
	}

	log.Debugf("Pending expense %d confirmed as expense %d", id, posted.Id)
	s.publish(ctx, event_bus.ExpenseChangedType, event_bus.ExpenseChanged{
		UserId:    userId,
		ExpenseId: posted.Id,
		Change:    event_bus.ExpenseAdded,
		Amount:    posted.Amount,
		Date:      posted.Date,
	})
	s.publish(ctx, event_bus.PendingResolvedType, event_bus.PendingResolved{
		UserId:        userId,
		PendingId:     id,
		RecurringId:   occurrence.RecurringId,
		ScheduledDate: occurrence.ScheduledDate,
		Confirmed:     true,
		ExpenseId:     posted.Id,
	})
	return posted, nil
}

// Skip drops the occurrence without posting anything.
func (s *ServiceImpl) Skip(ctx context.Context, id int) error {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	occurrence, err := s.repo.Get(ctx, userId, id)
	if err != nil {
		return err
	}
	if !occurrence.Status.CanTransition(StatusSkipped) {
		return fmt.Errorf("%w: cannot skip %s expense", ErrInvalidTransition, occurrence.Status)
	}
	deleted, err := s.repo.Delete(ctx, userId, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrPendingNotFound
	}

	log.Debugf("Pending expense %d skipped", id)
	s.publish(ctx, event_bus.PendingResolvedType, event_bus.PendingResolved{
		UserId:        userId,
		PendingId:     id,
		RecurringId:   occurrence.RecurringId,
		ScheduledDate: occurrence.ScheduledDate,
	})
	return nil
}

// MarkOverdue flags every pending occurrence scheduled before the user's today. Running it
// again changes nothing. It returns the number of records flagged by this call.
func (s *ServiceImpl) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	currentUser, err := user.CurrentUser(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get current user: %w", err)
	}
	today := daterule.DateOf(now, currentUser.Location())

	occurrences, err := s.repo.List(ctx, currentUser.Id)
	if err != nil {
		return 0, err
	}
	marked := 0
	var errs []error
	for _, occurrence := range occurrences {
		if occurrence.Status != StatusPending || !IsOverdue(occurrence, today) {
			continue
		}
		updated, err := s.repo.UpdateStatus(ctx, currentUser.Id, occurrence.Id, StatusOverdue)
		if err != nil {
			errs = append(errs, fmt.Errorf("pending expense %d: %w", occurrence.Id, err))
			continue
		}
		if updated {
			marked++
		}
	}
	if marked > 0 {
		log.Infof("Marked %d pending expense(s) as overdue for user %d", marked, currentUser.Id)
	}
	return marked, errors.Join(errs...)
}

func (s *ServiceImpl) ListOverdue(ctx context.Context, now time.Time) ([]OverdueItem, error) {
	currentUser, err := user.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	occurrences, err := s.repo.List(ctx, currentUser.Id)
	if err != nil {
		return nil, err
	}
	return s.tracker.Overdue(occurrences, daterule.DateOf(now, currentUser.Location())), nil
}

func (s *ServiceImpl) Summary(ctx context.Context, now time.Time) (OverdueSummary, error) {
	items, err := s.ListOverdue(ctx, now)
	if err != nil {
		return OverdueSummary{}, err
	}
	return Summarize(items), nil
}

func (s *ServiceImpl) publish(ctx context.Context, eventType event_bus.EventType, data any) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.Publish(event_bus.NewEvent(ctx, eventType, data)); err != nil {
		log.Errorf("failed to publish %s event: %v", eventType, err)
	}
}
