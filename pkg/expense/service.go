package expense

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/klokku/pennywise/internal/event_bus"
	"github.com/klokku/pennywise/internal/utils"
	"github.com/klokku/pennywise/pkg/daterule"
	"github.com/klokku/pennywise/pkg/user"
	log "github.com/sirupsen/logrus"
)

var ErrInvalidExpense = errors.New("invalid expense")

type Service interface {
	Add(ctx context.Context, expense Expense) (Expense, error)
	List(ctx context.Context, from time.Time, to time.Time) ([]Expense, error)
	Delete(ctx context.Context, id int) error
	AddFromPending(ctx context.Context, userId int, expense Expense) (Expense, error)
}

type ServiceImpl struct {
	repo     Repository
	eventBus *event_bus.EventBus
	clock    utils.Clock
}

func NewService(repo Repository, eventBus *event_bus.EventBus, clock utils.Clock) *ServiceImpl {
	return &ServiceImpl{repo: repo, eventBus: eventBus, clock: clock}
}

// Add posts a manually entered expense. A missing date defaults to the user's today.
func (s *ServiceImpl) Add(ctx context.Context, expense Expense) (Expense, error) {
	currentUser, err := user.CurrentUser(ctx)
	if err != nil {
		return Expense{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if !expense.Amount.IsPositive() {
		return Expense{}, fmt.Errorf("%w: amount must be greater than zero", ErrInvalidExpense)
	}
	if strings.TrimSpace(expense.Description) == "" {
		return Expense{}, fmt.Errorf("%w: description is required", ErrInvalidExpense)
	}
	if strings.TrimSpace(expense.Category) == "" {
		return Expense{}, fmt.Errorf("%w: category is required", ErrInvalidExpense)
	}
	if expense.Date.IsZero() {
		expense.Date = daterule.DateOf(s.clock.Now(), currentUser.Location())
	} else {
		expense.Date = daterule.Date(expense.Date.Date())
	}

	stored, err := s.repo.Add(ctx, currentUser.Id, expense)
	if err != nil {
		return Expense{}, err
	}
	s.publishChange(ctx, currentUser.Id, stored, event_bus.ExpenseAdded)
	return stored, nil
}

// AddFromPending stores an expense produced by confirming a pending occurrence. It runs in the
// caller's transaction, so the caller announces the change once it has committed.
func (s *ServiceImpl) AddFromPending(ctx context.Context, userId int, expense Expense) (Expense, error) {
	if !expense.Amount.IsPositive() {
		return Expense{}, fmt.Errorf("%w: amount must be greater than zero", ErrInvalidExpense)
	}
	if strings.TrimSpace(expense.Description) == "" {
		return Expense{}, fmt.Errorf("%w: description is required", ErrInvalidExpense)
	}
	expense.Date = daterule.Date(expense.Date.Date())
	return s.repo.Add(ctx, userId, expense)
}

func (s *ServiceImpl) List(ctx context.Context, from time.Time, to time.Time) ([]Expense, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: range end %s is before start %s", ErrInvalidExpense, daterule.FormatDate(to), daterule.FormatDate(from))
	}
	return s.repo.List(ctx, userId, from, to)
}

func (s *ServiceImpl) Delete(ctx context.Context, id int) error {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	existing, err := s.repo.Get(ctx, userId, id)
	if err != nil {
		return err
	}
	deleted, err := s.repo.Delete(ctx, userId, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrExpenseNotFound
	}
	s.publishChange(ctx, userId, existing, event_bus.ExpenseDeleted)
	return nil
}

// publishChange notifies subscribers; a failing subscriber does not undo the committed change.
func (s *ServiceImpl) publishChange(ctx context.Context, userId int, expense Expense, change event_bus.ExpenseChange) {
	if s.eventBus == nil {
		return
	}
	err := s.eventBus.Publish(event_bus.NewEvent(ctx, event_bus.ExpenseChangedType, event_bus.ExpenseChanged{
		UserId:    userId,
		ExpenseId: expense.Id,
		Change:    change,
		Amount:    expense.Amount,
		Date:      expense.Date,
	}))
	if err != nil {
		log.Errorf("failed to publish expense change event: %v", err)
	}
}
