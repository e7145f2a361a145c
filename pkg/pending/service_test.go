package pending

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/klokku/pennywise/internal/event_bus"
	"github.com/klokku/pennywise/internal/utils"
	"github.com/klokku/pennywise/pkg/daterule"
	"github.com/klokku/pennywise/pkg/expense"
	"github.com/klokku/pennywise/pkg/user"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = user.WithUser(context.Background(), user.User{
	Id:       7,
	Username: "test-user",
	Settings: user.Settings{Timezone: "UTC"},
})

type fixture struct {
	service  *ServiceImpl
	repo     *RepositoryStub
	expenses *expense.RepositoryStub
	changes  []event_bus.ExpenseChanged
	resolved []event_bus.PendingResolved
}

func setup(t *testing.T) *fixture {
	f := &fixture{
		repo:     NewRepositoryStub(),
		expenses: expense.NewRepositoryStub(),
	}
	bus := event_bus.NewEventBus()
	event_bus.SubscribeTyped[event_bus.ExpenseChanged](bus, event_bus.ExpenseChangedType, func(e event_bus.EventT[event_bus.ExpenseChanged]) error {
		f.changes = append(f.changes, e.Data)
		return nil
	})
	event_bus.SubscribeTyped[event_bus.PendingResolved](bus, event_bus.PendingResolvedType, func(e event_bus.EventT[event_bus.PendingResolved]) error {
		f.resolved = append(f.resolved, e.Data)
		return nil
	})
	clock := utils.NewMockClock(time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC))
	expenseService := expense.NewService(f.expenses, bus, clock)
	f.service = NewService(f.repo, expenseService, NoopTransactor{}, NewOverdueTracker(DefaultHighAmount), bus)
	return f
}

func (f *fixture) givenPending(t *testing.T, recurringId int, date time.Time, amount string) PendingOccurrence {
	created, err := f.repo.Create(ctx, 7, PendingOccurrence{
		RecurringId:   recurringId,
		ScheduledDate: date,
		Amount:        decimal.RequireFromString(amount),
		Description:   "Rent",
		Category:      "housing",
		Status:        StatusPending,
	})
	require.NoError(t, err)
	return created
}

func TestServiceImpl_Confirm(t *testing.T) {
	t.Run("should post expense on scheduled date and remove pending record", func(t *testing.T) {
		// given
		f := setup(t)
		occurrence := f.givenPending(t, 4, daterule.Date(2024, time.March, 1), "1200.00")

		// when
		posted, err := f.service.Confirm(ctx, occurrence.Id, ConfirmOverride{})

		// then
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("1200").Equal(posted.Amount))
		assert.Equal(t, "Rent", posted.Description)
		assert.Equal(t, daterule.Date(2024, time.March, 1), posted.Date)
		require.NotNil(t, posted.RecurringId)
		assert.Equal(t, 4, *posted.RecurringId)
		assert.Len(t, f.expenses.All(), 1)

		_, err = f.repo.Get(ctx, 7, occurrence.Id)
		assert.ErrorIs(t, err, ErrPendingNotFound)

		require.Len(t, f.changes, 1)
		assert.Equal(t, posted.Id, f.changes[0].ExpenseId)
		require.Len(t, f.resolved, 1)
		assert.True(t, f.resolved[0].Confirmed)
		assert.Equal(t, 4, f.resolved[0].RecurringId)
	})

	t.Run("should apply amount and description override", func(t *testing.T) {
		f := setup(t)
		occurrence := f.givenPending(t, 4, daterule.Date(2024, time.March, 1), "1200.00")
		amount := decimal.RequireFromString("1150.25")
		description := "Rent (discounted)"

		posted, err := f.service.Confirm(ctx, occurrence.Id, ConfirmOverride{Amount: &amount, Description: &description})

		require.NoError(t, err)
		assert.True(t, amount.Equal(posted.Amount))
		assert.Equal(t, description, posted.Description)
		assert.Equal(t, "housing", posted.Category)
	})

	t.Run("should confirm an overdue occurrence", func(t *testing.T) {
		f := setup(t)
		occurrence := f.givenPending(t, 4, daterule.Date(2024, time.February, 1), "10")
		_, err := f.repo.UpdateStatus(ctx, 7, occurrence.Id, StatusOverdue)
		require.NoError(t, err)

		_, err = f.service.Confirm(ctx, occurrence.Id, ConfirmOverride{})

		assert.NoError(t, err)
	})

	t.Run("should reject non positive override", func(t *testing.T) {
		f := setup(t)
		occurrence := f.givenPending(t, 4, daterule.Date(2024, time.March, 1), "10")
		amount := decimal.Zero

		_, err := f.service.Confirm(ctx, occurrence.Id, ConfirmOverride{Amount: &amount})

		assert.ErrorIs(t, err, ErrInvalidOverride)
		assert.Empty(t, f.expenses.All())
		_, err = f.repo.Get(ctx, 7, occurrence.Id)
		assert.NoError(t, err)
	})

	t.Run("should keep pending record when posting fails", func(t *testing.T) {
		f := setup(t)
		occurrence := f.givenPending(t, 4, daterule.Date(2024, time.March, 1), "10")
		f.expenses.FailAdd = errors.New("disk full")

		_, err := f.service.Confirm(ctx, occurrence.Id, ConfirmOverride{})

		assert.Error(t, err)
		_, err = f.repo.Get(ctx, 7, occurrence.Id)
		assert.NoError(t, err)
		assert.Empty(t, f.changes)
		assert.Empty(t, f.resolved)
	})

	t.Run("should return not found for unknown or already resolved record", func(t *testing.T) {
		f := setup(t)
		occurrence := f.givenPending(t, 4, daterule.Date(2024, time.March, 1), "10")
		require.NoError(t, f.service.Skip(ctx, occurrence.Id))

		_, err := f.service.Confirm(ctx, occurrence.Id, ConfirmOverride{})
		assert.ErrorIs(t, err, ErrPendingNotFound)

		_, err = f.service.Confirm(ctx, 999, ConfirmOverride{})
		assert.ErrorIs(t, err, ErrPendingNotFound)
	})

	t.Run("should not let another user confirm", func(t *testing.T) {
		f := setup(t)
		occurrence := f.givenPending(t, 4, daterule.Date(2024, time.March, 1), "10")
		other := user.WithUser(context.Background(), user.User{Id: 8})

		_, err := f.service.Confirm(other, occurrence.Id, ConfirmOverride{})

		assert.ErrorIs(t, err, ErrPendingNotFound)
	})
}

func TestServiceImpl_Skip(t *testing.T) {
	t.Run("should delete record without posting expense", func(t *testing.T) {
		f := setup(t)
		occurrence := f.givenPending(t, 4, daterule.Date(2024, time.March, 1), "10")

		err := f.service.Skip(ctx, occurrence.Id)

		require.NoError(t, err)
		assert.Empty(t, f.expenses.All())
		list, err := f.service.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
		require.Len(t, f.resolved, 1)
		assert.False(t, f.resolved[0].Confirmed)
		assert.Empty(t, f.changes)
	})

	t.Run("should return not found for unknown record", func(t *testing.T) {
		f := setup(t)

		assert.ErrorIs(t, f.service.Skip(ctx, 42), ErrPendingNotFound)
	})
}

func TestServiceImpl_MarkOverdue(t *testing.T) {
	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

	t.Run("should flag only occurrences scheduled before today", func(t *testing.T) {
		f := setup(t)
		past := f.givenPending(t, 1, daterule.Date(2024, time.March, 9), "10")
		today := f.givenPending(t, 2, daterule.Date(2024, time.March, 10), "10")
		future := f.givenPending(t, 3, daterule.Date(2024, time.March, 11), "10")

		marked, err := f.service.MarkOverdue(ctx, now)

		require.NoError(t, err)
		assert.Equal(t, 1, marked)
		assertStatus(t, f, past.Id, StatusOverdue)
		assertStatus(t, f, today.Id, StatusPending)
		assertStatus(t, f, future.Id, StatusPending)
	})

	t.Run("should be idempotent", func(t *testing.T) {
		f := setup(t)
		f.givenPending(t, 1, daterule.Date(2024, time.March, 1), "10")

		first, err := f.service.MarkOverdue(ctx, now)
		require.NoError(t, err)
		second, err := f.service.MarkOverdue(ctx, now)
		require.NoError(t, err)

		assert.Equal(t, 1, first)
		assert.Equal(t, 0, second)
	})

	t.Run("should evaluate today in the user's timezone", func(t *testing.T) {
		f := setup(t)
		occurrence := f.givenPending(t, 1, daterule.Date(2024, time.March, 10), "10")
		tokyo := user.WithUser(context.Background(), user.User{Id: 7, Settings: user.Settings{Timezone: "Asia/Tokyo"}})

		// 16:00 UTC is already March 11 in Tokyo
		marked, err := f.service.MarkOverdue(tokyo, time.Date(2024, time.March, 10, 16, 0, 0, 0, time.UTC))

		require.NoError(t, err)
		assert.Equal(t, 1, marked)
		assertStatus(t, f, occurrence.Id, StatusOverdue)
	})
}

func TestServiceImpl_ListOverdue(t *testing.T) {
	f := setup(t)
	f.givenPending(t, 1, daterule.Date(2024, time.March, 8), "10")
	f.givenPending(t, 2, daterule.Date(2024, time.February, 28), "10")
	f.givenPending(t, 3, daterule.Date(2024, time.March, 12), "10")
	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

	items, err := f.service.ListOverdue(ctx, now)

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 2, items[0].Occurrence.RecurringId)
	assert.Equal(t, 11, items[0].DaysOverdue)
	assert.Equal(t, PriorityUrgent, items[0].Priority)
	assert.Equal(t, 1, items[1].Occurrence.RecurringId)
	assert.Equal(t, PriorityMedium, items[1].Priority)

	summary, err := f.service.Summary(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Count)
	assert.True(t, decimal.NewFromInt(20).Equal(summary.TotalAmount))
}

func assertStatus(t *testing.T, f *fixture, id int, expected Status) {
	t.Helper()
	occurrence, err := f.repo.Get(ctx, 7, id)
	require.NoError(t, err)
	assert.Equal(t, expected, occurrence.Status)
}
