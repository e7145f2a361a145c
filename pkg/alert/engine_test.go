package alert

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/klokku/pennywise/internal/event_bus"
	"github.com/klokku/pennywise/internal/utils"
	"github.com/klokku/pennywise/pkg/user"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = user.WithUser(context.Background(), user.User{
	Id:       11,
	Username: "test-user",
	Settings: user.Settings{Timezone: "UTC"},
})

type failingSink struct{ calls int }

func (f *failingSink) Deliver(ctx context.Context, userId int, alert BudgetAlert) error {
	f.calls++
	return errors.New("push service down")
}

func setupEngine(sink Sink) (*Engine, *MemoryStore, *utils.MockClock) {
	store := NewMemoryStore(DefaultRetention)
	clock := utils.NewMockClock(time.Date(2024, time.May, 10, 8, 0, 0, 0, time.UTC))
	return NewEngine(store, sink, clock), store, clock
}

func spentStatus(budgetId string, spent string) BudgetStatus {
	return BudgetStatus{
		BudgetId:      budgetId,
		BudgetName:    "Groceries",
		BudgetAmount:  decimal.NewFromInt(1000),
		Spent:         decimal.RequireFromString(spent),
		DaysRemaining: 5,
	}
}

func types(alerts []BudgetAlert) []Type {
	result := make([]Type, 0, len(alerts))
	for _, alert := range alerts {
		result = append(result, alert.Type)
	}
	return result
}

func TestEngine_Evaluate(t *testing.T) {
	t.Run("should suppress warning_90 within its 12h cooldown", func(t *testing.T) {
		// given
		engine, store, clock := setupEngine(nil)
		status := spentStatus("groceries", "920")

		// when
		first, err := engine.Evaluate(ctx, status)
		require.NoError(t, err)
		clock.Advance(time.Hour)
		second, err := engine.Evaluate(ctx, status)
		require.NoError(t, err)
		clock.Advance(12 * time.Hour)
		third, err := engine.Evaluate(ctx, status)
		require.NoError(t, err)

		// then
		require.Len(t, first, 1)
		assert.Equal(t, TypeWarning90, first[0].Type)
		assert.Equal(t, PriorityHigh, first[0].Priority)
		assert.Equal(t, "groceries", first[0].BudgetId)
		assert.Empty(t, second)
		require.Len(t, third, 1)
		assert.Equal(t, TypeWarning90, third[0].Type)

		stored, err := store.List(ctx, 11)
		require.NoError(t, err)
		assert.Len(t, stored, 2)
		assert.Equal(t, third[0].Id, stored[0].Id)
	})

	t.Run("should pick the band matching the spent ratio", func(t *testing.T) {
		cases := map[string]Type{
			"750":    TypeWarning75,
			"899.99": TypeWarning75,
			"900":    TypeWarning90,
			"1000":   TypeExceeded100,
			"1500":   TypeExceeded100,
		}
		for spent, expected := range cases {
			engine, _, _ := setupEngine(nil)

			alerts, err := engine.Evaluate(ctx, spentStatus("b", spent))

			require.NoError(t, err)
			assert.Equal(t, []Type{expected}, types(alerts), "spent %s", spent)
		}
	})

	t.Run("should not alert below 75 percent or for budgets without amount", func(t *testing.T) {
		engine, _, _ := setupEngine(nil)

		alerts, err := engine.Evaluate(ctx, spentStatus("b", "749.99"))
		require.NoError(t, err)
		assert.Empty(t, alerts)

		status := spentStatus("c", "10")
		status.BudgetAmount = decimal.Zero
		alerts, err = engine.Evaluate(ctx, status)
		require.NoError(t, err)
		assert.Empty(t, alerts)
	})

	t.Run("should keep separate cooldowns per budget", func(t *testing.T) {
		engine, _, _ := setupEngine(nil)

		first, err := engine.Evaluate(ctx, spentStatus("groceries", "800"))
		require.NoError(t, err)
		second, err := engine.Evaluate(ctx, spentStatus("fuel", "800"))
		require.NoError(t, err)

		assert.Len(t, first, 1)
		assert.Len(t, second, 1)
	})

	t.Run("should keep separate cooldowns per user", func(t *testing.T) {
		engine, _, _ := setupEngine(nil)
		other := user.WithUser(context.Background(), user.User{Id: 12})

		first, err := engine.Evaluate(ctx, spentStatus("groceries", "800"))
		require.NoError(t, err)
		second, err := engine.Evaluate(other, spentStatus("groceries", "800"))
		require.NoError(t, err)

		assert.Len(t, first, 1)
		assert.Len(t, second, 1)
	})

	t.Run("should fire daily limit once per calendar day", func(t *testing.T) {
		engine, _, clock := setupEngine(nil)
		status := BudgetStatus{
			BudgetId:              "groceries",
			BudgetAmount:          decimal.NewFromInt(3000),
			Spent:                 decimal.NewFromInt(100),
			DaysRemaining:         3,
			AverageDailySpend:     decimal.NewFromInt(160),
			RecommendedDailyLimit: decimal.NewFromInt(100),
		}

		first, err := engine.Evaluate(ctx, status)
		require.NoError(t, err)
		clock.Advance(10 * time.Hour)
		sameDay, err := engine.Evaluate(ctx, status)
		require.NoError(t, err)
		clock.Advance(24 * time.Hour)
		nextDay, err := engine.Evaluate(ctx, status)
		require.NoError(t, err)

		assert.Equal(t, []Type{TypeDailyLimit}, types(first))
		assert.Equal(t, PriorityNormal, first[0].Priority)
		assert.Empty(t, sameDay)
		assert.Equal(t, []Type{TypeDailyLimit}, types(nextDay))
	})

	t.Run("should not fire daily limit at exactly 1.5 times or without remaining days", func(t *testing.T) {
		engine, _, _ := setupEngine(nil)
		status := BudgetStatus{
			BudgetId:              "groceries",
			BudgetAmount:          decimal.NewFromInt(3000),
			DaysRemaining:         3,
			AverageDailySpend:     decimal.NewFromInt(150),
			RecommendedDailyLimit: decimal.NewFromInt(100),
		}

		alerts, err := engine.Evaluate(ctx, status)
		require.NoError(t, err)
		assert.Empty(t, alerts)

		status.AverageDailySpend = decimal.NewFromInt(500)
		status.DaysRemaining = 0
		alerts, err = engine.Evaluate(ctx, status)
		require.NoError(t, err)
		assert.Empty(t, alerts)
	})

	t.Run("should predict overspending only with more than a week left", func(t *testing.T) {
		engine, _, clock := setupEngine(nil)
		status := BudgetStatus{
			BudgetId:       "rent",
			BudgetAmount:   decimal.NewFromInt(1000),
			Spent:          decimal.NewFromInt(300),
			DaysRemaining:  8,
			ProjectedTotal: decimal.RequireFromString("1100.01"),
		}

		first, err := engine.Evaluate(ctx, status)
		require.NoError(t, err)
		clock.Advance(6 * 24 * time.Hour)
		withinWeek, err := engine.Evaluate(ctx, status)
		require.NoError(t, err)
		clock.Advance(24 * time.Hour)
		afterWeek, err := engine.Evaluate(ctx, status)
		require.NoError(t, err)

		assert.Equal(t, []Type{TypeMonthlyPrediction}, types(first))
		assert.Equal(t, PriorityLow, first[0].Priority)
		assert.Empty(t, withinWeek)
		assert.Len(t, afterWeek, 1)

		status.DaysRemaining = 7
		status.BudgetId = "other"
		alerts, err := engine.Evaluate(ctx, status)
		require.NoError(t, err)
		assert.Empty(t, alerts)
	})

	t.Run("should keep only the 50 newest alerts", func(t *testing.T) {
		engine, store, clock := setupEngine(nil)

		for i := 1; i <= 60; i++ {
			alerts, err := engine.Evaluate(ctx, spentStatus(fmt.Sprintf("budget-%d", i), "800"))
			require.NoError(t, err)
			require.Len(t, alerts, 1)
			clock.Advance(time.Second)
		}

		stored, err := store.List(ctx, 11)
		require.NoError(t, err)
		require.Len(t, stored, 50)
		assert.Equal(t, "budget-60", stored[0].BudgetId)
		assert.Equal(t, "budget-11", stored[49].BudgetId)
		for _, alert := range stored {
			for i := 1; i <= 10; i++ {
				assert.NotEqual(t, fmt.Sprintf("budget-%d", i), alert.BudgetId)
			}
		}
	})

	t.Run("should keep alert when sink fails", func(t *testing.T) {
		sink := &failingSink{}
		engine, store, _ := setupEngine(sink)

		alerts, err := engine.Evaluate(ctx, spentStatus("groceries", "1200"))

		require.NoError(t, err)
		assert.Len(t, alerts, 1)
		assert.Equal(t, 1, sink.calls)
		count, err := store.UnreadCount(ctx, 11)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("should publish alert.created through the bus sink", func(t *testing.T) {
		bus := event_bus.NewEventBus()
		var published []event_bus.AlertCreated
		event_bus.SubscribeTyped[event_bus.AlertCreated](bus, event_bus.AlertCreatedType, func(e event_bus.EventT[event_bus.AlertCreated]) error {
			published = append(published, e.Data)
			return nil
		})
		engine, _, _ := setupEngine(MultiSink{LogSink{}, NewBusSink(bus)})

		alerts, err := engine.Evaluate(ctx, spentStatus("groceries", "950"))

		require.NoError(t, err)
		require.Len(t, published, 1)
		assert.Equal(t, alerts[0].Id, published[0].AlertId)
		assert.Equal(t, "warning_90", published[0].Type)
		assert.Equal(t, 11, published[0].UserId)
	})

	t.Run("should reject status without budget id", func(t *testing.T) {
		engine, _, _ := setupEngine(nil)

		_, err := engine.Evaluate(ctx, spentStatus("", "950"))

		assert.ErrorIs(t, err, ErrInvalidStatus)
	})
}
