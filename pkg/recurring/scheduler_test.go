package recurring

import (
	"errors"
	"testing"
	"time"

	"github.com/klokku/pennywise/pkg/daterule"
	"github.com/klokku/pennywise/pkg/pending"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type schedulerFixture struct {
	scheduler   *Scheduler
	definitions *RepositoryStub
	pending     *pending.RepositoryStub
}

func setupScheduler() *schedulerFixture {
	f := &schedulerFixture{
		definitions: NewRepositoryStub(),
		pending:     pending.NewRepositoryStub(),
	}
	f.scheduler = NewScheduler(f.definitions, f.pending, pending.NoopTransactor{})
	return f
}

func (f *schedulerFixture) givenDefinition(t *testing.T, definition Definition) Definition {
	if definition.Amount.IsZero() {
		definition.Amount = decimal.NewFromInt(100)
	}
	if definition.Description == "" {
		definition.Description = "Subscription"
	}
	if definition.Category == "" {
		definition.Category = "bills"
	}
	definition.IsActive = true
	created, err := f.definitions.Create(ctx, 5, definition)
	require.NoError(t, err)
	return created
}

func (f *schedulerFixture) pendingDates(t *testing.T, recurringId int) []time.Time {
	all, err := f.pending.List(ctx, 5)
	require.NoError(t, err)
	var dates []time.Time
	for _, occurrence := range all {
		if occurrence.RecurringId == recurringId {
			dates = append(dates, occurrence.ScheduledDate)
		}
	}
	return dates
}

func (f *schedulerFixture) definition(t *testing.T, id int) Definition {
	definition, err := f.definitions.Get(ctx, 5, id)
	require.NoError(t, err)
	return definition
}

func at(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 10, 0, 0, 0, time.UTC)
}

func TestScheduler_ProcessDue(t *testing.T) {
	t.Run("should materialize monthly occurrence and advance one month", func(t *testing.T) {
		// given
		f := setupScheduler()
		definition := f.givenDefinition(t, Definition{
			Amount:       decimal.NewFromInt(50000),
			IntervalDays: 30,
			StartDate:    daterule.Date(2024, time.January, 5),
			NextDueDate:  daterule.Date(2024, time.February, 5),
		})

		// when
		report, err := f.scheduler.ProcessDue(ctx, at(2024, time.February, 5))

		// then
		require.NoError(t, err)
		assert.Equal(t, ProcessReport{Processed: 1, Created: 1}, report)
		assert.Equal(t, []time.Time{daterule.Date(2024, time.February, 5)}, f.pendingDates(t, definition.Id))

		updated := f.definition(t, definition.Id)
		assert.Equal(t, daterule.Date(2024, time.March, 5), updated.NextDueDate)
		require.NotNil(t, updated.LastExecuted)
		assert.Equal(t, daterule.Date(2024, time.February, 5), *updated.LastExecuted)

		occurrences, err := f.pending.List(ctx, 5)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(50000).Equal(occurrences[0].Amount))
		assert.Equal(t, pending.StatusPending, occurrences[0].Status)
	})

	t.Run("should clamp day 31 to the end of February", func(t *testing.T) {
		f := setupScheduler()
		common := f.givenDefinition(t, Definition{
			ExecutionDates: []int{31},
			StartDate:      daterule.Date(2023, time.January, 1),
			NextDueDate:    daterule.Date(2023, time.February, 1),
		})

		_, err := f.scheduler.ProcessDue(ctx, at(2023, time.February, 1))

		require.NoError(t, err)
		assert.Equal(t, []time.Time{daterule.Date(2023, time.February, 28)}, f.pendingDates(t, common.Id))
		assert.Equal(t, daterule.Date(2023, time.March, 31), f.definition(t, common.Id).NextDueDate)
	})

	t.Run("should clamp day 31 to February 29 in a leap year", func(t *testing.T) {
		f := setupScheduler()
		leap := f.givenDefinition(t, Definition{
			ExecutionDates: []int{31},
			StartDate:      daterule.Date(2024, time.January, 1),
			NextDueDate:    daterule.Date(2024, time.February, 1),
		})

		_, err := f.scheduler.ProcessDue(ctx, at(2024, time.February, 1))

		require.NoError(t, err)
		assert.Equal(t, []time.Time{daterule.Date(2024, time.February, 29)}, f.pendingDates(t, leap.Id))
	})

	t.Run("should produce exactly one occurrence for day 31 in a 30-day month", func(t *testing.T) {
		f := setupScheduler()
		definition := f.givenDefinition(t, Definition{
			ExecutionDates: []int{1, 15, 31},
			StartDate:      daterule.Date(2024, time.January, 1),
			NextDueDate:    daterule.Date(2024, time.April, 1),
		})

		_, err := f.scheduler.ProcessDue(ctx, at(2024, time.April, 1))

		require.NoError(t, err)
		assert.Equal(t, []time.Time{
			daterule.Date(2024, time.April, 1),
			daterule.Date(2024, time.April, 15),
			daterule.Date(2024, time.April, 30),
		}, f.pendingDates(t, definition.Id))
		assert.Equal(t, daterule.Date(2024, time.May, 1), f.definition(t, definition.Id).NextDueDate)
	})

	t.Run("should be idempotent when run repeatedly", func(t *testing.T) {
		f := setupScheduler()
		weekly := f.givenDefinition(t, Definition{
			IntervalDays: 7,
			StartDate:    daterule.Date(2024, time.March, 4),
			NextDueDate:  daterule.Date(2024, time.March, 11),
		})
		dates := f.givenDefinition(t, Definition{
			ExecutionDates: []int{11, 20},
			StartDate:      daterule.Date(2024, time.January, 1),
			NextDueDate:    daterule.Date(2024, time.March, 11),
		})
		now := at(2024, time.March, 11)

		_, err := f.scheduler.ProcessDue(ctx, now)
		require.NoError(t, err)
		first, err := f.pending.List(ctx, 5)
		require.NoError(t, err)

		second, err := f.scheduler.ProcessDue(ctx, now)
		require.NoError(t, err)
		after, err := f.pending.List(ctx, 5)
		require.NoError(t, err)

		assert.Equal(t, first, after)
		assert.Equal(t, 0, second.Created)
		assert.Len(t, f.pendingDates(t, weekly.Id), 1)
		assert.Len(t, f.pendingDates(t, dates.Id), 2)
	})

	t.Run("should not duplicate when definition is reset to an already materialized date", func(t *testing.T) {
		f := setupScheduler()
		definition := f.givenDefinition(t, Definition{
			IntervalDays: 15,
			StartDate:    daterule.Date(2024, time.March, 1),
			NextDueDate:  daterule.Date(2024, time.March, 1),
		})
		_, err := f.scheduler.ProcessDue(ctx, at(2024, time.March, 1))
		require.NoError(t, err)
		_, err = f.definitions.SetActive(ctx, 5, definition.Id, true, daterule.Date(2024, time.March, 1))
		require.NoError(t, err)

		report, err := f.scheduler.ProcessDue(ctx, at(2024, time.March, 1))

		require.NoError(t, err)
		assert.Equal(t, 0, report.Created)
		assert.Equal(t, 1, report.Existing)
		assert.Len(t, f.pendingDates(t, definition.Id), 1)
	})

	t.Run("should advance every processed definition past today", func(t *testing.T) {
		f := setupScheduler()
		definitions := []Definition{
			f.givenDefinition(t, Definition{IntervalDays: 7, StartDate: daterule.Date(2023, time.November, 2), NextDueDate: daterule.Date(2023, time.November, 2)}),
			f.givenDefinition(t, Definition{IntervalDays: 15, StartDate: daterule.Date(2024, time.January, 31), NextDueDate: daterule.Date(2024, time.January, 31)}),
			f.givenDefinition(t, Definition{IntervalDays: 30, StartDate: daterule.Date(2023, time.August, 31), NextDueDate: daterule.Date(2023, time.September, 30)}),
			f.givenDefinition(t, Definition{ExecutionDates: []int{2, 28}, StartDate: daterule.Date(2023, time.January, 1), NextDueDate: daterule.Date(2024, time.January, 2)}),
		}
		now := at(2024, time.March, 29)

		_, err := f.scheduler.ProcessDue(ctx, now)

		require.NoError(t, err)
		today := daterule.Date(2024, time.March, 29)
		for _, definition := range definitions {
			updated := f.definition(t, definition.Id)
			assert.True(t, updated.NextDueDate.After(today), "definition %d next due %s", definition.Id, updated.NextDueDate)
		}
	})

	t.Run("should materialize one backlog occurrence for a stale interval definition", func(t *testing.T) {
		f := setupScheduler()
		definition := f.givenDefinition(t, Definition{
			IntervalDays: 7,
			StartDate:    daterule.Date(2024, time.January, 1),
			NextDueDate:  daterule.Date(2024, time.January, 8),
		})

		_, err := f.scheduler.ProcessDue(ctx, at(2024, time.February, 1))

		require.NoError(t, err)
		assert.Equal(t, []time.Time{daterule.Date(2024, time.January, 8)}, f.pendingDates(t, definition.Id))
		assert.Equal(t, daterule.Date(2024, time.February, 5), f.definition(t, definition.Id).NextDueDate)
	})

	t.Run("should skip paused and not yet due definitions", func(t *testing.T) {
		f := setupScheduler()
		paused := f.givenDefinition(t, Definition{IntervalDays: 7, StartDate: daterule.Date(2024, time.January, 1), NextDueDate: daterule.Date(2024, time.January, 8)})
		_, err := f.definitions.SetActive(ctx, 5, paused.Id, false, paused.NextDueDate)
		require.NoError(t, err)
		future := f.givenDefinition(t, Definition{IntervalDays: 7, StartDate: daterule.Date(2024, time.January, 1), NextDueDate: daterule.Date(2024, time.February, 5)})

		report, err := f.scheduler.ProcessDue(ctx, at(2024, time.February, 1))

		require.NoError(t, err)
		assert.Equal(t, ProcessReport{}, report)
		assert.Empty(t, f.pendingDates(t, paused.Id))
		assert.Empty(t, f.pendingDates(t, future.Id))
		assert.Equal(t, daterule.Date(2024, time.January, 8), f.definition(t, paused.Id).NextDueDate)
	})

	t.Run("should isolate failing definitions", func(t *testing.T) {
		f := setupScheduler()
		failing := f.givenDefinition(t, Definition{IntervalDays: 7, StartDate: daterule.Date(2024, time.March, 4), NextDueDate: daterule.Date(2024, time.March, 11)})
		healthy := f.givenDefinition(t, Definition{IntervalDays: 7, StartDate: daterule.Date(2024, time.March, 4), NextDueDate: daterule.Date(2024, time.March, 11)})
		f.pending.FailCreateFor[failing.Id] = errors.New("connection reset")

		report, err := f.scheduler.ProcessDue(ctx, at(2024, time.March, 11))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
		assert.Equal(t, 1, report.Failed)
		assert.Equal(t, 1, report.Processed)
		assert.Len(t, f.pendingDates(t, healthy.Id), 1)
		assert.Equal(t, daterule.Date(2024, time.March, 11), f.definition(t, failing.Id).NextDueDate)

		// the next pass retries the failed definition
		delete(f.pending.FailCreateFor, failing.Id)
		report, err = f.scheduler.ProcessDue(ctx, at(2024, time.March, 11))
		require.NoError(t, err)
		assert.Equal(t, 1, report.Created)
		assert.Len(t, f.pendingDates(t, failing.Id), 1)
	})

	t.Run("should treat a definition deleted mid-pass as a no-op", func(t *testing.T) {
		f := setupScheduler()
		definition := f.givenDefinition(t, Definition{IntervalDays: 7, StartDate: daterule.Date(2024, time.March, 4), NextDueDate: daterule.Date(2024, time.March, 11)})
		f.pending.MissingRecurring[definition.Id] = true

		report, err := f.scheduler.ProcessDue(ctx, at(2024, time.March, 11))

		require.NoError(t, err)
		assert.Equal(t, 1, report.Vanished)
		assert.Equal(t, 0, report.Failed)
	})

	t.Run("should fail without user in context", func(t *testing.T) {
		f := setupScheduler()

		_, err := f.scheduler.ProcessDue(t.Context(), at(2024, time.March, 11))

		assert.Error(t, err)
	})
}

func TestScheduler_ProcessDue_TwoYearsOfDailyPasses(t *testing.T) {
	// given
	f := setupScheduler()
	start := daterule.Date(2023, time.January, 1)
	multi := f.givenDefinition(t, Definition{ExecutionDates: []int{1, 15, 31}, StartDate: start, NextDueDate: start})
	monthEnd := f.givenDefinition(t, Definition{ExecutionDates: []int{29, 30, 31}, StartDate: start, NextDueDate: start})
	weekly := f.givenDefinition(t, Definition{IntervalDays: 7, StartDate: start, NextDueDate: start})
	monthly := f.givenDefinition(t, Definition{
		IntervalDays: daterule.MonthlyIntervalDays,
		StartDate:    daterule.Date(2023, time.January, 31),
		NextDueDate:  daterule.Date(2023, time.January, 31),
	})
	ids := []int{multi.Id, monthEnd.Id, weekly.Id, monthly.Id}

	// when
	for day := start; !day.After(daterule.Date(2024, time.December, 31)); day = daterule.AddDays(day, 1) {
		for pass := 0; pass < 2; pass++ {
			_, err := f.scheduler.ProcessDue(ctx, day.Add(10*time.Hour))
			require.NoError(t, err)
			for _, id := range ids {
				next := f.definition(t, id).NextDueDate
				require.True(t, next.After(day), "definition %d: next due %s not after %s", id, next, day)
			}
		}
	}

	// then
	for _, id := range ids {
		seen := map[time.Time]bool{}
		for _, date := range f.pendingDates(t, id) {
			assert.False(t, seen[date], "definition %d materialized %s twice", id, date)
			seen[date] = true
		}
	}
	inMonth := func(dates []time.Time, year int, month time.Month) []time.Time {
		var result []time.Time
		for _, date := range dates {
			if date.Year() == year && date.Month() == month {
				result = append(result, date)
			}
		}
		return result
	}
	multiDates := f.pendingDates(t, multi.Id)
	assert.Len(t, inMonth(multiDates, 2024, time.February), 3)
	assert.Equal(t, []time.Time{
		daterule.Date(2024, time.April, 1),
		daterule.Date(2024, time.April, 15),
		daterule.Date(2024, time.April, 30),
	}, inMonth(multiDates, 2024, time.April))
	assert.Equal(t, []time.Time{daterule.Date(2023, time.February, 28)}, inMonth(f.pendingDates(t, monthEnd.Id), 2023, time.February))
	assert.Len(t, f.pendingDates(t, weekly.Id), 105)
	assert.Equal(t, []time.Time{
		daterule.Date(2023, time.January, 31),
		daterule.Date(2023, time.February, 28),
		daterule.Date(2023, time.March, 31),
		daterule.Date(2023, time.April, 30),
	}, f.pendingDates(t, monthly.Id)[:4])
}
