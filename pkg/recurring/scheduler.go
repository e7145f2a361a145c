package recurring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/klokku/pennywise/internal/database"
	"github.com/klokku/pennywise/pkg/daterule"
	"github.com/klokku/pennywise/pkg/pending"
	"github.com/klokku/pennywise/pkg/user"
	log "github.com/sirupsen/logrus"
)

// ProcessReport summarizes one processing pass.
type ProcessReport struct {
	// Processed counts due definitions that were materialized and advanced.
	Processed int
	// Created counts new pending occurrences.
	Created int
	// Existing counts occurrences that were already materialized by an earlier pass.
	Existing int
	// Vanished counts definitions deleted while the pass was running.
	Vanished int
	Failed   int
}

type Scheduler struct {
	definitions Repository
	pending     pending.Repository
	transactor  database.Transactor
}

func NewScheduler(definitions Repository, pendingRepo pending.Repository, transactor database.Transactor) *Scheduler {
	return &Scheduler{
		definitions: definitions,
		pending:     pendingRepo,
		transactor:  transactor,
	}
}

// ProcessDue materializes pending occurrences for every active definition of the current user
// that is due on the user's today, then advances its next due date past today.
//
// Running it again for the same day creates nothing new. A failing definition is logged and
// counted; the others are still processed and all failures are returned joined.
func (s *Scheduler) ProcessDue(ctx context.Context, now time.Time) (ProcessReport, error) {
	currentUser, err := user.CurrentUser(ctx)
	if err != nil {
		return ProcessReport{}, fmt.Errorf("failed to get current user: %w", err)
	}
	today := daterule.DateOf(now, currentUser.Location())

	definitions, err := s.definitions.ListActive(ctx, currentUser.Id)
	if err != nil {
		return ProcessReport{}, fmt.Errorf("could not list recurring expenses: %w", err)
	}

	var report ProcessReport
	var errs []error
	for _, definition := range definitions {
		if !definition.IsActive || definition.NextDueDate.After(today) {
			continue
		}
		if err := s.processDefinition(ctx, currentUser.Id, definition, today, &report); err != nil {
			log.Errorf("failed to process recurring expense %d: %v", definition.Id, err)
			report.Failed++
			errs = append(errs, fmt.Errorf("recurring expense %d: %w", definition.Id, err))
		}
	}

	log.Debugf("Processing pass for user %d on %s: %+v", currentUser.Id, daterule.FormatDate(today), report)
	return report, errors.Join(errs...)
}

// errVanished rolls back the work done for a definition that was deleted mid-pass.
var errVanished = errors.New("recurring expense vanished")

func (s *Scheduler) processDefinition(ctx context.Context, userId int, definition Definition, today time.Time, report *ProcessReport) error {
	var created, existing int

	err := s.transactor.WithTransaction(ctx, func(ctx context.Context) error {
		created, existing = 0, 0
		dates := dueDates(definition, today)
		for _, date := range dates {
			outcome, err := s.materialize(ctx, userId, definition, date)
			if err != nil {
				return err
			}
			switch outcome {
			case outcomeCreated:
				created++
			case outcomeExisting:
				existing++
			case outcomeVanished:
				return errVanished
			}
		}

		lastFired := dates[len(dates)-1]
		next := daterule.Advance(definition.Rule(), lastFired, today)
		updated, err := s.definitions.UpdateSchedule(ctx, userId, definition.Id, next, today)
		if err != nil {
			return err
		}
		if !updated {
			return errVanished
		}
		return nil
	})
	if errors.Is(err, errVanished) {
		log.Debugf("Recurring expense %d was deleted during processing, skipping", definition.Id)
		report.Vanished++
		return nil
	}
	if err != nil {
		return err
	}
	report.Processed++
	report.Created += created
	report.Existing += existing
	return nil
}

type materializeOutcome int

const (
	outcomeCreated materializeOutcome = iota
	outcomeExisting
	outcomeVanished
)

// materialize creates the occurrence unless one already exists for the definition and date.
func (s *Scheduler) materialize(ctx context.Context, userId int, definition Definition, date time.Time) (materializeOutcome, error) {
	_, found, err := s.pending.FindByDate(ctx, userId, definition.Id, date)
	if err != nil {
		return 0, err
	}
	if found {
		return outcomeExisting, nil
	}

	_, err = s.pending.Create(ctx, userId, pending.PendingOccurrence{
		RecurringId:   definition.Id,
		ScheduledDate: date,
		Amount:        definition.Amount,
		Description:   definition.Description,
		Category:      definition.Category,
		Status:        pending.StatusPending,
	})
	switch {
	case err == nil:
		return outcomeCreated, nil
	case errors.Is(err, pending.ErrAlreadyExists):
		return outcomeExisting, nil
	case errors.Is(err, pending.ErrRecurringNotFound):
		return outcomeVanished, nil
	default:
		return 0, err
	}
}

// dueDates lists the dates to materialize for a due definition. Simple rules yield their next
// due date. Execution dates yield every candidate of the current window on or after today,
// preceded by the next due date when that is a stale backlog date.
func dueDates(definition Definition, today time.Time) []time.Time {
	rule := definition.Rule()
	if rule.Kind() != daterule.KindExecutionDates {
		return []time.Time{definition.NextDueDate}
	}

	var dates []time.Time
	if definition.NextDueDate.Before(today) {
		dates = append(dates, definition.NextDueDate)
	}
	for _, date := range daterule.ExecutionDatesInWindow(rule.ExecutionDates, today) {
		if !date.Before(rule.StartDate) {
			dates = append(dates, date)
		}
	}
	if len(dates) == 0 {
		dates = append(dates, definition.NextDueDate)
	}
	return dates
}
