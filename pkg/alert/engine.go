package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/klokku/pennywise/internal/utils"
	"github.com/klokku/pennywise/pkg/daterule"
	"github.com/klokku/pennywise/pkg/user"
	log "github.com/sirupsen/logrus"
)

// Engine turns budget snapshots into alerts, at most one per rule and key per cooldown window.
type Engine struct {
	store     Store
	sink      Sink
	clock     utils.Clock
	cooldowns *CooldownTracker
	newId     func() string
}

func NewEngine(store Store, sink Sink, clock utils.Clock) *Engine {
	return &Engine{
		store:     store,
		sink:      sink,
		clock:     clock,
		cooldowns: NewCooldownTracker(),
		newId:     uuid.NewString,
	}
}

// Evaluate checks the status against every rule. Produced alerts are stored and handed to the
// sink; a failing sink is logged and does not undo the alert.
func (e *Engine) Evaluate(ctx context.Context, status BudgetStatus) ([]BudgetAlert, error) {
	currentUser, err := user.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	if status.BudgetId == "" {
		return nil, fmt.Errorf("%w: budget id is required", ErrInvalidStatus)
	}
	now := e.clock.Now()
	day := daterule.DateOf(now, currentUser.Location())

	produced := make([]BudgetAlert, 0)
	for _, r := range rules {
		if !r.Matches(status) {
			continue
		}
		key := r.cooldownKey(currentUser.Id, status.BudgetId, day)
		if !e.cooldowns.Ready(key, now, r.Cooldown) {
			log.Tracef("alert %s suppressed by cooldown", key)
			continue
		}

		title, message := r.Render(status)
		alert := BudgetAlert{
			Id:       e.newId(),
			Type:     r.Type,
			Title:    title,
			Message:  message,
			Priority: r.Priority,
			BudgetId: status.BudgetId,
			Created:  now,
		}
		if err := e.store.Add(ctx, currentUser.Id, alert); err != nil {
			return produced, fmt.Errorf("could not store %s alert: %w", r.Type, err)
		}
		e.cooldowns.Mark(key, now)
		produced = append(produced, alert)

		if e.sink != nil {
			if err := e.sink.Deliver(ctx, currentUser.Id, alert); err != nil {
				log.Errorf("failed to deliver alert %s: %v", alert.Id, err)
			}
		}
	}

	// the longest window is a week, older keys can never suppress anything
	e.cooldowns.Prune(now, 8*24*time.Hour)
	return produced, nil
}
