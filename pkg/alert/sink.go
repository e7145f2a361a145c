package alert

import (
	"context"
	"errors"

	"github.com/klokku/pennywise/internal/event_bus"
	log "github.com/sirupsen/logrus"
)

// Sink delivers produced alerts, e.g. as notifications.
type Sink interface {
	Deliver(ctx context.Context, userId int, alert BudgetAlert) error
}

type LogSink struct{}

func (LogSink) Deliver(ctx context.Context, userId int, alert BudgetAlert) error {
	log.WithFields(log.Fields{
		"userId":   userId,
		"alertId":  alert.Id,
		"type":     alert.Type.String(),
		"budgetId": alert.BudgetId,
		"priority": alert.Priority.String(),
	}).Info(alert.Title)
	return nil
}

// BusSink publishes alert.created events.
type BusSink struct {
	eventBus *event_bus.EventBus
}

func NewBusSink(eventBus *event_bus.EventBus) *BusSink {
	return &BusSink{eventBus: eventBus}
}

func (b *BusSink) Deliver(ctx context.Context, userId int, alert BudgetAlert) error {
	return b.eventBus.Publish(event_bus.NewEvent(ctx, event_bus.AlertCreatedType, event_bus.AlertCreated{
		UserId:   userId,
		AlertId:  alert.Id,
		Type:     alert.Type.String(),
		BudgetId: alert.BudgetId,
		Priority: alert.Priority.String(),
		Title:    alert.Title,
	}))
}

// MultiSink delivers to every sink, even when some of them fail.
type MultiSink []Sink

func (m MultiSink) Deliver(ctx context.Context, userId int, alert BudgetAlert) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Deliver(ctx, userId, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
