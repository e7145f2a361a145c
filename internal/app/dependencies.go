package app

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klokku/pennywise/internal/config"
	"github.com/klokku/pennywise/internal/database"
	"github.com/klokku/pennywise/internal/event_bus"
	"github.com/klokku/pennywise/internal/utils"
	"github.com/klokku/pennywise/pkg/alert"
	"github.com/klokku/pennywise/pkg/expense"
	"github.com/klokku/pennywise/pkg/pending"
	"github.com/klokku/pennywise/pkg/recurring"
	"github.com/klokku/pennywise/pkg/trigger"
	"github.com/klokku/pennywise/pkg/user"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	Clock      utils.Clock
	EventBus   *event_bus.EventBus
	Transactor database.Transactor

	UserService user.Service
	UserHandler *user.Handler

	ExpenseService *expense.ServiceImpl
	ExpenseHandler *expense.Handler

	RecurringRepo      *recurring.RepositoryImpl
	RecurringService   *recurring.ServiceImpl
	RecurringScheduler *recurring.Scheduler
	RecurringHandler   *recurring.Handler

	PendingService *pending.ServiceImpl
	PendingHandler *pending.Handler

	AlertStore   *alert.RepositoryImpl
	AlertEngine  *alert.Engine
	AlertService *alert.Service
	AlertHandler *alert.Handler

	Trigger        *trigger.Trigger
	TriggerHandler *trigger.Handler
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(db *pgxpool.Pool, cfg config.Application) *Dependencies {
	deps := &Dependencies{}

	deps.Clock = utils.SystemClock{}
	deps.EventBus = event_bus.NewEventBus()
	deps.Transactor = database.NewTransactor(db)

	deps.UserService = user.NewUserService(user.NewUserRepo(db))
	deps.UserHandler = user.NewHandler(deps.UserService)

	deps.ExpenseService = expense.NewService(expense.NewRepository(db), deps.EventBus, deps.Clock)
	deps.ExpenseHandler = expense.NewHandler(deps.ExpenseService)

	pendingRepo := pending.NewRepository(db)
	deps.RecurringRepo = recurring.NewRepository(db)
	deps.RecurringService = recurring.NewService(deps.RecurringRepo, deps.Clock)
	deps.RecurringScheduler = recurring.NewScheduler(deps.RecurringRepo, pendingRepo, deps.Transactor)
	deps.RecurringHandler = recurring.NewHandler(deps.RecurringService)

	tracker := pending.NewOverdueTracker(cfg.Overdue.HighAmount())
	deps.PendingService = pending.NewService(pendingRepo, deps.ExpenseService, deps.Transactor, tracker, deps.EventBus)
	deps.PendingHandler = pending.NewHandler(deps.PendingService, deps.Clock)

	deps.AlertStore = alert.NewRepository(db, cfg.Alerts.Retention)
	sink := alert.MultiSink{alert.LogSink{}, alert.NewBusSink(deps.EventBus)}
	deps.AlertEngine = alert.NewEngine(deps.AlertStore, sink, deps.Clock)
	deps.AlertService = alert.NewService(deps.AlertStore)
	deps.AlertHandler = alert.NewHandler(deps.AlertEngine, deps.AlertService)

	deps.Trigger = trigger.NewTrigger(deps.RecurringScheduler, deps.PendingService, deps.Clock, cfg.Scheduler.ResumeThrottle)
	deps.Trigger.SubscribeTo(deps.EventBus)
	deps.TriggerHandler = trigger.NewHandler(deps.Trigger)

	return deps
}
