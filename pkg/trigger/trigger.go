package trigger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/klokku/pennywise/internal/event_bus"
	"github.com/klokku/pennywise/internal/utils"
	"github.com/klokku/pennywise/pkg/recurring"
	"github.com/klokku/pennywise/pkg/user"
	log "github.com/sirupsen/logrus"
)

// DefaultThrottle is the minimum age of the last successful pass before a foreground resume
// starts another one.
const DefaultThrottle = 5 * time.Minute

var ErrPassInProgress = errors.New("processing pass already in progress")

type Kind int

const (
	KindAppStart Kind = iota + 1
	KindForegroundResume
	KindManualRefresh
	KindExpenseMutation
)

func (k Kind) String() string {
	switch k {
	case KindAppStart:
		return "start"
	case KindForegroundResume:
		return "foreground"
	case KindManualRefresh:
		return "manual"
	case KindExpenseMutation:
		return "expense"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func ParseKind(value string) (Kind, error) {
	for _, k := range []Kind{KindAppStart, KindForegroundResume, KindManualRefresh, KindExpenseMutation} {
		if k.String() == value {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown trigger kind %q", value)
}

type Processor interface {
	ProcessDue(ctx context.Context, now time.Time) (recurring.ProcessReport, error)
}

type OverdueMarker interface {
	MarkOverdue(ctx context.Context, now time.Time) (int, error)
}

type SkipReason string

const (
	SkipNone       SkipReason = ""
	SkipThrottled  SkipReason = "throttled"
	SkipInProgress SkipReason = "in_progress"
)

type Result struct {
	Kind          Kind
	Skipped       SkipReason
	Report        recurring.ProcessReport
	MarkedOverdue int
}

// Trigger runs processing passes on external events. Passes of one user never overlap and a
// foreground resume shortly after a successful pass is a no-op.
type Trigger struct {
	processor Processor
	overdue   OverdueMarker
	clock     utils.Clock
	throttle  time.Duration

	mu          sync.Mutex
	running     map[int]bool
	lastSuccess map[int]time.Time
}

func NewTrigger(processor Processor, overdue OverdueMarker, clock utils.Clock, throttle time.Duration) *Trigger {
	if throttle <= 0 {
		throttle = DefaultThrottle
	}
	return &Trigger{
		processor:   processor,
		overdue:     overdue,
		clock:       clock,
		throttle:    throttle,
		running:     map[int]bool{},
		lastSuccess: map[int]time.Time{},
	}
}

// Fire runs a pass for the current user: due recurring expenses are materialized first, then
// pending ones past their date are marked overdue. A pass only counts as successful for the
// throttle when both steps finished without error.
func (t *Trigger) Fire(ctx context.Context, kind Kind) (Result, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to get current user: %w", err)
	}
	now := t.clock.Now()
	result := Result{Kind: kind}

	t.mu.Lock()
	if kind == KindForegroundResume {
		if last, ok := t.lastSuccess[userId]; ok && now.Sub(last) < t.throttle {
			t.mu.Unlock()
			log.Debugf("Foreground resume for user %d throttled, last pass at %s", userId, last.Format(time.RFC3339))
			result.Skipped = SkipThrottled
			return result, nil
		}
	}
	if t.running[userId] {
		t.mu.Unlock()
		result.Skipped = SkipInProgress
		return result, ErrPassInProgress
	}
	t.running[userId] = true
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.running, userId)
		t.mu.Unlock()
	}()

	report, processErr := t.processor.ProcessDue(ctx, now)
	result.Report = report
	marked, overdueErr := t.overdue.MarkOverdue(ctx, now)
	result.MarkedOverdue = marked

	if err := errors.Join(processErr, overdueErr); err != nil {
		log.Warnf("Processing pass (%s) for user %d finished with errors: %v", kind, userId, err)
		return result, err
	}

	t.mu.Lock()
	t.lastSuccess[userId] = now
	t.mu.Unlock()
	log.Infof("Processing pass (%s) for user %d: %d created, %d marked overdue", kind, userId, report.Created, marked)
	return result, nil
}

// SubscribeTo runs a pass after every change of the posted expenses.
func (t *Trigger) SubscribeTo(eventBus *event_bus.EventBus) (unsubscribe func()) {
	return event_bus.SubscribeTyped[event_bus.ExpenseChanged](eventBus, event_bus.ExpenseChangedType,
		func(e event_bus.EventT[event_bus.ExpenseChanged]) error {
			_, err := t.Fire(e.Context(), KindExpenseMutation)
			if errors.Is(err, ErrPassInProgress) {
				return nil
			}
			return err
		})
}
