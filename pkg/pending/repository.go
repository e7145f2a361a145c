package pending

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klokku/pennywise/internal/database"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var ErrPendingNotFound = errors.New("pending expense not found")
var ErrAlreadyExists = errors.New("pending expense already exists for this date")

// ErrRecurringNotFound is returned when the owning recurring definition no longer exists.
var ErrRecurringNotFound = errors.New("recurring expense not found")

type Repository interface {
	Create(ctx context.Context, userId int, occurrence PendingOccurrence) (PendingOccurrence, error)
	Get(ctx context.Context, userId int, id int) (PendingOccurrence, error)
	List(ctx context.Context, userId int) ([]PendingOccurrence, error)
	// FindByDate looks up the occurrence of a recurring definition scheduled on date.
	FindByDate(ctx context.Context, userId int, recurringId int, date time.Time) (PendingOccurrence, bool, error)
	UpdateStatus(ctx context.Context, userId int, id int, status Status) (bool, error)
	Delete(ctx context.Context, userId int, id int) (bool, error)
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

const selectColumns = `SELECT id, recurring_id, scheduled_date, amount::text, description, category, status FROM pending_expense`

func (r *RepositoryImpl) Create(ctx context.Context, userId int, occurrence PendingOccurrence) (PendingOccurrence, error) {
	if occurrence.Status != StatusPending && occurrence.Status != StatusOverdue {
		return PendingOccurrence{}, fmt.Errorf("cannot store pending expense with status %s", occurrence.Status)
	}
	query := `INSERT INTO pending_expense (user_id, recurring_id, scheduled_date, amount, description, category, status)
				VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)
				ON CONFLICT (recurring_id, scheduled_date) DO NOTHING RETURNING id`

	err := database.Conn(ctx, r.db).QueryRow(ctx, query,
		userId,
		occurrence.RecurringId,
		occurrence.ScheduledDate,
		occurrence.Amount.String(),
		occurrence.Description,
		occurrence.Category,
		occurrence.Status.String(),
	).Scan(&occurrence.Id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || database.IsUniqueViolation(err) {
			return PendingOccurrence{}, ErrAlreadyExists
		}
		if database.IsForeignKeyViolation(err) {
			return PendingOccurrence{}, ErrRecurringNotFound
		}
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return PendingOccurrence{}, err
	}
	return occurrence, nil
}

func (r *RepositoryImpl) Get(ctx context.Context, userId int, id int) (PendingOccurrence, error) {
	query := selectColumns + ` WHERE id = $1 AND user_id = $2`
	occurrence, err := scanOccurrence(database.Conn(ctx, r.db).QueryRow(ctx, query, id, userId))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PendingOccurrence{}, ErrPendingNotFound
		}
		err := fmt.Errorf("could not get pending expense: %w", err)
		log.Error(err)
		return PendingOccurrence{}, err
	}
	return occurrence, nil
}

func (r *RepositoryImpl) List(ctx context.Context, userId int) ([]PendingOccurrence, error) {
	query := selectColumns + ` WHERE user_id = $1 ORDER BY scheduled_date, id`
	rows, err := database.Conn(ctx, r.db).Query(ctx, query, userId)
	if err != nil {
		err := fmt.Errorf("could not query pending expenses: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	var result []PendingOccurrence
	for rows.Next() {
		occurrence, err := scanOccurrence(rows)
		if err != nil {
			err := fmt.Errorf("error scanning row: %w", err)
			log.Error(err)
			return nil, err
		}
		result = append(result, occurrence)
	}
	if err := rows.Err(); err != nil {
		err := fmt.Errorf("error iterating over rows: %w", err)
		log.Error(err)
		return nil, err
	}
	return result, nil
}

func (r *RepositoryImpl) FindByDate(ctx context.Context, userId int, recurringId int, date time.Time) (PendingOccurrence, bool, error) {
	query := selectColumns + ` WHERE user_id = $1 AND recurring_id = $2 AND scheduled_date = $3`
	occurrence, err := scanOccurrence(database.Conn(ctx, r.db).QueryRow(ctx, query, userId, recurringId, date))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PendingOccurrence{}, false, nil
		}
		err := fmt.Errorf("could not find pending expense by date: %w", err)
		log.Error(err)
		return PendingOccurrence{}, false, err
	}
	return occurrence, true, nil
}

func (r *RepositoryImpl) UpdateStatus(ctx context.Context, userId int, id int, status Status) (bool, error) {
	if status.IsTerminal() {
		return false, fmt.Errorf("terminal status %s is not stored, delete the record instead", status)
	}
	query := `UPDATE pending_expense SET status = $1 WHERE id = $2 AND user_id = $3`
	result, err := database.Conn(ctx, r.db).Exec(ctx, query, status.String(), id, userId)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, userId int, id int) (bool, error) {
	query := `DELETE FROM pending_expense WHERE id = $1 AND user_id = $2`
	result, err := database.Conn(ctx, r.db).Exec(ctx, query, id, userId)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

func scanOccurrence(row pgx.Row) (PendingOccurrence, error) {
	var (
		occurrence PendingOccurrence
		amount     string
		status     string
	)
	err := row.Scan(
		&occurrence.Id,
		&occurrence.RecurringId,
		&occurrence.ScheduledDate,
		&amount,
		&occurrence.Description,
		&occurrence.Category,
		&status,
	)
	if err != nil {
		return PendingOccurrence{}, err
	}
	if occurrence.Amount, err = decimal.NewFromString(amount); err != nil {
		return PendingOccurrence{}, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if occurrence.Status, err = ParseStatus(status); err != nil {
		return PendingOccurrence{}, err
	}
	return occurrence, nil
}
