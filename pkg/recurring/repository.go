package recurring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klokku/pennywise/internal/database"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var ErrDefinitionNotFound = errors.New("recurring expense not found")

type Repository interface {
	Create(ctx context.Context, userId int, definition Definition) (Definition, error)
	Get(ctx context.Context, userId int, id int) (Definition, error)
	List(ctx context.Context, userId int) ([]Definition, error)
	ListActive(ctx context.Context, userId int) ([]Definition, error)
	Update(ctx context.Context, userId int, definition Definition) (Definition, error)
	// UpdateSchedule records a processed occurrence. It returns false when the definition is gone.
	UpdateSchedule(ctx context.Context, userId int, id int, nextDueDate time.Time, lastExecuted time.Time) (bool, error)
	SetActive(ctx context.Context, userId int, id int, active bool, nextDueDate time.Time) (bool, error)
	Delete(ctx context.Context, userId int, id int) (bool, error)
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

const selectColumns = `SELECT id, amount::text, description, category, interval_days, execution_dates,
				start_date, next_due_date, is_active, last_executed FROM recurring_expense`

func (r *RepositoryImpl) Create(ctx context.Context, userId int, definition Definition) (Definition, error) {
	intervalDays, executionDates, err := encodeRule(definition)
	if err != nil {
		return Definition{}, err
	}
	query := `INSERT INTO recurring_expense (user_id, amount, description, category, interval_days, execution_dates,
				start_date, next_due_date, is_active, last_executed)
				VALUES ($1, $2::numeric, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`

	err = database.Conn(ctx, r.db).QueryRow(ctx, query,
		userId,
		definition.Amount.String(),
		definition.Description,
		definition.Category,
		intervalDays,
		executionDates,
		definition.StartDate,
		definition.NextDueDate,
		definition.IsActive,
		definition.LastExecuted,
	).Scan(&definition.Id)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return Definition{}, err
	}
	return definition, nil
}

func (r *RepositoryImpl) Get(ctx context.Context, userId int, id int) (Definition, error) {
	query := selectColumns + ` WHERE id = $1 AND user_id = $2`
	definition, err := scanDefinition(database.Conn(ctx, r.db).QueryRow(ctx, query, id, userId))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Definition{}, ErrDefinitionNotFound
		}
		err := fmt.Errorf("could not get recurring expense: %w", err)
		log.Error(err)
		return Definition{}, err
	}
	return definition, nil
}

func (r *RepositoryImpl) List(ctx context.Context, userId int) ([]Definition, error) {
	return r.query(ctx, selectColumns+` WHERE user_id = $1 ORDER BY id`, userId)
}

func (r *RepositoryImpl) ListActive(ctx context.Context, userId int) ([]Definition, error) {
	return r.query(ctx, selectColumns+` WHERE user_id = $1 AND is_active ORDER BY next_due_date, id`, userId)
}

func (r *RepositoryImpl) query(ctx context.Context, query string, args ...any) ([]Definition, error) {
	rows, err := database.Conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		err := fmt.Errorf("could not query recurring expenses: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	var result []Definition
	for rows.Next() {
		definition, err := scanDefinition(rows)
		if err != nil {
			err := fmt.Errorf("error scanning row: %w", err)
			log.Error(err)
			return nil, err
		}
		result = append(result, definition)
	}
	if err := rows.Err(); err != nil {
		err := fmt.Errorf("error iterating over rows: %w", err)
		log.Error(err)
		return nil, err
	}
	return result, nil
}

func (r *RepositoryImpl) Update(ctx context.Context, userId int, definition Definition) (Definition, error) {
	intervalDays, executionDates, err := encodeRule(definition)
	if err != nil {
		return Definition{}, err
	}
	query := `UPDATE recurring_expense SET amount = $1::numeric, description = $2, category = $3, interval_days = $4,
				execution_dates = $5, start_date = $6, next_due_date = $7, is_active = $8
				WHERE id = $9 AND user_id = $10`

	result, err := database.Conn(ctx, r.db).Exec(ctx, query,
		definition.Amount.String(),
		definition.Description,
		definition.Category,
		intervalDays,
		executionDates,
		definition.StartDate,
		definition.NextDueDate,
		definition.IsActive,
		definition.Id,
		userId,
	)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return Definition{}, err
	}
	if result.RowsAffected() == 0 {
		return Definition{}, ErrDefinitionNotFound
	}
	return definition, nil
}

func (r *RepositoryImpl) UpdateSchedule(ctx context.Context, userId int, id int, nextDueDate time.Time, lastExecuted time.Time) (bool, error) {
	query := `UPDATE recurring_expense SET next_due_date = $1, last_executed = $2 WHERE id = $3 AND user_id = $4`
	result, err := database.Conn(ctx, r.db).Exec(ctx, query, nextDueDate, lastExecuted, id, userId)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

func (r *RepositoryImpl) SetActive(ctx context.Context, userId int, id int, active bool, nextDueDate time.Time) (bool, error) {
	query := `UPDATE recurring_expense SET is_active = $1, next_due_date = $2 WHERE id = $3 AND user_id = $4`
	result, err := database.Conn(ctx, r.db).Exec(ctx, query, active, nextDueDate, id, userId)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, userId int, id int) (bool, error) {
	query := `DELETE FROM recurring_expense WHERE id = $1 AND user_id = $2`
	result, err := database.Conn(ctx, r.db).Exec(ctx, query, id, userId)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

// encodeRule maps the rule onto the two mutually exclusive columns.
func encodeRule(definition Definition) (*int, *string, error) {
	if len(definition.ExecutionDates) > 0 {
		encoded, err := json.Marshal(definition.ExecutionDates)
		if err != nil {
			return nil, nil, fmt.Errorf("could not encode execution dates: %w", err)
		}
		value := string(encoded)
		return nil, &value, nil
	}
	interval := definition.IntervalDays
	return &interval, nil, nil
}

func scanDefinition(row pgx.Row) (Definition, error) {
	var (
		definition     Definition
		amount         string
		intervalDays   *int
		executionDates *string
	)
	err := row.Scan(
		&definition.Id,
		&amount,
		&definition.Description,
		&definition.Category,
		&intervalDays,
		&executionDates,
		&definition.StartDate,
		&definition.NextDueDate,
		&definition.IsActive,
		&definition.LastExecuted,
	)
	if err != nil {
		return Definition{}, err
	}
	if definition.Amount, err = decimal.NewFromString(amount); err != nil {
		return Definition{}, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if intervalDays != nil {
		definition.IntervalDays = *intervalDays
	}
	if executionDates != nil {
		if err := json.Unmarshal([]byte(*executionDates), &definition.ExecutionDates); err != nil {
			return Definition{}, fmt.Errorf("invalid execution dates %q: %w", *executionDates, err)
		}
	}
	return definition, nil
}
