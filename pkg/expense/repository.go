package expense

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

var ErrExpenseNotFound = errors.New("expense not found")

type Repository interface {
	Add(ctx context.Context, userId int, expense Expense) (Expense, error)
	Get(ctx context.Context, userId int, id int) (Expense, error)
	List(ctx context.Context, userId int, from time.Time, to time.Time) ([]Expense, error)
	Delete(ctx context.Context, userId int, id int) (bool, error)
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) Add(ctx context.Context, userId int, expense Expense) (Expense, error) {
	query := `INSERT INTO expense (user_id, amount, description, category, expense_date, recurring_id)
				VALUES ($1, $2::numeric, $3, $4, $5, $6) RETURNING id`

	err := database.Conn(ctx, r.db).QueryRow(ctx, query,
		userId,
		expense.Amount.String(),
		expense.Description,
		expense.Category,
		expense.Date,
		expense.RecurringId,
	).Scan(&expense.Id)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return Expense{}, err
	}
	return expense, nil
}

func (r *RepositoryImpl) Get(ctx context.Context, userId int, id int) (Expense, error) {
	query := `SELECT id, amount::text, description, category, expense_date, recurring_id
				FROM expense WHERE id = $1 AND user_id = $2`

	expense, err := scanExpense(database.Conn(ctx, r.db).QueryRow(ctx, query, id, userId))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Expense{}, ErrExpenseNotFound
		}
		err := fmt.Errorf("could not get expense: %w", err)
		log.Error(err)
		return Expense{}, err
	}
	return expense, nil
}

func (r *RepositoryImpl) List(ctx context.Context, userId int, from time.Time, to time.Time) ([]Expense, error) {
	query := `SELECT id, amount::text, description, category, expense_date, recurring_id
				FROM expense
				WHERE user_id = $1 AND expense_date >= $2 AND expense_date <= $3
				ORDER BY expense_date DESC, id DESC`

	rows, err := database.Conn(ctx, r.db).Query(ctx, query, userId, from, to)
	if err != nil {
		err := fmt.Errorf("could not query expenses: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	var expenses []Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			err := fmt.Errorf("error scanning row: %w", err)
			log.Error(err)
			return nil, err
		}
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		err := fmt.Errorf("error iterating over rows: %w", err)
		log.Error(err)
		return nil, err
	}
	return expenses, nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, userId int, id int) (bool, error) {
	query := "DELETE FROM expense WHERE id = $1 AND user_id = $2"
	result, err := database.Conn(ctx, r.db).Exec(ctx, query, id, userId)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

func scanExpense(row pgx.Row) (Expense, error) {
	var (
		expense     Expense
		amount      string
		recurringId *int
	)
	if err := row.Scan(&expense.Id, &amount, &expense.Description, &expense.Category, &expense.Date, &recurringId); err != nil {
		return Expense{}, err
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return Expense{}, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	expense.Amount = parsed
	expense.RecurringId = recurringId
	return expense, nil
}
