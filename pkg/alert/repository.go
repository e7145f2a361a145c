package alert

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klokku/pennywise/internal/database"
	log "github.com/sirupsen/logrus"
)

// RepositoryImpl is the Postgres backed Store.
type RepositoryImpl struct {
	db         *pgxpool.Pool
	transactor database.Transactor
	retention  int
}

func NewRepository(db *pgxpool.Pool, retention int) *RepositoryImpl {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RepositoryImpl{db: db, transactor: database.NewTransactor(db), retention: retention}
}

func (r *RepositoryImpl) Add(ctx context.Context, userId int, alert BudgetAlert) error {
	id, err := uuid.Parse(alert.Id)
	if err != nil {
		return fmt.Errorf("invalid alert id %q: %w", alert.Id, err)
	}
	return r.transactor.WithTransaction(ctx, func(ctx context.Context) error {
		conn := database.Conn(ctx, r.db)
		insert := `INSERT INTO budget_alert (id, user_id, type, title, message, priority, budget_id, created, is_read)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
		_, err := conn.Exec(ctx, insert,
			id,
			userId,
			alert.Type.String(),
			alert.Title,
			alert.Message,
			alert.Priority.String(),
			alert.BudgetId,
			alert.Created,
			alert.IsRead,
		)
		if err != nil {
			err := fmt.Errorf("could not insert alert: %w", err)
			log.Error(err)
			return err
		}

		evict := `DELETE FROM budget_alert WHERE user_id = $1 AND id NOT IN (
				SELECT id FROM budget_alert WHERE user_id = $1 ORDER BY seq DESC LIMIT $2)`
		result, err := conn.Exec(ctx, evict, userId, r.retention)
		if err != nil {
			err := fmt.Errorf("could not evict old alerts: %w", err)
			log.Error(err)
			return err
		}
		if evicted := result.RowsAffected(); evicted > 0 {
			log.Debugf("Evicted %d old alert(s) of user %d", evicted, userId)
		}
		return nil
	})
}

func (r *RepositoryImpl) List(ctx context.Context, userId int) ([]BudgetAlert, error) {
	query := `SELECT id, type, title, message, priority, budget_id, created, is_read
				FROM budget_alert WHERE user_id = $1 ORDER BY seq DESC`
	rows, err := database.Conn(ctx, r.db).Query(ctx, query, userId)
	if err != nil {
		err := fmt.Errorf("could not query alerts: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	var result []BudgetAlert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			err := fmt.Errorf("error scanning row: %w", err)
			log.Error(err)
			return nil, err
		}
		result = append(result, alert)
	}
	if err := rows.Err(); err != nil {
		err := fmt.Errorf("error iterating over rows: %w", err)
		log.Error(err)
		return nil, err
	}
	return result, nil
}

func (r *RepositoryImpl) MarkRead(ctx context.Context, userId int, id string) (bool, error) {
	alertId, err := uuid.Parse(id)
	if err != nil {
		return false, nil
	}
	result, err := database.Conn(ctx, r.db).Exec(ctx,
		`UPDATE budget_alert SET is_read = TRUE WHERE id = $1 AND user_id = $2`, alertId, userId)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

func (r *RepositoryImpl) MarkAllRead(ctx context.Context, userId int) (int, error) {
	result, err := database.Conn(ctx, r.db).Exec(ctx,
		`UPDATE budget_alert SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`, userId)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return 0, err
	}
	return int(result.RowsAffected()), nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, userId int, id string) (bool, error) {
	alertId, err := uuid.Parse(id)
	if err != nil {
		return false, nil
	}
	result, err := database.Conn(ctx, r.db).Exec(ctx,
		`DELETE FROM budget_alert WHERE id = $1 AND user_id = $2`, alertId, userId)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

func (r *RepositoryImpl) UnreadCount(ctx context.Context, userId int) (int, error) {
	var count int
	err := database.Conn(ctx, r.db).QueryRow(ctx,
		`SELECT COUNT(*) FROM budget_alert WHERE user_id = $1 AND NOT is_read`, userId).Scan(&count)
	if err != nil {
		err := fmt.Errorf("could not count unread alerts: %w", err)
		log.Error(err)
		return 0, err
	}
	return count, nil
}

func scanAlert(row pgx.Row) (BudgetAlert, error) {
	var (
		alert    BudgetAlert
		id       uuid.UUID
		typ      string
		priority string
	)
	err := row.Scan(&id, &typ, &alert.Title, &alert.Message, &priority, &alert.BudgetId, &alert.Created, &alert.IsRead)
	if err != nil {
		return BudgetAlert{}, err
	}
	alert.Id = id.String()
	if alert.Type, err = ParseType(typ); err != nil {
		return BudgetAlert{}, err
	}
	if alert.Priority, err = ParsePriority(priority); err != nil {
		return BudgetAlert{}, err
	}
	return alert, nil
}
