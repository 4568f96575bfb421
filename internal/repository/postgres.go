package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/walleai/walle-agent/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresRepository хранит карты в PostgreSQL, сохраняя тот же позиционный
// контракт, что и табличный лист: порядок строк пользователя фиксируется
// монотонным ключом position.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт репозиторий и инициализирует схему через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет операцию при временных ошибках: сериализационных
// конфликтах, дедлоках и обрывах соединения.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	backoff := retry.WithMaxRetries(3, retry.NewConstant(time.Second))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn()
		if err == nil {
			return nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) &&
			(pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected) {
			return retry.RetryableError(err)
		}

		if isConnectionError(err) {
			return retry.RetryableError(err)
		}

		return err
	})
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// Load возвращает профиль пользователя: его карты в порядке вставки.
func (r *PostgresRepository) Load(ctx context.Context, userID string) (*model.UserProfile, error) {
	profile := model.NewUserProfile(userID)

	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT card_id, bank, card_name, network, last_four, open_date
			 FROM cards
			 WHERE user_id = $1
			 ORDER BY position`,
			userID,
		)
		if err != nil {
			return fmt.Errorf("select cards: %w", err)
		}
		defer rows.Close()

		profile.Cards = nil
		for rows.Next() {
			var card model.CreditCard
			var network string
			if err := rows.Scan(&card.ID, &card.Bank, &card.Name, &network, &card.LastFour, &card.OpenDate); err != nil {
				return fmt.Errorf("scan card: %w", err)
			}
			card.Network = model.Network(network)
			profile.AddCard(normalizeCard(card))
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return profile, nil
}

// Save добавляет карту в конец списка пользователя.
func (r *PostgresRepository) Save(ctx context.Context, userID string, card model.CreditCard) error {
	card = normalizeCard(card)

	return r.withRetry(ctx, func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO cards (card_id, user_id, bank, card_name, network, last_four, open_date)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			card.ID, userID, card.Bank, card.Name, string(card.Network), card.LastFour, card.OpenDate,
		)
		if err != nil {
			return fmt.Errorf("insert card: %w", err)
		}
		return nil
	})
}

// Update перезаписывает index-ю карту пользователя.
func (r *PostgresRepository) Update(ctx context.Context, userID string, index int, card model.CreditCard) error {
	card = normalizeCard(card)

	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		position, err := r.positionAt(ctx, tx, userID, index)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE cards
			 SET card_id = $2, bank = $3, card_name = $4, network = $5, last_four = $6, open_date = $7
			 WHERE position = $1`,
			position, card.ID, card.Bank, card.Name, string(card.Network), card.LastFour, card.OpenDate,
		)
		if err != nil {
			return fmt.Errorf("update card: %w", err)
		}

		return tx.Commit(ctx)
	})
}

// Delete удаляет index-ю карту пользователя.
func (r *PostgresRepository) Delete(ctx context.Context, userID string, index int) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		position, err := r.positionAt(ctx, tx, userID, index)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `DELETE FROM cards WHERE position = $1`, position)
		if err != nil {
			return fmt.Errorf("delete card: %w", err)
		}

		return tx.Commit(ctx)
	})
}

// positionAt возвращает ключ position index-й строки пользователя.
func (r *PostgresRepository) positionAt(ctx context.Context, tx pgx.Tx, userID string, index int) (int64, error) {
	if index < 0 {
		return 0, fmt.Errorf("%w: index %d", ErrCardIndexOutOfRange, index)
	}

	var position int64
	err := tx.QueryRow(ctx,
		`SELECT position FROM cards WHERE user_id = $1 ORDER BY position LIMIT 1 OFFSET $2`,
		userID, index,
	).Scan(&position)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: index %d", ErrCardIndexOutOfRange, index)
		}
		return 0, fmt.Errorf("select position: %w", err)
	}

	return position, nil
}
