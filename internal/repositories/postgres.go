package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Totarae/LinkLauncher/internal/database"
	"github.com/Totarae/LinkLauncher/internal/model"
	"github.com/Totarae/LinkLauncher/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const linkColumns = `id, user_id, title, url, favicon_url, custom_icon_url, position_order, created_at, updated_at`

// querier общий интерфейс пула и транзакции pgx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository реализует storage.Store поверх PostgreSQL.
type PostgresRepository struct {
	DB *database.DB
}

// NewPostgresRepository создаёт репозиторий.
func NewPostgresRepository(db *database.DB) *PostgresRepository {
	return &PostgresRepository{DB: db}
}

// CreateUser сохраняет пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, email, password_hash, display_name, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.DB.Pool.Exec(ctx, query, user.ID, user.Email, user.PasswordHash, user.DisplayName, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("database insert error: %w", err)
	}
	return nil
}

// UserByEmail ищет пользователя по email.
func (r *PostgresRepository) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT id, email, password_hash, display_name, created_at, updated_at FROM users WHERE email = $1`
	u := &model.User{}
	err := r.DB.Pool.QueryRow(ctx, query, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return u, nil
}

// UserExists проверяет наличие пользователя.
func (r *PostgresRepository) UserExists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.DB.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("database error: %w", err)
	}
	return exists, nil
}

// LinksByUser возвращает ссылки пользователя в порядке отображения.
func (r *PostgresRepository) LinksByUser(ctx context.Context, userID string) ([]model.Link, error) {
	return pgLinksByUser(ctx, r.DB.Pool, userID)
}

// WithinTx выполняет fn в транзакции.
func (r *PostgresRepository) WithinTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	tx, err := r.DB.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Ping проверяет доступность базы данных.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.DB.Ping(ctx)
}

// Close закрывает пул.
func (r *PostgresRepository) Close() error {
	r.DB.Close()
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

// LockUser блокирует строку пользователя до конца транзакции.
func (t *pgTx) LockUser(ctx context.Context, userID string) error {
	_, err := t.tx.Exec(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID)
	return err
}

func (t *pgTx) LinksByUser(ctx context.Context, userID string) ([]model.Link, error) {
	return pgLinksByUser(ctx, t.tx, userID)
}

func (t *pgTx) GetLink(ctx context.Context, id int64) (*model.Link, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+linkColumns+` FROM links WHERE id = $1`, id)
	link, err := scanPgLink(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return link, nil
}

func (t *pgTx) InsertLink(ctx context.Context, link *model.Link) error {
	query := `INSERT INTO links (user_id, title, url, favicon_url, custom_icon_url, position_order, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
              RETURNING id`
	err := t.tx.QueryRow(ctx, query,
		link.UserID, link.Title, link.URL, link.FaviconURL, link.CustomIconURL,
		link.PositionOrder, link.CreatedAt, link.UpdatedAt,
	).Scan(&link.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return fmt.Errorf("insert link: user %s: %w", link.UserID, storage.ErrNotFound)
		}
		return fmt.Errorf("database insert error: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateLink(ctx context.Context, link *model.Link) error {
	query := `UPDATE links
              SET title = $2, url = $3, favicon_url = $4, custom_icon_url = $5, updated_at = $6
              WHERE id = $1`
	tag, err := t.tx.Exec(ctx, query, link.ID, link.Title, link.URL, link.FaviconURL, link.CustomIconURL, link.UpdatedAt)
	return affected(tag, err, "update link")
}

func (t *pgTx) DeleteLink(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM links WHERE id = $1`, id)
	return affected(tag, err, "delete link")
}

func (t *pgTx) SetPosition(ctx context.Context, id int64, position int, now time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE links SET position_order = $2, updated_at = $3 WHERE id = $1`, id, position, now)
	return affected(tag, err, "set position")
}

func (t *pgTx) ShiftPositions(ctx context.Context, userID string, after, delta int, now time.Time) error {
	query := `UPDATE links
              SET position_order = position_order + $3, updated_at = $4
              WHERE user_id = $1 AND position_order > $2`
	if _, err := t.tx.Exec(ctx, query, userID, after, delta, now); err != nil {
		return fmt.Errorf("failed to shift positions: %w", err)
	}
	return nil
}

func affected(tag pgconn.CommandTag, err error, op string) error {
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func pgLinksByUser(ctx context.Context, q querier, userID string) ([]model.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE user_id = $1 ORDER BY position_order, id`
	rows, err := q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query links by user: %w", err)
	}
	defer rows.Close()

	results := make([]model.Link, 0)
	for rows.Next() {
		link, err := scanPgLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, *link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return results, nil
}

func scanPgLink(row pgx.Row) (*model.Link, error) {
	l := &model.Link{}
	err := row.Scan(&l.ID, &l.UserID, &l.Title, &l.URL, &l.FaviconURL, &l.CustomIconURL,
		&l.PositionOrder, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return l, nil
}
