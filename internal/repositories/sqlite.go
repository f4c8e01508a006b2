package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Totarae/LinkLauncher/internal/database"
	"github.com/Totarae/LinkLauncher/internal/model"
	"github.com/Totarae/LinkLauncher/internal/storage"
	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso / libsql
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // локальный SQLite
)

const timeLayout = time.RFC3339Nano

// SQLiteRepository реализует storage.Store поверх SQLite или libsql.
type SQLiteRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// sqliteDriver выбирает драйвер по схеме DSN и дополняет локальный DSN прагмами.
func sqliteDriver(dsn string) (driver, source string) {
	for _, scheme := range []string{"libsql://", "wss://", "https://", "http://"} {
		if strings.HasPrefix(dsn, scheme) {
			return "libsql", dsn
		}
	}
	source = dsn
	if !strings.HasPrefix(source, "file:") {
		source = "file:" + source
	}
	sep := "?"
	if strings.Contains(source, "?") {
		sep = "&"
	}
	return "sqlite", source + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
}

// NewSQLiteRepository открывает базу, применяет миграции и возвращает репозиторий.
func NewSQLiteRepository(ctx context.Context, dsn string, logger *zap.Logger) (*SQLiteRepository, error) {
	if dsn == "" {
		return nil, errors.New("sqlite DSN is empty")
	}
	driver, source := sqliteDriver(dsn)

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// один писатель: транзакции пользователя не пересекаются
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if err := database.MigrateSQLite(db, logger); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("SQLite хранилище открыто", zap.String("driver", driver))
	return &SQLiteRepository{db: db, logger: logger}, nil
}

// CreateUser сохраняет пользователя.
func (r *SQLiteRepository) CreateUser(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, email, password_hash, display_name, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, user.ID, user.Email, user.PasswordHash, user.DisplayName,
		formatTime(user.CreatedAt), formatTime(user.UpdatedAt))
	if err != nil {
		if isConstraint(err, "UNIQUE") {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("database insert error: %w", err)
	}
	return nil
}

// UserByEmail ищет пользователя по email.
func (r *SQLiteRepository) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT id, email, password_hash, display_name, created_at, updated_at FROM users WHERE email = ?`
	var (
		u                model.User
		created, updated string
	)
	err := r.db.QueryRowContext(ctx, query, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if u.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &u, nil
}

// UserExists проверяет наличие пользователя.
func (r *SQLiteRepository) UserExists(ctx context.Context, userID string) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE id = ?`, userID).Scan(&n); err != nil {
		return false, fmt.Errorf("database error: %w", err)
	}
	return n > 0, nil
}

// LinksByUser возвращает ссылки пользователя в порядке отображения.
func (r *SQLiteRepository) LinksByUser(ctx context.Context, userID string) ([]model.Link, error) {
	return sqlLinksByUser(ctx, r.db, userID)
}

// WithinTx выполняет fn в транзакции.
func (r *SQLiteRepository) WithinTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Ping проверяет доступность базы.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.db.PingContext(ctx)
}

// Close закрывает базу.
func (r *SQLiteRepository) Close() error {
	r.logger.Info("Закрытие SQLite хранилища")
	return r.db.Close()
}

type sqlQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type sqlTx struct {
	tx *sql.Tx
}

// LockUser: блокировку на запись берёт сама транзакция
// (BEGIN IMMEDIATE для локального файла, сервер для libsql).
func (t *sqlTx) LockUser(ctx context.Context, userID string) error {
	rows, err := t.tx.QueryContext(ctx, `SELECT id FROM users WHERE id = ?`, userID)
	if err != nil {
		return err
	}
	return rows.Close()
}

func (t *sqlTx) LinksByUser(ctx context.Context, userID string) ([]model.Link, error) {
	return sqlLinksByUser(ctx, t.tx, userID)
}

func (t *sqlTx) GetLink(ctx context.Context, id int64) (*model.Link, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT `+linkColumns+` FROM links WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("database error: %w", err)
		}
		return nil, storage.ErrNotFound
	}
	return scanSQLLink(rows)
}

func (t *sqlTx) InsertLink(ctx context.Context, link *model.Link) error {
	query := `INSERT INTO links (user_id, title, url, favicon_url, custom_icon_url, position_order, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)
              RETURNING id`
	err := t.tx.QueryRowContext(ctx, query,
		link.UserID, link.Title, link.URL, link.FaviconURL, link.CustomIconURL,
		link.PositionOrder, formatTime(link.CreatedAt), formatTime(link.UpdatedAt),
	).Scan(&link.ID)
	if err != nil {
		if isConstraint(err, "FOREIGN KEY") {
			return fmt.Errorf("insert link: user %s: %w", link.UserID, storage.ErrNotFound)
		}
		return fmt.Errorf("database insert error: %w", err)
	}
	return nil
}

func (t *sqlTx) UpdateLink(ctx context.Context, link *model.Link) error {
	query := `UPDATE links
              SET title = ?, url = ?, favicon_url = ?, custom_icon_url = ?, updated_at = ?
              WHERE id = ?`
	res, err := t.tx.ExecContext(ctx, query, link.Title, link.URL, link.FaviconURL, link.CustomIconURL,
		formatTime(link.UpdatedAt), link.ID)
	return sqlAffected(res, err, "update link")
}

func (t *sqlTx) DeleteLink(ctx context.Context, id int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM links WHERE id = ?`, id)
	return sqlAffected(res, err, "delete link")
}

func (t *sqlTx) SetPosition(ctx context.Context, id int64, position int, now time.Time) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE links SET position_order = ?, updated_at = ? WHERE id = ?`,
		position, formatTime(now), id)
	return sqlAffected(res, err, "set position")
}

func (t *sqlTx) ShiftPositions(ctx context.Context, userID string, after, delta int, now time.Time) error {
	query := `UPDATE links
              SET position_order = position_order + ?, updated_at = ?
              WHERE user_id = ? AND position_order > ?`
	if _, err := t.tx.ExecContext(ctx, query, delta, formatTime(now), userID, after); err != nil {
		return fmt.Errorf("failed to shift positions: %w", err)
	}
	return nil
}

func sqlAffected(res sql.Result, err error, op string) error {
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func sqlLinksByUser(ctx context.Context, q sqlQuerier, userID string) ([]model.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE user_id = ? ORDER BY position_order, id`
	rows, err := q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query links by user: %w", err)
	}
	defer rows.Close()

	results := make([]model.Link, 0)
	for rows.Next() {
		link, err := scanSQLLink(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return results, nil
}

func scanSQLLink(rows *sql.Rows) (*model.Link, error) {
	var (
		l                model.Link
		created, updated string
	)
	err := rows.Scan(&l.ID, &l.UserID, &l.Title, &l.URL, &l.FaviconURL, &l.CustomIconURL,
		&l.PositionOrder, &created, &updated)
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}
	if l.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if l.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &l, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// isConstraint распознаёт нарушение ограничения по тексту ошибки:
// modernc и libsql возвращают разные типы ошибок с одинаковым сообщением.
func isConstraint(err error, kind string) bool {
	return strings.Contains(err.Error(), kind+" constraint failed")
}
