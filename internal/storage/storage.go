// Package storage определяет контракты хранилища пользователей и ссылок.
package storage

//go:generate mockgen -destination=../mocks/storage_mock.go -package=mocks github.com/Totarae/LinkLauncher/internal/storage Store,Tx

import (
	"context"
	"errors"
	"time"

	"github.com/Totarae/LinkLauncher/internal/model"
)

var (
	// ErrNotFound запись отсутствует.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate нарушено ограничение уникальности.
	ErrDuplicate = errors.New("duplicate record")
)

// UserStore хранилище пользователей.
type UserStore interface {
	// CreateUser сохраняет пользователя; ErrDuplicate при занятом email.
	CreateUser(ctx context.Context, user *model.User) error
	// UserByEmail ищет пользователя по email; ErrNotFound если нет.
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	// UserExists проверяет наличие пользователя.
	UserExists(ctx context.Context, userID string) (bool, error)
}

// LinkStore хранилище ссылок. Все изменения выполняются внутри WithinTx.
type LinkStore interface {
	// LinksByUser ссылки пользователя по возрастанию position_order, затем id.
	LinksByUser(ctx context.Context, userID string) ([]model.Link, error)
	// WithinTx выполняет fn в одной транзакции: commit при nil,
	// rollback при ошибке или панике.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx операции внутри транзакции.
type Tx interface {
	// LockUser сериализует изменения набора ссылок одного пользователя.
	LockUser(ctx context.Context, userID string) error
	LinksByUser(ctx context.Context, userID string) ([]model.Link, error)
	// GetLink возвращает ссылку по id или ErrNotFound.
	GetLink(ctx context.Context, id int64) (*model.Link, error)
	// InsertLink сохраняет ссылку и заполняет link.ID.
	InsertLink(ctx context.Context, link *model.Link) error
	// UpdateLink перезаписывает title, url, favicon_url, custom_icon_url, updated_at.
	UpdateLink(ctx context.Context, link *model.Link) error
	DeleteLink(ctx context.Context, id int64) error
	SetPosition(ctx context.Context, id int64, position int, now time.Time) error
	// ShiftPositions прибавляет delta ко всем позициям пользователя больше after.
	ShiftPositions(ctx context.Context, userID string, after, delta int, now time.Time) error
}

// Store полное хранилище сервиса.
type Store interface {
	UserStore
	LinkStore
	Ping(ctx context.Context) error
	Close() error
}
