// Package ordering поддерживает порядок ссылок одного пользователя.
//
// Для каждого пользователя position_order образует плотную
// последовательность 0..n-1. Append, RemoveAndCompact и Move её сохраняют.
// BulkReassign записывает позиции как есть: после него position_order
// служит только ключом сортировки, а порядок при равных позициях
// определяется id.
//
// Collection работает внутри транзакции хранилища; атомарность
// обеспечивает вызывающий через storage.LinkStore.WithinTx.
package ordering

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Totarae/LinkLauncher/internal/apperr"
	"github.com/Totarae/LinkLauncher/internal/model"
	"github.com/Totarae/LinkLauncher/internal/storage"
)

// Collection упорядоченный набор ссылок пользователя в рамках транзакции.
type Collection struct {
	tx     storage.Tx
	userID string
	now    func() time.Time
}

// New привязывает набор ссылок userID к транзакции tx.
func New(tx storage.Tx, userID string, now func() time.Time) *Collection {
	if now == nil {
		now = time.Now
	}
	return &Collection{tx: tx, userID: userID, now: now}
}

// Links ссылки пользователя в порядке отображения.
func (c *Collection) Links(ctx context.Context) ([]model.Link, error) {
	return c.tx.LinksByUser(ctx, c.userID)
}

// Get блокирует набор и возвращает ссылку пользователя.
// NotFound если ссылки нет, Forbidden если она чужая.
func (c *Collection) Get(ctx context.Context, linkID int64) (*model.Link, error) {
	if err := c.tx.LockUser(ctx, c.userID); err != nil {
		return nil, fmt.Errorf("lock user: %w", err)
	}
	return c.owned(ctx, linkID)
}

// Append добавляет ссылку в конец набора. Существующие позиции не меняются.
func (c *Collection) Append(ctx context.Context, link *model.Link) error {
	if err := c.tx.LockUser(ctx, c.userID); err != nil {
		return fmt.Errorf("lock user: %w", err)
	}
	links, err := c.tx.LinksByUser(ctx, c.userID)
	if err != nil {
		return fmt.Errorf("list links: %w", err)
	}
	link.UserID = c.userID
	link.PositionOrder = NextPosition(links)
	if err := c.tx.InsertLink(ctx, link); err != nil {
		return fmt.Errorf("insert link: %w", err)
	}
	return nil
}

// RemoveAndCompact удаляет ссылку и сдвигает на одну позицию вниз
// все ссылки пользователя, стоявшие после неё.
func (c *Collection) RemoveAndCompact(ctx context.Context, linkID int64) (*model.Link, error) {
	if err := c.tx.LockUser(ctx, c.userID); err != nil {
		return nil, fmt.Errorf("lock user: %w", err)
	}
	link, err := c.owned(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if err := c.tx.DeleteLink(ctx, linkID); err != nil {
		return nil, fmt.Errorf("delete link %d: %w", linkID, err)
	}
	if err := c.tx.ShiftPositions(ctx, c.userID, link.PositionOrder, -1, c.now()); err != nil {
		return nil, fmt.Errorf("compact positions: %w", err)
	}
	return link, nil
}

// BulkReassign проверяет все идентификаторы до первой записи, затем
// записывает запрошенные позиции. Неупомянутые ссылки сохраняют позиции.
// Возвращает весь набор в порядке отображения.
func (c *Collection) BulkReassign(ctx context.Context, orders []model.LinkOrder) ([]model.Link, error) {
	if err := c.tx.LockUser(ctx, c.userID); err != nil {
		return nil, fmt.Errorf("lock user: %w", err)
	}
	links, err := c.tx.LinksByUser(ctx, c.userID)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	owned := make(map[int64]struct{}, len(links))
	for _, l := range links {
		owned[l.ID] = struct{}{}
	}
	for _, o := range orders {
		if _, ok := owned[o.ID]; ok {
			continue
		}
		if _, err := c.owned(ctx, o.ID); err != nil {
			return nil, err
		}
	}

	now := c.now()
	for _, o := range orders {
		if err := c.tx.SetPosition(ctx, o.ID, o.PositionOrder, now); err != nil {
			return nil, fmt.Errorf("set position of link %d: %w", o.ID, err)
		}
	}
	return c.tx.LinksByUser(ctx, c.userID)
}

// Move ставит ссылку на позицию position (с ограничением диапазоном
// 0..n-1) и перенумеровывает набор плотно.
func (c *Collection) Move(ctx context.Context, linkID int64, position int) ([]model.Link, error) {
	if err := c.tx.LockUser(ctx, c.userID); err != nil {
		return nil, fmt.Errorf("lock user: %w", err)
	}
	if _, err := c.owned(ctx, linkID); err != nil {
		return nil, err
	}
	links, err := c.tx.LinksByUser(ctx, c.userID)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	now := c.now()
	for _, o := range MoveOrders(links, linkID, position) {
		if err := c.tx.SetPosition(ctx, o.ID, o.PositionOrder, now); err != nil {
			return nil, fmt.Errorf("set position of link %d: %w", o.ID, err)
		}
	}
	return c.tx.LinksByUser(ctx, c.userID)
}

// owned загружает ссылку и проверяет владельца.
func (c *Collection) owned(ctx context.Context, linkID int64) (*model.Link, error) {
	link, err := c.tx.GetLink(ctx, linkID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("link %d not found", linkID)
	}
	if err != nil {
		return nil, fmt.Errorf("get link %d: %w", linkID, err)
	}
	if err := model.CheckOwner(link, c.userID); err != nil {
		return nil, err
	}
	return link, nil
}
