package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Totarae/LinkLauncher/internal/apperr"
	"github.com/Totarae/LinkLauncher/internal/icon"
	"github.com/Totarae/LinkLauncher/internal/model"
	"github.com/Totarae/LinkLauncher/internal/ordering"
	"github.com/Totarae/LinkLauncher/internal/storage"
	"go.uber.org/zap"
)

const maxTitleLen = 200

// LinkService управляет ссылками пользователя и их порядком.
type LinkService struct {
	Store  storage.Store
	Icons  *icon.Resolver
	Logger *zap.Logger
	Now    func() time.Time
}

func NewLinkService(store storage.Store, icons *icon.Resolver, logger *zap.Logger) *LinkService {
	return &LinkService{
		Store:  store,
		Icons:  icons,
		Logger: logger,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create добавляет ссылку в конец набора пользователя.
func (s *LinkService) Create(ctx context.Context, userID string, req model.CreateLinkRequest) (*model.LinkResponse, error) {
	if err := validateTitle(req.Title); err != nil {
		return nil, err
	}
	if err := validateURL(req.URL); err != nil {
		return nil, err
	}

	exists, err := s.Store.UserExists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return nil, apperr.NotFound("user %s not found", userID)
	}

	now := s.Now()
	link := &model.Link{
		Title:         req.Title,
		URL:           req.URL,
		FaviconURL:    s.Icons.Favicon(req.URL),
		CustomIconURL: normalizeIcon(req.CustomIconURL),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err = s.Store.WithinTx(ctx, func(tx storage.Tx) error {
		return ordering.New(tx, userID, s.Now).Append(ctx, link)
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("user %s not found", userID)
	}
	if err != nil {
		s.Logger.Error("Ошибка создания ссылки", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	s.Logger.Debug("Ссылка создана",
		zap.String("user_id", userID),
		zap.Int64("link_id", link.ID),
		zap.Int("position", link.PositionOrder),
	)
	resp := s.response(*link)
	return &resp, nil
}

// List ссылки пользователя в порядке отображения.
func (s *LinkService) List(ctx context.Context, userID string) ([]model.LinkResponse, error) {
	links, err := s.Store.LinksByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return s.responses(links), nil
}

// Update частично обновляет ссылку. Отсутствующие поля не меняются,
// updated_at обновляется всегда. Новая позиция применяется через
// ordering.Collection.Move, набор остаётся плотным.
func (s *LinkService) Update(ctx context.Context, linkID int64, userID string, patch model.LinkPatch) (*model.LinkResponse, error) {
	if patch.Title != nil {
		if err := validateTitle(*patch.Title); err != nil {
			return nil, err
		}
	}
	if patch.URL != nil {
		if err := validateURL(*patch.URL); err != nil {
			return nil, err
		}
	}

	var updated *model.Link
	err := s.Store.WithinTx(ctx, func(tx storage.Tx) error {
		coll := ordering.New(tx, userID, s.Now)
		link, err := coll.Get(ctx, linkID)
		if err != nil {
			return err
		}

		if patch.Title != nil {
			link.Title = *patch.Title
		}
		if patch.URL != nil && *patch.URL != link.URL {
			link.URL = *patch.URL
			link.FaviconURL = s.Icons.Favicon(link.URL)
		}
		if patch.CustomIconURL.Set {
			link.CustomIconURL = normalizeIcon(patch.CustomIconURL.Value)
		}
		link.UpdatedAt = s.Now()
		if err := tx.UpdateLink(ctx, link); err != nil {
			return fmt.Errorf("update link %d: %w", linkID, err)
		}

		if patch.PositionOrder != nil {
			if _, err := coll.Move(ctx, linkID, *patch.PositionOrder); err != nil {
				return err
			}
			if link, err = tx.GetLink(ctx, linkID); err != nil {
				return fmt.Errorf("reload link %d: %w", linkID, err)
			}
		}
		updated = link
		return nil
	})
	if err != nil {
		s.logFailure("update", userID, linkID, err)
		return nil, err
	}

	resp := s.response(*updated)
	return &resp, nil
}

// Delete удаляет ссылку и уплотняет позиции оставшихся.
func (s *LinkService) Delete(ctx context.Context, linkID int64, userID string) (*model.DeleteResponse, error) {
	err := s.Store.WithinTx(ctx, func(tx storage.Tx) error {
		_, err := ordering.New(tx, userID, s.Now).RemoveAndCompact(ctx, linkID)
		return err
	})
	if err != nil {
		s.logFailure("delete", userID, linkID, err)
		return nil, err
	}
	return &model.DeleteResponse{Success: true}, nil
}

// Reorder назначает позиции перечисленным ссылкам. Операция атомарна:
// чужая или несуществующая ссылка отменяет её целиком.
func (s *LinkService) Reorder(ctx context.Context, userID string, orders []model.LinkOrder) ([]model.LinkResponse, error) {
	var links []model.Link
	err := s.Store.WithinTx(ctx, func(tx storage.Tx) error {
		var err error
		links, err = ordering.New(tx, userID, s.Now).BulkReassign(ctx, orders)
		return err
	})
	if err != nil {
		s.logFailure("reorder", userID, 0, err)
		return nil, err
	}

	if !ordering.IsDense(links) {
		s.Logger.Warn("Порядок ссылок после переупорядочивания не плотный",
			zap.String("user_id", userID),
			zap.Int("links", len(links)),
		)
	}
	return s.responses(links), nil
}

func (s *LinkService) response(link model.Link) model.LinkResponse {
	return model.LinkResponse{Link: link, IconURL: s.Icons.Resolve(link)}
}

func (s *LinkService) responses(links []model.Link) []model.LinkResponse {
	out := make([]model.LinkResponse, 0, len(links))
	for _, l := range links {
		out = append(out, s.response(l))
	}
	return out
}

// logFailure Forbidden пишется отдельно: клиент видит его как NotFound.
func (s *LinkService) logFailure(op, userID string, linkID int64, err error) {
	fields := []zap.Field{
		zap.String("op", op),
		zap.String("user_id", userID),
		zap.Int64("link_id", linkID),
		zap.Error(err),
	}
	switch apperr.KindOf(err) {
	case apperr.KindForbidden:
		s.Logger.Warn("Попытка доступа к чужой ссылке", fields...)
	case apperr.KindUnknown:
		s.Logger.Error("Ошибка операции со ссылкой", fields...)
	default:
		s.Logger.Debug("Операция со ссылкой отклонена", fields...)
	}
}

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return apperr.Validation("title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return apperr.Validation("title must be at most %d characters", maxTitleLen)
	}
	return nil
}

func validateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return apperr.Validation("url is required")
	}
	return nil
}

// normalizeIcon пустая строка равносильна отсутствию иконки.
func normalizeIcon(v *string) *string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	icon := strings.TrimSpace(*v)
	return &icon
}
