package model

import (
	"time"

	"github.com/Totarae/LinkLauncher/internal/apperr"
)

// Link ссылка-ярлык пользователя.
type Link struct {
	ID            int64     `json:"id"`
	UserID        string    `json:"user_id"`
	Title         string    `json:"title"`
	URL           string    `json:"url"`
	FaviconURL    *string   `json:"favicon_url"`
	CustomIconURL *string   `json:"custom_icon_url"`
	PositionOrder int       `json:"position_order"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// LinkOrder новая позиция одной ссылки в запросе на переупорядочивание.
type LinkOrder struct {
	ID            int64 `json:"id"`
	PositionOrder int   `json:"position_order"`
}

// LinkPatch частичное обновление ссылки. Nil-поле означает «не менять».
type LinkPatch struct {
	Title         *string        `json:"title"`
	URL           *string        `json:"url"`
	CustomIconURL OptionalString `json:"custom_icon_url"`
	PositionOrder *int           `json:"position_order"`
}

// CheckOwner проверяет, что ссылка принадлежит пользователю.
func CheckOwner(link *Link, userID string) error {
	if link.UserID != userID {
		return apperr.Forbidden("link %d is not owned by user %s", link.ID, userID)
	}
	return nil
}

// Clone глубокая копия ссылки.
func (l Link) Clone() Link {
	c := l
	if l.FaviconURL != nil {
		v := *l.FaviconURL
		c.FaviconURL = &v
	}
	if l.CustomIconURL != nil {
		v := *l.CustomIconURL
		c.CustomIconURL = &v
	}
	return c
}
