// Package icon выбирает иконку для отображения ссылки.
package icon

import (
	"net/url"
	"strings"

	"github.com/Totarae/LinkLauncher/internal/model"
)

const (
	DefaultServiceURL = "https://www.google.com/s2/favicons"
	DefaultIcon       = "/favicon.ico"
	displaySize       = "64"
)

// Resolver формирует ссылки на иконки через внешний favicon-сервис.
type Resolver struct {
	ServiceURL  string
	DefaultIcon string
}

// NewResolver пустые параметры заменяются значениями по умолчанию.
func NewResolver(serviceURL, defaultIcon string) *Resolver {
	if serviceURL == "" {
		serviceURL = DefaultServiceURL
	}
	if defaultIcon == "" {
		defaultIcon = DefaultIcon
	}
	return &Resolver{ServiceURL: strings.TrimSuffix(serviceURL, "/"), DefaultIcon: defaultIcon}
}

// Resolve возвращает иконку для отображения: пользовательская,
// затем сохранённый favicon, затем favicon-сервис по хосту,
// иначе локальная иконка по умолчанию. Никогда не завершается ошибкой.
func (r *Resolver) Resolve(link model.Link) string {
	if link.CustomIconURL != nil && *link.CustomIconURL != "" {
		return *link.CustomIconURL
	}
	if link.FaviconURL != nil && *link.FaviconURL != "" {
		return *link.FaviconURL
	}
	host, ok := hostOf(link.URL)
	if !ok {
		return r.DefaultIcon
	}
	return r.serviceRef(host, displaySize)
}

// Favicon вычисляет favicon при записи ссылки. Для URL без хоста
// возвращает nil.
func (r *Resolver) Favicon(rawURL string) *string {
	host, ok := hostOf(rawURL)
	if !ok {
		return nil
	}
	ref := r.serviceRef(host, "")
	return &ref
}

func (r *Resolver) serviceRef(host, size string) string {
	q := url.Values{}
	q.Set("domain", host)
	if size != "" {
		q.Set("sz", size)
	}
	return r.ServiceURL + "?" + q.Encode()
}

func hostOf(rawURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", false
	}
	host := u.Hostname()
	if host == "" {
		return "", false
	}
	return host, true
}
