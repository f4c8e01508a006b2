package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Totarae/LinkLauncher/internal/apperr"
	"github.com/golang-jwt/jwt/v5"
)

const (
	cookieName = "auth_token"
	bearer     = "Bearer "
	// DefaultTTL срок жизни токена по умолчанию.
	DefaultTTL = 24 * time.Hour
)

type ctxKey struct{}

// Auth выпускает и проверяет JWT-токены сессии.
type Auth struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	// Secure выставляет флаг Secure у cookie (HTTPS).
	Secure bool
}

func New(secret string, ttl time.Duration) *Auth {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Auth{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock подменяет источник времени (для тестов).
func (a *Auth) WithClock(now func() time.Time) *Auth {
	a.now = now
	return a
}

// Issue выпускает токен для пользователя: sub = userID, exp = now + ttl.
func (a *Auth) Issue(userID string) (string, time.Time, error) {
	now := a.now()
	expires := now.Add(a.ttl)
	claims := &jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expires, nil
}

// Parse проверяет подпись и срок токена и возвращает id пользователя.
func (a *Auth) Parse(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return "", apperr.ErrUnauthenticated
	}
	return claims.Subject, nil
}

// TokenFromRequest достаёт токен из заголовка Authorization или cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, bearer) {
		return strings.TrimSpace(strings.TrimPrefix(h, bearer))
	}
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// ValidateUserID проверяет, авторизован ли пользователь.
func (a *Auth) ValidateUserID(r *http.Request) (string, bool) {
	token := TokenFromRequest(r)
	if token == "" {
		return "", false
	}
	userID, err := a.Parse(token)
	if err != nil {
		return "", false
	}
	return userID, true
}

// SetCookie кладёт токен в cookie auth_token.
func (a *Auth) SetCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   a.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie удаляет cookie сессии.
func (a *Auth) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.Secure,
	})
}

// Middleware пропускает только запросы с валидным токеном.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := a.ValidateUserID(r)
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

// WithUserID сохраняет id пользователя в контексте.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserIDFromContext возвращает id пользователя из контекста.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(ctxKey{}).(string)
	return userID, ok && userID != ""
}

// RequireUserID как UserIDFromContext, но с ошибкой аутентификации.
func RequireUserID(ctx context.Context) (string, error) {
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		return "", apperr.ErrUnauthenticated
	}
	return userID, nil
}
