package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Totarae/LinkLauncher/internal/apperr"
	"github.com/Totarae/LinkLauncher/internal/model"
	"github.com/Totarae/LinkLauncher/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLen    = 6
	maxPasswordBytes  = 72
	maxDisplayNameLen = 100
)

// TokenIssuer выпускает токен сессии для пользователя.
type TokenIssuer interface {
	Issue(userID string) (string, time.Time, error)
}

// AuthService регистрация и вход пользователей.
type AuthService struct {
	Users    storage.UserStore
	Tokens   TokenIssuer
	Logger   *zap.Logger
	Now      func() time.Time
	HashCost int
}

func NewAuthService(users storage.UserStore, tokens TokenIssuer, logger *zap.Logger) *AuthService {
	return &AuthService{
		Users:    users,
		Tokens:   tokens,
		Logger:   logger,
		Now:      func() time.Time { return time.Now().UTC() },
		HashCost: bcrypt.DefaultCost,
	}
}

// Register создаёт пользователя и сразу выпускает токен.
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (*model.AuthResponse, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(req.Password) < minPasswordLen {
		return nil, apperr.Validation("password must be at least %d characters", minPasswordLen)
	}
	if len(req.Password) > maxPasswordBytes {
		return nil, apperr.Validation("password must be at most %d bytes", maxPasswordBytes)
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" || utf8.RuneCountInString(name) > maxDisplayNameLen {
		return nil, apperr.Validation("display name must be 1 to %d characters", maxDisplayNameLen)
	}

	if _, err := s.Users.UserByEmail(ctx, email); err == nil {
		return nil, apperr.ErrEmailTaken
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.HashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.Now()
	user := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  name,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, apperr.ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.Logger.Info("Пользователь зарегистрирован", zap.String("user_id", user.ID))
	return s.session(user)
}

// Login проверяет учётные данные. Неизвестный email и неверный пароль
// дают одну и ту же ошибку.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (*model.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := s.Users.UserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.Logger.Debug("Неудачная попытка входа", zap.String("user_id", user.ID))
		return nil, apperr.ErrInvalidCredentials
	}
	return s.session(user)
}

func (s *AuthService) session(user *model.User) (*model.AuthResponse, error) {
	token, expires, err := s.Tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &model.AuthResponse{User: *user, Token: token, ExpiresAt: expires}, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.Validation("invalid email address")
	}
	return email, nil
}
