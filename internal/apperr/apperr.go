// Package apperr описывает доменные ошибки сервиса и их отображение
// на коды HTTP и gRPC.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind классифицирует доменную ошибку.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindForbidden
	KindValidation
	KindAuthentication
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Error доменная ошибка с классом и сообщением для клиента.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

var (
	// ErrInvalidCredentials единая ошибка входа: не различает
	// неизвестный email и неверный пароль.
	ErrInvalidCredentials = &Error{Kind: KindAuthentication, Msg: "invalid email or password"}
	// ErrEmailTaken email уже зарегистрирован.
	ErrEmailTaken = &Error{Kind: KindConflict, Msg: "email already registered"}
	// ErrUnauthenticated запрос без действительного токена.
	ErrUnauthenticated = &Error{Kind: KindAuthentication, Msg: "authentication required"}
)

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// NotFound пользователь или ссылка не существует.
func NotFound(format string, args ...any) *Error {
	return newError(KindNotFound, format, args...)
}

// Forbidden ссылка существует, но принадлежит другому пользователю.
func Forbidden(format string, args ...any) *Error {
	return newError(KindForbidden, format, args...)
}

// Validation некорректные входные данные.
func Validation(format string, args ...any) *Error {
	return newError(KindValidation, format, args...)
}

// Conflict нарушение уникальности.
func Conflict(format string, args ...any) *Error {
	return newError(KindConflict, format, args...)
}

// KindOf возвращает класс ошибки или KindUnknown для прочих ошибок.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is проверяет класс ошибки.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// PublicMessage текст для клиента. Forbidden показывается как NotFound,
// чтобы не раскрывать существование чужих ссылок.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "internal server error"
	}
	if e.Kind == KindForbidden {
		return "link not found"
	}
	return e.Msg
}

// HTTPStatus код ответа HTTP для ошибки.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound, KindForbidden:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// GRPCStatus переводит ошибку в статус gRPC.
func GRPCStatus(err error) error {
	if err == nil {
		return nil
	}
	var c codes.Code
	switch KindOf(err) {
	case KindNotFound, KindForbidden:
		c = codes.NotFound
	case KindValidation:
		c = codes.InvalidArgument
	case KindAuthentication:
		c = codes.Unauthenticated
	case KindConflict:
		c = codes.AlreadyExists
	default:
		c = codes.Internal
	}
	return status.Error(c, PublicMessage(err))
}
