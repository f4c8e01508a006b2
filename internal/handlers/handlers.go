package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Totarae/LinkLauncher/internal/apperr"
	"github.com/Totarae/LinkLauncher/internal/auth"
	"github.com/Totarae/LinkLauncher/internal/model"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxBodySize = 1 << 20

// LinkService операции над ссылками пользователя.
type LinkService interface {
	Create(ctx context.Context, userID string, req model.CreateLinkRequest) (*model.LinkResponse, error)
	List(ctx context.Context, userID string) ([]model.LinkResponse, error)
	Update(ctx context.Context, linkID int64, userID string, patch model.LinkPatch) (*model.LinkResponse, error)
	Delete(ctx context.Context, linkID int64, userID string) (*model.DeleteResponse, error)
	Reorder(ctx context.Context, userID string, orders []model.LinkOrder) ([]model.LinkResponse, error)
}

// AuthService регистрация и вход.
type AuthService interface {
	Register(ctx context.Context, req model.RegisterRequest) (*model.AuthResponse, error)
	Login(ctx context.Context, req model.LoginRequest) (*model.AuthResponse, error)
}

// Pinger проверка доступности хранилища.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	Links  LinkService
	Users  AuthService
	Auth   *auth.Auth
	Store  Pinger
	Logger *zap.Logger
}

func NewHandler(links LinkService, users AuthService, authn *auth.Auth, store Pinger, logger *zap.Logger) *Handler {
	return &Handler{
		Links:  links,
		Users:  users,
		Auth:   authn,
		Store:  store,
		Logger: logger,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// Healthz проверяет соединение с хранилищем.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		h.Logger.Error("Хранилище недоступно", zap.Error(err))
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Register POST /api/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.Users.Register(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.Auth.SetCookie(w, resp.Token, resp.ExpiresAt)
	h.writeJSON(w, http.StatusCreated, resp)
}

// Login POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.Users.Login(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.Auth.SetCookie(w, resp.Token, resp.ExpiresAt)
	h.writeJSON(w, http.StatusOK, resp)
}

// Logout POST /api/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, _ *http.Request) {
	h.Auth.ClearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// GetUserLinks GET /api/links
func (h *Handler) GetUserLinks(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	links, err := h.Links.List(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, links)
}

// CreateLink POST /api/links
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req model.CreateLinkRequest
	if !h.decode(w, r, &req) {
		return
	}
	link, err := h.Links.Create(r.Context(), userID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, link)
}

// UpdateLink PATCH /api/links/{id}
func (h *Handler) UpdateLink(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	linkID, ok := h.linkID(w, r)
	if !ok {
		return
	}
	var patch model.LinkPatch
	if !h.decode(w, r, &patch) {
		return
	}
	link, err := h.Links.Update(r.Context(), linkID, userID, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, link)
}

// DeleteLink DELETE /api/links/{id}
func (h *Handler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	linkID, ok := h.linkID(w, r)
	if !ok {
		return
	}
	resp, err := h.Links.Delete(r.Context(), linkID, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// ReorderLinks PUT /api/links/order
func (h *Handler) ReorderLinks(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req model.ReorderRequest
	if !h.decode(w, r, &req) {
		return
	}
	links, err := h.Links.Reorder(r.Context(), userID, req.LinkOrders)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, links)
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return "", false
	}
	return userID, true
}

func (h *Handler) linkID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid link id"})
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		h.Logger.Debug("Некорректное тело запроса", zap.String("uri", r.RequestURI), zap.Error(err))
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error("Ошибка обработки запроса",
			zap.String("method", r.Method),
			zap.String("uri", r.RequestURI),
			zap.Error(err),
		)
	}
	h.writeJSON(w, status, errorResponse{Error: apperr.PublicMessage(err)})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Error("Ошибка кодирования ответа", zap.Error(err))
	}
}
