package handlers_test

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Totarae/LinkLauncher/internal/auth"
	"github.com/Totarae/LinkLauncher/internal/handlers"
	"github.com/Totarae/LinkLauncher/internal/icon"
	"github.com/Totarae/LinkLauncher/internal/model"
	"github.com/Totarae/LinkLauncher/internal/router"
	"github.com/Totarae/LinkLauncher/internal/service"
	"github.com/Totarae/LinkLauncher/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func buildRouter() (http.Handler, error) {
	logger := zap.NewNop()
	store, err := memory.New("", logger)
	if err != nil {
		return nil, err
	}

	authn := auth.New("test-secret", time.Hour)
	users := service.NewAuthService(store, authn, logger)
	users.HashCost = bcrypt.MinCost
	links := service.NewLinkService(store, icon.NewResolver("", ""), logger)

	h := handlers.NewHandler(links, users, authn, store, logger)
	return router.NewRouter(h, logger), nil
}

func newTestRouter(t testing.TB) http.Handler {
	t.Helper()
	h, err := buildRouter()
	require.NoError(t, err)
	return h
}

func do(t testing.TB, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func register(t testing.TB, h http.Handler, email string) string {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":"secret1","display_name":"Tester"}`, email)
	rec := do(t, h, http.MethodPost, "/api/auth/register", "", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp model.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func createLink(t testing.TB, h http.Handler, token, title, url string) model.LinkResponse {
	t.Helper()
	body := fmt.Sprintf(`{"title":%q,"url":%q}`, title, url)
	rec := do(t, h, http.MethodPost, "/api/links", token, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var link model.LinkResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &link))
	return link
}

func listLinks(t testing.TB, h http.Handler, token string) []model.LinkResponse {
	t.Helper()
	rec := do(t, h, http.MethodGet, "/api/links", token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var links []model.LinkResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &links))
	return links
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp["error"]
}

func TestHealthz(t *testing.T) {
	h := newTestRouter(t)
	rec := do(t, h, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuthEndpoints(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/auth/register", "",
		`{"email":"alice@example.com","password":"secret1","display_name":"Alice"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password_hash")

	resp := rec.Result()
	defer resp.Body.Close()
	require.NotEmpty(t, resp.Cookies())
	cookie := resp.Cookies()[0]
	assert.Equal(t, "auth_token", cookie.Name)

	// cookie тоже авторизует запрос
	req := httptest.NewRequest(http.MethodGet, "/api/links", nil)
	req.AddCookie(cookie)
	byCookie := httptest.NewRecorder()
	h.ServeHTTP(byCookie, req)
	assert.Equal(t, http.StatusOK, byCookie.Code)
	assert.JSONEq(t, `[]`, byCookie.Body.String())

	rec = do(t, h, http.MethodPost, "/api/auth/register", "",
		`{"email":"alice@example.com","password":"secret1","display_name":"Alice"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/auth/login", "", `{"email":"alice@example.com","password":"nope123"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid email or password", errorOf(t, rec))

	rec = do(t, h, http.MethodPost, "/api/auth/login", "", `{"email":"ghost@example.com","password":"secret1"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid email or password", errorOf(t, rec))

	rec = do(t, h, http.MethodPost, "/api/auth/login", "", `{"email":"alice@example.com","password":"secret1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/auth/register", "", `{"email":"bad","password":"secret1","display_name":"A"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/auth/logout", "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestLinksRequireAuth(t *testing.T) {
	h := newTestRouter(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/links"},
		{http.MethodPost, "/api/links"},
		{http.MethodPatch, "/api/links/1"},
		{http.MethodDelete, "/api/links/1"},
		{http.MethodPut, "/api/links/order"},
	} {
		rec := do(t, h, tc.method, tc.path, "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.method+" "+tc.path)
	}

	rec := do(t, h, http.MethodGet, "/api/links", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLinksLifecycle(t *testing.T) {
	h := newTestRouter(t)
	token := register(t, h, "alice@example.com")

	first := createLink(t, h, token, "First", "https://first.example.com")
	second := createLink(t, h, token, "Second", "https://second.example.com")
	third := createLink(t, h, token, "Third", "not-a-valid-url")
	assert.Equal(t, []int{0, 1, 2}, []int{first.PositionOrder, second.PositionOrder, third.PositionOrder})
	assert.Equal(t, "https://www.google.com/s2/favicons?domain=first.example.com", first.IconURL)
	assert.Nil(t, third.FaviconURL)
	assert.Equal(t, "/favicon.ico", third.IconURL)

	// PATCH: custom_icon_url задан, затем явно сброшен null
	rec := do(t, h, http.MethodPatch, fmt.Sprintf("/api/links/%d", second.ID), token,
		`{"title":"Second!","custom_icon_url":"https://cdn.example.com/2.png"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var patched model.LinkResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &patched))
	assert.Equal(t, "Second!", patched.Title)
	assert.Equal(t, "https://cdn.example.com/2.png", patched.IconURL)

	rec = do(t, h, http.MethodPatch, fmt.Sprintf("/api/links/%d", second.ID), token, `{"custom_icon_url":null}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &patched))
	assert.Nil(t, patched.CustomIconURL)
	assert.Equal(t, "Second!", patched.Title)

	// позиции сохраняются как переданы: 1, 2, 3
	rec = do(t, h, http.MethodPut, "/api/links/order", token, fmt.Sprintf(
		`{"link_orders":[{"id":%d,"position_order":3},{"id":%d,"position_order":1},{"id":%d,"position_order":2}]}`,
		first.ID, second.ID, third.ID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var reordered []model.LinkResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reordered))
	require.Len(t, reordered, 3)
	assert.Equal(t, []int64{second.ID, third.ID, first.ID}, []int64{reordered[0].ID, reordered[1].ID, reordered[2].ID})
	assert.Equal(t, []int{1, 2, 3}, []int{reordered[0].PositionOrder, reordered[1].PositionOrder, reordered[2].PositionOrder})

	rec = do(t, h, http.MethodDelete, fmt.Sprintf("/api/links/%d", third.ID), token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	links := listLinks(t, h, token)
	require.Len(t, links, 2)
	assert.Equal(t, second.ID, links[0].ID)
	assert.Equal(t, first.ID, links[1].ID)
	assert.Equal(t, 1, links[0].PositionOrder)
	assert.Equal(t, 2, links[1].PositionOrder)

	rec = do(t, h, http.MethodDelete, fmt.Sprintf("/api/links/%d", third.ID), token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestForeignLinkLooksMissing(t *testing.T) {
	h := newTestRouter(t)
	alice := register(t, h, "alice@example.com")
	bob := register(t, h, "bob@example.com")
	link := createLink(t, h, alice, "Private", "https://private.example.com")

	rec := do(t, h, http.MethodPatch, fmt.Sprintf("/api/links/%d", link.ID), bob, `{"title":"mine"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "link not found", errorOf(t, rec))

	rec = do(t, h, http.MethodDelete, fmt.Sprintf("/api/links/%d", link.ID), bob, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/links/order", bob,
		fmt.Sprintf(`{"link_orders":[{"id":%d,"position_order":0}]}`, link.ID))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	links := listLinks(t, h, alice)
	require.Len(t, links, 1)
	assert.Equal(t, "Private", links[0].Title)
	assert.Empty(t, listLinks(t, h, bob))
}

func TestBadRequests(t *testing.T) {
	h := newTestRouter(t)
	token := register(t, h, "alice@example.com")

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"broken json", http.MethodPost, "/api/links", `{"title":`},
		{"unknown field", http.MethodPost, "/api/links", `{"title":"a","url":"b","color":"red"}`},
		{"empty title", http.MethodPost, "/api/links", `{"title":"","url":"https://a.example.com"}`},
		{"empty url", http.MethodPost, "/api/links", `{"title":"a","url":""}`},
		{"non-numeric id", http.MethodPatch, "/api/links/abc", `{"title":"a"}`},
		{"zero id", http.MethodDelete, "/api/links/0", ""},
		{"reorder not json", http.MethodPut, "/api/links/order", `[1,2]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, token, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestGzipRoundTrip(t *testing.T) {
	h := newTestRouter(t)
	token := register(t, h, "alice@example.com")

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(`{"title":"Zipped","url":"https://zip.example.com"}`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/links", &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	defer zr.Close()
	var link model.LinkResponse
	require.NoError(t, json.NewDecoder(zr).Decode(&link))
	assert.Equal(t, "Zipped", link.Title)
}
