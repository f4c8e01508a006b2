package repositories

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Totarae/LinkLauncher/internal/database"
	"github.com/Totarae/LinkLauncher/internal/model"
	"github.com/Totarae/LinkLauncher/internal/storage"
	"github.com/Totarae/LinkLauncher/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var created = time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func newSQLite(t *testing.T) storage.Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "launcher.db")
	repo, err := NewSQLiteRepository(context.Background(), dsn, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func newPostgres(t *testing.T) storage.Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN не задан")
	}
	ctx := context.Background()
	db, err := database.NewDB(ctx, dsn, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, database.MigratePostgres(db))
	_, err = db.Pool.Exec(ctx, `TRUNCATE links, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	repo := NewPostgresRepository(db)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func newMemory(t *testing.T) storage.Store {
	t.Helper()
	s, err := memory.New("", zap.NewNop())
	require.NoError(t, err)
	return s
}

var backends = map[string]func(t *testing.T) storage.Store{
	"memory":   newMemory,
	"sqlite":   newSQLite,
	"postgres": newPostgres,
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s storage.Store)) {
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			fn(t, open(t))
		})
	}
}

func createUser(t *testing.T, s storage.Store, id string) {
	t.Helper()
	require.NoError(t, s.CreateUser(context.Background(), &model.User{
		ID:           id,
		Email:        id + "@example.com",
		PasswordHash: "hash-" + id,
		DisplayName:  id,
		CreatedAt:    created,
		UpdatedAt:    created,
	}))
}

func insert(t *testing.T, s storage.Store, link *model.Link) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.WithinTx(ctx, func(tx storage.Tx) error {
		return tx.InsertLink(ctx, link)
	}))
	require.NotZero(t, link.ID)
}

func TestStore_Users(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s storage.Store) {
		ctx := context.Background()
		createUser(t, s, "alice")

		u, err := s.UserByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, "alice", u.ID)
		assert.Equal(t, "hash-alice", u.PasswordHash)
		assert.True(t, created.Equal(u.CreatedAt))

		ok, err := s.UserExists(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.UserExists(ctx, "ghost")
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = s.UserByEmail(ctx, "ghost@example.com")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		err = s.CreateUser(ctx, &model.User{ID: "other", Email: "alice@example.com", CreatedAt: created, UpdatedAt: created})
		assert.ErrorIs(t, err, storage.ErrDuplicate)
	})
}

func TestStore_LinkLifecycle(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s storage.Store) {
		ctx := context.Background()
		createUser(t, s, "alice")

		link := &model.Link{
			UserID:        "alice",
			Title:         "Go",
			URL:           "https://go.dev",
			FaviconURL:    strPtr("https://www.google.com/s2/favicons?domain=go.dev"),
			PositionOrder: 0,
			CreatedAt:     created,
			UpdatedAt:     created,
		}
		insert(t, s, link)

		err := s.WithinTx(ctx, func(tx storage.Tx) error {
			got, err := tx.GetLink(ctx, link.ID)
			require.NoError(t, err)
			assert.Equal(t, "Go", got.Title)
			require.NotNil(t, got.FaviconURL)
			assert.Equal(t, *link.FaviconURL, *got.FaviconURL)
			assert.Nil(t, got.CustomIconURL)
			assert.True(t, created.Equal(got.CreatedAt))

			got.Title = "Golang"
			got.CustomIconURL = strPtr("https://cdn.example.com/go.png")
			got.FaviconURL = nil
			got.UpdatedAt = created.Add(time.Hour)
			return tx.UpdateLink(ctx, got)
		})
		require.NoError(t, err)

		links, err := s.LinksByUser(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, links, 1)
		assert.Equal(t, "Golang", links[0].Title)
		assert.Nil(t, links[0].FaviconURL)
		require.NotNil(t, links[0].CustomIconURL)
		assert.Equal(t, "https://cdn.example.com/go.png", *links[0].CustomIconURL)
		assert.True(t, created.Add(time.Hour).Equal(links[0].UpdatedAt))

		err = s.WithinTx(ctx, func(tx storage.Tx) error {
			return tx.DeleteLink(ctx, link.ID)
		})
		require.NoError(t, err)

		err = s.WithinTx(ctx, func(tx storage.Tx) error {
			_, err := tx.GetLink(ctx, link.ID)
			return err
		})
		assert.ErrorIs(t, err, storage.ErrNotFound)

		err = s.WithinTx(ctx, func(tx storage.Tx) error {
			return tx.DeleteLink(ctx, link.ID)
		})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestStore_OrderAndShift(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s storage.Store) {
		ctx := context.Background()
		createUser(t, s, "alice")
		createUser(t, s, "bob")

		var alice []*model.Link
		for i, title := range []string{"a", "b", "c", "d"} {
			l := &model.Link{UserID: "alice", Title: title, URL: "https://" + title + ".example.com",
				PositionOrder: i, CreatedAt: created, UpdatedAt: created}
			insert(t, s, l)
			alice = append(alice, l)
		}
		bobLink := &model.Link{UserID: "bob", Title: "x", URL: "https://x.example.com",
			PositionOrder: 2, CreatedAt: created, UpdatedAt: created}
		insert(t, s, bobLink)

		// равные позиции упорядочиваются по id
		err := s.WithinTx(ctx, func(tx storage.Tx) error {
			require.NoError(t, tx.LockUser(ctx, "alice"))
			return tx.SetPosition(ctx, alice[3].ID, 0, created)
		})
		require.NoError(t, err)

		links, err := s.LinksByUser(ctx, "alice")
		require.NoError(t, err)
		titles := make([]string, 0, len(links))
		for _, l := range links {
			titles = append(titles, l.Title)
		}
		assert.Equal(t, []string{"a", "d", "b", "c"}, titles)

		err = s.WithinTx(ctx, func(tx storage.Tx) error {
			return tx.ShiftPositions(ctx, "alice", 0, 10, created)
		})
		require.NoError(t, err)

		links, err = s.LinksByUser(ctx, "alice")
		require.NoError(t, err)
		got := make(map[string]int)
		for _, l := range links {
			got[l.Title] = l.PositionOrder
		}
		assert.Equal(t, map[string]int{"a": 0, "d": 0, "b": 11, "c": 12}, got)

		bob, err := s.LinksByUser(ctx, "bob")
		require.NoError(t, err)
		require.Len(t, bob, 1)
		assert.Equal(t, 2, bob[0].PositionOrder)

		err = s.WithinTx(ctx, func(tx storage.Tx) error {
			return tx.SetPosition(ctx, 999999, 1, created)
		})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestStore_Rollback(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s storage.Store) {
		ctx := context.Background()
		createUser(t, s, "alice")
		link := &model.Link{UserID: "alice", Title: "a", URL: "https://a.example.com", CreatedAt: created, UpdatedAt: created}
		insert(t, s, link)

		boom := errors.New("boom")
		err := s.WithinTx(ctx, func(tx storage.Tx) error {
			require.NoError(t, tx.SetPosition(ctx, link.ID, 5, created))
			require.NoError(t, tx.InsertLink(ctx, &model.Link{UserID: "alice", Title: "b", URL: "https://b.example.com",
				CreatedAt: created, UpdatedAt: created}))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		links, err := s.LinksByUser(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, links, 1)
		assert.Equal(t, 0, links[0].PositionOrder)
	})
}

func TestStore_InsertUnknownUser(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s storage.Store) {
		ctx := context.Background()
		err := s.WithinTx(ctx, func(tx storage.Tx) error {
			return tx.InsertLink(ctx, &model.Link{UserID: "ghost", Title: "a", URL: "https://a.example.com",
				CreatedAt: created, UpdatedAt: created})
		})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestSQLiteDriver(t *testing.T) {
	tests := []struct {
		dsn    string
		driver string
		prefix string
	}{
		{"libsql://db.turso.io?authToken=x", "libsql", "libsql://db.turso.io"},
		{"https://db.turso.io", "libsql", "https://db.turso.io"},
		{"/tmp/launcher.db", "sqlite", "file:/tmp/launcher.db?_pragma=foreign_keys(1)"},
		{"file:launcher.db?cache=shared", "sqlite", "file:launcher.db?cache=shared&_pragma=foreign_keys(1)"},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			driver, source := sqliteDriver(tt.dsn)
			assert.Equal(t, tt.driver, driver)
			assert.Contains(t, source, tt.prefix)
		})
	}
}

func TestSQLite_Reopen(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "launcher.db")

	repo, err := NewSQLiteRepository(ctx, dsn, zap.NewNop())
	require.NoError(t, err)
	createUser(t, repo, "alice")
	require.NoError(t, repo.Close())

	// повторные миграции не ломают существующую базу
	reopened, err := NewSQLiteRepository(ctx, dsn, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	ok, err := reopened.UserExists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, reopened.Ping(ctx))
}
