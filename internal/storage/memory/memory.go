// Package memory хранилище в памяти с необязательным сохранением
// снимка в JSON-файл (режимы in-memory и file).
package memory

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/Totarae/LinkLauncher/internal/model"
	"github.com/Totarae/LinkLauncher/internal/storage"
	"go.uber.org/zap"
)

type state struct {
	users  map[string]model.User
	links  map[int64]model.Link
	nextID int64
}

func newState() *state {
	return &state{users: make(map[string]model.User), links: make(map[int64]model.Link)}
}

func (st *state) clone() *state {
	c := &state{
		users:  make(map[string]model.User, len(st.users)),
		links:  make(map[int64]model.Link, len(st.links)),
		nextID: st.nextID,
	}
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.links {
		c.links[k] = v.Clone()
	}
	return c
}

// Store потокобезопасное хранилище. Транзакции выполняются над копией
// состояния и публикуются целиком при успешном завершении.
type Store struct {
	mu     sync.RWMutex
	state  *state
	file   string
	logger *zap.Logger
}

// New создаёт хранилище. Если file не пуст, состояние загружается
// из файла и сохраняется в него после каждой транзакции.
func New(file string, logger *zap.Logger) (*Store, error) {
	s := &Store{state: newState(), file: file, logger: logger}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("load snapshot %q: %w", file, err)
	}
	return s, nil
}

// CreateUser сохраняет пользователя.
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	return s.update(ctx, func(st *state) error {
		for _, u := range st.users {
			if u.Email == user.Email {
				return storage.ErrDuplicate
			}
		}
		st.users[user.ID] = *user
		return nil
	})
}

// UserByEmail ищет пользователя по email.
func (s *Store) UserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.state.users {
		if u.Email == email {
			found := u
			return &found, nil
		}
	}
	return nil, storage.ErrNotFound
}

// UserExists проверяет наличие пользователя.
func (s *Store) UserExists(_ context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.state.users[userID]
	return ok, nil
}

// LinksByUser ссылки пользователя в порядке отображения.
func (s *Store) LinksByUser(_ context.Context, userID string) ([]model.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return linksOf(s.state, userID), nil
}

// WithinTx выполняет fn над копией состояния под эксклюзивной блокировкой.
func (s *Store) WithinTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	return s.update(ctx, func(st *state) error {
		return fn(&tx{st: st})
	})
}

func (s *Store) update(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.state.clone()
	if err := fn(draft); err != nil {
		return err
	}
	if err := s.persist(draft); err != nil {
		s.logger.Error("failed to persist snapshot", zap.String("file", s.file), zap.Error(err))
		return fmt.Errorf("persist snapshot: %w", err)
	}
	s.state = draft
	return nil
}

// Ping хранилище в памяти всегда доступно.
func (s *Store) Ping(context.Context) error { return nil }

// Close ничего не освобождает: снимок пишется при каждой транзакции.
func (s *Store) Close() error { return nil }

func linksOf(st *state, userID string) []model.Link {
	links := make([]model.Link, 0)
	for _, l := range st.links {
		if l.UserID == userID {
			links = append(links, l.Clone())
		}
	}
	slices.SortFunc(links, func(a, b model.Link) int {
		if c := cmp.Compare(a.PositionOrder, b.PositionOrder); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return links
}

type tx struct {
	st *state
}

func (t *tx) LockUser(context.Context, string) error { return nil }

func (t *tx) LinksByUser(_ context.Context, userID string) ([]model.Link, error) {
	return linksOf(t.st, userID), nil
}

func (t *tx) GetLink(_ context.Context, id int64) (*model.Link, error) {
	l, ok := t.st.links[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := l.Clone()
	return &c, nil
}

func (t *tx) InsertLink(_ context.Context, link *model.Link) error {
	if _, ok := t.st.users[link.UserID]; !ok {
		return fmt.Errorf("insert link: user %s: %w", link.UserID, storage.ErrNotFound)
	}
	t.st.nextID++
	link.ID = t.st.nextID
	t.st.links[link.ID] = link.Clone()
	return nil
}

func (t *tx) UpdateLink(_ context.Context, link *model.Link) error {
	cur, ok := t.st.links[link.ID]
	if !ok {
		return storage.ErrNotFound
	}
	upd := link.Clone()
	cur.Title = upd.Title
	cur.URL = upd.URL
	cur.FaviconURL = upd.FaviconURL
	cur.CustomIconURL = upd.CustomIconURL
	cur.UpdatedAt = upd.UpdatedAt
	t.st.links[link.ID] = cur
	return nil
}

func (t *tx) DeleteLink(_ context.Context, id int64) error {
	if _, ok := t.st.links[id]; !ok {
		return storage.ErrNotFound
	}
	delete(t.st.links, id)
	return nil
}

func (t *tx) SetPosition(_ context.Context, id int64, position int, now time.Time) error {
	l, ok := t.st.links[id]
	if !ok {
		return storage.ErrNotFound
	}
	l.PositionOrder = position
	l.UpdatedAt = now
	t.st.links[id] = l
	return nil
}

func (t *tx) ShiftPositions(_ context.Context, userID string, after, delta int, now time.Time) error {
	for id, l := range t.st.links {
		if l.UserID == userID && l.PositionOrder > after {
			l.PositionOrder += delta
			l.UpdatedAt = now
			t.st.links[id] = l
		}
	}
	return nil
}

// snapshot формат файла. Хеш пароля сохраняется явно, так как
// model.User его не сериализует.
type snapshot struct {
	NextID int64          `json:"next_id"`
	Users  []snapshotUser `json:"users"`
	Links  []model.Link   `json:"links"`
}

type snapshotUser struct {
	model.User
	PasswordHash string `json:"password_hash"`
}

// load загружает снимок при старте.
func (s *Store) load() error {
	if s.file == "" {
		return nil
	}
	data, err := os.ReadFile(s.file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // файл ещё не создан
		}
		return err
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	st := newState()
	st.nextID = snap.NextID
	for _, u := range snap.Users {
		user := u.User
		user.PasswordHash = u.PasswordHash
		st.users[user.ID] = user
	}
	for _, l := range snap.Links {
		st.links[l.ID] = l
		if l.ID > st.nextID {
			st.nextID = l.ID
		}
	}
	s.state = st
	s.logger.Info("snapshot loaded",
		zap.String("file", s.file),
		zap.Int("users", len(st.users)),
		zap.Int("links", len(st.links)),
	)
	return nil
}

// persist атомарно перезаписывает файл снимка.
func (s *Store) persist(st *state) error {
	if s.file == "" {
		return nil
	}
	snap := snapshot{NextID: st.nextID}
	for _, u := range st.users {
		snap.Users = append(snap.Users, snapshotUser{User: u, PasswordHash: u.PasswordHash})
	}
	for _, l := range st.links {
		snap.Links = append(snap.Links, l)
	}
	slices.SortFunc(snap.Users, func(a, b snapshotUser) int { return cmp.Compare(a.ID, b.ID) })
	slices.SortFunc(snap.Links, func(a, b model.Link) int { return cmp.Compare(a.ID, b.ID) })

	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.file), filepath.Base(s.file)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.file)
}
