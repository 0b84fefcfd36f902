package portalclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// StoredSession is what a TokenStore persists between runs.
type StoredSession struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenStore persists the session token. Load returns nil, nil when nothing is stored.
type TokenStore interface {
	Load(ctx context.Context) (*StoredSession, error)
	Save(ctx context.Context, s StoredSession) error
	Clear(ctx context.Context) error
}

type MemoryStore struct {
	mu sync.Mutex
	s  *StoredSession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(context.Context) (*StoredSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.s == nil {
		return nil, nil
	}
	cp := *m.s
	return &cp, nil
}

func (m *MemoryStore) Save(_ context.Context, s StoredSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = &s
	return nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = nil
	return nil
}

// FileStore keeps the session as a JSON file readable only by the owner.
type FileStore struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
}

// NewFileStore stores the session at path on fs. Use afero.NewOsFs for the real disk.
func NewFileStore(fs afero.Fs, path string) *FileStore {
	return &FileStore{fs: fs, path: path}
}

func (f *FileStore) Load(context.Context) (*StoredSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, err := afero.ReadFile(f.fs, f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	var s StoredSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("corrupt session file %s: %w", f.path, err)
	}
	return &s, nil
}

func (f *FileStore) Save(_ context.Context, s StoredSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := f.fs.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	return afero.WriteFile(f.fs, f.path, raw, 0o600)
}

func (f *FileStore) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fs.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// Session is the client's view of the current login. It caches what the store
// holds; the server stays the authority on validity.
type Session struct {
	store TokenStore
	mu    sync.RWMutex
	cur   *StoredSession
}

func newSession(store TokenStore) *Session {
	return &Session{store: store}
}

// Init loads a persisted session, if any.
func (s *Session) Init(ctx context.Context) error {
	stored, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cur = stored
	s.mu.Unlock()
	return nil
}

// Teardown forgets the session locally and in the store.
func (s *Session) Teardown(ctx context.Context) error {
	s.mu.Lock()
	s.cur = nil
	s.mu.Unlock()
	return s.store.Clear(ctx)
}

// Token returns the current session token or "".
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cur == nil {
		return ""
	}
	return s.cur.Token
}

// Current returns a copy of the current session, or nil.
func (s *Session) Current() *StoredSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cur == nil {
		return nil
	}
	cp := *s.cur
	return &cp
}

// expired reports whether the stored expiry already passed.
func (s *Session) expired(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur != nil && !s.cur.ExpiresAt.IsZero() && !now.Before(s.cur.ExpiresAt)
}

func (s *Session) set(ctx context.Context, stored StoredSession) error {
	if err := s.store.Save(ctx, stored); err != nil {
		return err
	}
	s.mu.Lock()
	s.cur = &stored
	s.mu.Unlock()
	return nil
}
