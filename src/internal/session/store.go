package session

import (
	"context"
	"sync"
	"time"

	"storefront-session-svc/src/internal/models"
	"storefront-session-svc/src/internal/storage"
	"storefront-session-svc/src/internal/token"

	"github.com/sirupsen/logrus"
)

// Event describes a completed session transition.
type Event struct {
	Action    string
	User      *User
	SessionID string
	At        time.Time
}

// Listener is notified after a transition has been applied. It runs outside
// the store lock and may read the store.
type Listener interface {
	SessionChanged(ctx context.Context, event Event)
}

// Store holds the process-wide session and mirrors it into durable storage.
// Create one at startup, call Hydrate once, and pass it to whoever needs it.
//
// Mutations are serialized; the last call to complete wins. No method returns
// an error: storage failures are logged and the in-memory session stays
// authoritative for the rest of the process lifetime.
type Store struct {
	mu             sync.RWMutex
	state          Session
	storage        storage.Storage
	listener       Listener
	now            func() time.Time
	storageTimeout time.Duration
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithListener(listener Listener) Option {
	return func(s *Store) { s.listener = listener }
}

// WithStorageTimeout bounds every single storage call.
func WithStorageTimeout(timeout time.Duration) Option {
	return func(s *Store) { s.storageTimeout = timeout }
}

// NewStore returns an empty store. A nil storage keeps the session in memory only.
func NewStore(st storage.Storage, opts ...Option) *Store {
	if st == nil {
		st = storage.NewMemoryStorage()
	}

	s := &Store{
		state:   Empty(),
		storage: st,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hydrate replaces the in-memory session with the persisted one, or with the
// empty session when nothing usable is stored. The lock is held across the
// load so a concurrent mutation is never overwritten by an older snapshot.
func (s *Store) Hydrate(ctx context.Context) Session {
	s.mu.Lock()
	restored, err := s.load(ctx)
	if err != nil {
		entry := logrus.WithError(err)
		if isMissing(err) {
			entry.Debug("No persisted session, starting empty")
		} else {
			entry.Warn("Persisted session unusable, starting empty")
		}
		restored = Empty()
	}
	s.state = restored
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"authenticated": restored.IsAuthenticated,
		"expires_at":    restored.TokenExpiresAt,
	}).Info("Session hydrated")

	return restored.clone()
}

func (s *Store) Login(ctx context.Context, user User, accessToken, refreshToken string, expiresIn int64) {
	s.mu.Lock()
	next := s.state.WithLogin(user, accessToken, refreshToken, expiresIn, s.now())
	s.persistTokens(ctx, next)
	s.persistUser(ctx, next)
	s.persistSnapshot(ctx, next)
	s.state = next
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"user_id":    user.ID,
		"expires_at": next.TokenExpiresAt,
	}).Info("Session established")

	s.notify(ctx, models.ActionLogin, next)
}

// Logout removes every persisted key and resets to the empty session.
// Calling it on an empty session is a no-op with the same end state.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	previous := s.state
	s.clear(ctx)
	s.state = Empty()
	s.mu.Unlock()

	if previous.IsEmpty() {
		return
	}

	logrus.Info("Session cleared")
	s.notify(ctx, models.ActionLogout, previous)
}

// UpdateUser replaces the identity only. It does not check IsAuthenticated.
func (s *Store) UpdateUser(ctx context.Context, user User) {
	s.mu.Lock()
	next := s.state.WithUser(user)
	s.persistUser(ctx, next)
	s.persistSnapshot(ctx, next)
	s.state = next
	s.mu.Unlock()

	logrus.WithField("user_id", user.ID).Debug("Session user updated")
	s.notify(ctx, models.ActionUserUpdated, next)
}

// UpdateTokens installs a renewed token pair. It never touches User or
// IsAuthenticated: a refresh that completes after Logout repopulates the
// token fields but leaves the session unauthenticated.
func (s *Store) UpdateTokens(ctx context.Context, accessToken, refreshToken string, expiresIn int64) {
	s.mu.Lock()
	next := s.state.WithTokens(accessToken, refreshToken, expiresIn, s.now())
	s.persistTokens(ctx, next)
	s.persistSnapshot(ctx, next)
	s.state = next
	s.mu.Unlock()

	if !next.IsAuthenticated {
		logrus.Warn("Tokens updated on an unauthenticated session")
	}
	logrus.WithField("expires_at", next.TokenExpiresAt).Debug("Session tokens updated")
	s.notify(ctx, models.ActionTokensRefreshed, next)
}

// IsTokenExpired reports true with no expiry set or within ExpiryBuffer of it.
func (s *Store) IsTokenExpired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsTokenExpired(s.now())
}

// GetAccessToken returns the bearer token to use, or "" when the caller has to
// refresh or re-authenticate.
func (s *Store) GetAccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.UsableAccessToken(s.now())
}

// RefreshToken returns the held refresh token regardless of expiry.
func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.RefreshToken
}

func (s *Store) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone().User
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsAuthenticated
}

// Snapshot returns a copy of the whole session.
func (s *Store) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Ping checks the durable storage behind the store.
func (s *Store) Ping(ctx context.Context) error {
	return s.storage.Ping(ctx)
}

func (s *Store) notify(ctx context.Context, action string, state Session) {
	if s.listener == nil {
		return
	}

	s.listener.SessionChanged(ctx, Event{
		Action:    action,
		User:      state.clone().User,
		SessionID: token.SessionID(state.AccessToken),
		At:        s.now(),
	})
}

func (s *Store) storageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.storageTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.storageTimeout)
}
