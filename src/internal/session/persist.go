package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"storefront-session-svc/src/internal/models"

	"github.com/sirupsen/logrus"
)

// Durable storage keys.
const (
	KeyAccessToken    = "accessToken"
	KeyRefreshToken   = "refreshToken"
	KeyUser           = "user"
	KeyTokenExpiresAt = "tokenExpiresAt"
	KeySnapshot       = "auth-storage"

	// KeyLegacyToken mirrors accessToken for readers still using the old key.
	// It is written alongside accessToken and never read back.
	KeyLegacyToken = "token"
)

var allKeys = []string{
	KeyAccessToken,
	KeyLegacyToken,
	KeyRefreshToken,
	KeyUser,
	KeyTokenExpiresAt,
	KeySnapshot,
}

type persistedState struct {
	User            *User   `json:"user"`
	AccessToken     *string `json:"accessToken"`
	RefreshToken    *string `json:"refreshToken"`
	TokenExpiresAt  *int64  `json:"tokenExpiresAt"`
	IsAuthenticated bool    `json:"isAuthenticated"`
}

type persistedSnapshot struct {
	State   persistedState `json:"state"`
	Version int            `json:"version"`
}

func encodeSnapshot(s Session) (string, error) {
	state := persistedState{
		User:            s.User,
		IsAuthenticated: s.IsAuthenticated,
	}
	if s.AccessToken != "" {
		state.AccessToken = &s.AccessToken
	}
	if s.RefreshToken != "" {
		state.RefreshToken = &s.RefreshToken
	}
	if s.TokenExpiresAt != 0 {
		state.TokenExpiresAt = &s.TokenExpiresAt
	}

	data, err := json.Marshal(persistedSnapshot{State: state})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// persistTokens writes the token half of the session.
func (s *Store) persistTokens(ctx context.Context, next Session) {
	s.write(ctx, KeyAccessToken, next.AccessToken)
	s.write(ctx, KeyLegacyToken, next.AccessToken)
	s.write(ctx, KeyRefreshToken, next.RefreshToken)
	s.write(ctx, KeyTokenExpiresAt, strconv.FormatInt(next.TokenExpiresAt, 10))
}

func (s *Store) persistUser(ctx context.Context, next Session) {
	if next.User == nil {
		return
	}

	data, err := json.Marshal(next.User)
	if err != nil {
		logrus.WithError(err).Warn("Failed to encode session user")
		return
	}
	s.write(ctx, KeyUser, string(data))
}

func (s *Store) persistSnapshot(ctx context.Context, next Session) {
	data, err := encodeSnapshot(next)
	if err != nil {
		logrus.WithError(err).Warn("Failed to encode session snapshot")
		return
	}
	s.write(ctx, KeySnapshot, data)
}

func (s *Store) clear(ctx context.Context) {
	ctx, cancel := s.storageContext(ctx)
	defer cancel()

	if err := s.storage.Delete(ctx, allKeys...); err != nil {
		logrus.WithError(err).Warn("Failed to clear persisted session, continuing in memory")
	}
}

// write never fails from the caller's point of view: the in-memory session
// stays authoritative when the storage refuses a write.
func (s *Store) write(ctx context.Context, key, value string) {
	ctx, cancel := s.storageContext(ctx)
	defer cancel()

	if err := s.storage.Set(ctx, key, value); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Failed to persist session value, continuing in memory")
	}
}

func (s *Store) read(ctx context.Context, key string) (string, error) {
	ctx, cancel := s.storageContext(ctx)
	defer cancel()

	value, err := s.storage.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", fmt.Errorf("%w: %s is empty", models.ErrSessionCorrupt, key)
	}
	return value, nil
}

func (s *Store) readOptional(ctx context.Context, key string) (string, error) {
	ctx, cancel := s.storageContext(ctx)
	defer cancel()

	return s.storage.Get(ctx, key)
}

// load rebuilds a session from storage. Any missing, unparseable or
// inconsistent key fails the whole load so a session is never half restored.
func (s *Store) load(ctx context.Context) (Session, error) {
	accessToken, err := s.read(ctx, KeyAccessToken)
	if err != nil {
		return Empty(), err
	}

	// a backend may issue no refresh token; the key is then stored empty
	refreshToken, err := s.readOptional(ctx, KeyRefreshToken)
	if err != nil {
		return Empty(), err
	}

	rawUser, err := s.read(ctx, KeyUser)
	if err != nil {
		return Empty(), err
	}
	var user User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		return Empty(), fmt.Errorf("%w: user: %v", models.ErrSessionCorrupt, err)
	}

	rawExpiresAt, err := s.read(ctx, KeyTokenExpiresAt)
	if err != nil {
		return Empty(), err
	}
	tokenExpiresAt, err := strconv.ParseInt(rawExpiresAt, 10, 64)
	if err != nil || tokenExpiresAt <= 0 {
		return Empty(), fmt.Errorf("%w: tokenExpiresAt %q", models.ErrSessionCorrupt, rawExpiresAt)
	}

	rawSnapshot, err := s.read(ctx, KeySnapshot)
	if err != nil {
		return Empty(), err
	}
	var snapshot persistedSnapshot
	if err := json.Unmarshal([]byte(rawSnapshot), &snapshot); err != nil {
		return Empty(), fmt.Errorf("%w: snapshot: %v", models.ErrSessionCorrupt, err)
	}

	restored := Session{
		User:            &user,
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		TokenExpiresAt:  tokenExpiresAt,
		IsAuthenticated: snapshot.State.IsAuthenticated,
	}

	if !snapshot.matches(restored) {
		return Empty(), fmt.Errorf("%w: snapshot disagrees with stored keys", models.ErrSessionCorrupt)
	}

	return restored, nil
}

func (p persistedSnapshot) matches(s Session) bool {
	st := p.State
	if st.User == nil || s.User == nil || *st.User != *s.User {
		return false
	}
	if st.AccessToken == nil || *st.AccessToken != s.AccessToken {
		return false
	}
	if st.RefreshToken == nil {
		if s.RefreshToken != "" {
			return false
		}
	} else if *st.RefreshToken != s.RefreshToken {
		return false
	}
	if st.TokenExpiresAt == nil || *st.TokenExpiresAt != s.TokenExpiresAt {
		return false
	}
	return true
}

func isMissing(err error) bool {
	return errors.Is(err, models.ErrStorageKeyNotFound)
}
