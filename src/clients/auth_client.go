package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"storefront-session-svc/src/internal/config"
	"storefront-session-svc/src/internal/models"
	"storefront-session-svc/src/internal/session"
	"storefront-session-svc/src/internal/token"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	loginPath    = "/api/auth/login"
	registerPath = "/api/auth/register"
	refreshPath  = "/api/auth/refresh-token"
	profilePath  = "/api/users/profile"
)

// AuthResponse is the backend's answer to login, register and refresh.
type AuthResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	Type         string `json:"type"`
	ExpiresIn    *int64 `json:"expiresIn"`
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Role         string `json:"role"`
}

func (r *AuthResponse) user() session.User {
	return session.User{
		ID:        r.ID,
		Email:     r.Email,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Role:      r.Role,
	}
}

type RegisterRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// SessionExpiredError is returned when the session could not be renewed and
// the user has to authenticate again at Redirect.
type SessionExpiredError struct {
	Redirect string
	Cause    error
}

func (e *SessionExpiredError) Error() string {
	if e.Cause == nil {
		return models.ErrSessionExpired.Error()
	}
	return fmt.Sprintf("%s: %v", models.ErrSessionExpired, e.Cause)
}

func (e *SessionExpiredError) Unwrap() []error {
	return []error{models.ErrSessionExpired, e.Cause}
}

// AuthClient talks to the storefront REST backend on behalf of the session
// store: it attaches the bearer token, renews it when it runs out and clears
// the session when renewal is refused.
type AuthClient struct {
	baseURL          string
	loginRedirect    string
	defaultExpiresIn int64
	httpClient       *http.Client
	store            *session.Store
	refreshMu        sync.Mutex
}

func NewAuthClient(cfg *config.Configuration, store *session.Store) *AuthClient {
	return &AuthClient{
		baseURL:          strings.TrimRight(cfg.Api.Url, "/"),
		loginRedirect:    session.ExpiredRedirect(cfg.Api.LoginPath),
		defaultExpiresIn: cfg.Session.DefaultExpiresIn,
		store:            store,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Api.Timeout) * time.Second,
		},
	}
}

// Login authenticates against the backend and establishes the session.
func (c *AuthClient) Login(ctx context.Context, email, password string) (*session.User, error) {
	body := map[string]string{"email": email, "password": password}
	return c.authenticate(ctx, loginPath, body)
}

// Register creates the account and establishes the session in one step.
func (c *AuthClient) Register(ctx context.Context, req *RegisterRequest) (*session.User, error) {
	if req == nil || req.Email == "" || req.Password == "" {
		return nil, models.ErrInvalidParams
	}
	return c.authenticate(ctx, registerPath, req)
}

// Logout only clears local state; the backend keeps no session to revoke.
func (c *AuthClient) Logout(ctx context.Context) {
	c.store.Logout(ctx)
}

// Refresh renews the token pair unconditionally.
func (c *AuthClient) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	return c.refreshLocked(ctx)
}

// refreshIfStale renews unless another caller already replaced stale while
// this one waited for the lock.
func (c *AuthClient) refreshIfStale(ctx context.Context, stale string) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	if current := c.store.GetAccessToken(); current != "" && current != stale {
		return nil
	}
	return c.refreshLocked(ctx)
}

func (c *AuthClient) refreshLocked(ctx context.Context) error {
	refreshToken := c.store.RefreshToken()
	if refreshToken == "" {
		c.store.Logout(ctx)
		return c.expired(models.ErrRefreshTokenMissing)
	}

	endpoint := c.baseURL + refreshPath + "?refreshToken=" + url.QueryEscape(refreshToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.send(req)
	if err != nil {
		// transport failure says nothing about the refresh token; keep the session
		return fmt.Errorf("failed to call refresh endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logrus.WithField("status", resp.StatusCode).Warn("Refresh token rejected, clearing session")
		c.store.Logout(ctx)
		return c.expired(fmt.Errorf("%w: status %d", models.ErrRefreshRejected, resp.StatusCode))
	}

	var auth AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if auth.Token == "" {
		c.store.Logout(ctx)
		return c.expired(fmt.Errorf("%w: empty token", models.ErrRefreshRejected))
	}

	nextRefresh := auth.RefreshToken
	if nextRefresh == "" {
		nextRefresh = refreshToken
	}

	c.store.UpdateTokens(ctx, auth.Token, nextRefresh, c.expiresIn(&auth))
	logrus.Debug("Access token refreshed")
	return nil
}

// Do sends an authenticated request. A missing or nearly expired access token
// is renewed first; a 401 answer triggers one renewal and one retry. Requests
// with a body must be replayable (GetBody set) to be retried.
func (c *AuthClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)

	accessToken := c.store.GetAccessToken()
	if accessToken == "" {
		if err := c.refreshIfStale(ctx, ""); err != nil {
			return nil, err
		}
		accessToken = c.store.GetAccessToken()
		if accessToken == "" {
			c.store.Logout(ctx)
			return nil, c.expired(models.ErrSessionNotFound)
		}
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	logrus.WithField("url", req.URL.Path).Info("Access token rejected, refreshing")

	if err := c.refreshIfStale(ctx, accessToken); err != nil {
		return nil, err
	}

	refreshed := c.store.GetAccessToken()
	if refreshed == "" {
		c.store.Logout(ctx)
		return nil, c.expired(models.ErrSessionNotFound)
	}

	retry, err := replay(req)
	if err != nil {
		return nil, err
	}
	retry.Header.Set("Authorization", "Bearer "+refreshed)

	return c.send(retry)
}

// FetchProfile loads the profile and refreshes the stored identity with it.
func (c *AuthClient) FetchProfile(ctx context.Context) (*session.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+profilePath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.profileRequest(ctx, req)
}

func (c *AuthClient) UpdateProfile(ctx context.Context, update *session.ProfileUpdate) (*session.User, error) {
	if update == nil {
		return nil, models.ErrInvalidParams
	}

	payload, err := json.Marshal(update)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal profile update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+profilePath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.profileRequest(ctx, req)
}

func (c *AuthClient) profileRequest(ctx context.Context, req *http.Request) (*session.User, error) {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", models.ErrUnexpectedStatus, resp.StatusCode)
	}

	var user session.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.store.UpdateUser(ctx, user)
	return &user, nil
}

func (c *AuthClient) authenticate(ctx context.Context, path string, body any) (*session.User, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.send(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call storefront api: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, models.ErrInvalidCredentials
	case resp.StatusCode == http.StatusBadRequest:
		return nil, fmt.Errorf("%w: status %d", models.ErrInvalidParams, resp.StatusCode)
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
		return nil, fmt.Errorf("%w: %d", models.ErrUnexpectedStatus, resp.StatusCode)
	}

	var auth AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if auth.Token == "" {
		return nil, models.ErrInvalidCredentials
	}

	if auth.RefreshToken == "" {
		logrus.WithField("path", path).Warn("Storefront api issued no refresh token, session cannot be renewed")
	}

	user := auth.user()
	c.store.Login(ctx, user, auth.Token, auth.RefreshToken, c.expiresIn(&auth))

	logrus.WithFields(logrus.Fields{
		"user_id": user.ID,
		"role":    user.Role,
	}).Info("Authenticated against storefront api")

	return &user, nil
}

// expiresIn prefers the server-supplied lifetime, then the token's exp claim,
// then the configured default.
func (c *AuthClient) expiresIn(auth *AuthResponse) int64 {
	if auth.ExpiresIn != nil && *auth.ExpiresIn > 0 {
		return *auth.ExpiresIn
	}
	return token.ExpiresIn(auth.Token, time.Now(), c.defaultExpiresIn)
}

func (c *AuthClient) send(req *http.Request) (*http.Response, error) {
	if req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}
	req.Header.Set("Accept", "application/json")
	return c.httpClient.Do(req)
}

func (c *AuthClient) expired(cause error) error {
	return &SessionExpiredError{Redirect: c.loginRedirect, Cause: cause}
}

func replay(req *http.Request) (*http.Request, error) {
	retry := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return retry, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("request body cannot be replayed")
	}

	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("failed to replay request body: %w", err)
	}
	retry.Body = body
	return retry, nil
}
