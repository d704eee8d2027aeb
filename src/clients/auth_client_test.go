package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"storefront-session-svc/src/internal/config"
	"storefront-session-svc/src/internal/models"
	"storefront-session-svc/src/internal/session"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*AuthClient, *session.Store) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Configuration{
		Api:     config.ApiSettings{Url: server.URL + "/", Timeout: 5, LoginPath: "/login"},
		Session: config.SessionSettings{DefaultExpiresIn: 3600},
	}
	store := session.NewStore(nil)

	return NewAuthClient(cfg, store), store
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func authBody(token, refresh string, expiresIn int64) map[string]any {
	body := map[string]any{
		"token":        token,
		"refreshToken": refresh,
		"type":         "Bearer",
		"id":           7,
		"email":        "ada@example.com",
		"firstName":    "Ada",
		"lastName":     "Lovelace",
		"role":         "CUSTOMER",
	}
	if expiresIn > 0 {
		body["expiresIn"] = expiresIn
	}
	return body
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sessionId": "sess-1",
		"exp":       exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func TestLogin_EstablishesSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(loginPath, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ada@example.com", body["email"])
		assert.Equal(t, "secret", body["password"])

		writeJSON(w, http.StatusOK, authBody("access-1", "refresh-1", 3600))
	})
	client, store := newTestClient(t, mux)

	user, err := client.Login(context.Background(), "ada@example.com", "secret")
	require.NoError(t, err)

	assert.Equal(t, int64(7), user.ID)
	assert.True(t, store.IsAuthenticated())
	assert.Equal(t, "access-1", store.GetAccessToken())
	assert.Equal(t, "refresh-1", store.RefreshToken())
	assert.Equal(t, "Ada", store.User().FirstName)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	client, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "bad credentials"})
	}))

	_, err := client.Login(context.Background(), "ada@example.com", "wrong")

	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	assert.False(t, store.IsAuthenticated())
}

func TestLogin_ExpiresInFallsBackToTokenClaim(t *testing.T) {
	access := signedToken(t, time.Now().Add(2*time.Hour))
	client, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, authBody(access, "refresh-1", 0))
	}))

	_, err := client.Login(context.Background(), "ada@example.com", "secret")
	require.NoError(t, err)

	want := time.Now().Add(2 * time.Hour).UnixMilli()
	assert.InDelta(t, want, store.Snapshot().TokenExpiresAt, 5000)
}

func TestLogin_ExpiresInFallsBackToDefault(t *testing.T) {
	client, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, authBody("opaque-token", "refresh-1", 0))
	}))

	_, err := client.Login(context.Background(), "ada@example.com", "secret")
	require.NoError(t, err)

	want := time.Now().Add(time.Hour).UnixMilli()
	assert.InDelta(t, want, store.Snapshot().TokenExpiresAt, 5000)
}

func TestRegister_RequiresCredentials(t *testing.T) {
	client, _ := newTestClient(t, http.NotFoundHandler())

	_, err := client.Register(context.Background(), &RegisterRequest{FirstName: "Ada"})

	assert.ErrorIs(t, err, models.ErrInvalidParams)
}

func TestRegister_EstablishesSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(registerPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, authBody("access-1", "refresh-1", 3600))
	})
	client, store := newTestClient(t, mux)

	_, err := client.Register(context.Background(), &RegisterRequest{Email: "ada@example.com", Password: "secret"})
	require.NoError(t, err)

	assert.True(t, store.IsAuthenticated())
}

func TestDo_RetriesOnceAfterUnauthorized(t *testing.T) {
	var refreshCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc(loginPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, authBody("access-1", "refresh-1", 3600))
	})
	mux.HandleFunc(refreshPath, func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		assert.Equal(t, "refresh-1", r.URL.Query().Get("refreshToken"))
		writeJSON(w, http.StatusOK, authBody("access-2", "refresh-2", 3600))
	})
	mux.HandleFunc(profilePath, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, session.User{ID: 7, Email: "ada@example.com", FirstName: "Augusta"})
	})
	client, store := newTestClient(t, mux)

	_, err := client.Login(context.Background(), "ada@example.com", "secret")
	require.NoError(t, err)

	user, err := client.FetchProfile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Augusta", user.FirstName)
	assert.Equal(t, int32(1), refreshCalls.Load())
	assert.Equal(t, "access-2", store.GetAccessToken())
	assert.Equal(t, "refresh-2", store.RefreshToken())
	assert.Equal(t, "Augusta", store.User().FirstName)
}

func TestDo_RefreshesStaleTokenBeforeSending(t *testing.T) {
	var refreshCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc(loginPath, func(w http.ResponseWriter, r *http.Request) {
		// inside the expiry buffer from the start
		writeJSON(w, http.StatusOK, authBody("access-1", "refresh-1", 30))
	})
	mux.HandleFunc(refreshPath, func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		writeJSON(w, http.StatusOK, authBody("access-2", "", 3600))
	})
	mux.HandleFunc(profilePath, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-2", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, session.User{ID: 7})
	})
	client, store := newTestClient(t, mux)

	_, err := client.Login(context.Background(), "ada@example.com", "secret")
	require.NoError(t, err)
	require.Empty(t, store.GetAccessToken())

	_, err = client.FetchProfile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), refreshCalls.Load())
	assert.Equal(t, "refresh-1", store.RefreshToken(), "omitted refresh token keeps the old one")
}

func TestDo_RefreshRejectedClearsSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(loginPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, authBody("access-1", "refresh-1", 3600))
	})
	mux.HandleFunc(refreshPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc(profilePath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	client, store := newTestClient(t, mux)

	_, err := client.Login(context.Background(), "ada@example.com", "secret")
	require.NoError(t, err)

	_, err = client.FetchProfile(context.Background())

	var expired *SessionExpiredError
	require.True(t, errors.As(err, &expired))
	assert.Equal(t, "/login?session=expired", expired.Redirect)
	assert.ErrorIs(t, err, models.ErrSessionExpired)
	assert.ErrorIs(t, err, models.ErrRefreshRejected)
	assert.False(t, store.IsAuthenticated())
	assert.True(t, store.Snapshot().IsEmpty())
}

func TestDo_RefreshedTokenInsideBufferEndsSession(t *testing.T) {
	var bearers []string

	mux := http.NewServeMux()
	mux.HandleFunc(loginPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, authBody("old", "refresh-1", 3600))
	})
	mux.HandleFunc(refreshPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"token": "new", "expiresIn": 30})
	})
	mux.HandleFunc(profilePath, func(w http.ResponseWriter, r *http.Request) {
		bearers = append(bearers, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
	})
	client, store := newTestClient(t, mux)

	_, err := client.Login(context.Background(), "ada@example.com", "secret")
	require.NoError(t, err)

	_, err = client.FetchProfile(context.Background())

	var expired *SessionExpiredError
	require.True(t, errors.As(err, &expired))
	assert.Equal(t, "/login?session=expired", expired.Redirect)
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
	assert.Equal(t, []string{"Bearer old"}, bearers, "no retry with an empty bearer")
	assert.False(t, store.IsAuthenticated())
}

func TestLogin_WithoutRefreshToken(t *testing.T) {
	client, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, authBody("access-1", "", 3600))
	}))

	_, err := client.Login(context.Background(), "ada@example.com", "secret")
	require.NoError(t, err)

	assert.True(t, store.IsAuthenticated())
	assert.Empty(t, store.RefreshToken())
}

func TestDo_TransportErrorKeepsSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(loginPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, authBody("access-1", "refresh-1", 30))
	})
	server := httptest.NewServer(mux)

	cfg := &config.Configuration{
		Api:     config.ApiSettings{Url: server.URL, Timeout: 5, LoginPath: "/login"},
		Session: config.SessionSettings{DefaultExpiresIn: 3600},
	}
	store := session.NewStore(nil)
	client := NewAuthClient(cfg, store)

	_, err := client.Login(context.Background(), "ada@example.com", "secret")
	require.NoError(t, err)
	server.Close()

	err = client.Refresh(context.Background())

	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrSessionExpired)
	assert.True(t, store.IsAuthenticated())
	assert.Equal(t, "refresh-1", store.RefreshToken())
}

func TestRefresh_WithoutRefreshToken(t *testing.T) {
	client, store := newTestClient(t, http.NotFoundHandler())

	err := client.Refresh(context.Background())

	assert.ErrorIs(t, err, models.ErrSessionExpired)
	assert.ErrorIs(t, err, models.ErrRefreshTokenMissing)
	assert.False(t, store.IsAuthenticated())
}

func TestUpdateProfile_ReplaysBodyOnRetry(t *testing.T) {
	var profileCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc(loginPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, authBody("access-1", "refresh-1", 3600))
	})
	mux.HandleFunc(refreshPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, authBody("access-2", "refresh-2", 3600))
	})
	mux.HandleFunc(profilePath, func(w http.ResponseWriter, r *http.Request) {
		profileCalls.Add(1)
		assert.Equal(t, http.MethodPut, r.Method)

		var update session.ProfileUpdate
		require.NoError(t, json.NewDecoder(r.Body).Decode(&update))
		assert.Equal(t, "Augusta", update.FirstName)

		if r.Header.Get("Authorization") != "Bearer access-2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, session.User{ID: 7, FirstName: update.FirstName, LastName: update.LastName})
	})
	client, store := newTestClient(t, mux)

	_, err := client.Login(context.Background(), "ada@example.com", "secret")
	require.NoError(t, err)

	user, err := client.UpdateProfile(context.Background(), &session.ProfileUpdate{FirstName: "Augusta", LastName: "King"})
	require.NoError(t, err)

	assert.Equal(t, int32(2), profileCalls.Load())
	assert.Equal(t, "King", user.LastName)
	assert.Equal(t, "King", store.User().LastName)
}

func TestUpdateProfile_RejectsNil(t *testing.T) {
	client, _ := newTestClient(t, http.NotFoundHandler())

	_, err := client.UpdateProfile(context.Background(), nil)

	assert.ErrorIs(t, err, models.ErrInvalidParams)
}

func TestFetchProfile_UnexpectedStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(loginPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, authBody("access-1", "refresh-1", 3600))
	})
	mux.HandleFunc(profilePath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	client, store := newTestClient(t, mux)

	_, err := client.Login(context.Background(), "ada@example.com", "secret")
	require.NoError(t, err)

	_, err = client.FetchProfile(context.Background())

	assert.ErrorIs(t, err, models.ErrUnexpectedStatus)
	assert.True(t, store.IsAuthenticated())
}

var _ session.Authenticator = (*AuthClient)(nil)
