package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront-session-svc/src/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(store *session.Store, handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORS)

	chain := append([]gin.HandlerFunc{RequireSession(store, "/login")}, handlers...)
	chain = append(chain, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":   c.GetInt64("user_id"),
			"user_role": c.GetString("user_role"),
		})
	})
	router.GET("/protected", chain...)
	return router
}

func TestRequireSession_RejectsAnonymous(t *testing.T) {
	router := newRouter(session.NewStore(nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))

	require.Equal(t, http.StatusUnauthorized, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "/login?session=expired", body["redirect"])
}

func TestRequireSession_SetsIdentity(t *testing.T) {
	store := session.NewStore(nil)
	store.Login(context.Background(), session.User{ID: 9, Role: "CUSTOMER"}, "access", "refresh", 3600)
	router := newRouter(store)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(9), body["user_id"])
	assert.Equal(t, "CUSTOMER", body["user_role"])
}

func TestRequireSession_AfterLogout(t *testing.T) {
	store := session.NewStore(nil)
	ctx := context.Background()
	store.Login(ctx, session.User{ID: 9}, "access", "refresh", 3600)
	store.Logout(ctx)
	router := newRouter(store)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRole(t *testing.T) {
	store := session.NewStore(nil)
	store.Login(context.Background(), session.User{ID: 9, Role: "CUSTOMER"}, "access", "refresh", 3600)

	w := httptest.NewRecorder()
	newRouter(store, RequireRole("ADMIN")).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	newRouter(store, RequireRole("CUSTOMER")).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORS_Preflight(t *testing.T) {
	router := newRouter(session.NewStore(nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/protected", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
