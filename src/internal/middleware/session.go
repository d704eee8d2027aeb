package middleware

import (
	"net/http"

	"storefront-session-svc/src/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RequireSession lets a request through only while the store holds an
// authenticated session. It does not check token expiry: the auth client
// renews stale tokens on the next backend call.
func RequireSession(store *session.Store, loginPath string) gin.HandlerFunc {
	redirect := session.ExpiredRedirect(loginPath)

	return func(c *gin.Context) {
		if !store.IsAuthenticated() {
			logrus.WithField("path", c.FullPath()).Debug("Request without an authenticated session")
			c.JSON(http.StatusUnauthorized, gin.H{
				"success":  false,
				"error":    "Authentication required",
				"redirect": redirect,
			})
			c.Abort()
			return
		}

		if user := store.User(); user != nil {
			c.Set("user_id", user.ID)
			c.Set("user_role", user.Role)
		}

		c.Next()
	}
}

// RequireRole must run after RequireSession.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, exists := c.Get("user_role")
		if !exists {
			logrus.Error("User role not found in context - ensure RequireSession runs first")
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Authentication required",
			})
			c.Abort()
			return
		}

		if userRole != role {
			userID, _ := c.Get("user_id")
			logrus.WithFields(logrus.Fields{
				"user_id":   userID,
				"user_role": userRole,
			}).Warn("Access denied for role")

			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "Access forbidden",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// CORS allows the storefront UI to call the view API from another origin.
func CORS(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}

	c.Next()
}
