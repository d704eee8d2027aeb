package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"storefront-session-svc/src/internal/config"
	"storefront-session-svc/src/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Authenticator performs the backend calls the view API relays.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*User, error)
	Refresh(ctx context.Context) error
	FetchProfile(ctx context.Context) (*User, error)
	UpdateProfile(ctx context.Context, req *ProfileUpdate) (*User, error)
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ProfileUpdate struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Address     string `json:"address,omitempty"`
	City        string `json:"city,omitempty"`
	Country     string `json:"country,omitempty"`
	ZipCode     string `json:"zipCode,omitempty"`
}

// View is what UI views may read. Tokens never leave the process.
type View struct {
	IsAuthenticated bool  `json:"isAuthenticated"`
	User            *User `json:"user"`
	TokenExpiresAt  int64 `json:"tokenExpiresAt,omitempty"`
	TokenExpired    bool  `json:"tokenExpired"`
}

type Handler interface {
	GetSession(c *gin.Context)
	Login(c *gin.Context)
	Logout(c *gin.Context)
	Refresh(c *gin.Context)
	GetProfile(c *gin.Context)
	UpdateProfile(c *gin.Context)
}

type handler struct {
	config *config.Configuration
	store  *Store
	auth   Authenticator
}

func NewHandler(cfg *config.Configuration, store *Store, auth Authenticator) Handler {
	return &handler{
		config: cfg,
		store:  store,
		auth:   auth,
	}
}

func (h *handler) GetSession(c *gin.Context) {
	snapshot := h.store.Snapshot()

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": View{
			IsAuthenticated: snapshot.IsAuthenticated,
			User:            snapshot.User,
			TokenExpiresAt:  snapshot.TokenExpiresAt,
			TokenExpired:    h.store.IsTokenExpired(),
		},
	})
}

func (h *handler) Login(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendErrorResponse(c, http.StatusBadRequest, "Invalid login request", err.Error())
		return
	}

	logrus.WithField("email", req.Email).Info("Login requested")

	user, err := h.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    user,
		"message": "Login successful",
	})
}

func (h *handler) Logout(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	h.store.Logout(ctx)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Logged out",
	})
}

func (h *handler) Refresh(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.auth.Refresh(ctx); err != nil {
		h.handleAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"tokenExpiresAt": h.store.Snapshot().TokenExpiresAt,
		},
		"message": "Session refreshed",
	})
}

func (h *handler) GetProfile(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	user, err := h.auth.FetchProfile(ctx)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    user,
	})
}

func (h *handler) UpdateProfile(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	var req ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendErrorResponse(c, http.StatusBadRequest, "Invalid profile update", err.Error())
		return
	}

	user, err := h.auth.UpdateProfile(ctx, &req)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    user,
		"message": "Profile updated successfully",
	})
}

func (h *handler) handleAuthError(c *gin.Context, err error) {
	logrus.WithError(err).WithField("path", c.FullPath()).Warn("Session request failed")

	switch {
	case errors.Is(err, models.ErrSessionExpired):
		c.JSON(http.StatusUnauthorized, gin.H{
			"success":  false,
			"error":    "Session expired - please login again",
			"redirect": ExpiredRedirect(h.config.Api.LoginPath),
		})
	case errors.Is(err, models.ErrInvalidCredentials):
		h.sendErrorResponse(c, http.StatusUnauthorized, "Invalid credentials", "Please check your email and password")
	case errors.Is(err, models.ErrInvalidParams):
		h.sendErrorResponse(c, http.StatusBadRequest, "Invalid request", err.Error())
	default:
		h.sendErrorResponse(c, http.StatusBadGateway, "Storefront API request failed", err.Error())
	}
}

func (h *handler) sendErrorResponse(c *gin.Context, statusCode int, error, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error":   error,
		"message": message,
	})
}

func (h *handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	timeout := time.Duration(h.config.App.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(c.Request.Context(), timeout)
}

// ExpiredRedirect is the re-authentication entry point carrying the
// "session expired" indicator.
func ExpiredRedirect(loginPath string) string {
	if loginPath == "" {
		loginPath = "/login"
	}
	return loginPath + "?session=expired"
}
