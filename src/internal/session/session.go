package session

import "time"

// ExpiryBuffer is how long before the real expiry an access token is already
// treated as expired, so a request never leaves with a token that dies in flight.
const ExpiryBuffer = 60 * time.Second

// User is the identity of the logged-in customer.
type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

// Session is the authentication state. Empty strings stand for absent tokens,
// a zero TokenExpiresAt for an absent expiry and a nil User for no identity.
//
// IsAuthenticated implies User != nil and AccessToken != "".
type Session struct {
	User            *User  `json:"user"`
	AccessToken     string `json:"accessToken"`
	RefreshToken    string `json:"refreshToken"`
	TokenExpiresAt  int64  `json:"tokenExpiresAt"` // epoch milliseconds
	IsAuthenticated bool   `json:"isAuthenticated"`
}

func Empty() Session {
	return Session{}
}

// WithLogin replaces every field: the new identity, a fresh token pair and
// IsAuthenticated set.
func (s Session) WithLogin(user User, accessToken, refreshToken string, expiresIn int64, now time.Time) Session {
	return Session{
		User:            &user,
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		TokenExpiresAt:  expiresAt(now, expiresIn),
		IsAuthenticated: true,
	}
}

// WithTokens swaps the token pair and recomputes the expiry. User and
// IsAuthenticated are carried over as they are, even when unauthenticated.
func (s Session) WithTokens(accessToken, refreshToken string, expiresIn int64, now time.Time) Session {
	s.AccessToken = accessToken
	s.RefreshToken = refreshToken
	s.TokenExpiresAt = expiresAt(now, expiresIn)
	return s
}

// WithUser replaces the identity and nothing else.
func (s Session) WithUser(user User) Session {
	s.User = &user
	return s
}

func (s Session) IsTokenExpired(now time.Time) bool {
	if s.TokenExpiresAt == 0 {
		return true
	}
	return s.TokenExpiresAt-now.UnixMilli() < ExpiryBuffer.Milliseconds()
}

// UsableAccessToken returns the access token only while authenticated and
// outside the expiry buffer; otherwise "".
func (s Session) UsableAccessToken(now time.Time) string {
	if !s.IsAuthenticated || s.IsTokenExpired(now) {
		return ""
	}
	return s.AccessToken
}

func (s Session) IsEmpty() bool {
	return s == Session{}
}

func (s Session) clone() Session {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

func expiresAt(now time.Time, expiresIn int64) int64 {
	return now.UnixMilli() + expiresIn*1000
}
