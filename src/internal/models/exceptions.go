package models

import "errors"

var (
	ErrStorageKeyNotFound = errors.New("storage key not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrStorageGet         = errors.New("storage get error")
	ErrStorageSet         = errors.New("storage set error")
	ErrStorageDelete      = errors.New("storage delete error")
	ErrUnknownStorage     = errors.New("unknown storage driver")
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionCorrupt  = errors.New("persisted session is corrupt")
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrRefreshTokenMissing = errors.New("refresh token missing")
	ErrRefreshRejected     = errors.New("refresh token rejected")
	ErrUnexpectedStatus    = errors.New("unexpected response status")
	ErrInvalidParams       = errors.New("invalid parameters")
)

var (
	ErrInvalidToken = errors.New("invalid token")
)
