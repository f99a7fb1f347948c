package auth

import "errors"

var (
	ErrNotFound            = errors.New("auth: not found")
	ErrAlreadyExists       = errors.New("auth: already exists")
	ErrInvalidInput        = errors.New("auth: invalid input")
	ErrUnauthorized        = errors.New("auth: unauthorized")
	ErrForbidden           = errors.New("auth: forbidden")
	ErrGone                = errors.New("auth: gone")
	ErrInvalidToken        = errors.New("auth: invalid access token")
	ErrInvalidRefreshToken = errors.New("auth: invalid refresh token")
)
