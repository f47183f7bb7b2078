package auth

import "errors"

var (
	ErrMissingToken      = errors.New("auth: missing access token")
	ErrInvalidToken      = errors.New("auth: invalid access token")
	ErrExpiredToken      = errors.New("auth: access token is expired")
	ErrMissingSigningKey = errors.New("auth: missing signing key")
	ErrInvalidSubject    = errors.New("auth: token subject is not a user id")
	ErrUnauthenticated   = errors.New("auth: no authenticated user")
)
