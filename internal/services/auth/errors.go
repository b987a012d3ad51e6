package auth

import "errors"

var (
	ErrExpired         = errors.New("token expired")
	ErrMalformed       = errors.New("malformed token")
	ErrWrongTokenType  = errors.New("wrong token type")
	ErrSamePassword    = errors.New("new password must differ from the current password")
	ErrUsernameInUse   = errors.New("username already in use")
	ErrInvalidRole     = errors.New("invalid role")
	ErrSelfDemotion    = errors.New("admins cannot remove their own admin role or deactivate themselves")
)
