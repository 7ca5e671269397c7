package model

import "errors"

// Accounts and sessions.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrSelfModification   = errors.New("cannot change own role, activation or existence")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenNotFound      = errors.New("token not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
)

// Inventory records.
var (
	ErrStopNotFound     = errors.New("stop not found")
	ErrPhotoNotFound    = errors.New("photo not found")
	ErrDistrictNotFound = errors.New("district not found")
	ErrRouteNotFound    = errors.New("route not found")
	ErrConflict         = errors.New("conflict")
	ErrInvalidInput     = errors.New("invalid input")
)
