// Package apperr defines the failure taxonomy shared by the wiki core and its adapters.
package apperr

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalid            = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrAlreadyInitialized = errors.New("wiki already initialized")
	ErrDuplicateAddress   = errors.New("web address already in use")
	ErrUploadsDisabled    = errors.New("uploads are disabled for this web")
	ErrUploadTooLarge     = errors.New("upload exceeds the web's size limit")
)
