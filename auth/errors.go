package auth

import "errors"

var (
	ErrNotAdminSession   = errors.New("admin session required")
	ErrExtrasRequired    = errors.New("extras mode required")
	ErrInvalidShift      = errors.New("invalid shift session")
	ErrSecretRequired    = errors.New("secret is required")
	ErrAutoElevateFailed = errors.New("automatic extras elevation failed")
)
