package auth

import (
	"fmt"
	"strings"
)

const minSecretLength = 8

// RotateSecretInput carries the three values a rotation requires. Validation
// happens client-side first so a malformed rotation never reaches the
// backend.
type RotateSecretInput struct {
	CurrentSecret string
	NewSecret     string
	Confirm       string
}

// Validate checks presence, minimum length of the new secret, and that the
// confirmation matches. Messages are user-presentable.
func (in RotateSecretInput) Validate() error {
	current := strings.TrimSpace(in.CurrentSecret)
	newSecret := strings.TrimSpace(in.NewSecret)
	confirm := strings.TrimSpace(in.Confirm)

	if current == "" || newSecret == "" {
		return fmt.Errorf("debe indicar clave actual y nueva clave")
	}
	if len(newSecret) < minSecretLength {
		return fmt.Errorf("la nueva clave debe tener al menos %d caracteres", minSecretLength)
	}
	if confirm != newSecret {
		return fmt.Errorf("la confirmación no coincide con la nueva clave")
	}
	return nil
}
