// Package usuarios is the account-administration view: listing, creation,
// edits, activation toggles, and the password-change approval queue. Every
// operation needs an admin session; none of them needs extras.
package usuarios

import (
	"github.com/kpsoft/kp-planta/records"
	"github.com/kpsoft/kp-planta/session"
)

// Usuario mirrors the backend's account document. Activo uses the same 0/1
// wire encoding as the archive flag.
type Usuario struct {
	ID       string       `json:"id"`
	Nombre   string       `json:"nombre"`
	Apellido string       `json:"apellido"`
	Email    string       `json:"email"`
	Username string       `json:"username"`
	Rol      session.Role `json:"rol"`
	Activo   records.Flag `json:"activo"`
}
