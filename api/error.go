package api

import "fmt"

// Fallback messages shown when the backend gives none. User-facing text stays
// in the application's locale.
const (
	msgNetworkError   = "Error de red."
	msgInvalidRequest = "Solicitud inválida."
)

// Error is a failed backend call. Message is always user-presentable: the
// server's message verbatim when one was sent, a generic fallback otherwise.
// Fields, when present, keys validation messages to form-field identifiers.
type Error struct {
	Status  int
	Code    string
	Message string
	Fields  map[string]string
	cause   error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// IsNetwork reports whether the failure never produced an HTTP response.
func (e *Error) IsNetwork() bool {
	return e.Status == 0
}

func networkError(cause error) *Error {
	return &Error{Message: msgNetworkError, cause: cause}
}
