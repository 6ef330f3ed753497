package pedidos

import "errors"

var (
	ErrInvalidID        = errors.New("invalid work order id")
	ErrCompletionShort  = errors.New("completion requires all assigned sheets worked")
	ErrNothingToUpdate  = errors.New("update carries no changes")
	ErrInvalidDateRange = errors.New("invalid purge date range")
)
