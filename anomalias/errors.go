package anomalias

import "errors"

var (
	ErrInvalidID        = errors.New("invalid incident id")
	ErrSolutionOnOpen   = errors.New("an open incident cannot carry a solution")
	ErrInvalidDateRange = errors.New("invalid purge date range")
)
