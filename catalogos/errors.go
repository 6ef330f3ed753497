package catalogos

import "errors"

var (
	ErrUnknownCatalog = errors.New("unknown catalog")
	ErrInvalidItem    = errors.New("invalid catalog item id")
	ErrNameRequired   = errors.New("item name is required")
)
