package contracts

import "errors"

var (
	ErrNotFound             = errors.New("contract not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrPayloadTooLarge      = errors.New("payload too large")
)
