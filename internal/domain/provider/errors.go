package provider

import "errors"

var (
	ErrProviderNotFound    = errors.New("provider not found")
	ErrProviderExists      = errors.New("user already owns a provider record")
	ErrInvalidSlot         = errors.New("availability slot end must be after start")
	ErrOutsideAvailability = errors.New("requested time is outside the provider's declared availability")
)
