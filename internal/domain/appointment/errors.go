package appointment

import "errors"

var (
	ErrAppointmentNotFound     = errors.New("appointment not found")
	ErrAppointmentConflict     = errors.New("slot unavailable: overlaps an existing appointment")
	ErrInvalidRange            = errors.New("end must not be before start")
	ErrStartRequired           = errors.New("start is required")
	ErrInvalidStatus           = errors.New("invalid appointment status")
	ErrInvalidStatusTransition = errors.New("invalid appointment status transition")
)
