package appointment

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// HasConflict checks whether any appointment matching q overlaps q.Interval.
	HasConflict(ctx context.Context, q ConflictQuery) (bool, error)

	// InsertIfFree runs the conflict scan and the insert as one unit against
	// the provider. Returns ErrAppointmentConflict when q finds an overlap.
	InsertIfFree(ctx context.Context, a *Appointment, q ConflictQuery) error

	// SaveIfFree is InsertIfFree for an existing record. A nil q skips the
	// scan (no interval change).
	SaveIfFree(ctx context.Context, a *Appointment, q *ConflictQuery) error

	// Delete removes the record permanently and returns what was removed.
	Delete(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// ListByClient orders by start ascending and joins Provider.
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]*Appointment, error)
	// ListByProvider orders by start descending and joins Client.
	ListByProvider(ctx context.Context, providerID uuid.UUID) ([]*Appointment, error)
	// ListAll orders by start descending and joins Client and Provider.
	ListAll(ctx context.Context) ([]*Appointment, error)
}
