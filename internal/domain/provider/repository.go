package provider

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Provider) error
	GetByID(ctx context.Context, id uuid.UUID) (*Provider, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Provider, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	List(ctx context.Context) ([]*Provider, error)
	Update(ctx context.Context, p *Provider) error

	// ReplaceAvailability overwrites the stored slots; no diffing.
	ReplaceAvailability(ctx context.Context, id uuid.UUID, slots Slots) (*Provider, error)

	Delete(ctx context.Context, id uuid.UUID) error
}
