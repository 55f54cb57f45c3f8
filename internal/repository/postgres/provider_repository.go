package postgres

import (
	"context"
	"fmt"

	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain/provider"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProviderRepository struct {
	db *gorm.DB
}

func NewProviderRepository(db *gorm.DB) *ProviderRepository {
	return &ProviderRepository{db: db}
}

func (r *ProviderRepository) Create(ctx context.Context, p *provider.Provider) error {
	if p.Availability == nil {
		p.Availability = provider.Slots{}
	}
	if err := r.db.WithContext(ctx).Omit("User").Create(p).Error; err != nil {
		if isDuplicate(err) {
			return provider.ErrProviderExists
		}
		return fmt.Errorf("inserting provider: %w", err)
	}
	return nil
}

func (r *ProviderRepository) GetByID(ctx context.Context, id uuid.UUID) (*provider.Provider, error) {
	var p provider.Provider
	if err := r.db.WithContext(ctx).Preload("User").Where("id = ?", id).Take(&p).Error; err != nil {
		if isNotFound(err) {
			return nil, provider.ErrProviderNotFound
		}
		return nil, fmt.Errorf("querying provider: %w", err)
	}
	return &p, nil
}

func (r *ProviderRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*provider.Provider, error) {
	var p provider.Provider
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&p).Error; err != nil {
		if isNotFound(err) {
			return nil, provider.ErrProviderNotFound
		}
		return nil, fmt.Errorf("querying provider by user: %w", err)
	}
	return &p, nil
}

func (r *ProviderRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&provider.Provider{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, fmt.Errorf("checking provider: %w", err)
	}
	return n > 0, nil
}

func (r *ProviderRepository) List(ctx context.Context) ([]*provider.Provider, error) {
	var out []*provider.Provider
	err := r.db.WithContext(ctx).
		Preload("User").
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("listing providers: %w", err)
	}
	return out, nil
}

func (r *ProviderRepository) Update(ctx context.Context, p *provider.Provider) error {
	res := r.db.WithContext(ctx).
		Model(&provider.Provider{}).
		Where("id = ?", p.ID).
		Updates(map[string]any{
			"specialty":    p.Specialty,
			"availability": p.Availability,
		})
	if res.Error != nil {
		return fmt.Errorf("updating provider: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return provider.ErrProviderNotFound
	}
	return nil
}

func (r *ProviderRepository) ReplaceAvailability(ctx context.Context, id uuid.UUID, slots provider.Slots) (*provider.Provider, error) {
	res := r.db.WithContext(ctx).
		Model(&provider.Provider{}).
		Where("id = ?", id).
		Update("availability", slots)
	if res.Error != nil {
		return nil, fmt.Errorf("replacing availability: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, provider.ErrProviderNotFound
	}
	return r.GetByID(ctx, id)
}

// Delete relies on ON DELETE CASCADE to remove the provider's appointments.
func (r *ProviderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&provider.Provider{})
	if res.Error != nil {
		return fmt.Errorf("deleting provider: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return provider.ErrProviderNotFound
	}
	return nil
}
