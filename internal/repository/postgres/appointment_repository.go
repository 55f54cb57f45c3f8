package postgres

import (
	"context"
	"fmt"

	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain/provider"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AppointmentRepository struct {
	db *gorm.DB
}

func NewAppointmentRepository(db *gorm.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	var a appointment.Appointment
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&a).Error; err != nil {
		if isNotFound(err) {
			return nil, appointment.ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("querying appointment: %w", err)
	}
	return &a, nil
}

func (r *AppointmentRepository) HasConflict(ctx context.Context, q appointment.ConflictQuery) (bool, error) {
	return hasConflict(r.db.WithContext(ctx), q)
}

// InsertIfFree locks the provider row for the duration of the transaction so
// concurrent writers for one provider serialize even across API replicas.
func (r *AppointmentRepository) InsertIfFree(ctx context.Context, a *appointment.Appointment, q appointment.ConflictQuery) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockProvider(tx, q.ProviderID); err != nil {
			return err
		}
		conflict, err := hasConflict(tx, q)
		if err != nil {
			return err
		}
		if conflict {
			return appointment.ErrAppointmentConflict
		}
		if err := tx.Omit(clause.Associations).Create(a).Error; err != nil {
			if isForeignKey(err) {
				return provider.ErrProviderNotFound
			}
			return fmt.Errorf("inserting appointment: %w", err)
		}
		return nil
	})
}

func (r *AppointmentRepository) SaveIfFree(ctx context.Context, a *appointment.Appointment, q *appointment.ConflictQuery) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if q != nil {
			if err := lockProvider(tx, q.ProviderID); err != nil {
				return err
			}
			conflict, err := hasConflict(tx, *q)
			if err != nil {
				return err
			}
			if conflict {
				return appointment.ErrAppointmentConflict
			}
		}

		res := tx.Model(&appointment.Appointment{}).
			Where("id = ?", a.ID).
			Updates(map[string]any{
				"start_at": a.Start,
				"end_at":   a.End,
				"status":   a.Status,
				"notes":    a.Notes,
			})
		if res.Error != nil {
			return fmt.Errorf("updating appointment: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return appointment.ErrAppointmentNotFound
		}
		return nil
	})
}

func (r *AppointmentRepository) Delete(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	var removed appointment.Appointment
	res := r.db.WithContext(ctx).
		Clauses(clause.Returning{}).
		Where("id = ?", id).
		Delete(&removed)
	if res.Error != nil {
		return nil, fmt.Errorf("deleting appointment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, appointment.ErrAppointmentNotFound
	}
	return &removed, nil
}

func (r *AppointmentRepository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]*appointment.Appointment, error) {
	var out []*appointment.Appointment
	err := r.db.WithContext(ctx).
		Preload("Provider").
		Where("client_id = ?", clientID).
		Order("start_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("listing client appointments: %w", err)
	}
	return out, nil
}

func (r *AppointmentRepository) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]*appointment.Appointment, error) {
	var out []*appointment.Appointment
	err := r.db.WithContext(ctx).
		Preload("Client").
		Where("provider_id = ?", providerID).
		Order("start_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("listing provider appointments: %w", err)
	}
	return out, nil
}

func (r *AppointmentRepository) ListAll(ctx context.Context) ([]*appointment.Appointment, error) {
	var out []*appointment.Appointment
	err := r.db.WithContext(ctx).
		Preload("Client").
		Preload("Provider").
		Order("start_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("listing appointments: %w", err)
	}
	return out, nil
}

func lockProvider(tx *gorm.DB, providerID uuid.UUID) error {
	var p provider.Provider
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", providerID).
		Take(&p).Error
	if err != nil {
		if isNotFound(err) {
			return provider.ErrProviderNotFound
		}
		return fmt.Errorf("locking provider row: %w", err)
	}
	return nil
}

// hasConflict expresses the overlap rule in SQL: half-open intersection or an
// identical start.
func hasConflict(db *gorm.DB, q appointment.ConflictQuery) (bool, error) {
	stmt := db.Model(&appointment.Appointment{}).
		Where("provider_id = ?", q.ProviderID).
		Where("(start_at < ? AND end_at > ?) OR start_at = ?", q.Interval.End, q.Interval.Start, q.Interval.Start)
	if q.ExcludeID != nil {
		stmt = stmt.Where("id <> ?", *q.ExcludeID)
	}
	if q.IgnoreCanceled {
		stmt = stmt.Where("status <> ?", appointment.StatusCanceled)
	}

	var n int64
	if err := stmt.Count(&n).Error; err != nil {
		return false, fmt.Errorf("scanning for conflicts: %w", err)
	}
	return n > 0, nil
}
