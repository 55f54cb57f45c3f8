package appointment

import (
	"time"

	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain/provider"
	"github.com/google/uuid"
)

// State transitions under the strict policy:
//
//	booked      → rescheduled | canceled | completed
//	rescheduled → rescheduled | canceled | completed
//	canceled    → (terminal)
//	completed   → (terminal)
//
// The permissive policy accepts any valid status from any status.
type Status string

const (
	StatusBooked      Status = "booked"
	StatusRescheduled Status = "rescheduled"
	StatusCanceled    Status = "canceled"
	StatusCompleted   Status = "completed"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusBooked, StatusRescheduled, StatusCanceled, StatusCompleted:
		return true
	}
	return false
}

type TransitionPolicy int

const (
	TransitionsPermissive TransitionPolicy = iota
	TransitionsStrict
)

var strictTransitions = map[Status][]Status{
	StatusBooked:      {StatusRescheduled, StatusCanceled, StatusCompleted},
	StatusRescheduled: {StatusRescheduled, StatusCanceled, StatusCompleted},
	StatusCanceled:    {},
	StatusCompleted:   {},
}

type Appointment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	ClientID   uuid.UUID `gorm:"column:client_id;type:uuid;not null;index" json:"client_id"`
	ProviderID uuid.UUID `gorm:"column:provider_id;type:uuid;not null;index:idx_appointments_provider_start,priority:1" json:"provider_id"`

	Service string    `gorm:"column:service;type:varchar(255)" json:"service"`
	Start   time.Time `gorm:"column:start_at;not null;index:idx_appointments_provider_start,priority:2" json:"start"`
	End     time.Time `gorm:"column:end_at;not null" json:"end"`
	Status  Status    `gorm:"column:status;type:varchar(20);not null;default:'booked';index" json:"status"`
	Notes   string    `gorm:"column:notes;type:text" json:"notes"`

	Client   *domain.User       `gorm:"foreignKey:ClientID;constraint:OnDelete:CASCADE" json:"client,omitempty"`
	Provider *provider.Provider `gorm:"foreignKey:ProviderID;constraint:OnDelete:CASCADE" json:"provider,omitempty"`
}

func (Appointment) TableName() string {
	return "scheduling.appointments"
}

func (a *Appointment) Interval() Interval {
	return Interval{Start: a.Start, End: a.End}
}

func (a *Appointment) CanTransitionTo(newStatus Status, policy TransitionPolicy) bool {
	if !newStatus.IsValid() {
		return false
	}
	if policy == TransitionsPermissive || newStatus == a.Status {
		return true
	}
	for _, s := range strictTransitions[a.Status] {
		if s == newStatus {
			return true
		}
	}
	return false
}

// Cancel marks the appointment canceled. Canceling twice only replaces notes.
func (a *Appointment) Cancel(reason *string, policy TransitionPolicy) error {
	if !a.CanTransitionTo(StatusCanceled, policy) {
		return ErrInvalidStatusTransition
	}
	a.Status = StatusCanceled
	if reason != nil {
		a.Notes = *reason
	}
	return nil
}

type BookCommand struct {
	ProviderID uuid.UUID
	Start      time.Time
	// End defaults to Start when nil, giving a zero-duration slot.
	End     *time.Time
	Service string
	Notes   string
}

// Interval resolves the requested range, applying the End default.
func (c *BookCommand) Interval() (Interval, error) {
	end := c.Start
	if c.End != nil {
		end = *c.End
	}
	return NewInterval(c.Start, end)
}

type UpdateCommand struct {
	Start  *time.Time `json:"start,omitempty"`
	End    *time.Time `json:"end,omitempty"`
	Status *Status    `json:"status,omitempty"`
	Notes  *string    `json:"notes,omitempty"`
}

func (c *UpdateCommand) Empty() bool {
	return c.Start == nil && c.End == nil && c.Status == nil && c.Notes == nil
}

func (c *UpdateCommand) ChangesTime() bool {
	return c.Start != nil || c.End != nil
}

// ResolveInterval computes the effective range after the patch. A missing side
// is inherited from the stored record; a missing stored end falls back to the
// new start.
func (c *UpdateCommand) ResolveInterval(current *Appointment) (Interval, error) {
	start := current.Start
	if c.Start != nil {
		start = *c.Start
	}
	end := current.End
	if c.End != nil {
		end = *c.End
	} else if end.IsZero() {
		end = start
	}
	return NewInterval(start, end)
}

// Apply mutates a with the patch. Interval checks and conflict scans are the
// caller's responsibility; Apply only validates status.
func (c *UpdateCommand) Apply(a *Appointment, policy TransitionPolicy) error {
	if c.ChangesTime() {
		iv, err := c.ResolveInterval(a)
		if err != nil {
			return err
		}
		a.Start, a.End = iv.Start, iv.End
	}
	if c.Status != nil {
		if !c.Status.IsValid() {
			return ErrInvalidStatus
		}
		if !a.CanTransitionTo(*c.Status, policy) {
			return ErrInvalidStatusTransition
		}
		a.Status = *c.Status
	}
	if c.Notes != nil {
		a.Notes = *c.Notes
	}
	return nil
}

// ConflictQuery describes an overlap scan for one provider.
type ConflictQuery struct {
	ProviderID uuid.UUID
	Interval   Interval
	ExcludeID  *uuid.UUID
	// IgnoreCanceled drops canceled appointments from the scan.
	IgnoreCanceled bool
}

// Conflicts reports whether existing would block q.
func (q ConflictQuery) Conflicts(existing *Appointment) bool {
	if existing.ProviderID != q.ProviderID {
		return false
	}
	if q.ExcludeID != nil && existing.ID == *q.ExcludeID {
		return false
	}
	if q.IgnoreCanceled && existing.Status == StatusCanceled {
		return false
	}
	return existing.Interval().Overlaps(q.Interval)
}
