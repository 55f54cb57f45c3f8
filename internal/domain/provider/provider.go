package provider

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain"
	"github.com/google/uuid"
)

// Slot is an advisory availability window declared by a provider.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (s Slot) Valid() bool {
	return s.End.After(s.Start)
}

// Contains reports whether [start, end] lies entirely inside the slot.
func (s Slot) Contains(start, end time.Time) bool {
	return !start.Before(s.Start) && !end.After(s.End)
}

type Slots []Slot

func (ss Slots) Validate() error {
	for _, s := range ss {
		if !s.Valid() {
			return ErrInvalidSlot
		}
	}
	return nil
}

// Covers reports whether any single slot contains [start, end].
func (ss Slots) Covers(start, end time.Time) bool {
	for _, s := range ss {
		if s.Contains(start, end) {
			return true
		}
	}
	return false
}

// Sorted returns a copy ordered by start time.
func (ss Slots) Sorted() Slots {
	out := make(Slots, len(ss))
	copy(out, ss)
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// Value stores slots as a JSON array.
func (ss Slots) Value() (driver.Value, error) {
	if ss == nil {
		ss = Slots{}
	}
	b, err := json.Marshal(ss)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (ss *Slots) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*ss = Slots{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scanning slots: unsupported type %T", src)
	}
	return json.Unmarshal(raw, ss)
}

type Provider struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex" json:"user_id"`
	Specialty string    `gorm:"column:specialty;type:varchar(255)" json:"specialty"`

	Availability Slots `gorm:"column:availability;type:jsonb;not null" json:"availability"`

	User *domain.User `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"user,omitempty"`
}

func (Provider) TableName() string {
	return "scheduling.providers"
}

func (p *Provider) OwnedBy(userID uuid.UUID) bool {
	return p.UserID == userID
}

type CreateProviderCommand struct {
	UserID       uuid.UUID
	Specialty    string
	Availability Slots
}

func (c *CreateProviderCommand) Normalize() {
	c.Specialty = strings.TrimSpace(c.Specialty)
}

type UpdateProviderCommand struct {
	Specialty    *string
	Availability *Slots
}
