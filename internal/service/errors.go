package service

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain"
	"github.com/google/uuid"
)

var (
	ErrForbidden       = errors.New("forbidden: insufficient permissions")
	ErrUnauthenticated = errors.New("authentication required")
)

// ValidationError aggregates every field problem found in one request.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

func (e *ValidationError) add(field, problem string) {
	e.Fields = append(e.Fields, field+": "+problem)
}

// orNil returns e only if it recorded at least one field.
func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

type AuditEntry struct {
	UserID       uuid.UUID
	UserRole     domain.Role
	Action       domain.AuditAction
	ResourceType string
	ResourceID   string
	IPAddress    string
	RequestID    string
	Changes      string
}

const (
	resourceAppointment = "appointment"
	resourceProvider    = "provider"
	resourceUser        = "user"
)

func auditFor(p domain.Principal, action domain.AuditAction, resourceType, resourceID string, changes any) AuditEntry {
	e := AuditEntry{
		UserID:       p.UserID,
		UserRole:     p.Role,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    p.IPAddress,
		RequestID:    p.RequestID,
	}
	if changes != nil {
		if b, err := json.Marshal(changes); err == nil {
			e.Changes = string(b)
		}
	}
	return e
}
