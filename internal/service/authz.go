package service

import (
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain/provider"
)

// CanMutateAppointment is the single ownership check shared by update, cancel
// and delete. A provider is matched through its provider record, not its user id.
func CanMutateAppointment(p domain.Principal, a *appointment.Appointment) bool {
	switch p.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleProvider:
		return p.ProviderID != nil && *p.ProviderID == a.ProviderID
	case domain.RoleClient:
		return a.ClientID == p.UserID
	}
	return false
}

// CanManageProvider allows the owning user or an admin.
func CanManageProvider(p domain.Principal, pr *provider.Provider) bool {
	return p.IsAdmin() || pr.OwnedBy(p.UserID)
}
