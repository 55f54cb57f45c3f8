package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain/provider"
)

func TestCanMutateAppointment(t *testing.T) {
	clientID := uuid.New()
	providerID := uuid.New()
	providerUserID := uuid.New()
	otherProviderID := uuid.New()
	appt := &appointment.Appointment{ID: uuid.New(), ClientID: clientID, ProviderID: providerID}

	tests := []struct {
		name string
		p    domain.Principal
		want bool
	}{
		{"admin", domain.Principal{UserID: uuid.New(), Role: domain.RoleAdmin}, true},
		{"owning client", domain.Principal{UserID: clientID, Role: domain.RoleClient}, true},
		{"other client", domain.Principal{UserID: uuid.New(), Role: domain.RoleClient}, false},
		{"owning provider", domain.Principal{UserID: providerUserID, Role: domain.RoleProvider, ProviderID: &providerID}, true},
		{"other provider", domain.Principal{UserID: providerUserID, Role: domain.RoleProvider, ProviderID: &otherProviderID}, false},
		{"provider without record", domain.Principal{UserID: providerUserID, Role: domain.RoleProvider}, false},
		// The provider id is not a user id; a provider whose user id happens to
		// equal the client id gains nothing from it.
		{"provider matched only by user id", domain.Principal{UserID: clientID, Role: domain.RoleProvider, ProviderID: &otherProviderID}, false},
		{"unknown role", domain.Principal{UserID: clientID, Role: "guest"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanMutateAppointment(tt.p, appt))
		})
	}
}

func TestCanManageProvider(t *testing.T) {
	owner := uuid.New()
	pr := &provider.Provider{ID: uuid.New(), UserID: owner}

	assert.True(t, CanManageProvider(domain.Principal{UserID: owner, Role: domain.RoleProvider}, pr))
	assert.True(t, CanManageProvider(domain.Principal{UserID: uuid.New(), Role: domain.RoleAdmin}, pr))
	assert.False(t, CanManageProvider(domain.Principal{UserID: uuid.New(), Role: domain.RoleProvider}, pr))
	assert.False(t, CanManageProvider(domain.Principal{UserID: uuid.New(), Role: domain.RoleClient}, pr))
}
