// Package memory is a process-local implementation of every repository,
// used for development and tests. A single mutex covers all collections so
// scan-and-write primitives are atomic.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain/provider"
	"github.com/google/uuid"
)

type Store struct {
	mu           sync.RWMutex
	users        map[uuid.UUID]domain.User
	providers    map[uuid.UUID]provider.Provider
	appointments map[uuid.UUID]appointment.Appointment
	audit        []domain.AuditLog

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:        make(map[uuid.UUID]domain.User),
		providers:    make(map[uuid.UUID]provider.Provider),
		appointments: make(map[uuid.UUID]appointment.Appointment),
		now:          time.Now,
	}
}

func (s *Store) Users() *UserRepository               { return &UserRepository{s: s} }
func (s *Store) Providers() *ProviderRepository       { return &ProviderRepository{s: s} }
func (s *Store) Appointments() *AppointmentRepository { return &AppointmentRepository{s: s} }
func (s *Store) Audit() *AuditRepository              { return &AuditRepository{s: s} }

// AuditLogs returns a snapshot of persisted audit entries.
func (s *Store) AuditLogs() []domain.AuditLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AuditLog, len(s.audit))
	copy(out, s.audit)
	return out
}

type UserRepository struct{ s *Store }

func (r *UserRepository) Create(_ context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return domain.ErrEmailTaken
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := r.s.now()
	u.CreatedAt, u.UpdatedAt = now, now
	r.s.users[u.ID] = *u
	return nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			u := u
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *UserRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

type ProviderRepository struct{ s *Store }

func (r *ProviderRepository) Create(_ context.Context, p *provider.Provider) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.providers {
		if existing.UserID == p.UserID {
			return provider.ErrProviderExists
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := r.s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	stored := *p
	stored.User = nil
	stored.Availability = cloneSlots(p.Availability)
	r.s.providers[p.ID] = stored
	return nil
}

func (r *ProviderRepository) GetByID(_ context.Context, id uuid.UUID) (*provider.Provider, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.providers[id]
	if !ok {
		return nil, provider.ErrProviderNotFound
	}
	return r.s.providerView(p), nil
}

func (r *ProviderRepository) GetByUserID(_ context.Context, userID uuid.UUID) (*provider.Provider, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.providers {
		if p.UserID == userID {
			return r.s.providerView(p), nil
		}
	}
	return nil, provider.ErrProviderNotFound
}

func (r *ProviderRepository) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.s.providers[id]
	return ok, nil
}

// List orders by creation time, oldest first.
func (r *ProviderRepository) List(_ context.Context) ([]*provider.Provider, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*provider.Provider, 0, len(r.s.providers))
	for _, p := range r.s.providers {
		out = append(out, r.s.providerView(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r *ProviderRepository) Update(_ context.Context, p *provider.Provider) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.providers[p.ID]
	if !ok {
		return provider.ErrProviderNotFound
	}
	existing.Specialty = p.Specialty
	existing.Availability = cloneSlots(p.Availability)
	existing.UpdatedAt = r.s.now()
	r.s.providers[p.ID] = existing
	return nil
}

func (r *ProviderRepository) ReplaceAvailability(_ context.Context, id uuid.UUID, slots provider.Slots) (*provider.Provider, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.providers[id]
	if !ok {
		return nil, provider.ErrProviderNotFound
	}
	existing.Availability = cloneSlots(slots)
	existing.UpdatedAt = r.s.now()
	r.s.providers[id] = existing
	return r.s.providerView(existing), nil
}

// Delete cascades to the provider's appointments.
func (r *ProviderRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.providers[id]; !ok {
		return provider.ErrProviderNotFound
	}
	delete(r.s.providers, id)
	for aid, a := range r.s.appointments {
		if a.ProviderID == id {
			delete(r.s.appointments, aid)
		}
	}
	return nil
}

type AppointmentRepository struct{ s *Store }

func (r *AppointmentRepository) GetByID(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.appointments[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *AppointmentRepository) HasConflict(_ context.Context, q appointment.ConflictQuery) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.conflicts(q), nil
}

func (r *AppointmentRepository) InsertIfFree(_ context.Context, a *appointment.Appointment, q appointment.ConflictQuery) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.providers[a.ProviderID]; !ok {
		return provider.ErrProviderNotFound
	}
	if r.s.conflicts(q) {
		return appointment.ErrAppointmentConflict
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := r.s.now()
	a.CreatedAt, a.UpdatedAt = now, now
	r.s.appointments[a.ID] = stripJoins(*a)
	return nil
}

func (r *AppointmentRepository) SaveIfFree(_ context.Context, a *appointment.Appointment, q *appointment.ConflictQuery) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.appointments[a.ID]; !ok {
		return appointment.ErrAppointmentNotFound
	}
	if q != nil && r.s.conflicts(*q) {
		return appointment.ErrAppointmentConflict
	}
	a.UpdatedAt = r.s.now()
	r.s.appointments[a.ID] = stripJoins(*a)
	return nil
}

func (r *AppointmentRepository) Delete(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.appointments[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	delete(r.s.appointments, id)
	return &a, nil
}

func (r *AppointmentRepository) ListByClient(_ context.Context, clientID uuid.UUID) ([]*appointment.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := r.s.selectAppointments(func(a *appointment.Appointment) bool { return a.ClientID == clientID })
	for _, a := range out {
		r.s.joinProvider(a)
	}
	sortByStart(out, true)
	return out, nil
}

func (r *AppointmentRepository) ListByProvider(_ context.Context, providerID uuid.UUID) ([]*appointment.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := r.s.selectAppointments(func(a *appointment.Appointment) bool { return a.ProviderID == providerID })
	for _, a := range out {
		r.s.joinClient(a)
	}
	sortByStart(out, false)
	return out, nil
}

func (r *AppointmentRepository) ListAll(_ context.Context) ([]*appointment.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := r.s.selectAppointments(func(*appointment.Appointment) bool { return true })
	for _, a := range out {
		r.s.joinClient(a)
		r.s.joinProvider(a)
	}
	sortByStart(out, false)
	return out, nil
}

type AuditRepository struct{ s *Store }

func (r *AuditRepository) Create(_ context.Context, entry *domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.OccurredAt = r.s.now()
	r.s.audit = append(r.s.audit, *entry)
	return nil
}

// conflicts must be called with mu held.
func (s *Store) conflicts(q appointment.ConflictQuery) bool {
	for _, a := range s.appointments {
		if q.Conflicts(&a) {
			return true
		}
	}
	return false
}

func (s *Store) selectAppointments(keep func(*appointment.Appointment) bool) []*appointment.Appointment {
	out := make([]*appointment.Appointment, 0)
	for _, a := range s.appointments {
		a := a
		if keep(&a) {
			out = append(out, &a)
		}
	}
	return out
}

func (s *Store) providerView(p provider.Provider) *provider.Provider {
	p.Availability = cloneSlots(p.Availability)
	if u, ok := s.users[p.UserID]; ok {
		p.User = &u
	}
	return &p
}

func (s *Store) joinProvider(a *appointment.Appointment) {
	if p, ok := s.providers[a.ProviderID]; ok {
		a.Provider = s.providerView(p)
	}
}

func (s *Store) joinClient(a *appointment.Appointment) {
	if u, ok := s.users[a.ClientID]; ok {
		a.Client = &u
	}
}

func stripJoins(a appointment.Appointment) appointment.Appointment {
	a.Client = nil
	a.Provider = nil
	return a
}

func cloneSlots(ss provider.Slots) provider.Slots {
	if ss == nil {
		return provider.Slots{}
	}
	out := make(provider.Slots, len(ss))
	copy(out, ss)
	return out
}

// sortByStart breaks start ties by id so listings are deterministic.
func sortByStart(out []*appointment.Appointment, asc bool) {
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Start.Equal(b.Start) {
			if asc {
				return a.Start.Before(b.Start)
			}
			return a.Start.After(b.Start)
		}
		return a.ID.String() < b.ID.String()
	})
}
