package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmehra2102/prod-golang-projects/appointly/internal/config"
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain/provider"
	"github.com/dmehra2102/prod-golang-projects/appointly/pkg/lock"
	"github.com/dmehra2102/prod-golang-projects/appointly/pkg/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type SchedulingOptions struct {
	ExcludeCanceled     bool
	Transitions         appointment.TransitionPolicy
	EnforceAvailability bool
	// LockTimeout bounds the wait for a provider's schedule lock.
	LockTimeout time.Duration
}

func SchedulingOptionsFromConfig(sc config.SchedulingConfig, lc config.LockConfig) SchedulingOptions {
	opts := SchedulingOptions{
		ExcludeCanceled:     sc.ExcludeCanceled,
		Transitions:         appointment.TransitionsPermissive,
		EnforceAvailability: sc.EnforceAvailability,
		LockTimeout:         lc.AcquireTimeout,
	}
	if sc.StrictTransitions {
		opts.Transitions = appointment.TransitionsStrict
	}
	return opts
}

// AppointmentService owns the scheduling invariant: for one provider no two
// stored appointments overlap. Every write that can change a provider's
// occupied intervals runs under that provider's lock and through the
// repository's scan-and-write primitives.
type AppointmentService struct {
	repo      appointment.Repository
	providers provider.Repository
	locker    lock.Locker
	auditSvc  *AuditService
	metrics   *metrics.Collector
	opts      SchedulingOptions
	log       *zap.Logger
	tracer    trace.Tracer
}

func NewAppointmentService(
	repo appointment.Repository,
	providers provider.Repository,
	locker lock.Locker,
	auditSvc *AuditService,
	m *metrics.Collector,
	opts SchedulingOptions,
	log *zap.Logger,
) *AppointmentService {
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 3 * time.Second
	}
	return &AppointmentService{
		repo:      repo,
		providers: providers,
		locker:    locker,
		auditSvc:  auditSvc,
		metrics:   m,
		opts:      opts,
		log:       log,
		tracer:    otel.Tracer("appointly/service/appointment"),
	}
}

// Book creates a booked appointment for the calling client.
func (s *AppointmentService) Book(ctx context.Context, p domain.Principal, cmd *appointment.BookCommand) (*appointment.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "AppointmentService.Book", trace.WithAttributes(
		attribute.String("provider.id", cmd.ProviderID.String()),
	))
	defer span.End()

	pr, err := s.providers.GetByID(ctx, cmd.ProviderID)
	if err != nil {
		return nil, spanErr(span, err)
	}

	iv, err := cmd.Interval()
	if err != nil {
		return nil, spanErr(span, err)
	}

	if s.opts.EnforceAvailability && !pr.Availability.Covers(iv.Start, iv.End) {
		return nil, spanErr(span, provider.ErrOutsideAvailability)
	}

	release, err := s.acquire(ctx, pr.ID)
	if err != nil {
		return nil, spanErr(span, err)
	}
	defer release()

	a := &appointment.Appointment{
		ID:         uuid.New(),
		ClientID:   p.UserID,
		ProviderID: pr.ID,
		Service:    cmd.Service,
		Start:      iv.Start,
		End:        iv.End,
		Status:     appointment.StatusBooked,
		Notes:      cmd.Notes,
	}

	if err := s.repo.InsertIfFree(ctx, a, s.conflictQuery(pr.ID, iv, nil)); err != nil {
		return nil, spanErr(span, s.writeErr("booking appointment", err))
	}

	s.metrics.AppointmentsTotal.WithLabelValues(string(a.Status)).Inc()
	s.auditSvc.LogAsync(ctx, auditFor(p, domain.ActionCreate, resourceAppointment, a.ID.String(), map[string]any{
		"provider_id": a.ProviderID,
		"start":       a.Start,
		"end":         a.End,
	}))
	s.log.Info("appointment booked",
		zap.String("appointment_id", a.ID.String()),
		zap.String("provider_id", a.ProviderID.String()),
		zap.String("client_id", a.ClientID.String()),
		zap.Time("start", a.Start),
		zap.Time("end", a.End),
	)

	return a, nil
}

// Update applies a partial patch. Time changes are re-validated and rescanned
// against the provider's other appointments; nothing is persisted on failure.
func (s *AppointmentService) Update(ctx context.Context, p domain.Principal, id uuid.UUID, cmd *appointment.UpdateCommand) (*appointment.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "AppointmentService.Update", trace.WithAttributes(
		attribute.String("appointment.id", id.String()),
	))
	defer span.End()

	a, release, err := s.loadForWrite(ctx, p, id)
	if err != nil {
		return nil, spanErr(span, err)
	}
	defer release()

	wasCanceled := a.Status == appointment.StatusCanceled
	if err := cmd.Apply(a, s.opts.Transitions); err != nil {
		return nil, spanErr(span, err)
	}

	var q *appointment.ConflictQuery
	// Leaving canceled re-occupies the interval when canceled rows are not scanned.
	revived := s.opts.ExcludeCanceled && wasCanceled && a.Status != appointment.StatusCanceled
	if cmd.ChangesTime() || revived {
		if s.opts.EnforceAvailability && cmd.ChangesTime() {
			pr, err := s.providers.GetByID(ctx, a.ProviderID)
			if err != nil {
				return nil, spanErr(span, err)
			}
			if !pr.Availability.Covers(a.Start, a.End) {
				return nil, spanErr(span, provider.ErrOutsideAvailability)
			}
		}
		cq := s.conflictQuery(a.ProviderID, a.Interval(), &a.ID)
		q = &cq
	}

	if err := s.repo.SaveIfFree(ctx, a, q); err != nil {
		return nil, spanErr(span, s.writeErr("updating appointment", err))
	}

	s.metrics.AppointmentsTotal.WithLabelValues(string(a.Status)).Inc()
	s.auditSvc.LogAsync(ctx, auditFor(p, domain.ActionUpdate, resourceAppointment, a.ID.String(), cmd))
	s.log.Info("appointment updated",
		zap.String("appointment_id", a.ID.String()),
		zap.String("status", string(a.Status)),
		zap.Bool("rescanned", q != nil),
	)

	return a, nil
}

// Cancel sets the canceled status; a non-nil reason replaces the notes.
// Canceling twice is allowed and only touches notes.
func (s *AppointmentService) Cancel(ctx context.Context, p domain.Principal, id uuid.UUID, reason *string) (*appointment.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "AppointmentService.Cancel", trace.WithAttributes(
		attribute.String("appointment.id", id.String()),
	))
	defer span.End()

	a, release, err := s.loadForWrite(ctx, p, id)
	if err != nil {
		return nil, spanErr(span, err)
	}
	defer release()

	if err := a.Cancel(reason, s.opts.Transitions); err != nil {
		return nil, spanErr(span, err)
	}

	if err := s.repo.SaveIfFree(ctx, a, nil); err != nil {
		return nil, spanErr(span, s.writeErr("canceling appointment", err))
	}

	s.metrics.AppointmentsTotal.WithLabelValues(string(a.Status)).Inc()
	s.auditSvc.LogAsync(ctx, auditFor(p, domain.ActionCancel, resourceAppointment, a.ID.String(), map[string]any{
		"status": a.Status,
		"reason": reason,
	}))
	s.log.Info("appointment canceled", zap.String("appointment_id", a.ID.String()))

	return a, nil
}

// Delete removes the appointment permanently and returns what was removed.
func (s *AppointmentService) Delete(ctx context.Context, p domain.Principal, id uuid.UUID) (*appointment.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "AppointmentService.Delete", trace.WithAttributes(
		attribute.String("appointment.id", id.String()),
	))
	defer span.End()

	_, release, err := s.loadForWrite(ctx, p, id)
	if err != nil {
		return nil, spanErr(span, err)
	}
	defer release()

	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, spanErr(span, s.writeErr("deleting appointment", err))
	}

	s.auditSvc.LogAsync(ctx, auditFor(p, domain.ActionDelete, resourceAppointment, id.String(), nil))
	s.log.Info("appointment deleted",
		zap.String("appointment_id", id.String()),
		zap.String("by", p.UserID.String()),
	)

	return removed, nil
}

func (s *AppointmentService) ListForClient(ctx context.Context, clientID uuid.UUID) ([]*appointment.Appointment, error) {
	return s.repo.ListByClient(ctx, clientID)
}

func (s *AppointmentService) ListForProvider(ctx context.Context, providerID uuid.UUID) ([]*appointment.Appointment, error) {
	return s.repo.ListByProvider(ctx, providerID)
}

func (s *AppointmentService) ListAll(ctx context.Context) ([]*appointment.Appointment, error) {
	return s.repo.ListAll(ctx)
}

// ListMine scopes the listing to the caller: a provider sees its schedule,
// every other role sees the appointments it booked.
func (s *AppointmentService) ListMine(ctx context.Context, p domain.Principal) ([]*appointment.Appointment, error) {
	if p.Role != domain.RoleProvider {
		return s.repo.ListByClient(ctx, p.UserID)
	}
	p, err := s.resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	if p.ProviderID == nil {
		return []*appointment.Appointment{}, nil
	}
	return s.repo.ListByProvider(ctx, *p.ProviderID)
}

// loadForWrite authorizes the caller, takes the provider lock and returns a
// copy of the record read under that lock.
func (s *AppointmentService) loadForWrite(ctx context.Context, p domain.Principal, id uuid.UUID) (*appointment.Appointment, lock.Release, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	p, err = s.resolve(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	if !CanMutateAppointment(p, current) {
		s.log.Warn("appointment access denied",
			zap.String("appointment_id", id.String()),
			zap.String("user_id", p.UserID.String()),
			zap.String("role", string(p.Role)),
		)
		return nil, nil, ErrForbidden
	}

	release, err := s.acquire(ctx, current.ProviderID)
	if err != nil {
		return nil, nil, err
	}

	// The record may have changed while we waited for the lock.
	fresh, err := s.repo.GetByID(ctx, id)
	if err != nil {
		release()
		return nil, nil, err
	}
	return fresh, release, nil
}

// resolve fills in the provider identity for provider-role callers whose
// token predates their provider record.
func (s *AppointmentService) resolve(ctx context.Context, p domain.Principal) (domain.Principal, error) {
	if p.Role != domain.RoleProvider || p.ProviderID != nil {
		return p, nil
	}
	pr, err := s.providers.GetByUserID(ctx, p.UserID)
	if errors.Is(err, provider.ErrProviderNotFound) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("resolving provider identity: %w", err)
	}
	p.ProviderID = &pr.ID
	return p, nil
}

func (s *AppointmentService) acquire(ctx context.Context, providerID uuid.UUID) (lock.Release, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.LockTimeout)
	defer cancel()

	start := time.Now()
	release, err := s.locker.Acquire(ctx, lock.ProviderKey(providerID.String()))
	s.metrics.LockWaitDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			s.metrics.LockTimeoutsTotal.Inc()
			s.log.Warn("provider schedule lock timed out",
				zap.String("provider_id", providerID.String()),
				zap.Duration("timeout", s.opts.LockTimeout),
			)
		}
		return nil, fmt.Errorf("locking provider %s schedule: %w", providerID, err)
	}
	return release, nil
}

func (s *AppointmentService) conflictQuery(providerID uuid.UUID, iv appointment.Interval, exclude *uuid.UUID) appointment.ConflictQuery {
	return appointment.ConflictQuery{
		ProviderID:     providerID,
		Interval:       iv,
		ExcludeID:      exclude,
		IgnoreCanceled: s.opts.ExcludeCanceled,
	}
}

// writeErr passes domain errors through and wraps storage failures.
func (s *AppointmentService) writeErr(op string, err error) error {
	switch {
	case errors.Is(err, appointment.ErrAppointmentConflict):
		s.metrics.BookingConflicts.Inc()
		return err
	case errors.Is(err, appointment.ErrAppointmentNotFound),
		errors.Is(err, provider.ErrProviderNotFound):
		return err
	}
	s.log.Error("appointment write failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%s: %w", op, err)
}

func spanErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
