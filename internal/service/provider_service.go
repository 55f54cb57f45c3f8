package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain/provider"
	"github.com/dmehra2102/prod-golang-projects/appointly/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ProviderService struct {
	repo     provider.Repository
	users    UserRepository
	auditSvc *AuditService
	metrics  *metrics.Collector
	log      *zap.Logger
}

func NewProviderService(
	repo provider.Repository,
	users UserRepository,
	auditSvc *AuditService,
	m *metrics.Collector,
	log *zap.Logger,
) *ProviderService {
	return &ProviderService{repo: repo, users: users, auditSvc: auditSvc, metrics: m, log: log}
}

func (s *ProviderService) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.repo.Exists(ctx, id)
}

func (s *ProviderService) Get(ctx context.Context, id uuid.UUID) (*provider.Provider, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ProviderService) List(ctx context.Context) ([]*provider.Provider, error) {
	return s.repo.List(ctx)
}

// Create registers a provider profile. Providers may only create their own;
// admins may create one for any provider-role user.
func (s *ProviderService) Create(ctx context.Context, p domain.Principal, cmd *provider.CreateProviderCommand) (*provider.Provider, error) {
	cmd.Normalize()
	if cmd.UserID == uuid.Nil {
		cmd.UserID = p.UserID
	}
	if !p.IsAdmin() && cmd.UserID != p.UserID {
		return nil, ErrForbidden
	}

	verr := &ValidationError{}
	if cmd.Specialty == "" {
		verr.add("specialty", "is required")
	}
	if err := cmd.Availability.Validate(); err != nil {
		verr.add("availability", err.Error())
	}

	owner, err := s.users.GetByID(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	if owner.Role != domain.RoleProvider {
		verr.add("user_id", "user must have the provider role")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	pr := &provider.Provider{
		ID:           uuid.New(),
		UserID:       cmd.UserID,
		Specialty:    cmd.Specialty,
		Availability: cmd.Availability,
	}
	if err := s.repo.Create(ctx, pr); err != nil {
		if errors.Is(err, provider.ErrProviderExists) {
			return nil, err
		}
		s.log.Error("failed to create provider", zap.Error(err))
		return nil, fmt.Errorf("creating provider: %w", err)
	}

	s.metrics.ProvidersTotal.Inc()
	s.auditSvc.LogAsync(ctx, auditFor(p, domain.ActionCreate, resourceProvider, pr.ID.String(), nil))
	s.log.Info("provider created",
		zap.String("provider_id", pr.ID.String()),
		zap.String("user_id", pr.UserID.String()),
	)

	return s.repo.GetByID(ctx, pr.ID)
}

// Update changes the specialty and, when given, replaces availability.
func (s *ProviderService) Update(ctx context.Context, p domain.Principal, id uuid.UUID, cmd *provider.UpdateProviderCommand) (*provider.Provider, error) {
	pr, err := s.authorized(ctx, p, id)
	if err != nil {
		return nil, err
	}

	if cmd.Specialty != nil {
		pr.Specialty = *cmd.Specialty
	}
	if cmd.Availability != nil {
		if err := cmd.Availability.Validate(); err != nil {
			return nil, err
		}
		pr.Availability = *cmd.Availability
	}

	if err := s.repo.Update(ctx, pr); err != nil {
		if errors.Is(err, provider.ErrProviderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("updating provider: %w", err)
	}

	s.auditSvc.LogAsync(ctx, auditFor(p, domain.ActionUpdate, resourceProvider, id.String(), cmd))
	return s.repo.GetByID(ctx, id)
}

// SetAvailability replaces the provider's slots wholesale.
func (s *ProviderService) SetAvailability(ctx context.Context, p domain.Principal, id uuid.UUID, slots provider.Slots) (*provider.Provider, error) {
	if _, err := s.authorized(ctx, p, id); err != nil {
		return nil, err
	}
	if err := slots.Validate(); err != nil {
		return nil, err
	}
	if slots == nil {
		slots = provider.Slots{}
	}

	pr, err := s.repo.ReplaceAvailability(ctx, id, slots)
	if err != nil {
		if errors.Is(err, provider.ErrProviderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("replacing availability: %w", err)
	}

	s.auditSvc.LogAsync(ctx, auditFor(p, domain.ActionUpdate, resourceProvider, id.String(), map[string]any{
		"availability": slots,
	}))
	s.log.Info("provider availability replaced",
		zap.String("provider_id", id.String()),
		zap.Int("slots", len(slots)),
	)

	return pr, nil
}

// Delete removes a provider and, through the store, its appointments.
func (s *ProviderService) Delete(ctx context.Context, p domain.Principal, id uuid.UUID) error {
	if !p.IsAdmin() {
		return ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, provider.ErrProviderNotFound) {
			return err
		}
		return fmt.Errorf("deleting provider: %w", err)
	}

	s.auditSvc.LogAsync(ctx, auditFor(p, domain.ActionDelete, resourceProvider, id.String(), nil))
	s.log.Info("provider deleted", zap.String("provider_id", id.String()))
	return nil
}

func (s *ProviderService) authorized(ctx context.Context, p domain.Principal, id uuid.UUID) (*provider.Provider, error) {
	pr, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanManageProvider(p, pr) {
		return nil, ErrForbidden
	}
	return pr, nil
}
