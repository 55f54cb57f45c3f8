package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/dmehra2102/prod-golang-projects/appointly/internal/config"
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain/provider"
	"github.com/dmehra2102/prod-golang-projects/appointly/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/appointly/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

type UserRepository interface {
	// Create returns domain.ErrEmailTaken when the email is already registered.
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type RegisterCommand struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
}

type AuthService struct {
	userRepo     UserRepository
	providerRepo provider.Repository
	jwtManager   *auth.JWTManager
	cfg          config.AuthConfig
	auditSvc     *AuditService
	metrics      *metrics.Collector
	log          *zap.Logger
	bcryptCost   int
}

func NewAuthService(
	userRepo UserRepository,
	providerRepo provider.Repository,
	jwtManager *auth.JWTManager,
	cfg config.AuthConfig,
	auditSvc *AuditService,
	m *metrics.Collector,
	log *zap.Logger,
) *AuthService {
	if cfg.MinPasswordLength <= 0 {
		cfg.MinPasswordLength = 6
	}
	return &AuthService{
		userRepo:     userRepo,
		providerRepo: providerRepo,
		jwtManager:   jwtManager,
		cfg:          cfg,
		auditSvc:     auditSvc,
		metrics:      m,
		log:          log,
		bcryptCost:   bcrypt.DefaultCost,
	}
}

// Register creates a user. A provider-role user also gets an empty provider
// profile so it can be booked and can set availability right away.
func (s *AuthService) Register(ctx context.Context, cmd *RegisterCommand, ip string) (*domain.User, error) {
	cmd.Name = strings.TrimSpace(cmd.Name)
	cmd.Email = normalizeEmail(cmd.Email)
	if cmd.Role == "" {
		cmd.Role = domain.RoleClient
	}

	verr := &ValidationError{}
	if len(cmd.Name) < 2 {
		verr.add("name", "must be at least 2 characters")
	}
	if _, err := mail.ParseAddress(cmd.Email); err != nil {
		verr.add("email", "must be a valid email address")
	}
	if len(cmd.Password) < s.cfg.MinPasswordLength {
		verr.add("password", fmt.Sprintf("must be at least %d characters", s.cfg.MinPasswordLength))
	}
	if !cmd.Role.IsValid() {
		verr.add("role", "must be one of client, provider, admin")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	if cmd.Role == domain.RoleAdmin && !s.cfg.AllowAdminSignup {
		return nil, ErrForbidden
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		Name:         cmd.Name,
		Email:        cmd.Email,
		PasswordHash: string(hash),
		Role:         cmd.Role,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, err
		}
		s.log.Error("failed to create user", zap.Error(err))
		return nil, fmt.Errorf("creating user: %w", err)
	}

	if user.Role == domain.RoleProvider {
		pr := &provider.Provider{ID: uuid.New(), UserID: user.ID, Availability: provider.Slots{}}
		if err := s.providerRepo.Create(ctx, pr); err != nil {
			s.log.Error("failed to create provider profile",
				zap.String("user_id", user.ID.String()),
				zap.Error(err),
			)
			return nil, fmt.Errorf("creating provider profile: %w", err)
		}
	}

	s.metrics.UsersRegistered.WithLabelValues(string(user.Role)).Inc()
	s.auditSvc.LogAsync(ctx, auditFor(
		domain.Principal{UserID: user.ID, Role: user.Role, IPAddress: ip},
		domain.ActionCreate, resourceUser, user.ID.String(), nil,
	))
	s.log.Info("user registered",
		zap.String("user_id", user.ID.String()),
		zap.String("role", string(user.Role)),
	)

	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string, ip string) (*domain.TokenPair, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		// Hash anyway so response time does not reveal whether the email exists.
		_, _ = bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
		if !errors.Is(err, domain.ErrUserNotFound) {
			s.log.Error("failed to load user for login", zap.Error(err))
		}
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.log.Warn("failed login attempt",
			zap.String("email", user.Email),
			zap.String("ip", ip),
		)
		return nil, ErrInvalidCredentials
	}

	pair, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, auditFor(
		domain.Principal{UserID: user.ID, Role: user.Role, IPAddress: ip},
		domain.ActionLogin, resourceUser, user.ID.String(), nil,
	))
	s.log.Info("user logged in",
		zap.String("user_id", user.ID.String()),
		zap.String("ip", ip),
	)

	return pair, nil
}

// RefreshToken issues a new pair given a valid refresh token.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	// The user may have been removed since the token was issued.
	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issue(ctx, user)
}

func (s *AuthService) issue(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	claims := &domain.Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	}
	if user.Role == domain.RoleProvider {
		pr, err := s.providerRepo.GetByUserID(ctx, user.ID)
		switch {
		case err == nil:
			claims.ProviderID = &pr.ID
		case !errors.Is(err, provider.ErrProviderNotFound):
			return nil, fmt.Errorf("loading provider profile: %w", err)
		}
	}

	pair, err := s.jwtManager.GenerateTokenPair(claims)
	if err != nil {
		s.log.Error("failed to generate token pair", zap.Error(err))
		return nil, fmt.Errorf("generating tokens: %w", err)
	}
	return pair, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
