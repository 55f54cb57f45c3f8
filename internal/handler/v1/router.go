package v1

import (
	"context"

	"github.com/dmehra2102/prod-golang-projects/appointly/internal/config"
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/middleware"
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/service"
	"github.com/dmehra2102/prod-golang-projects/appointly/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/appointly/pkg/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type RouterDeps struct {
	Config       *config.Config
	Log          *zap.Logger
	Metrics      *metrics.Collector
	JWT          *auth.JWTManager
	Auth         *service.AuthService
	Providers    *service.ProviderService
	Appointments *service.AppointmentService
	Ready        func(ctx context.Context) error
}

func NewRouter(d RouterDeps) *gin.Engine {
	useJSONFieldNames()

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Recovery(d.Log),
		middleware.RequestLogger(d.Log),
		middleware.Tracing(d.Config.Tracing.ServiceName),
		middleware.Metrics(d.Metrics),
		middleware.CORS(d.Config.CORS),
	)
	if rl := d.Config.RateLimit; rl.RequestsPerSecond > 0 {
		r.Use(middleware.NewRateLimiter("global", rate.Limit(rl.RequestsPerSecond), rl.BurstSize).Middleware(d.Metrics))
	}

	health := NewHealthHandler(d.Config.App.Version, d.Ready)
	r.GET("/health", health.Live)
	r.GET("/ready", health.Ready)
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	authH := NewAuthHandler(d.Auth)
	providerH := NewProviderHandler(d.Providers)
	apptH := NewAppointmentHandler(d.Appointments)

	authn := middleware.Authenticate(d.JWT)
	roles := middleware.RequireRoles

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.PerMinute("auth", d.Config.RateLimit.AuthRequestsPerMinute).Middleware(d.Metrics))
	authGroup.POST("/register", authH.Register)
	authGroup.POST("/login", authH.Login)
	authGroup.POST("/refresh", authH.Refresh)

	providers := api.Group("/providers")
	providers.GET("", providerH.List)
	providers.GET("/:id", providerH.Get)
	providers.POST("", authn, roles(domain.RoleProvider, domain.RoleAdmin), providerH.Create)
	providers.PUT("/:id", authn, roles(domain.RoleProvider, domain.RoleAdmin), providerH.Update)
	providers.PUT("/:id/availability", authn, roles(domain.RoleProvider, domain.RoleAdmin), providerH.SetAvailability)
	providers.DELETE("/:id", authn, roles(domain.RoleAdmin), providerH.Delete)

	appts := api.Group("/appointments", authn)
	appts.POST("", roles(domain.RoleClient), apptH.Book)
	appts.GET("/me", apptH.ListMine)
	appts.GET("/all", roles(domain.RoleAdmin), apptH.ListAll)
	appts.GET("/provider/:id", roles(domain.RoleProvider, domain.RoleAdmin), apptH.ListForProvider)
	appts.PUT("/:id", roles(domain.RoleClient, domain.RoleProvider, domain.RoleAdmin), apptH.Update)
	appts.POST("/:id/cancel", roles(domain.RoleClient, domain.RoleProvider, domain.RoleAdmin), apptH.Cancel)
	appts.DELETE("/:id", roles(domain.RoleClient, domain.RoleProvider, domain.RoleAdmin), apptH.Delete)

	return r
}
