package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/MaxtDesign/MaxtPM/internal/config"
	"github.com/MaxtDesign/MaxtPM/internal/middleware"
	"github.com/MaxtDesign/MaxtPM/internal/models"
	"github.com/MaxtDesign/MaxtPM/internal/ratelimit"
	"github.com/MaxtDesign/MaxtPM/internal/repository"
	"github.com/MaxtDesign/MaxtPM/internal/security"
	"github.com/MaxtDesign/MaxtPM/internal/service"
	"github.com/MaxtDesign/MaxtPM/internal/session"
)

// Pinger is an optional dependency reported by the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the process-level resources the handlers are built from. Cache and
// Logos may be nil.
type Deps struct {
	Log      zerolog.Logger
	Config   *config.AppConfig
	Store    repository.Store
	Cache    *redis.Client
	Logos    LogoStore
	Notifier service.Notifier
}

// LogoStore is an object store that can also report its health.
type LogoStore interface {
	service.LogoStore
	Pinger
}

type HandlerSet struct {
	log       zerolog.Logger
	cfg       *config.AppConfig
	store     repository.Store
	cache     *redis.Client
	logos     Pinger
	tokens    *security.TokenIssuer
	sessions  *session.Store
	auth      *service.AuthService
	companies *service.CompanyService
	limiter   ratelimit.Limiter
}

func NewHandlerSet(deps Deps) HandlerSet {
	cfg := deps.Config
	tokens := security.NewTokenIssuer(cfg.Security)
	sessions := session.NewStore(deps.Store, cfg.Security.JWTRefreshTTL)

	var logos service.LogoStore
	var logoPinger Pinger
	if deps.Logos != nil {
		logos = deps.Logos
		logoPinger = deps.Logos
	}

	var limiter ratelimit.Limiter
	switch {
	case !cfg.RateLimit.Enabled:
	case deps.Cache != nil:
		limiter = ratelimit.NewRedis(deps.Cache, cfg.RateLimit.Prefix)
	default:
		limiter = ratelimit.NewMemory()
	}

	registerValidators()

	return HandlerSet{
		log:       deps.Log,
		cfg:       cfg,
		store:     deps.Store,
		cache:     deps.Cache,
		logos:     logoPinger,
		tokens:    tokens,
		sessions:  sessions,
		auth:      service.NewAuthService(deps.Store, sessions, tokens, deps.Notifier, cfg, deps.Log),
		companies: service.NewCompanyService(deps.Store, logos, cfg.Storage.MaxLogo, deps.Log),
		limiter:   limiter,
	}
}

// Sessions exposes the session store so the scheduler can purge it.
func (h HandlerSet) Sessions() *session.Store {
	return h.sessions
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	authenticate := middleware.Authenticate(h.tokens, h.store)

	auth := router.Group("/auth")
	{
		auth.POST("/register", h.rateLimit(ratelimit.Registration, middleware.KeyByIP), h.RegisterUser)
		auth.POST("/login", h.rateLimit(ratelimit.Login, middleware.KeyByIPAndEmail), h.Login)
		auth.POST("/refresh", h.rateLimit(ratelimit.Refresh, middleware.KeyByIP), h.Refresh)
		auth.POST("/forgot-password", h.rateLimit(ratelimit.PasswordReset, middleware.KeyByIP), h.ForgotPassword)
		auth.POST("/reset-password", h.rateLimit(ratelimit.PasswordReset, middleware.KeyByIP), h.ResetPassword)

		auth.POST("/logout", authenticate, h.Logout)
		auth.POST("/logout-all", authenticate, h.LogoutAll)
		auth.POST("/change-password", authenticate, h.ChangePassword)
		auth.GET("/me", authenticate, h.Me)
	}

	managers := middleware.RequireRoles(models.UserRoleAdmin, models.UserRolePropertyManager)
	companies := router.Group("/companies/:companyId")
	companies.Use(authenticate, middleware.RequireCompanyAccess("companyId"))
	{
		companies.GET("", h.GetCompany)
		companies.GET("/users", managers, h.ListCompanyUsers)
		companies.PUT("/logo", managers, h.UploadCompanyLogo)
	}

	users := router.Group("/users")
	users.Use(authenticate, middleware.RequireRoles(models.UserRoleAdmin))
	users.PATCH("/:id/status", h.SetUserStatus)
}

func (h HandlerSet) rateLimit(rule ratelimit.Rule, keyFn middleware.KeyFunc) gin.HandlerFunc {
	if h.limiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return middleware.RateLimit(h.limiter, rule, keyFn, h.log)
}
