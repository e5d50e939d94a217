// Package httpapi wires the HTTP transport (Gin) to the KALA services,
// middleware and route handlers. It owns the cross-cutting concerns:
// tracing, correlation IDs, redacted logging, panic recovery, compression,
// metrics, session parsing, idempotency, rate limiting, CORS and security
// headers.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-kala-backend/internal/config"
	"github.com/tbourn/go-kala-backend/internal/domain"
	"github.com/tbourn/go-kala-backend/internal/http/handlers"
	"github.com/tbourn/go-kala-backend/internal/http/middleware"
	"github.com/tbourn/go-kala-backend/internal/repo"
	"github.com/tbourn/go-kala-backend/internal/services"
)

// maxBodyBytes caps every request body.
const maxBodyBytes = 64 << 10

// sendRatePerMinute throttles anonymous sends per client IP on top of the
// global limiter.
const sendRatePerMinute = 20

// userRepoShim adapts the repository free functions to services.UserRepo.
type userRepoShim struct{}

func (userRepoShim) GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	return repo.GetUser(ctx, db, id)
}

func (userRepoShim) GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	return repo.GetUserByUsername(ctx, db, username)
}

func (userRepoShim) UsernameTaken(ctx context.Context, db *gorm.DB, username, exceptID string) (bool, error) {
	return repo.UsernameTaken(ctx, db, username, exceptID)
}

func (userRepoShim) UpdateUserFields(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	return repo.UpdateUserFields(ctx, db, id, fields)
}

func (userRepoShim) SetUserLink(ctx context.Context, db *gorm.DB, id string, lc domain.LinkConfig) error {
	return repo.SetUserLink(ctx, db, id, lc)
}

// Deps are the collaborators RegisterRoutes builds the services from.
type Deps struct {
	DB         *gorm.DB
	Identities services.IdentityStore
	Tokens     Tokens
	// Cache may be nil; profiles are then always read from the database.
	Cache      services.ProfileCache
	// Google may be nil when Google sign-in is not configured.
	Google     services.GoogleVerifier
	Config     config.Config
}

// Tokens mints and parses session tokens.
type Tokens interface {
	services.TokenIssuer
	middleware.TokenParser
}

// RegisterRoutes attaches all middleware and HTTP endpoints to r.
//
// Middleware order matters:
//  1. OpenTelemetry
//  2. RequestID
//  3. RedactingLogger
//  4. Recovery (after the logger so panics carry the request id)
//  5. Body size limit and gzip
//  6. Metrics
//  7. OptionalAuth (so rate limit keys can use the user id)
//  8. Idempotency key validation
//  9. Rate limiter
//  10. CORS and security headers
func RegisterRoutes(r *gin.Engine, d Deps) {
	cfg := d.Config
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{handlers.HeaderSignature},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(middleware.OptionalAuth(d.Tokens))
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}))
	r.Use(middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP()).Handler())

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:    cfg.Security.EnableHSTS,
		HSTSMaxAge:    cfg.Security.HSTSMaxAge,
		EnablePolicy:  true,
		ExposeHeaders: []string{middleware.HeaderIdempotencyReplayed, "Retry-After", "ETag"},
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound)
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed)
	})

	r.GET("/health", health(d.DB))
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(buildServices(d))
	private := []gin.HandlerFunc{middleware.RequireAuth(d.Tokens), middleware.NoStore()}
	sendLimiter := middleware.NewRateLimiter(sendRatePerMinute/60.0, sendRatePerMinute/4, middleware.KeyByIP())

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		a := api.Group("/auth", middleware.NoStore())
		a.POST("/register", h.Register)
		a.POST("/login", h.Login)
		a.POST("/google", h.LoginWithGoogle)
		a.POST("/logout", h.Logout)
	}
	{
		m := api.Group("/messages")
		m.POST("/send", sendLimiter.Handler(), h.SendMessage)

		own := m.Group("", private...)
		own.GET("/list/:userId", h.ListMessages)
		own.POST("/read/:messageId", h.MarkAsRead)
		own.DELETE("/:messageId", h.DeleteMessage)
		own.GET("/unread/count", h.CountUnread)
	}
	{
		u := api.Group("/users")
		u.GET("/available/:username", h.UsernameAvailable)
		u.GET("/:username", h.GetPublicProfile)

		own := u.Group("", private...)
		own.GET("/me", h.GetMe)
		own.PUT("/profile", h.UpdateProfile)
	}
	{
		l := api.Group("/links")
		l.GET("/:username", h.VerifyLink)

		own := l.Group("", private...)
		own.POST("", h.GenerateLink)
		own.GET("/me", h.LinkStatus)
	}
	{
		p := api.Group("/payments")
		p.POST("/callback", h.PaymentCallback)

		own := p.Group("", private...)
		own.POST("/create", h.CreatePayment)
		own.POST("/cancel", h.CancelPremium)
		own.GET("/status", h.SubscriptionStatus)
	}
}

// buildServices applies the configured limits to every service.
func buildServices(d Deps) handlers.Deps {
	cfg := d.Config
	users := userRepoShim{}

	msgs := services.NewMessageService(d.DB, d.Cache)
	msgs.FreeLimit = cfg.FreeMessageLimit
	msgs.IdempotencyTTL = cfg.IdempotencyTTL
	msgs.Timeout = cfg.StoreTimeout

	links := services.NewLinkService(d.DB, users, d.Cache, cfg.PublicBaseURL)
	links.TTL = cfg.LinkTTL
	links.Timeout = cfg.StoreTimeout

	usvc := services.NewUserService(d.DB, users, d.Identities, d.Cache)
	usvc.FreeLimit = cfg.FreeMessageLimit
	usvc.Timeout = cfg.StoreTimeout

	subs := services.NewSubscriptionService(d.DB, d.Cache)
	subs.Period = cfg.Payments.PremiumPeriod
	subs.Price = cfg.Payments.PremiumPrice
	subs.Currency = cfg.Payments.PremiumCurrency
	subs.Timeout = cfg.StoreTimeout

	pays := services.NewPaymentService(d.DB, subs, cfg.Payments.WhatsAppContact)
	pays.Timeout = cfg.StoreTimeout

	authSvc := services.NewAuthService(d.DB, d.Identities, d.Google, d.Tokens)
	authSvc.Timeout = cfg.StoreTimeout

	return handlers.Deps{
		Auth:          authSvc,
		Messages:      msgs,
		Links:         links,
		Users:         usvc,
		Payments:      pays,
		WebhookSecret: cfg.Payments.WebhookSecret,
	}
}

// corsMiddleware allows every origin when none are configured, otherwise
// echoes allowlisted origins.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Accept-Language", "Authorization",
			"If-None-Match", middleware.HeaderIdempotencyKey, handlers.HeaderSignature,
		},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length", "ETag", "Retry-After", middleware.HeaderIdempotencyReplayed},
		MaxAge:        12 * time.Hour,
	}

	if len(origins) == 0 {
		base.AllowAllOrigins = true
		return []gin.HandlerFunc{
			// ACAO even without an Origin header, for simple probes.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	base.AllowOrigins = origins
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(base),
	}
}

// health reports liveness and whether the database answers a ping.
func health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "db": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "ok"})
	}
}

// limitBody caps the request body at maxBytes. Reads past the cap error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
