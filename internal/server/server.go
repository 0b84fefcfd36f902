package server

import (
	"net/http"
	"time"

	"fundingportal/internal/config"
	"fundingportal/internal/draftqueue"
	"fundingportal/internal/handler"
	"fundingportal/internal/metrics"
	"fundingportal/internal/middleware"
	"fundingportal/internal/repository"
	"fundingportal/internal/service"
	"fundingportal/internal/storage"
	"fundingportal/internal/validation"
	"fundingportal/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// Deps are the long-lived collaborators the router is built from.
type Deps struct {
	Config  *config.Config
	DB      *gorm.DB
	Store   storage.BlobStore
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
	// Redis backs the login rate limiter. Nil disables rate limiting.
	Redis *redis.Client
	// Hub pushes application events to connected clients. Nil disables /ws.
	Hub *websocket.Hub
	// Now and BcryptCost are overridden by tests.
	Now        func() time.Time
	BcryptCost int
}

// New wires repositories, services and handlers into a gin engine.
func New(d Deps) *gin.Engine {
	cfg := d.Config

	opts := service.Options{Logger: d.Logger, Metrics: d.Metrics, Now: d.Now}
	if d.Hub != nil {
		opts.Notifier = d.Hub
	}

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(d.DB)
	userRepo := repository.NewUserRepository(d.DB)
	sessionRepo := repository.NewSessionRepository(d.DB)
	appRepo := repository.NewApplicationRepository(d.DB)
	docRepo := repository.NewDocumentRepository(d.DB)
	auditRepo := repository.NewAuditRepository(d.DB)
	configRepo := repository.NewConfigRepository(d.DB)

	var vopts []validation.Option
	if d.Now != nil {
		vopts = append(vopts, validation.WithClock(d.Now))
	}
	validator := validation.New(vopts...)
	queue := draftqueue.New()

	configService := service.NewConfigService(configRepo, cfg.UploadMaxBytes)
	authService := service.NewAuthService(txManager, userRepo, sessionRepo, appRepo, auditRepo, validator, service.AuthConfig{
		Secret:            []byte(cfg.SessionSecret),
		SessionTTL:        cfg.SessionTTL,
		PINMaxAge:         cfg.PINMaxAge,
		MaxFailedAttempts: cfg.PINMaxFailedAttempts,
		AdminPhones:       cfg.AdminPhoneNumbers,
		BcryptCost:        d.BcryptCost,
	}, opts)
	applicationService := service.NewApplicationService(txManager, appRepo, auditRepo, configService, queue, validator, opts)
	documentService := service.NewDocumentService(txManager, appRepo, docRepo, auditRepo, d.Store, validator, cfg.UploadMaxBytes, opts)
	dashboardService := service.NewDashboardService(appRepo, docRepo, configService, opts)
	reviewService := service.NewReviewService(txManager, appRepo, auditRepo, queue, opts)
	auditService := service.NewAuditService(auditRepo)
	profileService := service.NewProfileService(txManager, userRepo, auditRepo, validator, opts)

	authn := middleware.NewAuthenticator(authService, cfg.IsProduction())
	var limiter gin.HandlerFunc
	if d.Redis != nil {
		limiter = middleware.RateLimit(d.Redis, cfg.RateLimitPerMinute, time.Minute, d.Logger)
	}

	// Initialize Handlers
	authHandler := handler.NewAuthHandler(authService, authn, limiter)
	configHandler := handler.NewConfigHandler(configService)
	applicationHandler := handler.NewApplicationHandler(applicationService)
	documentHandler := handler.NewDocumentHandler(documentService, cfg.UploadMaxBytes)
	dashboardHandler := handler.NewDashboardHandler(dashboardService)
	reviewHandler := handler.NewReviewHandler(reviewService)
	auditHandler := handler.NewAuditHandler(auditService)
	profileHandler := handler.NewProfileHandler(profileService)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.Metrics(d.Metrics), middleware.RequestLogger(d.Logger))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	if len(corsConfig.AllowOrigins) > 0 {
		router.Use(cors.New(corsConfig))
	}

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	router.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	if d.Hub != nil {
		router.GET("/ws", func(c *gin.Context) {
			websocket.ServeWs(d.Hub, authService, c)
		})
	}

	public := router.Group("")
	authHandler.RegisterRoutes(public)
	configHandler.RegisterRoutes(public)

	protected := router.Group("", authn.RequireSession())
	applicationHandler.RegisterRoutes(protected)
	documentHandler.RegisterRoutes(protected)
	dashboardHandler.RegisterRoutes(protected)
	reviewHandler.RegisterRoutes(protected)
	auditHandler.RegisterRoutes(protected)
	profileHandler.RegisterRoutes(protected)

	return router
}
