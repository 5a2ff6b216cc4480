// Package di provides dependency injection container for managing service lifecycle and dependencies.
package di

import (
	"context"
	"database/sql"
	"sync"

	"noisewatch/internal/cache"
	"noisewatch/internal/config"
	"noisewatch/internal/database"
	"noisewatch/internal/media"
	"noisewatch/internal/observability"
	"noisewatch/internal/services"
	serviceinterfaces "noisewatch/internal/services/interfaces"
	"noisewatch/internal/store"
	contextutils "noisewatch/internal/utils"

	"go.mongodb.org/mongo-driver/mongo"
)

// Service names registered in the container
const (
	UserServiceName         = "user"
	ReportServiceName       = "report"
	NotificationServiceName = "notification"
	AnalyticsServiceName    = "analytics"
	AggregationServiceName  = "aggregation"
	MediaStoreName          = "media"
)

// ServiceContainerInterface defines the interface for service containers
type ServiceContainerInterface interface {
	GetService(name string) (interface{}, error)
	GetUserService() (services.UserServiceInterface, error)
	GetReportService() (services.ReportServiceInterface, error)
	GetNotificationService() (services.NotificationServiceInterface, error)
	GetAnalyticsService() (services.AnalyticsServiceInterface, error)
	GetAggregationService() (services.AggregationServiceInterface, error)
	GetMediaStore() (media.Store, error)
	GetDatabase() *sql.DB
	GetConfig() *config.Config
	GetLogger() *observability.Logger
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
	IsReady() bool
	EnsureAdminUser(ctx context.Context) error
}

// ServiceContainer manages all service dependencies and lifecycle
type ServiceContainer struct {
	cfg       *config.Config
	logger    *observability.Logger
	dbManager *database.Manager
	db        *sql.DB
	mongo     *mongo.Client
	reports   store.ReportRepository
	users     store.UserRepository
	services  map[string]interface{}
	lifecycle serviceinterfaces.Group
	mu        sync.RWMutex
}

var _ ServiceContainerInterface = (*ServiceContainer)(nil)

// Option customizes a ServiceContainer before Initialize
type Option func(*ServiceContainer)

// WithDatabase makes the container use an already opened PostgreSQL handle instead of
// connecting and migrating. The container still closes it on Shutdown.
func WithDatabase(db *sql.DB) Option {
	return func(sc *ServiceContainer) {
		sc.db = db
	}
}

// NewServiceContainer creates a new dependency injection container
func NewServiceContainer(cfg *config.Config, logger *observability.Logger, opts ...Option) *ServiceContainer {
	sc := &ServiceContainer{
		cfg:       cfg,
		logger:    logger,
		dbManager: database.NewManager(logger),
		services:  make(map[string]interface{}),
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

// Initialize connects the record store and cache, then wires all services
func (sc *ServiceContainer) Initialize(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	summaryCache, err := cache.New(sc.cfg.Cache, sc.logger)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to create analytics cache")
	}

	sc.lifecycle.Add(sc.storageLifecycle())
	if redisCache, ok := summaryCache.(*cache.RedisCache); ok {
		sc.lifecycle.Add(sc.redisLifecycle(redisCache))
	}

	if err := sc.lifecycle.Startup(ctx); err != nil {
		return contextutils.WrapErrorf(err, "failed to startup services")
	}

	mediaStore, err := media.NewStore(sc.cfg.Media, sc.logger)
	if err != nil {
		_ = sc.lifecycle.Shutdown(ctx)
		return contextutils.WrapErrorf(err, "failed to create media store")
	}

	sc.initializeServices(summaryCache, mediaStore)
	return nil
}

// storageLifecycle opens the configured record store on startup and closes it on shutdown
func (sc *ServiceContainer) storageLifecycle() *serviceinterfaces.Hooks {
	if sc.cfg.UsesMongo() {
		return &serviceinterfaces.Hooks{
			Name: "mongo",
			OnStart: func(ctx context.Context) error {
				client, db, err := sc.dbManager.ConnectMongo(ctx, sc.cfg.Storage)
				if err != nil {
					return err
				}
				if err := sc.dbManager.EnsureMongoIndexes(ctx, db); err != nil {
					_ = client.Disconnect(ctx)
					return err
				}
				sc.mongo = client
				sc.reports = store.NewMongoReportRepository(db, sc.logger)
				sc.users = store.NewMongoUserRepository(db, sc.logger)
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return sc.mongo.Disconnect(ctx)
			},
		}
	}

	return &serviceinterfaces.Hooks{
		Name: "postgres",
		OnStart: func(_ context.Context) error {
			if sc.db == nil {
				db, err := sc.dbManager.InitDBWithConfig(sc.cfg.Database)
				if err != nil {
					return contextutils.WrapErrorf(err, "failed to initialize database")
				}
				sc.db = db
			}
			sc.reports = store.NewPostgresReportRepository(sc.db, sc.logger)
			sc.users = store.NewPostgresUserRepository(sc.db, sc.logger)
			return nil
		},
		OnStop: func(_ context.Context) error {
			return sc.db.Close()
		},
	}
}

// redisLifecycle checks the cache connection. An unreachable Redis only degrades analytics to
// uncached reads, so it does not fail startup.
func (sc *ServiceContainer) redisLifecycle(c *cache.RedisCache) *serviceinterfaces.Hooks {
	return &serviceinterfaces.Hooks{
		Name: "redis",
		OnStart: func(ctx context.Context) error {
			if err := c.Ping(ctx); err != nil {
				sc.logger.Warn(ctx, "Redis unreachable, analytics will be computed on every request", map[string]interface{}{
					"error": err.Error(),
				})
			}
			return nil
		},
		OnStop: func(_ context.Context) error {
			return c.Close()
		},
	}
}

// initializeServices sets up all service dependencies
func (sc *ServiceContainer) initializeServices(summaryCache cache.SummaryCache, mediaStore media.Store) {
	tokens := services.NewTokenService(sc.cfg.Server.JWTSecret)
	emailService := services.CreateEmailService(sc.cfg, sc.logger)

	sc.services[UserServiceName] = services.NewUserService(sc.users, tokens, emailService, sc.cfg, sc.logger)
	sc.services[ReportServiceName] = services.NewReportService(sc.reports, mediaStore, summaryCache, sc.logger)
	sc.services[NotificationServiceName] = services.NewNotificationService(sc.reports, sc.users, sc.cfg.Notifications, sc.logger)
	sc.services[AnalyticsServiceName] = services.NewAnalyticsService(sc.reports, sc.users, summaryCache, sc.cfg, sc.logger)
	sc.services[AggregationServiceName] = services.NewAggregationService(sc.reports, sc.cfg.Aggregation, sc.logger)
	sc.services[MediaStoreName] = mediaStore
}

// GetService retrieves a service by name with type assertion
func (sc *ServiceContainer) GetService(name string) (interface{}, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	service, exists := sc.services[name]
	if !exists {
		return nil, contextutils.ErrorWithContextf("service %s not found", name)
	}
	return service, nil
}

// GetServiceAs performs type-safe service retrieval
func GetServiceAs[T any](sc *ServiceContainer, name string) (T, error) {
	var zero T
	service, err := sc.GetService(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, contextutils.ErrorWithContextf("service %s is not of expected type %T", name, zero)
	}
	return typed, nil
}

// GetUserService returns the user service
func (sc *ServiceContainer) GetUserService() (services.UserServiceInterface, error) {
	return GetServiceAs[services.UserServiceInterface](sc, UserServiceName)
}

// GetReportService returns the report service
func (sc *ServiceContainer) GetReportService() (services.ReportServiceInterface, error) {
	return GetServiceAs[services.ReportServiceInterface](sc, ReportServiceName)
}

// GetNotificationService returns the notification service
func (sc *ServiceContainer) GetNotificationService() (services.NotificationServiceInterface, error) {
	return GetServiceAs[services.NotificationServiceInterface](sc, NotificationServiceName)
}

// GetAnalyticsService returns the analytics service
func (sc *ServiceContainer) GetAnalyticsService() (services.AnalyticsServiceInterface, error) {
	return GetServiceAs[services.AnalyticsServiceInterface](sc, AnalyticsServiceName)
}

// GetAggregationService returns the aggregation service
func (sc *ServiceContainer) GetAggregationService() (services.AggregationServiceInterface, error) {
	return GetServiceAs[services.AggregationServiceInterface](sc, AggregationServiceName)
}

// GetMediaStore returns the media store
func (sc *ServiceContainer) GetMediaStore() (media.Store, error) {
	return GetServiceAs[media.Store](sc, MediaStoreName)
}

// GetDatabase returns the PostgreSQL handle, or nil when records live in MongoDB
func (sc *ServiceContainer) GetDatabase() *sql.DB {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.db
}

// GetConfig returns the configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// IsReady reports whether every connection opened by Initialize is still up
func (sc *ServiceContainer) IsReady() bool {
	return sc.lifecycle.IsReady()
}

// Shutdown closes connections in reverse order of opening
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.logger.Info(ctx, "Shutting down services", nil)
	if err := sc.lifecycle.Shutdown(ctx); err != nil {
		sc.logger.Error(ctx, "Failed to shutdown services", err, nil)
		return contextutils.WrapErrorf(err, "shutdown errors")
	}
	return nil
}

// EnsureAdminUser creates the admin user if it doesn't exist
func (sc *ServiceContainer) EnsureAdminUser(ctx context.Context) error {
	userService, err := sc.GetUserService()
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to get user service")
	}

	return userService.EnsureAdminUserExists(ctx, sc.cfg.Server.AdminUsername, sc.cfg.Server.AdminEmail, sc.cfg.Server.AdminPassword)
}
