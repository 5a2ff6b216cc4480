package config

import "time"

// Timeout constants
const (
	// HTTP timeouts
	MediaUploadTimeout    = 2 * time.Minute
	ServerShutdownTimeout = 15 * time.Second
	ReadHeaderTimeout     = 10 * time.Second
	WorkerShutdownTimeout = 30 * time.Second

	// Database timeouts
	DatabaseConnMaxLifetime = 5 * time.Minute
	MongoConnectTimeout     = 10 * time.Second

	// Session timeouts
	SessionMaxAge = 7 * 24 * time.Hour // 7 days

	// Token lifetimes
	AccessTokenTTL       = 7 * 24 * time.Hour
	VerificationTokenTTL = 24 * time.Hour
)

// Defaults applied by NewConfig
const (
	DefaultServerPort             = "8080"
	DefaultWorkerPort             = "8081"
	DefaultMaxUploadMB            = 50
	DefaultMaxHistory             = 50
	DefaultMongoDatabase          = "noisewatch"
	DefaultMediaDir               = "uploads"
	DefaultCacheTTL               = 60 * time.Second
	DefaultLRUSize                = 128
	DefaultAggregationInterval    = 15 * time.Minute
	DefaultMatchRadiusMeters      = 50.0
	DefaultLookbackDays           = 30
	DefaultTimezone               = "Asia/Manila"
	DefaultNotificationWindowDays = 7
	DefaultNotificationLimit      = 50
	DefaultProfilePhoto           = "https://res.cloudinary.com/noisewatch/image/upload/v1/defaults/profile-placeholder.png"

	// Development-only secrets, used when server.debug is set and no secret is configured
	DevSessionSecret = "noisewatch-dev-session-secret"
	DevJWTSecret     = "noisewatch-dev-jwt-secret"
)

// Backend identifiers
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMongo    = "mongo"
	MediaBackendLocal     = "local"
	MediaBackendRemote    = "remote"
	MediaRoutePrefix      = "/media"
)

// Session configuration constants
const (
	// Session settings
	SessionPath     = "/"
	SessionHTTPOnly = true
	SessionSecure   = false // Set to true in production with HTTPS

	// Session name
	SessionName = "noisewatch-session"
)

// Security configuration constants
const (
	// Content Security Policy
	DefaultCSP = "default-src 'self'; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'; img-src 'self' data: https:; media-src 'self' blob: data: https:;"
)
