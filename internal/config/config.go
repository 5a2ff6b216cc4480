// Package config handles application configuration loading from a YAML file and environment variables.
package config

import (
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	contextutils "noisewatch/internal/utils"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names the environment variable holding the config file path
const ConfigFileEnv = "NOISEWATCH_CONFIG_FILE"

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server" yaml:"server"`

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `json:"database" yaml:"database"`

	// Storage selects the record store backend
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Media upload backend
	Media MediaConfig `json:"media" yaml:"media"`

	// Cache for derived read models
	Cache CacheConfig `json:"cache" yaml:"cache"`

	// Consecutive-day aggregation
	Aggregation AggregationConfig `json:"aggregation" yaml:"aggregation"`

	// Admin notification feed
	Notifications NotificationsConfig `json:"notifications" yaml:"notifications"`

	// OpenTelemetry Configuration
	OpenTelemetry OpenTelemetryConfig `json:"open_telemetry" yaml:"open_telemetry"`

	// Email Configuration
	Email EmailConfig `json:"email" yaml:"email"`

	// Internal fields
	IsTest bool `json:"is_test" yaml:"is_test"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port          string   `json:"port" yaml:"port"`
	WorkerPort    string   `json:"worker_port" yaml:"worker_port"`
	AdminUsername string   `json:"admin_username" yaml:"admin_username"`
	AdminEmail    string   `json:"admin_email" yaml:"admin_email"`
	AdminPassword string   `json:"admin_password" yaml:"admin_password"`
	SessionSecret string   `json:"session_secret" yaml:"session_secret"`
	JWTSecret     string   `json:"jwt_secret" yaml:"jwt_secret"`
	Debug         bool     `json:"debug" yaml:"debug"`
	LogLevel      string   `json:"log_level" yaml:"log_level"`
	AppBaseURL    string   `json:"app_base_url" yaml:"app_base_url"`
	CORSOrigins   []string `json:"cors_origins" yaml:"cors_origins"`
	MaxUploadMB   int      `json:"max_upload_mb" yaml:"max_upload_mb"`
	MaxHistory    int      `json:"max_history" yaml:"max_history"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL             string        `json:"url" yaml:"url"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`       // Maximum number of open connections to the database
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`       // Maximum number of idle connections in the pool
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"` // Maximum amount of time a connection may be reused
}

// StorageConfig selects between the PostgreSQL and MongoDB record stores
type StorageConfig struct {
	Driver        string `json:"driver" yaml:"driver"` // "postgres" (default) or "mongo"
	MongoURI      string `json:"mongo_uri" yaml:"mongo_uri"`
	MongoDatabase string `json:"mongo_database" yaml:"mongo_database"`
}

// MediaConfig represents where uploaded audio/video files are kept
type MediaConfig struct {
	Backend            string `json:"backend" yaml:"backend"` // "local" (default) or "remote"
	LocalDir           string `json:"local_dir" yaml:"local_dir"`
	PublicBaseURL      string `json:"public_base_url" yaml:"public_base_url"`
	RemoteUploadURL    string `json:"remote_upload_url" yaml:"remote_upload_url"`
	RemoteUploadPreset string `json:"remote_upload_preset" yaml:"remote_upload_preset"`
	RemoteAPIKey       string `json:"remote_api_key" yaml:"remote_api_key"`
}

// CacheConfig represents the analytics cache configuration
type CacheConfig struct {
	RedisURL string        `json:"redis_url" yaml:"redis_url"` // empty means in-process LRU
	TTL      time.Duration `json:"ttl" yaml:"ttl"`
	LRUSize  int           `json:"lru_size" yaml:"lru_size"`
}

// AggregationConfig controls the consecutive-day matching worker
type AggregationConfig struct {
	Enabled       bool          `json:"enabled" yaml:"enabled"`
	Interval      time.Duration `json:"interval" yaml:"interval"`
	RadiusMeters  float64       `json:"radius_meters" yaml:"radius_meters"`
	LookbackDays  int           `json:"lookback_days" yaml:"lookback_days"`
	Timezone      string        `json:"timezone" yaml:"timezone"`
	MatchSameUser bool          `json:"match_same_user" yaml:"match_same_user"`
}

// NotificationsConfig controls the admin notification projection
type NotificationsConfig struct {
	WindowDays int `json:"window_days" yaml:"window_days"`
	Limit      int `json:"limit" yaml:"limit"`
}

// OpenTelemetryConfig holds all OpenTelemetry-related configuration
type OpenTelemetryConfig struct {
	Endpoint       string            `json:"endpoint" yaml:"endpoint"`               // Default: "localhost:4317"
	Protocol       string            `json:"protocol" yaml:"protocol"`               // "grpc" or "http", default: "grpc"
	Insecure       bool              `json:"insecure" yaml:"insecure"`               // Default: true (for localhost)
	Headers        map[string]string `json:"headers" yaml:"headers"`                 // For authenticated endpoints
	ServiceName    string            `json:"service_name" yaml:"service_name"`       // Default: "noisewatch-backend" or "noisewatch-worker"
	ServiceVersion string            `json:"service_version" yaml:"service_version"` // From version package
	EnableTracing  bool              `json:"enable_tracing" yaml:"enable_tracing"`
	EnableMetrics  bool              `json:"enable_metrics" yaml:"enable_metrics"`
	EnableLogging  bool              `json:"enable_logging" yaml:"enable_logging"`
	SamplingRate   float64           `json:"sampling_rate" yaml:"sampling_rate"` // Default: 1.0 (100%)
}

// EmailConfig represents email/SMTP configuration
type EmailConfig struct {
	SMTP    SMTPConfig `json:"smtp" yaml:"smtp"`
	Enabled bool       `json:"enabled" yaml:"enabled"`
}

// SMTPConfig represents SMTP server configuration
type SMTPConfig struct {
	Host        string `json:"host" yaml:"host"`
	Port        int    `json:"port" yaml:"port"`
	Username    string `json:"username" yaml:"username"`
	Password    string `json:"password" yaml:"password"`
	FromAddress string `json:"from_address" yaml:"from_address"`
	FromName    string `json:"from_name" yaml:"from_name"`
}

// UsesMongo reports whether records live in MongoDB instead of PostgreSQL
func (c *Config) UsesMongo() bool {
	return strings.EqualFold(c.Storage.Driver, StorageDriverMongo)
}

// MaxUploadBytes returns the multipart upload limit in bytes
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

// Location returns the timezone used to bucket reports into calendar days
func (a AggregationConfig) Location() *time.Location {
	if a.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// NewConfig loads configuration from YAML file first, then overrides with environment variables
func NewConfig() (result0 *Config, err error) {
	// A missing .env file is normal outside local development
	_ = godotenv.Load()

	config, err := loadConfigWithOverrides()
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config: %w", err)
	}

	config.overrideFromEnv()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks settings that have no usable default
func (c *Config) Validate() error {
	switch strings.ToLower(c.Storage.Driver) {
	case StorageDriverPostgres:
		if c.Database.URL == "" {
			return contextutils.WrapErrorf(contextutils.ErrMissingRequired, "database.url is required for the postgres driver")
		}
	case StorageDriverMongo:
		if c.Storage.MongoURI == "" {
			return contextutils.WrapErrorf(contextutils.ErrMissingRequired, "storage.mongo_uri is required for the mongo driver")
		}
	default:
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "unknown storage driver %q", c.Storage.Driver)
	}

	switch strings.ToLower(c.Media.Backend) {
	case MediaBackendLocal:
	case MediaBackendRemote:
		if c.Media.RemoteUploadURL == "" {
			return contextutils.WrapErrorf(contextutils.ErrMissingRequired, "media.remote_upload_url is required for the remote media backend")
		}
	default:
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "unknown media backend %q", c.Media.Backend)
	}

	if !c.IsTest && !c.Server.Debug {
		if c.Server.SessionSecret == "" || c.Server.JWTSecret == "" {
			return contextutils.WrapErrorf(contextutils.ErrMissingRequired, "server.session_secret and server.jwt_secret must be set")
		}
	}
	return nil
}

// applyDefaults fills zero values with the built-in defaults
func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = DefaultServerPort
	}
	if c.Server.WorkerPort == "" {
		c.Server.WorkerPort = DefaultWorkerPort
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.MaxUploadMB <= 0 {
		c.Server.MaxUploadMB = DefaultMaxUploadMB
	}
	if c.Server.MaxHistory <= 0 {
		c.Server.MaxHistory = DefaultMaxHistory
	}
	if c.Server.AdminUsername == "" {
		c.Server.AdminUsername = "admin"
	}
	if c.Server.Debug {
		if c.Server.SessionSecret == "" {
			c.Server.SessionSecret = DevSessionSecret
		}
		if c.Server.JWTSecret == "" {
			c.Server.JWTSecret = DevJWTSecret
		}
	}

	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime <= 0 {
		c.Database.ConnMaxLifetime = DatabaseConnMaxLifetime
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageDriverPostgres
	}
	if c.Storage.MongoDatabase == "" {
		c.Storage.MongoDatabase = DefaultMongoDatabase
	}

	if c.Media.Backend == "" {
		c.Media.Backend = MediaBackendLocal
	}
	if c.Media.LocalDir == "" {
		c.Media.LocalDir = DefaultMediaDir
	}
	if c.Media.PublicBaseURL == "" {
		c.Media.PublicBaseURL = MediaRoutePrefix
	}

	if c.Cache.TTL <= 0 {
		c.Cache.TTL = DefaultCacheTTL
	}
	if c.Cache.LRUSize <= 0 {
		c.Cache.LRUSize = DefaultLRUSize
	}

	if c.Aggregation.Interval <= 0 {
		c.Aggregation.Interval = DefaultAggregationInterval
	}
	if c.Aggregation.RadiusMeters <= 0 {
		c.Aggregation.RadiusMeters = DefaultMatchRadiusMeters
	}
	if c.Aggregation.LookbackDays <= 0 {
		c.Aggregation.LookbackDays = DefaultLookbackDays
	}
	if c.Aggregation.Timezone == "" {
		c.Aggregation.Timezone = DefaultTimezone
	}

	if c.Notifications.WindowDays <= 0 {
		c.Notifications.WindowDays = DefaultNotificationWindowDays
	}
	if c.Notifications.Limit <= 0 {
		c.Notifications.Limit = DefaultNotificationLimit
	}

	if c.OpenTelemetry.SamplingRate <= 0 {
		c.OpenTelemetry.SamplingRate = 1.0
	}
	if c.OpenTelemetry.Protocol == "" {
		c.OpenTelemetry.Protocol = "grpc"
	}
}

// overrideFromEnv overrides config values with environment variables using reflection
func (c *Config) overrideFromEnv() {
	overrideStructFromEnvWithPrefix(c, "")
}

var durationType = reflect.TypeOf(time.Duration(0))

// overrideStructFromEnvWithPrefix recursively overrides struct fields with environment variables.
// The variable name is the upper-cased yaml path joined with underscores, e.g. SERVER_PORT.
func overrideStructFromEnvWithPrefix(v interface{}, prefix string) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return
	}

	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		if !field.CanSet() {
			continue
		}

		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}

		envKey := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
		if prefix != "" {
			envKey = prefix + "_" + envKey
		}

		if field.Type() == durationType {
			if envVal := os.Getenv(envKey); envVal != "" {
				if d, err := time.ParseDuration(envVal); err == nil {
					field.SetInt(int64(d))
				}
			}
			continue
		}

		switch field.Kind() {
		case reflect.String:
			if envVal := os.Getenv(envKey); envVal != "" {
				field.SetString(envVal)
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if intVal, err := strconv.ParseInt(envVal, 10, 64); err == nil {
					field.SetInt(intVal)
				}
			}
		case reflect.Float32, reflect.Float64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if floatVal, err := strconv.ParseFloat(envVal, 64); err == nil {
					field.SetFloat(floatVal)
				}
			}
		case reflect.Bool:
			if envVal := os.Getenv(envKey); envVal != "" {
				if boolVal, err := strconv.ParseBool(envVal); err == nil {
					field.SetBool(boolVal)
				}
			}
		case reflect.Slice:
			if envVal := os.Getenv(envKey); envVal != "" {
				// Handle string slices (like CORS_ORIGINS)
				if field.Type().Elem().Kind() == reflect.String {
					parts := strings.Split(envVal, ",")
					for i := range parts {
						parts[i] = strings.TrimSpace(parts[i])
					}
					field.Set(reflect.ValueOf(parts))
				}
			}
		case reflect.Struct:
			if field.CanAddr() {
				overrideStructFromEnvWithPrefix(field.Addr().Interface(), envKey)
			}
		}
	}
}

// loadConfigWithOverrides loads the config file named by NOISEWATCH_CONFIG_FILE, or config.yaml.
// A missing default file is not an error; everything can come from the environment.
func loadConfigWithOverrides() (result0 *Config, err error) {
	if envPath := os.Getenv(ConfigFileEnv); envPath != "" {
		config, err := loadConfigFromFile(envPath)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config from %s: %w", envPath, err)
		}
		return config, nil
	}

	config, err := loadConfigFromFile("config.yaml")
	if os.IsNotExist(err) {
		return &Config{}, nil
	}
	return config, err
}

// loadConfigFromFile loads configuration from a specific file
func loadConfigFromFile(path string) (result0 *Config, err error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(yamlFile, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
