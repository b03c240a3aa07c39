package config

import "time"

// Config represents the main configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Storage   StorageConfig   `yaml:"storage" mapstructure:"storage"`
	Detection DetectionConfig `yaml:"detection" mapstructure:"detection"`
	Risk      RiskConfig      `yaml:"risk" mapstructure:"risk"`
	Anonymize AnonymizeConfig `yaml:"anonymize" mapstructure:"anonymize"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Limits    LimitsConfig    `yaml:"limits" mapstructure:"limits"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	WebSocket WebSocketConfig `yaml:"websocket" mapstructure:"websocket"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// StorageConfig contains dataset and report storage configuration
type StorageConfig struct {
	DataDir    string            `yaml:"data_dir" mapstructure:"data_dir"`
	OutputsDir string            `yaml:"outputs_dir" mapstructure:"outputs_dir"`
	Reports    ReportStoreConfig `yaml:"reports" mapstructure:"reports"`
}

// ReportStoreConfig contains the optional Postgres run-history store
type ReportStoreConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// DetectionConfig contains PII detection configuration
type DetectionConfig struct {
	SampleRows    int     `yaml:"sample_rows" mapstructure:"sample_rows"`
	MinConfidence float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
}

// RiskConfig contains risk evaluation thresholds
type RiskConfig struct {
	UniquenessThreshold float64 `yaml:"uniqueness_threshold" mapstructure:"uniqueness_threshold"`
	NullRatioThreshold  float64 `yaml:"null_ratio_threshold" mapstructure:"null_ratio_threshold"`
}

// AnonymizeConfig contains anonymization pipeline configuration
type AnonymizeConfig struct {
	Salt      string `yaml:"salt" mapstructure:"salt"`
	BatchSize int    `yaml:"batch_size" mapstructure:"batch_size"`
	Workers   int    `yaml:"workers" mapstructure:"workers"`
	GeoLevels int    `yaml:"geo_levels" mapstructure:"geo_levels"`
}

// CacheConfig contains the Redis analysis cache configuration
type CacheConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	RedisURL       string        `yaml:"redis_url" mapstructure:"redis_url"`
	MaxConnections int           `yaml:"max_connections" mapstructure:"max_connections"`
	MinIdleConns   int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DefaultTTL     time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
	KeyPrefix      string        `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// LimitsConfig contains upload and request limits
type LimitsConfig struct {
	MaxFileMB int             `yaml:"max_file_mb" mapstructure:"max_file_mb"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// RateLimitConfig contains per-client rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
		Path     string `yaml:"path" mapstructure:"path"`
		MaxSize  int    `yaml:"max_size" mapstructure:"max_size"`
		MaxAge   int    `yaml:"max_age" mapstructure:"max_age"`
		Compress bool   `yaml:"compress" mapstructure:"compress"`
	} `yaml:"file" mapstructure:"file"`
}

// WebSocketConfig contains WebSocket dashboard configuration
type WebSocketConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	Path            string        `yaml:"path" mapstructure:"path"`
	MaxConnections  int           `yaml:"max_connections" mapstructure:"max_connections"`
	ReadBufferSize  int           `yaml:"read_buffer_size" mapstructure:"read_buffer_size"`
	WriteBufferSize int           `yaml:"write_buffer_size" mapstructure:"write_buffer_size"`
	PingInterval    time.Duration `yaml:"ping_interval" mapstructure:"ping_interval"`
	PongTimeout     time.Duration `yaml:"pong_timeout" mapstructure:"pong_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	MaxMessageSize  int64         `yaml:"max_message_size" mapstructure:"max_message_size"`
	AllowedOrigins  []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	Events          EventsConfig  `yaml:"events" mapstructure:"events"`
}

// EventsConfig selects which event kinds are broadcast to dashboard clients
type EventsConfig struct {
	BroadcastDetections  bool `yaml:"broadcast_detections" mapstructure:"broadcast_detections"`
	BroadcastRunProgress bool `yaml:"broadcast_run_progress" mapstructure:"broadcast_run_progress"`
	BroadcastSystem      bool `yaml:"broadcast_system" mapstructure:"broadcast_system"`
	BroadcastConnections bool `yaml:"broadcast_connections" mapstructure:"broadcast_connections"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Storage: StorageConfig{
			DataDir:    "data",
			OutputsDir: "outputs",
			Reports: ReportStoreConfig{
				Enabled:         false,
				DatabaseURL:     "postgres://localhost:5432/dataveil?sslmode=disable",
				MaxOpenConns:    10,
				MaxIdleConns:    5,
				ConnMaxLifetime: 30 * time.Minute,
			},
		},
		Detection: DetectionConfig{
			SampleRows:    50,
			MinConfidence: 0.5,
		},
		Risk: RiskConfig{
			UniquenessThreshold: 0.9,
			NullRatioThreshold:  0.97,
		},
		Anonymize: AnonymizeConfig{
			Salt:      "pepper",
			BatchSize: 1000,
			Workers:   4,
			GeoLevels: 2,
		},
		Cache: CacheConfig{
			Enabled:        false,
			RedisURL:       "redis://localhost:6379/0",
			MaxConnections: 10,
			MinIdleConns:   2,
			DefaultTTL:     15 * time.Minute,
			KeyPrefix:      "dataveil:analysis:",
		},
		Limits: LimitsConfig{
			MaxFileMB: 50,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerSecond: 10,
				Burst:             20,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			File: struct {
				Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
				Path     string `yaml:"path" mapstructure:"path"`
				MaxSize  int    `yaml:"max_size" mapstructure:"max_size"`
				MaxAge   int    `yaml:"max_age" mapstructure:"max_age"`
				Compress bool   `yaml:"compress" mapstructure:"compress"`
			}{
				Enabled:  false,
				Path:     "logs/dataveil.log",
				MaxSize:  100, // MB
				MaxAge:   30,  // days
				Compress: true,
			},
		},
		WebSocket: WebSocketConfig{
			Enabled:         true,
			Path:            "/ws",
			MaxConnections:  100,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingInterval:    54 * time.Second,
			PongTimeout:     60 * time.Second,
			WriteTimeout:    10 * time.Second,
			MaxMessageSize:  512,
			AllowedOrigins:  []string{"*"},
			Events: EventsConfig{
				BroadcastDetections:  true,
				BroadcastRunProgress: true,
				BroadcastSystem:      true,
				BroadcastConnections: true,
			},
		},
	}
}
