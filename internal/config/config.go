package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`
	// JWTRequired rejects realtime sessions that do not present a token.
	JWTRequired bool `mapstructure:"jwt_required" yaml:"jwt_required"`

	MaxMessageBytes int64 `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	// WSRateLimit is inbound realtime messages per minute per connection. 0 disables limiting.
	WSRateLimit int `mapstructure:"ws_rate_limit" yaml:"ws_rate_limit"`

	ProximityRadiusMeters float64       `mapstructure:"proximity_radius_meters" yaml:"proximity_radius_meters"`
	VerifyProximity       bool          `mapstructure:"verify_proximity" yaml:"verify_proximity"`
	VenueRefreshInterval  time.Duration `mapstructure:"venue_refresh_interval" yaml:"venue_refresh_interval"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:                  ":8080",
		ReadHeaderTimeout:     5 * time.Second,
		ShutdownTimeout:       5 * time.Second,
		LogLevel:              "info",
		DatabasePath:          "barscout.db",
		JWTSecret:             "change-me",
		JWTIssuer:             "barscout",
		JWTAudience:           "barscout-clients",
		JWTTTL:                24 * time.Hour,
		MaxMessageBytes:       1 << 16,
		WSRateLimit:           120,
		ProximityRadiusMeters: 100,
		VenueRefreshInterval:  30 * time.Second,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Boolean flags are only ever switched on.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
	if other.JWTIssuer != "" {
		c.JWTIssuer = other.JWTIssuer
	}
	if other.JWTAudience != "" {
		c.JWTAudience = other.JWTAudience
	}
	if other.JWTTTL != 0 {
		c.JWTTTL = other.JWTTTL
	}
	if other.JWTRequired {
		c.JWTRequired = true
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if other.WSRateLimit != 0 {
		c.WSRateLimit = other.WSRateLimit
	}
	if other.ProximityRadiusMeters != 0 {
		c.ProximityRadiusMeters = other.ProximityRadiusMeters
	}
	if other.VerifyProximity {
		c.VerifyProximity = true
	}
	if other.VenueRefreshInterval != 0 {
		c.VenueRefreshInterval = other.VenueRefreshInterval
	}
}
