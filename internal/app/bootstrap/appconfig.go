// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables (FLEETDESK_*),
// configuration files, or command-line flags (loaded in LoadConfig).
// WAFFLE's CoreConfig covers the framework side: ports, TLS, logging
// level, CORS and body limits.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session management configuration
	SessionKey             string        // signs session cookies; 32+ chars outside dev
	SessionName            string        // cookie name (default: fleetdesk-session)
	SessionDomain          string        // blank means current host
	SessionIdleTimeout     time.Duration // tokens unused this long are removed by cleanup
	SessionCleanupInterval time.Duration

	// Dispatch
	RedisURL                 string // optional; enables Redis driver notifications and shared login limits
	NotifyChannelPrefix      string
	AssignmentExpiryInterval time.Duration

	// Audit logging: "all", "db", "log" or "off"
	AuditLogAuth  string
	AuditLogAdmin string

	// SuperAdmin bootstrap
	SuperAdminEmail    string
	SuperAdminPassword string

	// Database deadlines; zero keeps the built-in default
	TimeoutPing   time.Duration
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutLong   time.Duration

	MetricsEnabled bool
	Version        string
}
