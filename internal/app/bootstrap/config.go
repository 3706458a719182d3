// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/fleetdesk/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

const devSessionKey = "dev-only-change-me-please-0123456789ABCDEF"

// appConfigKeys defines the configuration keys for fleetdesk.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: FLEETDESK_MONGO_URI, FLEETDESK_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "fleetdesk", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "session_key", Default: devSessionKey, Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "fleetdesk-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_idle_timeout", Default: "720h", Desc: "Remove session tokens unused for this long (e.g., 720h)"},
	{Name: "session_cleanup_interval", Default: "1h", Desc: "How often stale session tokens are swept"},

	// Dispatch
	{Name: "redis_url", Default: "", Desc: "Redis URL for driver notifications (blank logs notifications instead)"},
	{Name: "notify_channel_prefix", Default: "fleetdesk", Desc: "Prefix for Redis notification channels"},
	{Name: "assignment_expiry_interval", Default: "1m", Desc: "How often expired broadcasts are swept"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// SuperAdmin bootstrap
	{Name: "superadmin_email", Default: "", Desc: "Email of the superadmin user (promotes/creates on startup)"},
	{Name: "superadmin_password", Default: "", Desc: "Password used when the superadmin has to be created"},

	// Database deadlines
	{Name: "timeout_ping", Default: "", Desc: "Deadline for health probes (default 2s)"},
	{Name: "timeout_short", Default: "", Desc: "Deadline for single-document work (default 5s)"},
	{Name: "timeout_medium", Default: "", Desc: "Deadline for lists and transitions (default 10s)"},
	{Name: "timeout_long", Default: "", Desc: "Deadline for broadcasts and sweeps (default 30s)"},

	{Name: "metrics_enabled", Default: true, Desc: "Serve Prometheus metrics on /metrics"},
	{Name: "app_version", Default: "", Desc: "Version reported by diagnostics (defaults to the build's module version)"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// environment variables (WAFFLE_* for core, FLEETDESK_* for app) and
// flags, merged with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "FLEETDESK", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		SessionKey:             appValues.String("session_key"),
		SessionName:            appValues.String("session_name"),
		SessionDomain:          appValues.String("session_domain"),
		SessionIdleTimeout:     appValues.Duration("session_idle_timeout", 30*24*time.Hour),
		SessionCleanupInterval: appValues.Duration("session_cleanup_interval", time.Hour),

		RedisURL:                 strings.TrimSpace(appValues.String("redis_url")),
		NotifyChannelPrefix:      appValues.String("notify_channel_prefix"),
		AssignmentExpiryInterval: appValues.Duration("assignment_expiry_interval", time.Minute),

		AuditLogAuth:  appValues.String("audit_log_auth"),
		AuditLogAdmin: appValues.String("audit_log_admin"),

		SuperAdminEmail:    appValues.String("superadmin_email"),
		SuperAdminPassword: appValues.String("superadmin_password"),

		TimeoutPing:   appValues.Duration("timeout_ping", 0),
		TimeoutShort:  appValues.Duration("timeout_short", 0),
		TimeoutMedium: appValues.Duration("timeout_medium", 0),
		TimeoutLong:   appValues.Duration("timeout_long", 0),

		MetricsEnabled: appValues.Bool("metrics_enabled"),
		Version:        appValues.String("app_version"),
	}

	return coreCfg, appCfg, nil
}

var auditModes = map[string]bool{"all": true, "db": true, "log": true, "off": true}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// The MongoDB URI is checked here to catch configuration errors before
// attempting to connect.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if appCfg.MongoDatabase == "" {
		return fmt.Errorf("mongo_database is required")
	}

	if coreCfg.Env != "dev" {
		if len(appCfg.SessionKey) < 32 {
			return fmt.Errorf("session_key must be at least 32 characters outside dev")
		}
		if appCfg.SessionKey == devSessionKey {
			return fmt.Errorf("session_key is still the development default")
		}
	}

	if appCfg.SessionCleanupInterval <= 0 {
		return fmt.Errorf("session_cleanup_interval must be positive")
	}
	if appCfg.SessionIdleTimeout <= 0 {
		return fmt.Errorf("session_idle_timeout must be positive")
	}
	if appCfg.AssignmentExpiryInterval <= 0 {
		return fmt.Errorf("assignment_expiry_interval must be positive")
	}

	for key, v := range map[string]string{"audit_log_auth": appCfg.AuditLogAuth, "audit_log_admin": appCfg.AuditLogAdmin} {
		if !auditModes[v] {
			return fmt.Errorf("%s must be one of all, db, log, off (got %q)", key, v)
		}
	}

	for key, d := range map[string]time.Duration{
		"timeout_ping":   appCfg.TimeoutPing,
		"timeout_short":  appCfg.TimeoutShort,
		"timeout_medium": appCfg.TimeoutMedium,
		"timeout_long":   appCfg.TimeoutLong,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", key)
		}
	}

	if appCfg.SuperAdminPassword != "" && appCfg.SuperAdminEmail == "" {
		logger.Warn("superadmin_password is set without superadmin_email; it will be ignored")
	}
	return nil
}

// timeoutConfig maps the timeout_* keys onto the timeouts package.
func (c AppConfig) timeoutConfig() timeouts.Config {
	return timeouts.Config{
		Ping:   c.TimeoutPing,
		Short:  c.TimeoutShort,
		Medium: c.TimeoutMedium,
		Long:   c.TimeoutLong,
	}
}
