// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	assignmentstore "github.com/dalemusser/fleetdesk/internal/app/store/assignments"
	userstore "github.com/dalemusser/fleetdesk/internal/app/store/users"
	"github.com/dalemusser/fleetdesk/internal/app/system/authutil"
	"github.com/dalemusser/fleetdesk/internal/app/system/dispatch"
	"github.com/dalemusser/fleetdesk/internal/app/system/metrics"
	"github.com/dalemusser/fleetdesk/internal/app/system/normalize"
	"github.com/dalemusser/fleetdesk/internal/app/system/ratelimit"
	"github.com/dalemusser/fleetdesk/internal/app/system/timeouts"
	"github.com/dalemusser/fleetdesk/internal/app/system/workers"
	"github.com/dalemusser/fleetdesk/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. It
// applies deadline overrides, bootstraps the superadmin, picks the driver
// notifier and login limiter, and starts the background workers.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(appCfg.timeoutConfig())

	if err := ensureSuperAdmin(ctx, deps, appCfg.SuperAdminEmail, appCfg.SuperAdminPassword, logger); err != nil {
		return err
	}

	svc := deps.Services
	svc.Metrics = metrics.New()

	if appCfg.RedisURL != "" {
		rdb, err := connectRedis(ctx, appCfg.RedisURL)
		if err != nil {
			logger.Error("redis unavailable", zap.Error(err))
			return err
		}
		svc.closers = append(svc.closers, rdb.Close)
		prefix := appCfg.NotifyChannelPrefix
		svc.Notifier = dispatch.NewRedisNotifierWith(rdb, prefix)
		svc.LoginLimiter = ratelimit.NewLoginLimiterWith(
			ratelimit.NewRedisCounter(rdb, prefix, ratelimit.DefaultIPLimit, ratelimit.DefaultIPWindow),
			ratelimit.NewRedisCounter(rdb, prefix, ratelimit.DefaultEmailLimit, ratelimit.DefaultEmailWindow),
		)
		logger.Info("redis connected; notifications and login limits use redis")
	} else {
		svc.Notifier = dispatch.NewLogNotifier(logger)
		svc.LoginLimiter = ratelimit.NewLoginLimiter()
	}
	svc.Dispatch = dispatch.NewService(deps.MongoDatabase, svc.Notifier, svc.Metrics, logger)

	svc.sessionCleanup = workers.NewSessionCleanup(userstore.New(deps.MongoDatabase), logger, svc.Metrics,
		appCfg.SessionCleanupInterval, appCfg.SessionIdleTimeout)
	svc.sessionCleanup.Start()

	svc.assignmentExpiry = workers.NewAssignmentExpiry(assignmentstore.New(deps.MongoDatabase), logger, svc.Metrics,
		appCfg.AssignmentExpiryInterval)
	svc.assignmentExpiry.Start()

	logger.Info("startup complete", zap.String("notifier", svc.Notifier.Kind()))
	return nil
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, timeouts.Ping())
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// ensureSuperAdmin makes sure the configured email belongs to an Active
// superadmin. An existing account is promoted; a missing one is created
// when a password is configured.
func ensureSuperAdmin(ctx context.Context, deps DBDeps, email, password string, logger *zap.Logger) error {
	email = normalize.Email(email)
	if email == "" {
		return nil
	}
	users := userstore.New(deps.MongoDatabase)

	u, err := users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if u.Role == models.RoleAdmin && u.AdminRole == models.AdminRoleSuper && u.Status == models.StatusActive {
			return nil
		}
		if err := users.Promote(ctx, u.ID); err != nil {
			return fmt.Errorf("promote superadmin: %w", err)
		}
		logger.Info("promoted user to superadmin",
			zap.String("email", email),
			zap.String("previous_role", u.Role))
		return nil
	case !errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("lookup superadmin: %w", err)
	}

	if password == "" {
		logger.Warn("superadmin does not exist and superadmin_password is empty; skipping creation",
			zap.String("email", email))
		return nil
	}
	if err := authutil.ValidatePassword(password); err != nil {
		return fmt.Errorf("superadmin_password: %w", err)
	}
	hash, err := authutil.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash superadmin password: %w", err)
	}
	created, err := users.Create(ctx, models.User{
		FullName:     "Super Admin",
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		AdminRole:    models.AdminRoleSuper,
		Status:       models.StatusActive,
	})
	if err != nil {
		return fmt.Errorf("create superadmin: %w", err)
	}
	logger.Info("created superadmin", zap.String("email", email), zap.String("id", created.ID.Hex()))
	return nil
}
