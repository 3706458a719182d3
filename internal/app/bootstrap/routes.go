// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	auditlogfeature "github.com/dalemusser/fleetdesk/internal/app/features/auditlog"
	driversfeature "github.com/dalemusser/fleetdesk/internal/app/features/drivers"
	healthfeature "github.com/dalemusser/fleetdesk/internal/app/features/health"
	heartbeatfeature "github.com/dalemusser/fleetdesk/internal/app/features/heartbeat"
	loginfeature "github.com/dalemusser/fleetdesk/internal/app/features/login"
	logoutfeature "github.com/dalemusser/fleetdesk/internal/app/features/logout"
	ordersfeature "github.com/dalemusser/fleetdesk/internal/app/features/orders"
	statusfeature "github.com/dalemusser/fleetdesk/internal/app/features/status"
	usersfeature "github.com/dalemusser/fleetdesk/internal/app/features/users"
	"github.com/dalemusser/fleetdesk/internal/app/store/audit"
	userstore "github.com/dalemusser/fleetdesk/internal/app/store/users"
	"github.com/dalemusser/fleetdesk/internal/app/system/apierr"
	"github.com/dalemusser/fleetdesk/internal/app/system/auditlog"
	"github.com/dalemusser/fleetdesk/internal/app/system/auth"
	"github.com/dalemusser/fleetdesk/internal/app/system/dispatch"
	"github.com/dalemusser/fleetdesk/internal/app/system/metrics"
	"github.com/dalemusser/fleetdesk/internal/app/system/ratelimit"
	"github.com/dalemusser/fleetdesk/internal/app/system/reqid"
	"github.com/dalemusser/fleetdesk/internal/app/system/respond"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// the Startup hook have completed. Every feature router is mounted here:
// login/logout, health, metrics, diagnostics, users, drivers, orders and
// the audit feed.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain,
		appCfg.SessionIdleTimeout, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// LoadSessionUser reloads the user on every request so status changes
	// and revoked tokens take effect immediately.
	sessionMgr.SetUserFetcher(userstore.NewFetcher(deps.MongoDatabase, logger))

	svc := deps.Services
	if svc == nil {
		svc = &Services{}
	}
	if svc.Dispatch == nil {
		svc.Notifier = dispatch.NewLogNotifier(logger)
		svc.Dispatch = dispatch.NewService(deps.MongoDatabase, svc.Notifier, svc.Metrics, logger)
	}
	if svc.LoginLimiter == nil {
		svc.LoginLimiter = ratelimit.NewLoginLimiter()
	}

	auditLogger := auditlog.New(audit.New(deps.MongoDatabase), logger, auditlog.Config{
		Auth:  appCfg.AuditLogAuth,
		Admin: appCfg.AuditLogAdmin,
	})

	return newRouter(routerDeps{
		cfg:      appCfg,
		deps:     deps,
		sm:       sessionMgr,
		audit:    auditLogger,
		metrics:  svc.Metrics,
		dispatch: svc.Dispatch,
		limiter:  svc.LoginLimiter,
		notifier: svc.Notifier.Kind(),
		log:      logger,
	}), nil
}

type routerDeps struct {
	cfg      AppConfig
	deps     DBDeps
	sm       *auth.SessionManager
	audit    *auditlog.Logger
	metrics  *metrics.Metrics
	dispatch *dispatch.Service
	limiter  *ratelimit.LoginLimiter
	notifier string
	log      *zap.Logger
}

func newRouter(d routerDeps) chi.Router {
	db := d.deps.MongoDatabase
	logger := d.log

	r := chi.NewRouter()
	r.Use(reqid.Middleware)
	r.Use(respond.Recoverer(logger))
	r.Use(d.sm.LoadSessionUser)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		respond.Error(w, req, logger, apierr.New(apierr.CodeNotFound, "Route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		respond.JSON(w, http.StatusMethodNotAllowed, map[string]any{
			"error": map[string]string{"code": "METHOD_NOT_ALLOWED", "message": "Method not allowed"},
		})
	})

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(d.deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	if d.cfg.MetricsEnabled && d.metrics != nil {
		r.Handle("/metrics", d.metrics.Handler())
	}

	// Authentication
	loginHandler := loginfeature.NewHandler(db, d.sm, d.audit, d.limiter, logger)
	r.Mount("/login", loginfeature.Routes(loginHandler))

	logoutHandler := logoutfeature.NewHandler(d.sm, userstore.New(db), d.audit, logger)
	r.Mount("/logout", logoutfeature.Routes(logoutHandler, d.sm))

	heartbeatHandler := heartbeatfeature.NewHandler(userstore.New(db), d.cfg.SessionIdleTimeout, logger)
	r.Mount("/heartbeat", heartbeatfeature.Routes(heartbeatHandler, d.sm))

	// System diagnostics
	statusHandler := statusfeature.NewHandler(d.deps.MongoClient, statusfeature.AppConfig{
		MongoDatabase: db.Name(),
		NotifierKind:  d.notifier,
		Version:       d.cfg.Version,
	}, logger)
	r.Mount("/system", statusfeature.Routes(statusHandler, d.sm))

	// User, driver and order administration
	usersHandler := usersfeature.NewHandler(db, d.audit, d.metrics, logger)
	r.Mount("/users", usersfeature.Routes(usersHandler, d.sm))

	driversHandler := driversfeature.NewHandler(db, d.audit, logger)
	r.Mount("/drivers", driversfeature.Routes(driversHandler, d.sm))

	ordersHandler := ordersfeature.NewHandler(db, d.dispatch, d.audit, d.metrics, logger)
	r.Mount("/orders", ordersfeature.Routes(ordersHandler, d.sm))

	// Audit feed
	auditHandler := auditlogfeature.NewHandler(db, logger)
	r.Mount("/audit", auditlogfeature.Routes(auditHandler, d.sm))

	return r
}
