package bootstrap

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	userstore "github.com/dalemusser/fleetdesk/internal/app/store/users"
	"github.com/dalemusser/fleetdesk/internal/app/system/authutil"
	"github.com/dalemusser/fleetdesk/internal/domain/models"
	"github.com/dalemusser/fleetdesk/internal/testutil"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func TestEnsureSuperAdmin_CreatesNew(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	deps := DBDeps{MongoDatabase: db}
	if err := ensureSuperAdmin(ctx, deps, "SuperAdmin@Test.com", "Str0ng-Passw0rd!", testLogger()); err != nil {
		t.Fatalf("ensureSuperAdmin failed: %v", err)
	}

	u, err := userstore.New(db).GetByEmail(ctx, "superadmin@test.com")
	if err != nil {
		t.Fatalf("failed to find created user: %v", err)
	}
	if u.Role != models.RoleAdmin || u.AdminRole != models.AdminRoleSuper {
		t.Errorf("role = %q/%q, want admin/superadmin", u.Role, u.AdminRole)
	}
	if u.Status != models.StatusActive {
		t.Errorf("status = %q, want Active", u.Status)
	}
	if !authutil.CheckPassword("Str0ng-Passw0rd!", u.PasswordHash) {
		t.Error("stored hash does not match the configured password")
	}
}

func TestEnsureSuperAdmin_PromotesExisting(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	existing := fx.CreateAdmin(ctx, "existing@test.com", models.AdminRoleSupport, "Passw0rd!")
	if _, err := userstore.New(db).SetStatus(ctx, existing.ID, models.StatusSuspended, "testing", true); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	if err := ensureSuperAdmin(ctx, DBDeps{MongoDatabase: db}, "existing@test.com", "", testLogger()); err != nil {
		t.Fatalf("ensureSuperAdmin failed: %v", err)
	}

	u, err := userstore.New(db).GetByID(ctx, existing.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if u.AdminRole != models.AdminRoleSuper || u.Status != models.StatusActive {
		t.Errorf("got adminRole=%q status=%q", u.AdminRole, u.Status)
	}
}

func TestEnsureSuperAdmin_SkipsWithoutPassword(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := ensureSuperAdmin(ctx, DBDeps{MongoDatabase: db}, "nobody@test.com", "", testLogger()); err != nil {
		t.Fatalf("ensureSuperAdmin failed: %v", err)
	}
	n, err := db.Collection(userstore.Collection).CountDocuments(ctx, map[string]any{})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("users = %d, want 0", n)
	}
}

func TestEnsureSuperAdmin_RejectsWeakPassword(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := ensureSuperAdmin(ctx, DBDeps{MongoDatabase: db}, "root@test.com", "short", testLogger()); err == nil {
		t.Fatal("expected an error for a weak password")
	}
}

func validConfig() AppConfig {
	return AppConfig{
		MongoURI:                 "mongodb://localhost:27017",
		MongoDatabase:            "fleetdesk",
		SessionKey:               strings.Repeat("k", 40),
		SessionIdleTimeout:       time.Hour,
		SessionCleanupInterval:   time.Minute,
		AssignmentExpiryInterval: time.Minute,
		AuditLogAuth:             "all",
		AuditLogAdmin:            "db",
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		mutate  func(*AppConfig)
		wantErr bool
	}{
		{"valid", "prod", func(*AppConfig) {}, false},
		{"bad uri", "prod", func(c *AppConfig) { c.MongoURI = "postgres://nope" }, true},
		{"short key in prod", "prod", func(c *AppConfig) { c.SessionKey = "short" }, true},
		{"dev default key in prod", "prod", func(c *AppConfig) { c.SessionKey = devSessionKey }, true},
		{"short key in dev", "dev", func(c *AppConfig) { c.SessionKey = "short" }, false},
		{"zero cleanup interval", "dev", func(c *AppConfig) { c.SessionCleanupInterval = 0 }, true},
		{"bad audit mode", "dev", func(c *AppConfig) { c.AuditLogAdmin = "sometimes" }, true},
		{"negative timeout", "dev", func(c *AppConfig) { c.TimeoutShort = -time.Second }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := ValidateConfig(&config.CoreConfig{Env: tt.env}, cfg, testLogger())
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuildHandler_Routes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := validConfig()
	cfg.MetricsEnabled = true

	h, err := BuildHandler(&config.CoreConfig{Env: "dev"}, cfg, DBDeps{
		MongoClient:   db.Client(),
		MongoDatabase: db,
	}, testLogger())
	if err != nil {
		t.Fatalf("BuildHandler: %v", err)
	}

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/users", http.StatusUnauthorized},
		{http.MethodGet, "/orders", http.StatusUnauthorized},
		{http.MethodGet, "/system/diagnostics", http.StatusUnauthorized},
		{http.MethodGet, "/audit", http.StatusUnauthorized},
		{http.MethodPost, "/logout", http.StatusUnauthorized},
		{http.MethodPost, "/heartbeat", http.StatusUnauthorized},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.want)
		}
		if rec.Header().Get("X-Request-Id") == "" {
			t.Errorf("%s %s: missing X-Request-Id", tt.method, tt.path)
		}
	}
}

func TestStartupAndShutdown(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cfg := validConfig()
	deps := DBDeps{MongoClient: nil, MongoDatabase: db, Services: &Services{}}
	if err := Startup(ctx, &config.CoreConfig{Env: "dev"}, cfg, deps, testLogger()); err != nil {
		t.Fatalf("Startup: %v", err)
	}
	if deps.Services.Dispatch == nil || deps.Services.Notifier.Kind() != "log" {
		t.Errorf("services not initialized: %+v", deps.Services)
	}
	if err := Shutdown(ctx, &config.CoreConfig{Env: "dev"}, cfg, deps, testLogger()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
