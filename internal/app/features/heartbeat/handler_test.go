package heartbeat_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/fleetdesk/internal/app/features/heartbeat"
	userstore "github.com/dalemusser/fleetdesk/internal/app/store/users"
	"github.com/dalemusser/fleetdesk/internal/domain/models"
	"github.com/dalemusser/fleetdesk/internal/testutil"
	"go.uber.org/zap"
)

func TestServeHeartbeat(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	admin := fx.CreateAdmin(ctx, "ops@fleet.test", models.AdminRoleAdmin, "Passw0rd!")
	users := userstore.New(db)
	last := time.Now().UTC().Add(-10 * time.Minute).Truncate(time.Millisecond)
	for _, tok := range []string{"tok-a", "tok-b"} {
		if err := users.AddSession(ctx, admin.ID, models.SessionToken{Token: tok, LastActive: last}); err != nil {
			t.Fatalf("AddSession: %v", err)
		}
	}

	h := heartbeat.NewHandler(users, time.Hour, zap.NewNop())
	user := testutil.FromModel(admin)
	user.Token = "tok-b"

	rec := testutil.NewRecorder()
	h.ServeHeartbeat(rec, testutil.NewAuthenticatedRequest(http.MethodPost, "/heartbeat", user))
	rec.AssertStatus(t, http.StatusOK)

	var got struct {
		UserID        string    `json:"userId"`
		LastActive    time.Time `json:"lastActive"`
		IdleExpiresAt time.Time `json:"idleExpiresAt"`
		Sessions      int       `json:"sessions"`
	}
	rec.Data(t, &got)
	if got.UserID != admin.ID.Hex() || got.Sessions != 2 {
		t.Errorf("got %+v", got)
	}
	if !got.LastActive.Equal(last) || !got.IdleExpiresAt.Equal(last.Add(time.Hour)) {
		t.Errorf("lastActive=%v idleExpiresAt=%v, want %v / +1h", got.LastActive, got.IdleExpiresAt, last)
	}
}

func TestServeHeartbeat_Anonymous(t *testing.T) {
	h := heartbeat.NewHandler(nil, time.Hour, zap.NewNop())
	rec := testutil.NewRecorder()
	h.ServeHeartbeat(rec, testutil.NewRequest(http.MethodPost, "/heartbeat"))
	rec.AssertStatus(t, http.StatusUnauthorized)
}
