package auditlog_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/fleetdesk/internal/app/features/auditlog"
	"github.com/dalemusser/fleetdesk/internal/app/store/audit"
	"github.com/dalemusser/fleetdesk/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type feed struct {
	Items []struct {
		EventType  string `json:"eventType"`
		ActorName  string `json:"actorName"`
		TargetName string `json:"targetName"`
	} `json:"items"`
	Meta struct {
		Total int64 `json:"total"`
	} `json:"meta"`
}

func seed(t *testing.T) (*auditlog.Handler, primitive.ObjectID, primitive.ObjectID) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx := testutil.NewFixtures(t, db)
	admin := fx.CreateAdmin(ctx, "ops@fleet.test", "admin", "Passw0rd!")
	client := fx.CreateClient(ctx, "Ada Client", "ada@fleet.test")
	orderID := primitive.NewObjectID()

	store := audit.New(db)
	now := time.Now().UTC()
	events := []audit.Event{
		{Timestamp: now.Add(-3 * time.Hour), Category: audit.CategoryAuth, EventType: audit.EventLoginSuccess, UserID: &admin.ID, Success: true},
		{Timestamp: now.Add(-2 * time.Hour), Category: audit.CategoryAdmin, EventType: audit.EventUserCreated, ActorID: &admin.ID, UserID: &client.ID, Success: true},
		{Timestamp: now.Add(-time.Hour), Category: audit.CategoryAdmin, EventType: audit.EventOrderApproved, ActorID: &admin.ID, OrderID: &orderID, Success: true},
		{Timestamp: now, Category: audit.CategoryAuth, EventType: audit.EventLoginFailedWrongPassword, UserID: &admin.ID, FailureReason: "wrong password"},
	}
	for _, e := range events {
		if err := store.Log(ctx, e); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}
	return auditlog.NewHandler(db, zap.NewNop()), admin.ID, orderID
}

func list(t *testing.T, h *auditlog.Handler, target string) *testutil.ResponseRecorder {
	t.Helper()
	rec := testutil.NewRecorder()
	h.ServeList(rec, testutil.NewAuthenticatedRequest(http.MethodGet, target, testutil.SupportUser()))
	return rec
}

func TestServeList_NewestFirst(t *testing.T) {
	h, _, _ := seed(t)
	rec := list(t, h, "/audit")
	rec.AssertStatus(t, http.StatusOK)

	var got feed
	rec.Data(t, &got)
	if got.Meta.Total != 4 || len(got.Items) != 4 {
		t.Fatalf("got total=%d items=%d", got.Meta.Total, len(got.Items))
	}
	if got.Items[0].EventType != audit.EventLoginFailedWrongPassword {
		t.Errorf("first item = %q, want newest event", got.Items[0].EventType)
	}
	created := got.Items[2]
	if created.ActorName == "" || created.TargetName != "Ada Client" {
		t.Errorf("names not resolved: %+v", created)
	}
}

func TestServeList_Filters(t *testing.T) {
	h, adminID, orderID := seed(t)

	tests := []struct {
		name   string
		target string
		want   int64
	}{
		{"category", "/audit?category=auth", 2},
		{"type", "/audit?type=user_created", 1},
		{"user", "/audit?userId=" + adminID.Hex(), 2},
		{"actor", "/audit?actorId=" + adminID.Hex(), 2},
		{"order", "/audit?orderId=" + orderID.Hex(), 1},
		{"date range", "/audit?from=2000-01-01&to=2000-01-02", 0},
		{"paged", "/audit?limit=1&page=2", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := list(t, h, tt.target)
			rec.AssertStatus(t, http.StatusOK)
			var got feed
			rec.Data(t, &got)
			if got.Meta.Total != tt.want {
				t.Errorf("total = %d, want %d", got.Meta.Total, tt.want)
			}
		})
	}
}

func TestServeList_BadFilters(t *testing.T) {
	h, _, _ := seed(t)
	for _, target := range []string{
		"/audit?userId=nope",
		"/audit?category=billing",
		"/audit?type=made_up",
		"/audit?from=yesterday",
		"/audit?from=2024-02-02&to=2024-02-01",
	} {
		rec := list(t, h, target)
		rec.AssertStatus(t, http.StatusBadRequest)
		if code := rec.ErrorCode(t); code != "VALIDATION_ERROR" {
			t.Errorf("%s: code = %q", target, code)
		}
	}
}

func TestServeEventTypes(t *testing.T) {
	h := auditlog.NewHandler(testutil.SetupTestDB(t), zap.NewNop())
	rec := testutil.NewRecorder()
	h.ServeEventTypes(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/audit/event-types", testutil.AdminUser()))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, audit.EventOrderAssigned)
}
