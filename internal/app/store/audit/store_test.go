package audit_test

import (
	"testing"
	"time"

	"github.com/dalemusser/fleetdesk/internal/app/store/audit"
	"github.com/dalemusser/fleetdesk/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Log_FillsIDAndTimestamp(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	if err := store.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		UserID:    &userID,
		IP:        "10.0.0.1",
		Success:   true,
		Details:   map[string]string{"device": "web"},
	}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	events, err := store.GetByUser(ctx, userID, 10)
	if err != nil {
		t.Fatalf("GetByUser failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.ID.IsZero() || e.Timestamp.IsZero() {
		t.Error("expected ID and timestamp to be generated")
	}
	if e.Details["device"] != "web" {
		t.Errorf("details = %v", e.Details)
	}
}

func TestStore_Query_Filters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	actor := primitive.NewObjectID()
	order := primitive.NewObjectID()
	base := time.Now().Add(-time.Hour).UTC()
	events := []audit.Event{
		{Category: audit.CategoryAdmin, EventType: audit.EventOrderApproved, ActorID: &actor, OrderID: &order, Success: true, Timestamp: base},
		{Category: audit.CategoryAdmin, EventType: audit.EventOrderReversed, ActorID: &actor, OrderID: &order, Success: true, Timestamp: base.Add(10 * time.Minute)},
		{Category: audit.CategoryAuth, EventType: audit.EventLoginFailedWrongPassword, Timestamp: base.Add(20 * time.Minute)},
	}
	for _, e := range events {
		if err := store.Log(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	got, _ := store.GetByOrder(ctx, order, 10)
	if len(got) != 2 || got[0].EventType != audit.EventOrderReversed {
		t.Errorf("by order = %+v", got)
	}

	got, _ = store.Query(ctx, audit.QueryFilter{Category: audit.CategoryAuth})
	if len(got) != 1 {
		t.Errorf("auth events = %d", len(got))
	}

	start := base.Add(5 * time.Minute)
	n, _ := store.CountByFilter(ctx, audit.QueryFilter{ActorID: &actor, StartTime: &start})
	if n != 1 {
		t.Errorf("count since start = %d, want 1", n)
	}

	got, _ = store.Query(ctx, audit.QueryFilter{Limit: 1, Offset: 1})
	if len(got) != 1 || got[0].EventType != audit.EventOrderReversed {
		t.Errorf("offset page = %+v", got)
	}

	failed, _ := store.CountFailedLogins(ctx, base)
	if failed != 1 {
		t.Errorf("failed logins = %d", failed)
	}
}

func TestStore_GetRecent_Empty(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	events, err := audit.New(db).GetRecent(ctx, 10)
	if err != nil || len(events) != 0 {
		t.Errorf("GetRecent = %v, %v", events, err)
	}
}
