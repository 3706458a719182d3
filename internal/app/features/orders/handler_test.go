package orders_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/fleetdesk/internal/app/features/orders"
	assignmentstore "github.com/dalemusser/fleetdesk/internal/app/store/assignments"
	orderstore "github.com/dalemusser/fleetdesk/internal/app/store/orders"
	userstore "github.com/dalemusser/fleetdesk/internal/app/store/users"
	"github.com/dalemusser/fleetdesk/internal/app/system/dispatch"
	"github.com/dalemusser/fleetdesk/internal/app/system/indexes"
	"github.com/dalemusser/fleetdesk/internal/app/system/metrics"
	"github.com/dalemusser/fleetdesk/internal/domain/models"
	"github.com/dalemusser/fleetdesk/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const lat, lng = 6.5244, 3.3792

type env struct {
	h      *orders.Handler
	fx     *testutil.Fixtures
	ctx    context.Context
	client models.User
}

func setup(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	t.Cleanup(cancel)
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}
	logger := zap.NewNop()
	m := metrics.New()
	h := orders.NewHandler(db, dispatch.NewService(db, nil, m, logger), nil, m, logger)
	fx := testutil.NewFixtures(t, db)
	return &env{h: h, fx: fx, ctx: ctx, client: fx.CreateClient(ctx, "Client", "client@fleet.test")}
}

func (e *env) order(t *testing.T, status string, age time.Duration) models.Order {
	t.Helper()
	return e.fx.CreateOrder(e.ctx, e.client.ID, status, lat, lng, time.Now().Add(-age))
}

func (e *env) reload(t *testing.T, id primitive.ObjectID) *models.Order {
	t.Helper()
	o, err := orderstore.New(e.fx.DB()).GetByID(e.ctx, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	return o
}

func call(t *testing.T, fn http.HandlerFunc, method, id string, body any, user testutil.TestUser) *testutil.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == nil {
		req = testutil.NewAuthenticatedRequest(method, "/orders/"+id, user)
	} else {
		req = testutil.WithUser(testutil.NewJSONRequest(t, method, "/orders/"+id, body), user)
	}
	req = testutil.WithChiURLParam(req, "id", id)
	rec := testutil.NewRecorder()
	fn(rec, req)
	return rec
}

func expectCode(t *testing.T, rec *testutil.ResponseRecorder, status int, code string) {
	t.Helper()
	rec.AssertStatus(t, status)
	if got := rec.ErrorCode(t); got != code {
		t.Errorf("code: got %q, want %q", got, code)
	}
}

func TestHandleApprove_BroadcastsToEligibleDrivers(t *testing.T) {
	e := setup(t)
	d := e.fx.CreateDriver(e.ctx, "Near Driver", lat+0.001, lng, testutil.DriverOpts{Rating: 4.5, CompletionRate: 90})
	e.fx.CreateDriver(e.ctx, "Far Driver", lat+0.5, lng, testutil.DriverOpts{Rating: 5})
	o := e.order(t, models.OrderSubmitted, time.Minute)

	rec := call(t, e.h.HandleApprove, http.MethodPost, o.ID.Hex(), map[string]string{"notes": "looks fine"}, testutil.AdminUser())
	rec.AssertStatus(t, http.StatusOK)

	var got struct {
		Order struct {
			Status      string `json:"status"`
			AdminReview struct {
				Decision string `json:"decision"`
			} `json:"adminReview"`
		} `json:"order"`
		Broadcast struct {
			Candidates int    `json:"candidates"`
			Error      string `json:"error"`
		} `json:"broadcast"`
	}
	rec.Data(t, &got)
	if got.Order.Status != models.OrderBroadcast {
		t.Errorf("status: got %q, want broadcast", got.Order.Status)
	}
	if got.Order.AdminReview.Decision != "approved" {
		t.Errorf("adminReview: got %q", got.Order.AdminReview.Decision)
	}
	if got.Broadcast.Candidates != 1 || got.Broadcast.Error != "" {
		t.Errorf("broadcast: %+v", got.Broadcast)
	}

	a, err := assignmentstore.New(e.fx.DB()).LatestForOrder(e.ctx, o.ID)
	if err != nil {
		t.Fatalf("LatestForOrder: %v", err)
	}
	if a.Status != models.AssignmentBroadcasting || len(a.AvailableDrivers) != 1 || a.AvailableDrivers[0].DriverID != d.ID {
		t.Errorf("assignment: %+v", a)
	}

	// second approval sees the order already moved on
	rec = call(t, e.h.HandleApprove, http.MethodPost, o.ID.Hex(), nil, testutil.AdminUser())
	expectCode(t, rec, http.StatusUnprocessableEntity, "STATE_CONFLICT")
}

func TestHandleApprove_UnknownOrder(t *testing.T) {
	e := setup(t)
	rec := call(t, e.h.HandleApprove, http.MethodPost, primitive.NewObjectID().Hex(), nil, testutil.AdminUser())
	expectCode(t, rec, http.StatusNotFound, "NOT_FOUND")

	rec = call(t, e.h.HandleApprove, http.MethodPost, "not-an-id", nil, testutil.AdminUser())
	expectCode(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestHandleReject(t *testing.T) {
	e := setup(t)
	o := e.order(t, models.OrderAdminReview, time.Minute)

	rec := call(t, e.h.HandleReject, http.MethodPost, o.ID.Hex(), map[string]string{"reason": "   "}, testutil.AdminUser())
	expectCode(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")

	rec = call(t, e.h.HandleReject, http.MethodPost, o.ID.Hex(), map[string]string{"reason": "address incomplete"}, testutil.AdminUser())
	rec.AssertStatus(t, http.StatusOK)

	got := e.reload(t, o.ID)
	if got.Status != models.OrderAdminRejected {
		t.Errorf("status: got %q", got.Status)
	}
	last, _ := got.LastTracking()
	if last.Reason != "address incomplete" || last.Actor == nil {
		t.Errorf("tracking entry: %+v", last)
	}
}

func TestHandleReverse(t *testing.T) {
	e := setup(t)
	body := map[string]string{"reason": "approved by mistake"}

	t.Run("within window", func(t *testing.T) {
		o := e.order(t, models.OrderAdminRejected, 10*time.Minute)
		rec := call(t, e.h.HandleReverse, http.MethodPost, o.ID.Hex(), body, testutil.AdminUser())
		rec.AssertStatus(t, http.StatusOK)
		if got := e.reload(t, o.ID); got.Status != models.OrderAdminReview {
			t.Errorf("status: got %q", got.Status)
		}
	})

	t.Run("window expired", func(t *testing.T) {
		o := e.order(t, models.OrderAdminApproved, 31*time.Minute)
		rec := call(t, e.h.HandleReverse, http.MethodPost, o.ID.Hex(), body, testutil.AdminUser())
		expectCode(t, rec, http.StatusUnprocessableEntity, "STATE_CONFLICT")
	})

	t.Run("reason required", func(t *testing.T) {
		o := e.order(t, models.OrderAdminApproved, time.Minute)
		rec := call(t, e.h.HandleReverse, http.MethodPost, o.ID.Hex(), nil, testutil.AdminUser())
		expectCode(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")
	})

	t.Run("driver assigned", func(t *testing.T) {
		o := e.order(t, models.OrderBroadcast, time.Minute)
		driverID := primitive.NewObjectID()
		if _, err := e.fx.DB().Collection("orders").UpdateOne(e.ctx, bson.M{"_id": o.ID},
			bson.M{"$set": bson.M{"driverAssignment.driverId": driverID}}); err != nil {
			t.Fatalf("set driver: %v", err)
		}
		rec := call(t, e.h.HandleReverse, http.MethodPost, o.ID.Hex(), body, testutil.AdminUser())
		expectCode(t, rec, http.StatusUnprocessableEntity, "STATE_CONFLICT")
	})

	t.Run("cancels live broadcast", func(t *testing.T) {
		o := e.order(t, models.OrderSubmitted, time.Minute)
		call(t, e.h.HandleApprove, http.MethodPost, o.ID.Hex(), nil, testutil.AdminUser()).AssertStatus(t, http.StatusOK)

		rec := call(t, e.h.HandleReverse, http.MethodPost, o.ID.Hex(), body, testutil.AdminUser())
		rec.AssertStatus(t, http.StatusOK)

		a, err := assignmentstore.New(e.fx.DB()).LatestForOrder(e.ctx, o.ID)
		if err != nil {
			t.Fatalf("LatestForOrder: %v", err)
		}
		if a.Status != models.AssignmentCancelled {
			t.Errorf("assignment status: got %q, want cancelled", a.Status)
		}
	})
}

func TestHandleAssign(t *testing.T) {
	e := setup(t)
	users := userstore.New(e.fx.DB())
	d := e.fx.CreateDriver(e.ctx, "Manual Pick", lat+0.3, lng, testutil.DriverOpts{Rating: 4})
	o := e.order(t, models.OrderBroadcast, time.Minute)

	t.Run("ineligible driver", func(t *testing.T) {
		u := e.fx.CreateDriver(e.ctx, "Not Verified", lat, lng, testutil.DriverOpts{Unverified: true})
		rec := call(t, e.h.HandleAssign, http.MethodPost, o.ID.Hex(), map[string]string{"driverId": u.ID.Hex()}, testutil.AdminUser())
		expectCode(t, rec, http.StatusUnprocessableEntity, "STATE_CONFLICT")
	})

	t.Run("offline driver", func(t *testing.T) {
		u := e.fx.CreateDriver(e.ctx, "Gone Home", lat, lng, testutil.DriverOpts{Offline: true})
		rec := call(t, e.h.HandleAssign, http.MethodPost, o.ID.Hex(), map[string]string{"driverId": u.ID.Hex()}, testutil.AdminUser())
		expectCode(t, rec, http.StatusUnprocessableEntity, "STATE_CONFLICT")
		if got := e.reload(t, o.ID); got.Status != models.OrderBroadcast {
			t.Errorf("status = %q, want broadcast", got.Status)
		}
	})

	t.Run("assigns beyond radius", func(t *testing.T) {
		rec := call(t, e.h.HandleAssign, http.MethodPost, o.ID.Hex(), map[string]string{"driverId": d.ID.Hex()}, testutil.AdminUser())
		rec.AssertStatus(t, http.StatusOK)

		got := e.reload(t, o.ID)
		if got.Status != models.OrderAssigned || !got.HasDriver() || *got.DriverAssignment.DriverID != d.ID {
			t.Errorf("order: status=%q driver=%+v", got.Status, got.DriverAssignment)
		}
		drv, err := users.GetDriver(e.ctx, d.ID)
		if err != nil {
			t.Fatalf("GetDriver: %v", err)
		}
		if drv.CurrentOrderID == nil || *drv.CurrentOrderID != o.ID {
			t.Errorf("driver currentOrderId: %v", drv.CurrentOrderID)
		}
	})

	t.Run("driver busy", func(t *testing.T) {
		other := e.order(t, models.OrderBroadcast, time.Minute)
		rec := call(t, e.h.HandleAssign, http.MethodPost, other.ID.Hex(), map[string]string{"driverId": d.ID.Hex()}, testutil.AdminUser())
		expectCode(t, rec, http.StatusUnprocessableEntity, "STATE_CONFLICT")
	})
}

func TestHandleStatus(t *testing.T) {
	e := setup(t)
	o := e.order(t, models.OrderAssigned, time.Minute)

	rec := call(t, e.h.HandleStatus, http.MethodPatch, o.ID.Hex(), map[string]string{"status": "delivered"}, testutil.AdminUser())
	expectCode(t, rec, http.StatusUnprocessableEntity, "STATE_CONFLICT")

	rec = call(t, e.h.HandleStatus, http.MethodPatch, o.ID.Hex(), map[string]string{"status": "cancelled"}, testutil.AdminUser())
	expectCode(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")

	rec = call(t, e.h.HandleStatus, http.MethodPatch, o.ID.Hex(), map[string]string{"status": "teleported"}, testutil.AdminUser())
	expectCode(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")

	rec = call(t, e.h.HandleStatus, http.MethodPatch, o.ID.Hex(), map[string]string{"status": "Confirmed", "note": "driver called"}, testutil.AdminUser())
	rec.AssertStatus(t, http.StatusOK)
	if got := e.reload(t, o.ID); got.Status != models.OrderConfirmed || len(got.OrderTrackingHistory) != 2 {
		t.Errorf("order: status=%q history=%d", got.Status, len(got.OrderTrackingHistory))
	}
}

func TestHandleCancel_ReleasesDriver(t *testing.T) {
	e := setup(t)
	o := e.order(t, models.OrderBroadcast, time.Minute)
	d := e.fx.CreateDriver(e.ctx, "Soon Free", lat, lng, testutil.DriverOpts{})
	call(t, e.h.HandleAssign, http.MethodPost, o.ID.Hex(), map[string]string{"driverId": d.ID.Hex()}, testutil.AdminUser()).
		AssertStatus(t, http.StatusOK)

	rec := call(t, e.h.HandleCancel, http.MethodPost, o.ID.Hex(), nil, testutil.AdminUser())
	expectCode(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")

	rec = call(t, e.h.HandleCancel, http.MethodPost, o.ID.Hex(), map[string]string{"reason": "client request"}, testutil.AdminUser())
	rec.AssertStatus(t, http.StatusOK)

	got := e.reload(t, o.ID)
	if got.Status != models.OrderCancelled || got.Cancellation == nil || got.Cancellation.Reason != "client request" {
		t.Errorf("order: status=%q cancellation=%+v", got.Status, got.Cancellation)
	}
	drv, err := userstore.New(e.fx.DB()).GetDriver(e.ctx, d.ID)
	if err != nil {
		t.Fatalf("GetDriver: %v", err)
	}
	if drv.CurrentOrderID != nil {
		t.Errorf("driver still holds order %v", drv.CurrentOrderID)
	}

	// terminal
	rec = call(t, e.h.HandleCancel, http.MethodPost, o.ID.Hex(), map[string]string{"reason": "again"}, testutil.AdminUser())
	expectCode(t, rec, http.StatusUnprocessableEntity, "STATE_CONFLICT")
}

func TestHandleDelete(t *testing.T) {
	e := setup(t)
	o := e.order(t, models.OrderSubmitted, time.Minute)
	call(t, e.h.HandleApprove, http.MethodPost, o.ID.Hex(), nil, testutil.AdminUser()).AssertStatus(t, http.StatusOK)

	rec := call(t, e.h.HandleDelete, http.MethodDelete, o.ID.Hex(), nil, testutil.SupportUser())
	expectCode(t, rec, http.StatusForbidden, "FORBIDDEN")

	rec = call(t, e.h.HandleDelete, http.MethodDelete, o.ID.Hex(), nil, testutil.AdminUser())
	rec.AssertStatus(t, http.StatusOK)

	n, err := e.fx.DB().Collection(assignmentstore.Collection).CountDocuments(e.ctx, bson.M{"orderId": o.ID})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("assignments left: %d", n)
	}
	rec = call(t, e.h.ServeGet, http.MethodGet, o.ID.Hex(), nil, testutil.AdminUser())
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestServeList(t *testing.T) {
	e := setup(t)
	e.order(t, models.OrderSubmitted, time.Minute)
	e.order(t, models.OrderSubmitted, 2*time.Minute)
	e.order(t, models.OrderDelivered, time.Hour)

	req := testutil.NewAuthenticatedRequest(http.MethodGet, "/orders?status=submitted", testutil.SupportUser())
	rec := testutil.NewRecorder()
	e.h.ServeList(rec, req)
	rec.AssertStatus(t, http.StatusOK)
	var got struct {
		Items []struct {
			Status string `json:"status"`
		} `json:"items"`
		Meta struct {
			Total int64 `json:"total"`
		} `json:"meta"`
	}
	rec.Data(t, &got)
	if got.Meta.Total != 2 || len(got.Items) != 2 {
		t.Errorf("got total=%d items=%d", got.Meta.Total, len(got.Items))
	}

	req = testutil.NewAuthenticatedRequest(http.MethodGet, "/orders?status=bogus", testutil.SupportUser())
	rec = testutil.NewRecorder()
	e.h.ServeList(rec, req)
	rec.AssertStatus(t, http.StatusBadRequest)

	req = testutil.NewAuthenticatedRequest(http.MethodGet, "/orders?clientId=xyz", testutil.SupportUser())
	rec = testutil.NewRecorder()
	e.h.ServeList(rec, req)
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestServeEligibleDrivers_NoWrites(t *testing.T) {
	e := setup(t)
	e.fx.CreateDriver(e.ctx, "Close By", lat+0.002, lng, testutil.DriverOpts{Rating: 5})
	o := e.order(t, models.OrderAdminApproved, time.Minute)

	rec := call(t, e.h.ServeEligibleDrivers, http.MethodGet, o.ID.Hex(), nil, testutil.SupportUser())
	rec.AssertStatus(t, http.StatusOK)
	var got struct {
		Radius     float64 `json:"radius"`
		Count      int     `json:"count"`
		Candidates []struct {
			PriorityScore float64 `json:"priorityScore"`
		} `json:"candidates"`
	}
	rec.Data(t, &got)
	if got.Count != 1 || got.Radius != dispatch.BaseRadius {
		t.Errorf("got %+v", got)
	}
	if got.Candidates[0].PriorityScore != 5*20+30 {
		t.Errorf("priorityScore: got %v", got.Candidates[0].PriorityScore)
	}
	if e.reload(t, o.ID).Status != models.OrderAdminApproved {
		t.Error("preview must not change the order")
	}

	rec = call(t, e.h.ServeAssignment, http.MethodGet, o.ID.Hex(), nil, testutil.SupportUser())
	rec.AssertStatus(t, http.StatusNotFound)
}
