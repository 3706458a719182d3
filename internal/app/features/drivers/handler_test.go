package drivers_test

import (
	"net/http"
	"testing"

	"github.com/dalemusser/fleetdesk/internal/app/features/drivers"
	userstore "github.com/dalemusser/fleetdesk/internal/app/store/users"
	"github.com/dalemusser/fleetdesk/internal/domain/models"
	"github.com/dalemusser/fleetdesk/internal/testutil"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*drivers.Handler, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return drivers.NewHandler(db, nil, zap.NewNop()), testutil.NewFixtures(t, db)
}

func review(t *testing.T, h *drivers.Handler, id, doc string, body map[string]any) *testutil.ResponseRecorder {
	t.Helper()
	req := testutil.WithUser(testutil.NewJSONRequest(t, http.MethodPatch, "/drivers/x/documents/"+doc, body), testutil.AdminUser())
	req = testutil.WithChiURLParam(req, "id", id)
	req = testutil.WithChiURLParam(req, "doc", doc)
	rec := testutil.NewRecorder()
	h.HandleReviewDocument(rec, req)
	return rec
}

func verify(t *testing.T, h *drivers.Handler, id string, body map[string]any) *testutil.ResponseRecorder {
	t.Helper()
	req := testutil.WithUser(testutil.NewJSONRequest(t, http.MethodPatch, "/drivers/x/verification", body), testutil.AdminUser())
	req = testutil.WithChiURLParam(req, "id", id)
	rec := testutil.NewRecorder()
	h.HandleReviewVerification(rec, req)
	return rec
}

func TestServeVerifications_ListsPendingOnly(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.CreateDriver(ctx, "Pending One", 6.5, 3.3, testutil.DriverOpts{Unverified: true})
	fx.CreateDriver(ctx, "Pending Two", 6.5, 3.3, testutil.DriverOpts{Unverified: true})
	fx.CreateDriver(ctx, "Verified", 6.5, 3.3, testutil.DriverOpts{})

	req := testutil.NewAuthenticatedRequest(http.MethodGet, "/drivers/verifications", testutil.SupportUser())
	rec := testutil.NewRecorder()
	h.ServeVerifications(rec, req)
	rec.AssertStatus(t, http.StatusOK)

	var got struct {
		Items []struct {
			FullName string `json:"fullName"`
		} `json:"items"`
	}
	rec.Data(t, &got)
	if len(got.Items) != 2 {
		t.Errorf("items: got %d, want 2", len(got.Items))
	}
}

func TestHandleReviewDocument(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	d := fx.CreateDriver(ctx, "New Driver", 6.5, 3.3, testutil.DriverOpts{Unverified: true})
	id := d.ID.Hex()

	review(t, h, id, "passport", map[string]any{"decision": "approved"}).AssertStatus(t, http.StatusBadRequest)
	review(t, h, id, "license", map[string]any{"decision": "maybe"}).AssertStatus(t, http.StatusBadRequest)
	review(t, h, id, "license", map[string]any{"decision": "rejected"}).AssertStatus(t, http.StatusBadRequest)

	rec := review(t, h, id, "license", map[string]any{"decision": "rejected", "reason": "blurry scan"})
	rec.AssertStatus(t, http.StatusOK)

	got, err := userstore.New(fx.DB()).GetDriver(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetDriver: %v", err)
	}
	lic := got.Verification.Documents.License
	if lic.Status != models.ReviewRejected || lic.RejectionReason != "blurry scan" || lic.ReviewedBy == nil {
		t.Errorf("license review: %+v", lic)
	}

	rec = review(t, h, id, "license", map[string]any{"decision": "approved"})
	rec.AssertStatus(t, http.StatusOK)
	got, _ = userstore.New(fx.DB()).GetDriver(ctx, d.ID)
	if got.Verification.Documents.License.RejectionReason != "" {
		t.Error("rejection reason should be cleared on approval")
	}
}

func TestHandleReviewVerification(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	d := fx.CreateDriver(ctx, "Candidate", 6.5, 3.3, testutil.DriverOpts{Unverified: true})
	id := d.ID.Hex()

	t.Run("approve before documents", func(t *testing.T) {
		rec := verify(t, h, id, map[string]any{"decision": "approved"})
		rec.AssertStatus(t, http.StatusUnprocessableEntity)
		if code := rec.ErrorCode(t); code != "STATE_CONFLICT" {
			t.Errorf("code: got %q", code)
		}
	})

	t.Run("reject needs notes", func(t *testing.T) {
		verify(t, h, id, map[string]any{"decision": "rejected"}).AssertStatus(t, http.StatusBadRequest)
	})

	t.Run("approve after documents", func(t *testing.T) {
		for _, doc := range models.RequiredDocuments {
			review(t, h, id, doc, map[string]any{"decision": "approved"}).AssertStatus(t, http.StatusOK)
		}
		rec := verify(t, h, id, map[string]any{"decision": "approved", "notes": "all good"})
		rec.AssertStatus(t, http.StatusOK)
		rec.AssertContains(t, `"overallStatus":"approved"`)
	})

	t.Run("unknown driver", func(t *testing.T) {
		c := fx.CreateClient(ctx, "Not A Driver", "nad@example.com")
		verify(t, h, c.ID.Hex(), map[string]any{"decision": "approved"}).AssertStatus(t, http.StatusNotFound)
	})
}
