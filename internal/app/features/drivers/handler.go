// internal/app/features/drivers/handler.go
package drivers

import (
	"context"
	"net/http"
	"time"

	"github.com/dalemusser/fleetdesk/internal/app/features/shared"
	userstore "github.com/dalemusser/fleetdesk/internal/app/store/users"
	"github.com/dalemusser/fleetdesk/internal/app/system/apierr"
	"github.com/dalemusser/fleetdesk/internal/app/system/auditlog"
	"github.com/dalemusser/fleetdesk/internal/app/system/authz"
	"github.com/dalemusser/fleetdesk/internal/app/system/htmlsanitize"
	"github.com/dalemusser/fleetdesk/internal/app/system/inputval"
	"github.com/dalemusser/fleetdesk/internal/app/system/orderflow"
	"github.com/dalemusser/fleetdesk/internal/app/system/paging"
	"github.com/dalemusser/fleetdesk/internal/app/system/respond"
	"github.com/dalemusser/fleetdesk/internal/app/system/timeouts"
	"github.com/dalemusser/fleetdesk/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Users    *userstore.Store
	Log      *zap.Logger
	AuditLog *auditlog.Logger
	now      func() time.Time
}

func NewHandler(db *mongo.Database, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:    userstore.New(db),
		Log:      logger,
		AuditLog: audit,
		now:      time.Now,
	}
}

type documentRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approved rejected"`
	Reason   string `json:"reason" validate:"max=500"`
}

type verificationRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approved rejected"`
	Notes    string `json:"notes" validate:"max=1000"`
}

// ServeVerifications handles GET /drivers/verifications.
func (h *Handler) ServeVerifications(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	p := paging.Parse(r)
	items, total, err := h.Users.ListPendingVerifications(ctx, p)
	if err != nil {
		respond.Error(w, r, h.Log, apierr.FromStore(err, "driver"))
		return
	}
	respond.OK(w, paging.NewResult(items, p, total))
}

// ServeDriver handles GET /drivers/{id}.
func (h *Handler) ServeDriver(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectIDParam(r, "id", "driver")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	d, err := h.Users.GetDriver(ctx, id)
	if err != nil {
		respond.Error(w, r, h.Log, apierr.FromStore(err, "driver"))
		return
	}
	respond.OK(w, d)
}

// HandleReviewDocument handles PATCH /drivers/{id}/documents/{doc}.
// Rejecting a document needs a reason.
func (h *Handler) HandleReviewDocument(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectIDParam(r, "id", "driver")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	doc := chi.URLParam(r, "doc")
	if !models.IsValidDocument(doc) {
		respond.Error(w, r, h.Log, apierr.Validation("unknown document "+doc).
			WithDetails(map[string]any{"allowed": models.RequiredDocuments}))
		return
	}
	var req documentRequest
	if err := inputval.DecodeJSON(w, r, &req); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	reason := htmlsanitize.Text(req.Reason)
	if req.Decision == models.ReviewRejected {
		if err := orderflow.RequireReason("rejection", reason); err != nil {
			respond.Error(w, r, h.Log, err)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	actor := authz.ActorID(r)
	d, err := h.Users.ReviewDocument(ctx, id, doc, req.Decision, reason, actor, h.now())
	if err != nil {
		respond.Error(w, r, h.Log, apierr.FromStore(err, "driver"))
		return
	}

	h.AuditLog.DriverDocumentReviewed(ctx, r, actor, id, doc, req.Decision, reason)
	respond.OK(w, d)
}

// HandleReviewVerification handles PATCH /drivers/{id}/verification.
// Approval is refused until license, registration and insurance are all
// approved; rejection needs notes.
func (h *Handler) HandleReviewVerification(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectIDParam(r, "id", "driver")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	var req verificationRequest
	if err := inputval.DecodeJSON(w, r, &req); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	notes := htmlsanitize.Text(req.Notes)
	if req.Decision == models.ReviewRejected {
		if err := orderflow.RequireReason("rejection", notes); err != nil {
			respond.Error(w, r, h.Log, err)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	actor := authz.ActorID(r)
	d, err := h.Users.ReviewVerification(ctx, id, req.Decision, notes, actor, h.now())
	if err != nil {
		respond.Error(w, r, h.Log, apierr.FromStore(err, "driver"))
		return
	}

	h.Log.Info("driver verification reviewed",
		zap.String("driver_id", id.Hex()),
		zap.String("decision", req.Decision),
		zap.String("actor_id", actor.Hex()))
	h.AuditLog.DriverVerificationReviewed(ctx, r, actor, id, req.Decision)
	respond.OK(w, d)
}
