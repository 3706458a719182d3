// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/dalemusser/fleetdesk/internal/app/store/audit"
	"github.com/dalemusser/fleetdesk/internal/app/system/reqid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
type Config struct {
	// Auth controls logging for sign-in and sign-out events.
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Auth string
	// Admin controls logging for admin actions on users, drivers and orders.
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Admin string
}

// Logger provides convenience methods for logging audit events.
// It logs to both MongoDB (via audit.Store) and structured logs (via zap).
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	// first hop of X-Forwarded-For is the original client
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}

	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.OrderID != nil {
		fields = append(fields, zap.String("order_id", event.OrderID.Hex()))
	}
	if event.RequestID != "" {
		fields = append(fields, zap.String("request_id", event.RequestID))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// A nil Logger is a no-op.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryAdmin:
		setting = l.config.Admin
	default:
		setting = "all"
	}

	if setting == "off" {
		return
	}
	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}
	if setting == "all" || setting == "db" {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func fromRequest(r *http.Request, category, eventType string) audit.Event {
	return audit.Event{
		Category:  category,
		EventType: eventType,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		RequestID: reqid.From(r.Context()),
		Success:   true,
	}
}

// --- Authentication Events ---

// LoginSuccess logs a successful sign-in.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	e := fromRequest(r, audit.CategoryAuth, audit.EventLoginSuccess)
	e.UserID = &userID
	e.Details = map[string]string{"email": email}
	l.Log(ctx, e)
}

// LoginFailedUserNotFound logs a failed sign-in for an unknown email.
func (l *Logger) LoginFailedUserNotFound(ctx context.Context, r *http.Request, attemptedEmail string) {
	e := fromRequest(r, audit.CategoryAuth, audit.EventLoginFailedUserNotFound)
	e.Success = false
	e.FailureReason = "user not found"
	e.Details = map[string]string{"attempted_email": attemptedEmail}
	l.Log(ctx, e)
}

// LoginFailedWrongPassword logs a failed sign-in due to a bad password.
func (l *Logger) LoginFailedWrongPassword(ctx context.Context, r *http.Request, userID primitive.ObjectID) {
	e := fromRequest(r, audit.CategoryAuth, audit.EventLoginFailedWrongPassword)
	e.UserID = &userID
	e.Success = false
	e.FailureReason = "wrong password"
	l.Log(ctx, e)
}

// LoginFailedUserDisabled logs a sign-in refused because the account is not Active.
func (l *Logger) LoginFailedUserDisabled(ctx context.Context, r *http.Request, userID primitive.ObjectID, status string) {
	e := fromRequest(r, audit.CategoryAuth, audit.EventLoginFailedUserDisabled)
	e.UserID = &userID
	e.Success = false
	e.FailureReason = "account " + strings.ToLower(status)
	e.Details = map[string]string{"status": status}
	l.Log(ctx, e)
}

// LoginFailedNotAdmin logs a sign-in refused because the user is not an admin.
func (l *Logger) LoginFailedNotAdmin(ctx context.Context, r *http.Request, userID primitive.ObjectID, role string) {
	e := fromRequest(r, audit.CategoryAuth, audit.EventLoginFailedNotAdmin)
	e.UserID = &userID
	e.Success = false
	e.FailureReason = "not an admin"
	e.Details = map[string]string{"role": role}
	l.Log(ctx, e)
}

// Logout logs a sign-out. userIDHex may be empty or malformed when the
// session was already gone; the event is still recorded without a user.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userIDHex string) {
	e := fromRequest(r, audit.CategoryAuth, audit.EventLogout)
	if oid, err := primitive.ObjectIDFromHex(userIDHex); err == nil {
		e.UserID = &oid
	}
	l.Log(ctx, e)
}

// --- Admin Events ---

// Admin logs a generic admin action. userID and orderID may be nil.
func (l *Logger) Admin(ctx context.Context, r *http.Request, eventType string, actorID primitive.ObjectID, userID, orderID *primitive.ObjectID, details map[string]string) {
	e := fromRequest(r, audit.CategoryAdmin, eventType)
	if !actorID.IsZero() {
		e.ActorID = &actorID
	}
	e.UserID = userID
	e.OrderID = orderID
	e.Details = details
	l.Log(ctx, e)
}

// UserCreated logs creation of a user.
func (l *Logger) UserCreated(ctx context.Context, r *http.Request, actorID, userID primitive.ObjectID, role string) {
	l.Admin(ctx, r, audit.EventUserCreated, actorID, &userID, nil, map[string]string{"role": role})
}

// UserUpdated logs a profile patch; fields lists what changed.
func (l *Logger) UserUpdated(ctx context.Context, r *http.Request, actorID, userID primitive.ObjectID, fields []string) {
	l.Admin(ctx, r, audit.EventUserUpdated, actorID, &userID, nil, map[string]string{"fields": strings.Join(fields, ",")})
}

// UserStatusChanged logs a status change and how many sessions it revoked.
func (l *Logger) UserStatusChanged(ctx context.Context, r *http.Request, actorID, userID primitive.ObjectID, status, reason string, revoked int) {
	d := map[string]string{"status": status, "revoked_sessions": strconv.Itoa(revoked)}
	if reason != "" {
		d["reason"] = reason
	}
	l.Admin(ctx, r, audit.EventUserStatusChanged, actorID, &userID, nil, d)
}

// UserDeleted logs a hard delete.
func (l *Logger) UserDeleted(ctx context.Context, r *http.Request, actorID, userID primitive.ObjectID) {
	l.Admin(ctx, r, audit.EventUserDeleted, actorID, &userID, nil, nil)
}

// SessionsRevoked logs a session revocation; token is empty when all were revoked.
func (l *Logger) SessionsRevoked(ctx context.Context, r *http.Request, actorID, userID primitive.ObjectID, count int, all bool) {
	scope := "single"
	if all {
		scope = "all"
	}
	l.Admin(ctx, r, audit.EventUserSessionsRevoked, actorID, &userID, nil, map[string]string{
		"scope": scope,
		"count": strconv.Itoa(count),
	})
}

// SessionsCleaned logs a manual stale-session cleanup.
func (l *Logger) SessionsCleaned(ctx context.Context, r *http.Request, actorID primitive.ObjectID, removed int64) {
	l.Admin(ctx, r, audit.EventSessionsCleaned, actorID, nil, nil, map[string]string{
		"removed": strconv.FormatInt(removed, 10),
	})
}

// DriverDocumentReviewed logs a decision on one driver document.
func (l *Logger) DriverDocumentReviewed(ctx context.Context, r *http.Request, actorID, driverID primitive.ObjectID, doc, decision, reason string) {
	d := map[string]string{"document": doc, "decision": decision}
	if reason != "" {
		d["reason"] = reason
	}
	l.Admin(ctx, r, audit.EventDriverDocReviewed, actorID, &driverID, nil, d)
}

// DriverVerificationReviewed logs the overall verification decision.
func (l *Logger) DriverVerificationReviewed(ctx context.Context, r *http.Request, actorID, driverID primitive.ObjectID, decision string) {
	l.Admin(ctx, r, audit.EventDriverVerified, actorID, &driverID, nil, map[string]string{"decision": decision})
}

// OrderEvent logs an action on an order. from/to are the status change.
func (l *Logger) OrderEvent(ctx context.Context, r *http.Request, eventType string, actorID, orderID primitive.ObjectID, from, to, reason string) {
	d := map[string]string{}
	if from != "" {
		d["from"] = from
	}
	if to != "" {
		d["to"] = to
	}
	if reason != "" {
		d["reason"] = reason
	}
	l.Admin(ctx, r, eventType, actorID, nil, &orderID, d)
}
