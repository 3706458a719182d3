// internal/app/features/auditlog/types.go
package auditlog

import (
	"time"

	"github.com/dalemusser/fleetdesk/internal/app/store/audit"
)

// listItem is one audit event with actor and target names resolved.
type listItem struct {
	audit.Event
	ActorName  string `json:"actorName,omitempty"`
	TargetName string `json:"targetName,omitempty"`
}

type listFilters struct {
	UserID    string     `json:"userId,omitempty"`
	ActorID   string     `json:"actorId,omitempty"`
	OrderID   string     `json:"orderId,omitempty"`
	Category  string     `json:"category,omitempty"`
	EventType string     `json:"type,omitempty"`
	From      *time.Time `json:"from,omitempty"`
	To        *time.Time `json:"to,omitempty"`
}

var categories = []string{audit.CategoryAuth, audit.CategoryAdmin}

var authEvents = []string{
	audit.EventLoginSuccess,
	audit.EventLoginFailedUserNotFound,
	audit.EventLoginFailedWrongPassword,
	audit.EventLoginFailedUserDisabled,
	audit.EventLoginFailedNotAdmin,
	audit.EventLogout,
}

var adminEvents = []string{
	audit.EventUserCreated,
	audit.EventUserUpdated,
	audit.EventUserStatusChanged,
	audit.EventUserDeleted,
	audit.EventUserSessionsRevoked,
	audit.EventSessionsCleaned,
	audit.EventDriverDocReviewed,
	audit.EventDriverVerified,
	audit.EventOrderApproved,
	audit.EventOrderRejected,
	audit.EventOrderReversed,
	audit.EventOrderBroadcast,
	audit.EventOrderAssigned,
	audit.EventOrderCancelled,
	audit.EventOrderStatusUpdated,
	audit.EventOrderDeleted,
}

// eventTypesForCategory returns the event types recorded under category,
// or every type when category is empty. Unknown categories yield nil.
func eventTypesForCategory(category string) []string {
	switch category {
	case audit.CategoryAuth:
		return authEvents
	case audit.CategoryAdmin:
		return adminEvents
	case "":
		all := make([]string, 0, len(authEvents)+len(adminEvents))
		all = append(all, authEvents...)
		return append(all, adminEvents...)
	default:
		return nil
	}
}

func knownEventType(t string) bool {
	for _, e := range eventTypesForCategory("") {
		if e == t {
			return true
		}
	}
	return false
}
