// internal/app/features/users/types.go
package users

import (
	"time"

	"github.com/dalemusser/fleetdesk/internal/domain/models"
)

type createRequest struct {
	FullName    string `json:"fullName" validate:"required,max=200"`
	Email       string `json:"email" validate:"required,email,max=254"`
	Phone       string `json:"phone" validate:"omitempty,max=32"`
	Password    string `json:"password" validate:"required"`
	Role        string `json:"role" validate:"required,oneof=admin driver client"`
	AdminRole   string `json:"adminRole" validate:"omitempty,oneof=superadmin admin support"`
	Status      string `json:"status"`
	VehicleType string `json:"vehicleType" validate:"omitempty"`
}

type patchRequest struct {
	FullName  *string `json:"fullName" validate:"omitempty,min=1,max=200"`
	Email     *string `json:"email" validate:"omitempty,email,max=254"`
	Phone     *string `json:"phone" validate:"omitempty,max=32"`
	AdminRole *string `json:"adminRole" validate:"omitempty,oneof=superadmin admin support"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason" validate:"max=500"`
}

type statusResponse struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	Reason          string `json:"reason,omitempty"`
	RevokedSessions int    `json:"revokedSessions"`
}

type cleanupRequest struct {
	OlderThanDays int `json:"olderThanDays" validate:"omitempty,min=1,max=3650"`
}

// DefaultCleanupDays is the idle age used when a cleanup request names none.
const DefaultCleanupDays = 30

type cleanupResponse struct {
	Removed   int64     `json:"removed"`
	OlderThan time.Time `json:"olderThan"`
}

type revokeResponse struct {
	Revoked int `json:"revoked"`
}

// userView hides session token values; they are listed only through the
// sessions endpoint.
type userView struct {
	models.User
	SessionCount int `json:"sessionCount"`
}

func viewOf(u models.User) userView {
	n := len(u.SessionTokens)
	u.SessionTokens = nil
	return userView{User: u, SessionCount: n}
}

// sessionView is one listed session.
type sessionView struct {
	Token      string    `json:"token"`
	Device     string    `json:"device,omitempty"`
	IP         string    `json:"ip,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	LastActive time.Time `json:"lastActive"`
	Current    bool      `json:"current"`
}

// sanctionStatuses need a reason.
var sanctionStatuses = map[string]bool{
	models.StatusSuspended: true,
	models.StatusBanned:    true,
	models.StatusBlocked:   true,
}
