// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Roles stored in users.role. Admins, drivers and clients share one collection.
const (
	RoleAdmin  = "admin"
	RoleDriver = "driver"
	RoleClient = "client"
)

// Admin sub-roles stored in users.adminRole.
const (
	AdminRoleSuper   = "superadmin"
	AdminRoleAdmin   = "admin"
	AdminRoleSupport = "support"
)

// User account statuses. Status flips are the normal way to sanction an
// account; only an explicit admin delete removes the document.
const (
	StatusActive    = "Active"
	StatusInactive  = "Inactive"
	StatusSuspended = "Suspended"
	StatusBanned    = "Banned"
	StatusPending   = "Pending"
	StatusBlocked   = "Blocked"
	StatusDeleted   = "Deleted"
)

// UserStatuses lists every valid account status in display order.
var UserStatuses = []string{
	StatusActive, StatusInactive, StatusSuspended, StatusBanned,
	StatusPending, StatusBlocked, StatusDeleted,
}

// IsValidUserStatus reports whether s is one of UserStatuses.
func IsValidUserStatus(s string) bool {
	for _, v := range UserStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsValidRole reports whether r is a known user role.
func IsValidRole(r string) bool {
	return r == RoleAdmin || r == RoleDriver || r == RoleClient
}

// SessionToken is one signed-in device for a user. The admin console can
// revoke tokens individually or in bulk.
type SessionToken struct {
	Token      string    `bson:"token" json:"token"`
	Device     string    `bson:"device,omitempty" json:"device,omitempty"`
	IP         string    `bson:"ip,omitempty" json:"ip,omitempty"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
	LastActive time.Time `bson:"lastActive" json:"lastActive"`
}

// SavedLocation is an address a client bookmarked for reuse.
type SavedLocation struct {
	Label    string   `bson:"label" json:"label"`
	Address  string   `bson:"address" json:"address"`
	Location GeoPoint `bson:"location" json:"location"`
}

// Wallet holds the user's platform balance.
type Wallet struct {
	Balance  float64 `bson:"balance" json:"balance"`
	Currency string  `bson:"currency" json:"currency"`
}

// User is the shared account document for admins, drivers and clients.
// Driver-only fields are nil/zero for other roles.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName     string             `bson:"fullName" json:"fullName"`
	FullNameCI   string             `bson:"fullNameCI" json:"-"` // lowercase, diacritics-stripped
	Email        string             `bson:"email" json:"email"`
	Phone        string             `bson:"phone,omitempty" json:"phone,omitempty"`
	PasswordHash string             `bson:"passwordHash,omitempty" json:"-"`
	Role         string             `bson:"role" json:"role"`
	AdminRole    string             `bson:"adminRole,omitempty" json:"adminRole,omitempty"`
	Status       string             `bson:"status" json:"status"`
	StatusReason string             `bson:"statusReason,omitempty" json:"statusReason,omitempty"`

	SessionTokens  []SessionToken  `bson:"sessionTokens,omitempty" json:"sessionTokens,omitempty"`
	SavedLocations []SavedLocation `bson:"savedLocations,omitempty" json:"savedLocations,omitempty"`
	Wallet         *Wallet         `bson:"wallet,omitempty" json:"wallet,omitempty"`

	// Driver profile
	IsOnline        bool                `bson:"isOnline,omitempty" json:"isOnline,omitempty"`
	CurrentLocation *GeoPoint           `bson:"currentLocation,omitempty" json:"currentLocation,omitempty"`
	CurrentOrderID  *primitive.ObjectID `bson:"currentOrderId,omitempty" json:"currentOrderId,omitempty"`
	Rating          float64             `bson:"rating,omitempty" json:"rating,omitempty"`
	CompletionRate  float64             `bson:"completionRate,omitempty" json:"completionRate,omitempty"`
	VehicleDetails  *VehicleDetails     `bson:"vehicleDetails,omitempty" json:"vehicleDetails,omitempty"`
	Verification    *Verification       `bson:"verification,omitempty" json:"verification,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// IsDriver reports whether u has the driver role.
func (u User) IsDriver() bool { return u.Role == RoleDriver }
