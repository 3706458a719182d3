// internal/app/system/authz/authz.go
package authz

import (
	"net/http"
	"strings"

	"github.com/dalemusser/fleetdesk/internal/app/system/auth"
	"github.com/dalemusser/fleetdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserCtx returns the user's role and admin sub-role (lowercased), their
// ObjectID, and a found flag. A missing user or malformed id yields
// ok=false so callers can trust the id when ok is true.
func UserCtx(r *http.Request) (role, adminRole string, userID primitive.ObjectID, ok bool) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return "visitor", "", primitive.NilObjectID, false
	}
	userID = user.ObjectID()
	if userID.IsZero() {
		// Malformed user ID in session - fail closed.
		return "visitor", "", primitive.NilObjectID, false
	}
	return strings.ToLower(user.Role), strings.ToLower(user.AdminRole), userID, true
}

// ActorID returns the signed-in user's id, or NilObjectID.
func ActorID(r *http.Request) primitive.ObjectID {
	_, _, id, _ := UserCtx(r)
	return id
}

// IsAdmin reports whether the current user has the admin role.
func IsAdmin(r *http.Request) bool {
	role, _, _, ok := UserCtx(r)
	return ok && role == models.RoleAdmin
}

// IsSuperAdmin reports whether the current user is a superadmin.
func IsSuperAdmin(r *http.Request) bool {
	role, sub, _, ok := UserCtx(r)
	return ok && role == models.RoleAdmin && sub == models.AdminRoleSuper
}

// CanDestroy reports whether the current user may physically delete users
// and orders. Support staff can sanction but not delete.
func CanDestroy(r *http.Request) bool {
	role, sub, _, ok := UserCtx(r)
	if !ok || role != models.RoleAdmin {
		return false
	}
	return sub == models.AdminRoleSuper || sub == models.AdminRoleAdmin
}

// CanManageAdmins reports whether the current user may create admins or
// change another admin's account. Only superadmins can.
func CanManageAdmins(r *http.Request) bool {
	return IsSuperAdmin(r)
}

// DestroyRoles lists the admin sub-roles allowed to delete records, for
// auth.RequireAdminRole.
var DestroyRoles = []string{models.AdminRoleSuper, models.AdminRoleAdmin}
