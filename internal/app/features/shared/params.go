// Package shared holds small helpers used by several feature handlers.
package shared

import (
	"net/http"

	"github.com/dalemusser/fleetdesk/internal/app/system/apierr"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ObjectIDParam parses the chi URL parameter name as an ObjectID. A
// malformed id is a VALIDATION_ERROR naming what.
func ObjectIDParam(r *http.Request, name, what string) (primitive.ObjectID, error) {
	raw := chi.URLParam(r, name)
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, apierr.Validation("invalid " + what + " id").
			WithDetails(map[string]string{name: raw})
	}
	return id, nil
}

// OptionalObjectID parses a query-string id. Empty yields nil.
func OptionalObjectID(raw, field string) (*primitive.ObjectID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return nil, apierr.Validation("invalid " + field).WithDetails(map[string]string{field: raw})
	}
	return &id, nil
}
