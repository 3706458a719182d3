package dispatch

import (
	"github.com/dalemusser/fleetdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// EligibilityFilter matches drivers that may receive an order needing one
// of vehicleTypes. An empty vehicleTypes accepts any vehicle.
//
// A driver is eligible when online, active, verified, holding approved
// license, registration and insurance documents, and not already carrying
// an order.
func EligibilityFilter(vehicleTypes []string) bson.M {
	f := bson.M{
		"role":                                  models.RoleDriver,
		"status":                                models.StatusActive,
		"isOnline":                              true,
		"verification.overallStatus":            models.ReviewApproved,
		"currentOrderId":                        nil,
		"verification.documents.license.status": models.ReviewApproved,
		"verification.documents.registration.status": models.ReviewApproved,
		"verification.documents.insurance.status":    models.ReviewApproved,
	}
	if len(vehicleTypes) > 0 {
		f["vehicleDetails.type"] = bson.M{"$in": vehicleTypes}
	}
	return f
}

// NearbyPipeline returns the aggregation that finds eligible drivers within
// radius meters of pickup, nearest first. It requires the 2dsphere index on
// users.currentLocation. Every driver inside the radius is returned;
// ranking and the MaxCandidates cap happen in Go (see Rank).
func NearbyPipeline(pickup models.GeoPoint, radius float64, vehicleTypes []string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$geoNear", Value: bson.D{
			{Key: "near", Value: pickup},
			{Key: "distanceField", Value: "distance"},
			{Key: "maxDistance", Value: radius},
			{Key: "spherical", Value: true},
			{Key: "key", Value: "currentLocation"},
			{Key: "query", Value: EligibilityFilter(vehicleTypes)},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 1},
			{Key: "fullName", Value: 1},
			{Key: "vehicleType", Value: "$vehicleDetails.type"},
			{Key: "rating", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$rating", 0}}}},
			{Key: "completionRate", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$completionRate", 0}}}},
			{Key: "distance", Value: 1},
		}}},
	}
}

// CheckDriver reports why driver cannot take an order needing vehicleTypes,
// or "" when it can. Distance is not considered; this backs manual
// assignment, where the admin overrides proximity.
func CheckDriver(d models.User, vehicleTypes []string) string {
	switch {
	case !d.IsDriver():
		return "user is not a driver"
	case d.Status != models.StatusActive:
		return "driver account is " + d.Status
	case !d.IsOnline:
		return "driver is offline"
	case d.CurrentOrderID != nil:
		return "driver is already on an order"
	case d.Verification == nil || d.Verification.OverallStatus != models.ReviewApproved:
		return "driver is not verified"
	case !d.Verification.Documents.AllApproved():
		return "driver documents are not all approved"
	}
	if len(vehicleTypes) > 0 {
		vt := ""
		if d.VehicleDetails != nil {
			vt = d.VehicleDetails.Type
		}
		for _, t := range vehicleTypes {
			if t == vt {
				return ""
			}
		}
		return "driver vehicle does not match order requirements"
	}
	return ""
}
