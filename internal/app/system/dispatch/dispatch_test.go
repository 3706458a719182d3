package dispatch

import (
	"testing"

	"github.com/dalemusser/fleetdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestBroadcastRadius(t *testing.T) {
	tests := []struct {
		name  string
		order models.Order
		want  float64
	}{
		{"base", models.Order{Priority: models.PriorityNormal}, 5000},
		{"urgent priority", models.Order{Priority: models.PriorityUrgent}, 10000},
		{"urgent flag", models.Order{Flags: models.OrderFlags{IsUrgent: true}}, 15000},
		{"urgent priority and flag", models.Order{Priority: models.PriorityUrgent, Flags: models.OrderFlags{IsUrgent: true}}, 15000},
		{"high priority", models.Order{Priority: models.PriorityHigh}, 8000},
		{"high priority with urgent flag keeps widest", models.Order{Priority: models.PriorityHigh, Flags: models.OrderFlags{IsUrgent: true}}, 15000},
		{"fragile", models.Order{Package: models.Package{IsFragile: true}}, 7000},
		{"special handling on package", models.Order{Package: models.Package{RequiresSpecialHandling: true}}, 7000},
		{"special handling on flags", models.Order{Flags: models.OrderFlags{RequiresSpecialHandling: true}}, 7000},
		{
			"urgent fragile special",
			models.Order{
				Priority: models.PriorityUrgent,
				Package:  models.Package{IsFragile: true, RequiresSpecialHandling: true},
				Flags:    models.OrderFlags{RequiresSpecialHandling: true},
			},
			14000,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BroadcastRadius(tt.order); got != tt.want {
				t.Errorf("BroadcastRadius = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPriorityScore(t *testing.T) {
	tests := []struct {
		name                     string
		rating, completion, dist float64
		want                     float64
	}{
		{"near", 4.5, 90, 1500, 4.5*20 + 45 + 30},
		{"at bonus boundary", 4.5, 90, 2000, 4.5*20 + 45},
		{"far", 5, 100, 9000, 150},
		{"new driver", 0, 0, 100, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PriorityScore(tt.rating, tt.completion, tt.dist); got != tt.want {
				t.Errorf("PriorityScore = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRank_OrdersByScoreThenDistance(t *testing.T) {
	a, b, c, d := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	cs := []Candidate{
		{DriverID: a, Rating: 4, CompletionRate: 80, Distance: 4000},  // 120
		{DriverID: b, Rating: 4, CompletionRate: 80, Distance: 1000},  // 150
		{DriverID: c, Rating: 4, CompletionRate: 80, Distance: 3000},  // 120, closer than a
		{DriverID: d, Rating: 5, CompletionRate: 100, Distance: 6000}, // 150, farther than b
	}

	got := Rank(cs)

	want := []primitive.ObjectID{b, d, c, a}
	for i, id := range want {
		if got[i].DriverID != id {
			t.Fatalf("position %d: got %v, want %v (scores %v)", i, got[i].DriverID, id, scores(got))
		}
	}
	if got[0].PriorityScore != 150 {
		t.Errorf("top score = %v, want 150", got[0].PriorityScore)
	}
}

func TestRank_CapsResults(t *testing.T) {
	cs := make([]Candidate, MaxCandidates+25)
	for i := range cs {
		cs[i] = Candidate{DriverID: primitive.NewObjectID(), Rating: float64(i % 5), Distance: float64(i)}
	}
	if got := Rank(cs); len(got) != MaxCandidates {
		t.Errorf("len = %d, want %d", len(got), MaxCandidates)
	}
}

func scores(cs []Candidate) []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.PriorityScore
	}
	return out
}

func TestEligibilityFilter(t *testing.T) {
	f := EligibilityFilter([]string{models.VehicleCar, models.VehicleVan})

	for _, key := range []string{
		"verification.documents.license.status",
		"verification.documents.registration.status",
		"verification.documents.insurance.status",
	} {
		if f[key] != models.ReviewApproved {
			t.Errorf("%s = %v, want approved", key, f[key])
		}
	}
	if f["isOnline"] != true || f["role"] != models.RoleDriver {
		t.Errorf("unexpected base filter: %v", f)
	}
	if _, ok := f["currentOrderId"]; !ok {
		t.Error("filter must exclude drivers already on an order")
	}
	in, ok := f["vehicleDetails.type"].(bson.M)
	if !ok {
		t.Fatalf("vehicle filter missing: %v", f)
	}
	if types := in["$in"].([]string); len(types) != 2 {
		t.Errorf("vehicle types = %v", types)
	}

	if _, ok := EligibilityFilter(nil)["vehicleDetails.type"]; ok {
		t.Error("no vehicle requirement should not filter on vehicle type")
	}
}

func TestNearbyPipeline_StartsWithGeoNear(t *testing.T) {
	p := NearbyPipeline(models.NewGeoPoint(6.45, 3.39), 8000, nil)
	if len(p) == 0 || p[0][0].Key != "$geoNear" {
		t.Fatalf("pipeline must start with $geoNear: %v", p)
	}
	var maxDistance any
	for _, e := range p[0][0].Value.(bson.D) {
		if e.Key == "maxDistance" {
			maxDistance = e.Value
		}
	}
	if maxDistance != 8000.0 {
		t.Errorf("maxDistance = %v, want 8000", maxDistance)
	}
	for _, stage := range p {
		if stage[0].Key == "$limit" {
			t.Errorf("pipeline must not cut candidates before ranking: %v", stage)
		}
	}
}

func verifiedDriver(vehicle string) models.User {
	approved := models.DocumentReview{Status: models.ReviewApproved}
	return models.User{
		Role:           models.RoleDriver,
		Status:         models.StatusActive,
		IsOnline:       true,
		VehicleDetails: &models.VehicleDetails{Type: vehicle},
		Verification: &models.Verification{
			OverallStatus: models.ReviewApproved,
			Documents:     models.VerificationDocuments{License: approved, Registration: approved, Insurance: approved},
		},
	}
}

func TestCheckDriver(t *testing.T) {
	orderID := primitive.NewObjectID()

	busy := verifiedDriver(models.VehicleCar)
	busy.CurrentOrderID = &orderID

	expiredInsurance := verifiedDriver(models.VehicleCar)
	expiredInsurance.Verification.Documents.Insurance.Status = models.ReviewRejected

	suspended := verifiedDriver(models.VehicleCar)
	suspended.Status = models.StatusSuspended

	offline := verifiedDriver(models.VehicleCar)
	offline.IsOnline = false

	tests := []struct {
		name   string
		driver models.User
		types  []string
		ok     bool
	}{
		{"eligible", verifiedDriver(models.VehicleCar), []string{models.VehicleCar}, true},
		{"any vehicle", verifiedDriver(models.VehicleBicycle), nil, true},
		{"wrong vehicle", verifiedDriver(models.VehicleBicycle), []string{models.VehicleVan}, false},
		{"busy", busy, nil, false},
		{"document rejected", expiredInsurance, nil, false},
		{"suspended", suspended, nil, false},
		{"offline", offline, []string{models.VehicleCar}, false},
		{"client", models.User{Role: models.RoleClient, Status: models.StatusActive}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason := CheckDriver(tt.driver, tt.types)
			if (reason == "") != tt.ok {
				t.Errorf("CheckDriver = %q, want ok=%v", reason, tt.ok)
			}
		})
	}
}
