package testutil

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/fleetdesk/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Calling it again on the same request adds to the existing params.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures inserts test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

func (f *Fixtures) insertUser(ctx context.Context, u models.User) models.User {
	f.t.Helper()
	now := time.Now().UTC()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if u.Status == "" {
		u.Status = models.StatusActive
	}
	u.FullNameCI = text.Fold(u.FullName)
	u.CreatedAt = now
	u.UpdatedAt = now
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateAdmin inserts an Active admin with the given sub-role and password.
func (f *Fixtures) CreateAdmin(ctx context.Context, email, adminRole, password string) models.User {
	f.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		f.t.Fatalf("hash password: %v", err)
	}
	return f.insertUser(ctx, models.User{
		FullName:     "Admin " + adminRole,
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		AdminRole:    adminRole,
	})
}

// CreateClient inserts an Active client.
func (f *Fixtures) CreateClient(ctx context.Context, name, email string) models.User {
	f.t.Helper()
	return f.insertUser(ctx, models.User{FullName: name, Email: email, Role: models.RoleClient})
}

// CreateUser inserts u as-is, filling id, timestamps and default status.
func (f *Fixtures) CreateUser(ctx context.Context, u models.User) models.User {
	f.t.Helper()
	return f.insertUser(ctx, u)
}

// DriverOpts shapes a driver fixture. The zero value is an online,
// verified car driver.
type DriverOpts struct {
	Vehicle        string
	Offline        bool
	Unverified     bool
	Rating         float64
	CompletionRate float64
	CurrentOrderID *primitive.ObjectID
}

// CreateDriver inserts a driver at (lat, lng).
func (f *Fixtures) CreateDriver(ctx context.Context, name string, lat, lng float64, o DriverOpts) models.User {
	f.t.Helper()
	if o.Vehicle == "" {
		o.Vehicle = models.VehicleCar
	}
	review := models.ReviewApproved
	if o.Unverified {
		review = models.ReviewPending
	}
	doc := models.DocumentReview{Status: review}
	loc := models.NewGeoPoint(lat, lng)
	return f.insertUser(ctx, models.User{
		FullName:        name,
		Email:           strings.ReplaceAll(text.Fold(name), " ", ".") + "@drivers.test",
		Role:            models.RoleDriver,
		IsOnline:        !o.Offline,
		CurrentLocation: &loc,
		CurrentOrderID:  o.CurrentOrderID,
		Rating:          o.Rating,
		CompletionRate:  o.CompletionRate,
		VehicleDetails:  &models.VehicleDetails{Type: o.Vehicle, Plate: "TST-001"},
		Verification: &models.Verification{
			OverallStatus: review,
			Documents:     models.VerificationDocuments{License: doc, Registration: doc, Insurance: doc},
		},
	})
}

// CreateOrder inserts an order for client in status with pickup at
// (lat, lng). Its tracking history holds one entry stamped at.
func (f *Fixtures) CreateOrder(ctx context.Context, clientID primitive.ObjectID, status string, lat, lng float64, at time.Time) models.Order {
	f.t.Helper()
	o := models.Order{
		ID:       primitive.NewObjectID(),
		OrderRef: "ORD-" + primitive.NewObjectID().Hex()[18:],
		ClientID: clientID,
		Status:   status,
		Priority: models.PriorityNormal,
		Package:  models.Package{Category: "documents", Weight: 1},
		Location: models.OrderLocation{
			PickUp:  models.Stop{Address: "1 Pickup Rd", Coordinates: models.NewGeoPoint(lat, lng)},
			DropOff: models.Stop{Address: "9 Dropoff Ave", Coordinates: models.NewGeoPoint(lat+0.05, lng+0.05)},
		},
		Pricing: models.Pricing{BaseFare: 500, DistanceFare: 700, Total: 1200, Currency: "NGN"},
		OrderTrackingHistory: []models.TrackingEntry{
			{Status: status, Timestamp: at.UTC(), Description: "fixture"},
		},
		CreatedAt: at.UTC(),
		UpdatedAt: at.UTC(),
	}
	if _, err := f.db.Collection("orders").InsertOne(ctx, o); err != nil {
		f.t.Fatalf("failed to create test order: %v", err)
	}
	return o
}
