package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Vehicle types a driver can register and an order can require.
const (
	VehicleBicycle    = "bicycle"
	VehicleMotorcycle = "motorcycle"
	VehicleTricycle   = "tricycle"
	VehicleCar        = "car"
	VehicleVan        = "van"
	VehicleTruck      = "truck"
)

// VehicleTypes lists all known vehicle types.
var VehicleTypes = []string{
	VehicleBicycle, VehicleMotorcycle, VehicleTricycle,
	VehicleCar, VehicleVan, VehicleTruck,
}

// Verification review states, used both for single documents and for the
// driver's overall status.
const (
	ReviewPending  = "pending"
	ReviewApproved = "approved"
	ReviewRejected = "rejected"
)

// Driver document keys under verification.documents.
const (
	DocLicense      = "license"
	DocRegistration = "registration"
	DocInsurance    = "insurance"
)

// RequiredDocuments must all be approved before a driver can be verified
// or receive orders.
var RequiredDocuments = []string{DocLicense, DocRegistration, DocInsurance}

// VehicleDetails describes the vehicle a driver delivers with.
type VehicleDetails struct {
	Type  string `bson:"type" json:"type"`
	Plate string `bson:"plate,omitempty" json:"plate,omitempty"`
	Make  string `bson:"make,omitempty" json:"make,omitempty"`
	Model string `bson:"model,omitempty" json:"model,omitempty"`
	Color string `bson:"color,omitempty" json:"color,omitempty"`
	Year  int    `bson:"year,omitempty" json:"year,omitempty"`
}

// DocumentReview is the review state of one uploaded driver document.
type DocumentReview struct {
	Status          string              `bson:"status" json:"status"`
	URL             string              `bson:"url,omitempty" json:"url,omitempty"`
	ExpiresAt       *time.Time          `bson:"expiresAt,omitempty" json:"expiresAt,omitempty"`
	ReviewedAt      *time.Time          `bson:"reviewedAt,omitempty" json:"reviewedAt,omitempty"`
	ReviewedBy      *primitive.ObjectID `bson:"reviewedBy,omitempty" json:"reviewedBy,omitempty"`
	RejectionReason string              `bson:"rejectionReason,omitempty" json:"rejectionReason,omitempty"`
}

// VerificationDocuments groups the documents a driver must submit.
type VerificationDocuments struct {
	License      DocumentReview `bson:"license" json:"license"`
	Registration DocumentReview `bson:"registration" json:"registration"`
	Insurance    DocumentReview `bson:"insurance" json:"insurance"`
}

// Get returns the review for the named document.
func (d VerificationDocuments) Get(name string) (DocumentReview, bool) {
	switch name {
	case DocLicense:
		return d.License, true
	case DocRegistration:
		return d.Registration, true
	case DocInsurance:
		return d.Insurance, true
	}
	return DocumentReview{}, false
}

// AllApproved reports whether every required document is approved.
func (d VerificationDocuments) AllApproved() bool {
	return d.License.Status == ReviewApproved &&
		d.Registration.Status == ReviewApproved &&
		d.Insurance.Status == ReviewApproved
}

// Verification is the driver's onboarding review record.
type Verification struct {
	OverallStatus string                `bson:"overallStatus" json:"overallStatus"`
	Documents     VerificationDocuments `bson:"documents" json:"documents"`
	SubmittedAt   *time.Time            `bson:"submittedAt,omitempty" json:"submittedAt,omitempty"`
	ReviewedAt    *time.Time            `bson:"reviewedAt,omitempty" json:"reviewedAt,omitempty"`
	ReviewedBy    *primitive.ObjectID   `bson:"reviewedBy,omitempty" json:"reviewedBy,omitempty"`
	Notes         string                `bson:"notes,omitempty" json:"notes,omitempty"`
}

// IsValidDocument reports whether name is one of RequiredDocuments.
func IsValidDocument(name string) bool {
	for _, d := range RequiredDocuments {
		if d == name {
			return true
		}
	}
	return false
}

// IsValidVehicleType reports whether t is one of VehicleTypes.
func IsValidVehicleType(t string) bool {
	for _, v := range VehicleTypes {
		if v == t {
			return true
		}
	}
	return false
}
