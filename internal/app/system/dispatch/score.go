package dispatch

import (
	"sort"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxCandidates caps how many drivers one broadcast reaches.
const MaxCandidates = 1000

// NearbyBonusDistance is the distance under which a driver earns
// NearbyBonus points.
const (
	NearbyBonusDistance = 2000.0 // meters
	NearbyBonus         = 30.0
)

// Candidate is an eligible driver with its distance to the pickup point.
type Candidate struct {
	DriverID       primitive.ObjectID `bson:"_id"`
	FullName       string             `bson:"fullName"`
	VehicleType    string             `bson:"vehicleType"`
	Rating         float64            `bson:"rating"`
	CompletionRate float64            `bson:"completionRate"`
	Distance       float64            `bson:"distance"` // meters
	PriorityScore  float64            `bson:"-"`
}

// PriorityScore weighs a driver for an order:
// rating*20 + completionRate*0.5, plus NearbyBonus when closer than
// NearbyBonusDistance.
func PriorityScore(rating, completionRate, distance float64) float64 {
	score := rating*20 + completionRate*0.5
	if distance < NearbyBonusDistance {
		score += NearbyBonus
	}
	return score
}

// Rank scores cs, orders them by score descending then distance ascending,
// and returns at most MaxCandidates. cs is reordered in place.
func Rank(cs []Candidate) []Candidate {
	for i := range cs {
		cs[i].PriorityScore = PriorityScore(cs[i].Rating, cs[i].CompletionRate, cs[i].Distance)
	}
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].PriorityScore != cs[j].PriorityScore {
			return cs[i].PriorityScore > cs[j].PriorityScore
		}
		return cs[i].Distance < cs[j].Distance
	})
	if len(cs) > MaxCandidates {
		cs = cs[:MaxCandidates]
	}
	return cs
}
