package dispatch

import "github.com/dalemusser/fleetdesk/internal/domain/models"

// Broadcast radius policy, in meters.
const (
	BaseRadius       = 5000.0
	UrgentRadius     = 10000.0 // priority=urgent
	UrgentFlagRadius = 15000.0 // flags.isUrgent
	HighRadius       = 8000.0  // priority=high
	FragileBonus     = 2000.0
	SpecialBonus     = 2000.0
)

// BroadcastRadius returns how far from the pickup point to look for
// drivers. When several priority rules apply the widest one wins; the
// package bonuses are then added on top.
func BroadcastRadius(o models.Order) float64 {
	radius := BaseRadius
	if o.Priority == models.PriorityUrgent {
		radius = max(radius, UrgentRadius)
	}
	if o.Flags.IsUrgent {
		radius = max(radius, UrgentFlagRadius)
	}
	if o.Priority == models.PriorityHigh {
		radius = max(radius, HighRadius)
	}
	if o.Package.IsFragile {
		radius += FragileBonus
	}
	if o.Package.RequiresSpecialHandling || o.Flags.RequiresSpecialHandling {
		radius += SpecialBonus
	}
	return radius
}
