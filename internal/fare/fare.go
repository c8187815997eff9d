// Package fare computes stage based fares from travelled distance.
package fare

import (
	"math"

	"github.com/sanjeevantech/bustrack/internal/schedule"
	"github.com/sanjeevantech/bustrack/pkg/geo"
)

const (
	// StageLengthKm is the distance covered by one fare stage.
	StageLengthKm = 3.5
	// MinChargeableKm: journeys shorter than this are treated as a
	// same-stop tap pair and charged nothing.
	MinChargeableKm = 0.1
)

// Calculator prices a journey between two stops of a route. Fares are a
// base amount plus a per-stage amount; season ticket holders never reach
// the calculator.
type Calculator struct {
	base     float64
	perStage float64
}

// New constructs a Calculator with the given base and per stage amounts.
func New(base, perStage float64) *Calculator {
	return &Calculator{base: base, perStage: perStage}
}

// Journey returns the fare for travelling from boardSeq to alightSeq on the
// route, measured along the stop chain. Unknown sequences or a backwards
// pair price as zero.
func (c *Calculator) Journey(route *schedule.Route, boardSeq, alightSeq int) float64 {
	dist := pathDistanceKm(route, boardSeq, alightSeq)
	return c.ForDistance(dist)
}

// ForDistance prices a raw distance in kilometres.
func (c *Calculator) ForDistance(km float64) float64 {
	if km < MinChargeableKm {
		return 0
	}
	stages := int(math.Ceil(km / StageLengthKm))
	if stages < 1 {
		stages = 1
	}
	return c.base + c.perStage*float64(stages-1)
}

// pathDistanceKm sums haversine legs between consecutive stops from boardSeq
// to alightSeq. Stops without a GPS fix contribute nothing to the sum.
func pathDistanceKm(route *schedule.Route, boardSeq, alightSeq int) float64 {
	if route == nil || alightSeq <= boardSeq {
		return 0
	}
	var (
		total float64
		prev  *geo.Point
	)
	for _, s := range route.Stops {
		if s.Sequence < boardSeq || s.Sequence > alightSeq {
			continue
		}
		if s.Location.IsZero() {
			continue
		}
		loc := s.Location
		if prev != nil {
			total += geo.HaversineKm(*prev, loc)
		}
		prev = &loc
	}
	return total
}
