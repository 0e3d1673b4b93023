package command

import "maneuver-service/internal/types"

// StuckThreshold is the fraction below the mean travel at which a wheel is
// reported stuck.
const StuckThreshold = 0.5

// StuckWheels returns the wheels whose travel fell more than
// StuckThreshold below the mean of all four. A non-positive mean gives no
// valid comparison and reports nothing.
func StuckWheels(deltas [types.NumWheels]float64) []types.Wheel {
	var sum float64
	for _, d := range deltas {
		sum += d
	}
	avg := sum / types.NumWheels
	if avg <= 0 {
		return nil
	}

	var stuck []types.Wheel
	for i, d := range deltas {
		if (avg-d)/avg > StuckThreshold {
			stuck = append(stuck, types.Wheel(i))
		}
	}
	return stuck
}
