package features

import "math"

// Event is a single tap recorded during an activity. It only ever lives in
// the session store.
type Event struct {
	TimestampMS      int64 `json:"timestamp_ms"`
	TargetAppearedMS int64 `json:"target_appeared_ms"`
	WasHit           bool  `json:"was_hit"`
}

// Vector is the derived feature set for one completed session. It is consumed
// by the pattern engine and then dropped; it is never serialized to clients.
type Vector struct {
	MeanReactionTime        float64 // milliseconds, over timed hits
	ReactionTimeVariability float64 // coefficient of variation (stdev / mean)
	MissRate                float64 // misses / total, 0..1

	TotalEvents int
	HitCount    int
}

// Extract computes the feature vector for an ordered event sequence.
//
// Timing statistics only use hits with a positive reaction time. With no such
// hits the mean and variability are both zero.
func Extract(events []Event) Vector {
	var v Vector
	v.TotalEvents = len(events)
	if v.TotalEvents == 0 {
		return v
	}

	var rts []float64
	misses := 0
	for _, e := range events {
		if !e.WasHit {
			misses++
			continue
		}
		v.HitCount++
		if rt := e.TimestampMS - e.TargetAppearedMS; rt > 0 {
			rts = append(rts, float64(rt))
		}
	}

	v.MissRate = float64(misses) / float64(v.TotalEvents)

	mean := meanOf(rts)
	v.MeanReactionTime = mean
	if mean > 0 {
		v.ReactionTimeVariability = sampleStdDev(rts, mean) / mean
	}
	return v
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func sampleStdDev(xs []float64, mean float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}
