package domain

import (
	"math"
	"time"
)

// CorrectedPosition extrapolates the stored position to now. Paused states
// need no correction; negative elapsed time (a backwards clock jump) is
// clamped to zero.
func CorrectedPosition(s PlaybackState, now time.Time) float64 {
	if !s.IsPlaying {
		return s.PositionSeconds
	}

	elapsed := now.Sub(s.UpdatedAt)
	if elapsed < 0 {
		elapsed = 0
	}

	return s.PositionSeconds + elapsed.Seconds()
}

// LatencyEstimateMs halves the round-trip time of a probe sent at
// clientSentAt (epoch milliseconds). This assumes a symmetric network path
// and is a best-effort heuristic, not an NTP exchange.
func LatencyEstimateMs(now time.Time, clientSentAtMs int64) int {
	rtt := now.UnixMilli() - clientSentAtMs
	if rtt < 0 {
		return 0
	}

	return int(math.Round(float64(rtt) / 2))
}
