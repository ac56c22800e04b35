package risk

import (
	"math"
)

// Defaults for spreading cluster risk across bearings
const (
	DefaultSigma      = 0.4
	DefaultGaussGamma = 0.1
	DefaultEpsilon    = 1e-4
)

// Spreader turns per-cluster probabilities into a per-bearing SafetyField
type Spreader struct {
	Sigma float64
	Gamma float64
}

// NewSpreader returns a spreader with the default falloff
func NewSpreader() Spreader {
	return Spreader{Sigma: DefaultSigma, Gamma: DefaultGaussGamma}
}

// normalization is the Gaussian peak factor K = 1/sqrt(2πσ). It cancels in
// the footprint and is kept so the falloff reads as the usual density.
func (s Spreader) normalization() float64 {
	return 1 / math.Sqrt(2*math.Pi*s.Sigma)
}

// Footprint returns the safety value cluster risk r casts on bearing i:
//
//	1 - K·exp(-(γ·(i-dir))² / 2σ)·(1/K)·(1-p)
//
// The bearing distance is linear in the index; the seam is handled by
// CorrectWraparound.
func (s Spreader) Footprint(i, dir int, p float64) float64 {
	k := s.normalization()
	x := s.Gamma * float64(i-dir)
	return 1 - k*math.Exp(-x*x/(2*s.Sigma))*(1/k)*(1-p)
}

// Spread builds a field of n bearings where each bearing takes the least safe
// footprint over all risks. With no risks every bearing is 1.0.
func (s Spreader) Spread(n int, risks []ClusterRisk) SafetyField {
	field := NewSafeField(n)
	for i := range field {
		for _, r := range risks {
			if v := s.Footprint(i, r.Cluster.Direction(), r.Probability); v < field[i] {
				field[i] = v
			}
		}
	}
	return field
}

// CorrectWraparound mirrors the unsafe span found at one edge of the field
// onto the opposite edge, so an obstacle near bearing 0 or N-1 casts risk on
// both logical ends of the circular array. It modifies field in place and
// reports whether anything was corrected.
//
// When both edges are within eps of 1.0 nothing changes. Otherwise the scan
// starts at the unsafe edge (index 0 first), tracking the minimum and stopping
// at the first safe bearing; each bearing between the minimum and that point
// is reflected about the minimum, and reflections that fall outside the array
// are written at the wrapped index on the far side.
func CorrectWraparound(field SafetyField, eps float64) bool {
	n := len(field)
	if n == 0 {
		return false
	}
	last := n - 1
	if field.IsSafe(0, eps) && field.IsSafe(last, eps) {
		return false
	}

	changed := false
	if !field.IsSafe(0, eps) {
		minIdx, safeIdx := 0, 0
		for i := 0; i < n; i++ {
			if field[i] < field[minIdx] {
				minIdx = i
			}
			if field.IsSafe(i, eps) {
				safeIdx = i
				break
			}
		}
		for i := minIdx + 1; i <= safeIdx; i++ {
			if mirror := 2*minIdx - i; mirror < 0 {
				field[wrapIndex(mirror, n)] = field[i]
				changed = true
			}
		}
		return changed
	}

	minIdx, safeIdx := last, last
	for i := last; i >= 0; i-- {
		if field[i] < field[minIdx] {
			minIdx = i
		}
		if field.IsSafe(i, eps) {
			safeIdx = i
			break
		}
	}
	for i := minIdx - 1; i >= safeIdx; i-- {
		if mirror := 2*minIdx - i; mirror > last {
			field[wrapIndex(mirror, n)] = field[i]
			changed = true
		}
	}
	return changed
}

// wrapIndex maps any integer onto [0, n)
func wrapIndex(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}
