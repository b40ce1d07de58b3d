package presence

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Window is one full temporal window of converted samples, flattened
// time-major: the value for sample t, subcarrier s lives at t*Subcarriers+s.
// The slices are borrowed views into the pipeline's arenas and must only be
// read for the duration of the call.
type Window struct {
	Amplitude   []float64
	Phase       []float64
	RSSI        []float64 // One value per sample
	Samples     int
	Subcarriers int
}

// Features are the window-level statistics consumed by Classify.
type Features struct {
	AmplitudeMean float64
	AmplitudeStd  float64
	PhaseVariance float64
	AvgRSSI       float64
}

// FeatureFlags selects which feature families Extract computes. A disabled
// family reads as zero in the extracted Features.
type FeatureFlags struct {
	Amplitude bool
	Phase     bool
}

// DefaultFeatureFlags enables every feature family.
func DefaultFeatureFlags() FeatureFlags {
	return FeatureFlags{Amplitude: true, Phase: true}
}

// Extract computes window statistics for the enabled feature families.
// Amplitude mean and standard deviation run over the flattened
// sample × subcarrier set. Phase variance is temporal: per subcarrier,
// consecutive-sample phase differences are wrapped into [-π, π] before their
// deviation is taken, then the per-subcarrier deviations are averaged. Raw
// phase near +π followed by one near -π is a tiny physical change, not a 2π
// jump, which is why the wrap happens before squaring.
//
// Extract does not allocate; it may run in the restricted producer context.
func Extract(w Window, flags FeatureFlags) Features {
	var f Features

	if w.Samples == 0 || w.Subcarriers == 0 {
		return f
	}

	f.AvgRSSI = stat.Mean(w.RSSI, nil)
	if flags.Amplitude {
		f.AmplitudeMean, f.AmplitudeStd = stat.MeanStdDev(w.Amplitude, nil)
	}
	if flags.Phase {
		f.PhaseVariance = phaseVariance(w.Phase, w.Samples, w.Subcarriers)
	}

	return f
}

// phaseVariance averages, across subcarriers, the standard deviation of the
// wrapped consecutive-sample phase differences. Welford accumulation keeps it
// single-pass and allocation-free.
func phaseVariance(phase []float64, samples, subs int) float64 {
	if samples < 2 {
		return 0
	}

	var total float64
	for s := 0; s < subs; s++ {
		var mean, m2 float64
		var n int

		for t := 1; t < samples; t++ {
			d := WrapPhase(phase[t*subs+s] - phase[(t-1)*subs+s])

			n++
			delta := d - mean
			mean += delta / float64(n)
			m2 += delta * (d - mean)
		}

		if n > 1 {
			total += math.Sqrt(m2 / float64(n-1))
		}
	}

	return total / float64(subs)
}

// WrapPhase folds a phase difference into [-π, π]. Differences of values in
// (-π, π] are at most one wrap away, so the loops run at most twice.
func WrapPhase(d float64) float64 {
	for d > math.Pi {
		d -= 2 * math.Pi
	}
	for d < -math.Pi {
		d += 2 * math.Pi
	}
	return d
}
