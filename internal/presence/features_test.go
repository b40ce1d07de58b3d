package presence

import (
	"math"
	"testing"
)

func makeWindow(samples, subs int) Window {
	return Window{
		Amplitude:   make([]float64, samples*subs),
		Phase:       make([]float64, samples*subs),
		RSSI:        make([]float64, samples),
		Samples:     samples,
		Subcarriers: subs,
	}
}

func TestWrapPhase(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"no wrap", 1.0, 1.0},
		{"no wrap negative", -1.0, -1.0},
		{"wrap down", math.Pi + 0.5, -math.Pi + 0.5},
		{"wrap up", -math.Pi - 0.5, math.Pi - 0.5},
		{"exactly pi", math.Pi, math.Pi},
		{"exactly minus pi", -math.Pi, -math.Pi},
		{"near two pi", 2*math.Pi - 0.1, -0.1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := WrapPhase(tc.in); math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("WrapPhase(%f) = %f, want %f", tc.in, got, tc.want)
			}
		})
	}
}

func TestWrapPhase_AlwaysInRange(t *testing.T) {
	// Any difference of two phases in (-π, π] must wrap into [-π, π].
	for a := -math.Pi + 0.01; a <= math.Pi; a += 0.37 {
		for b := -math.Pi + 0.01; b <= math.Pi; b += 0.37 {
			d := WrapPhase(a - b)
			if d < -math.Pi-1e-9 || d > math.Pi+1e-9 {
				t.Fatalf("WrapPhase(%f - %f) = %f outside [-π, π]", a, b, d)
			}
		}
	}
}

func TestExtract_AmplitudeStats(t *testing.T) {
	w := makeWindow(4, 2)
	// Flattened set {1, 3, 1, 3, 1, 3, 1, 3}: mean 2.
	for i := range w.Amplitude {
		if i%2 == 0 {
			w.Amplitude[i] = 1
		} else {
			w.Amplitude[i] = 3
		}
	}
	for i := range w.RSSI {
		w.RSSI[i] = -50
	}

	f := Extract(w, DefaultFeatureFlags())
	if math.Abs(f.AmplitudeMean-2) > 1e-9 {
		t.Errorf("amplitude mean = %f, want 2", f.AmplitudeMean)
	}
	if f.AmplitudeStd <= 0 {
		t.Errorf("amplitude std = %f, want > 0", f.AmplitudeStd)
	}
	if math.Abs(f.AvgRSSI+50) > 1e-9 {
		t.Errorf("avg rssi = %f, want -50", f.AvgRSSI)
	}
}

func TestExtract_StaticPhaseHasZeroVariance(t *testing.T) {
	w := makeWindow(50, 8)
	for i := range w.Phase {
		w.Phase[i] = 1.3
	}

	f := Extract(w, DefaultFeatureFlags())
	if f.PhaseVariance != 0 {
		t.Errorf("phase variance of static phase = %f, want 0", f.PhaseVariance)
	}
}

func TestExtract_PhaseWrapAroundIsSmallChange(t *testing.T) {
	// Phase alternating between just under +π and just above -π is a tiny
	// physical oscillation. Without wrapping it would look like ±2π jumps.
	w := makeWindow(50, 4)
	for ti := 0; ti < 50; ti++ {
		for s := 0; s < 4; s++ {
			if ti%2 == 0 {
				w.Phase[ti*4+s] = math.Pi - 0.01
			} else {
				w.Phase[ti*4+s] = -math.Pi + 0.01
			}
		}
	}

	f := Extract(w, DefaultFeatureFlags())
	if f.PhaseVariance > 0.1 {
		t.Errorf("phase variance across wrap boundary = %f, want < 0.1", f.PhaseVariance)
	}
}

func TestExtract_AlternatingPhaseVariance(t *testing.T) {
	// Alternating 0, d phases give wrapped differences of ±d, whose deviation
	// is close to d for a long window.
	const d = 0.6
	w := makeWindow(50, 4)
	for ti := 0; ti < 50; ti++ {
		for s := 0; s < 4; s++ {
			if ti%2 == 1 {
				w.Phase[ti*4+s] = d
			}
		}
	}

	f := Extract(w, DefaultFeatureFlags())
	if math.Abs(f.PhaseVariance-d) > 0.05 {
		t.Errorf("phase variance = %f, want ≈ %f", f.PhaseVariance, d)
	}
}

func TestExtract_DisabledFamiliesReadZero(t *testing.T) {
	w := makeWindow(50, 4)
	for i := range w.Amplitude {
		w.Amplitude[i] = float64(i % 7)
		w.Phase[i] = float64(i%5) * 0.3
	}
	for i := range w.RSSI {
		w.RSSI[i] = -42
	}

	tests := []struct {
		name  string
		flags FeatureFlags
	}{
		{"no amplitude", FeatureFlags{Phase: true}},
		{"no phase", FeatureFlags{Amplitude: true}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := Extract(w, tc.flags)

			if !tc.flags.Amplitude && (f.AmplitudeMean != 0 || f.AmplitudeStd != 0) {
				t.Errorf("disabled amplitude produced mean=%f std=%f", f.AmplitudeMean, f.AmplitudeStd)
			}
			if tc.flags.Amplitude && f.AmplitudeStd == 0 {
				t.Error("enabled amplitude produced zero deviation")
			}
			if !tc.flags.Phase && f.PhaseVariance != 0 {
				t.Errorf("disabled phase produced variance %f", f.PhaseVariance)
			}
			if tc.flags.Phase && f.PhaseVariance == 0 {
				t.Error("enabled phase produced zero variance")
			}
			if math.Abs(f.AvgRSSI+42) > 1e-9 {
				t.Errorf("avg rssi = %f, want -42", f.AvgRSSI)
			}
		})
	}
}

func TestExtract_EmptyWindow(t *testing.T) {
	f := Extract(Window{}, DefaultFeatureFlags())
	if f != (Features{}) {
		t.Errorf("empty window features = %+v, want zero", f)
	}
}
