// Package presence derives a human-presence classification from temporal
// windows of converted channel samples. Detection is rule-based: a body in
// the signal path raises amplitude dispersion, and movement destabilizes
// per-subcarrier phase over time.
package presence

// Class is the coarse activity taxonomy. Only ClassEmpty, ClassPresent and
// ClassMoving are produced by the rule-based procedure; the finer classes
// are placeholders for a learned model and are never emitted.
type Class uint8

const (
	ClassEmpty Class = iota
	ClassPresent
	ClassMoving
	ClassWalking
	ClassSitting
	ClassStanding
	ClassUnknown
)

var classNames = map[Class]string{
	ClassEmpty:    "empty",
	ClassPresent:  "present",
	ClassMoving:   "moving",
	ClassWalking:  "walking",
	ClassSitting:  "sitting",
	ClassStanding: "standing",
	ClassUnknown:  "unknown",
}

func (c Class) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return "unknown"
}

// MarshalText makes Class render as its name in JSON payloads.
func (c Class) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Thresholds are the tunable constants of the decision procedure.
type Thresholds struct {
	// EmptyAmplitudeStd is the amplitude standard deviation below which the
	// room is considered empty.
	EmptyAmplitudeStd float64

	// MovingPhaseVariance is the phase variance at which motion level
	// saturates at 1.0.
	MovingPhaseVariance float64

	// MotionLevel separates a static person from a moving one.
	MotionLevel float64
}

// DefaultThresholds returns the empirically tuned defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		EmptyAmplitudeStd:   2.0,
		MovingPhaseVariance: 0.5,
		MotionLevel:         0.3,
	}
}

// Result is one classification of one full window.
type Result struct {
	Presence    bool    `json:"presence"`
	Class       Class   `json:"class"`
	Confidence  float64 `json:"confidence"`
	MotionLevel float64 `json:"motionLevel"`

	AmplitudeMean float64 `json:"amplitudeMean"`
	AmplitudeStd  float64 `json:"amplitudeStd"`
	PhaseVariance float64 `json:"phaseVariance"`
	AvgRSSI       float64 `json:"avgRSSI"`

	TimestampMS uint32 `json:"timestampMs"`
	DurationMS  uint32 `json:"durationMs"`
}

// Classify applies the rule-based decision procedure to the window features.
// It is deterministic: identical features always yield the identical result.
// Timestamps are left for the caller to fill in.
func Classify(f Features, th Thresholds) Result {
	r := Result{
		AmplitudeMean: f.AmplitudeMean,
		AmplitudeStd:  f.AmplitudeStd,
		PhaseVariance: f.PhaseVariance,
		AvgRSSI:       f.AvgRSSI,
	}

	if f.AmplitudeStd < th.EmptyAmplitudeStd {
		r.Presence = false
		r.Class = ClassEmpty
		r.Confidence = 0.9
		r.MotionLevel = 0
		return r
	}

	r.Presence = true
	r.MotionLevel = clamp(f.PhaseVariance/th.MovingPhaseVariance, 0, 1)

	if r.MotionLevel < th.MotionLevel {
		r.Class = ClassPresent
		r.Confidence = 0.7
	} else {
		r.Class = ClassMoving
		r.Confidence = 0.6
	}
	return r
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
