package pipeline

import (
	"fmt"

	"github.com/airsense-io/csi-sense/internal/csi"
	"github.com/airsense-io/csi-sense/internal/presence"
)

// windowBuffer is a fixed-capacity temporal ring of converted samples,
// flattened time-major into float arenas. Only the append path mutates it;
// the ready flag is set exactly when the cursor wraps and cleared when one
// classification pass consumes it, giving one inference per full,
// non-overlapping window.
type windowBuffer struct {
	amplitude []float64 // samples × subcarriers
	phase     []float64 // samples × subcarriers
	rssi      []float64 // one per sample

	samples int
	subs    int
	cursor  int
	ready   bool

	startMS uint32 // timestamp of the first sample in the filling window
	endMS   uint32 // timestamp of the most recent sample
}

func newWindowBuffer(samples, subs int) (*windowBuffer, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("invalid window size: %d samples", samples)
	}
	if subs <= 0 || subs > csi.MaxSubcarriers {
		return nil, fmt.Errorf("invalid subcarrier count: %d (max %d)", subs, csi.MaxSubcarriers)
	}

	return &windowBuffer{
		amplitude: make([]float64, samples*subs),
		phase:     make([]float64, samples*subs),
		rssi:      make([]float64, samples),
		samples:   samples,
		subs:      subs,
	}, nil
}

// append writes the sample at the cursor and advances it, wrapping to 0 and
// arming the ready flag when the window fills. Samples carrying fewer
// subcarriers than the window width leave the remainder zeroed.
func (w *windowBuffer) append(s csi.Sample) {
	if w.cursor == 0 {
		w.startMS = s.TimestampMS
	}

	n := int(s.Count)
	if n > w.subs {
		n = w.subs
	}

	base := w.cursor * w.subs
	for i := 0; i < w.subs; i++ {
		if i < n {
			w.amplitude[base+i] = s.Amplitude[i]
			w.phase[base+i] = s.Phase[i]
		} else {
			w.amplitude[base+i] = 0
			w.phase[base+i] = 0
		}
	}
	w.rssi[w.cursor] = float64(s.RSSI)
	w.endMS = s.TimestampMS

	w.cursor++
	if w.cursor == w.samples {
		w.cursor = 0
		w.ready = true
	}
}

// takeReady consumes the one-shot ready flag. It reports true at most once
// per full window.
func (w *windowBuffer) takeReady() bool {
	if !w.ready {
		return false
	}
	w.ready = false
	return true
}

// view exposes the arenas to the feature extractor. The returned slices alias
// the buffer and are only valid until the next append.
func (w *windowBuffer) view() presence.Window {
	return presence.Window{
		Amplitude:   w.amplitude,
		Phase:       w.phase,
		RSSI:        w.rssi,
		Samples:     w.samples,
		Subcarriers: w.subs,
	}
}
