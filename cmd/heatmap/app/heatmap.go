package app

import (
	"github.com/airsense-io/csi-sense/internal/csi"
)

// HeatmapData accumulates a session's samples into the row-per-sample,
// column-per-subcarrier grid the renderer draws. Amplitude bounds are
// tracked while samples stream in so the color scale adapts to the capture.
type HeatmapData struct {
	Width, Height        int
	TimestampStartMS     uint32
	TimestampEndMS       uint32
	BoundsTracker        *AmplitudeHistogram
	ManualMin, ManualMax *float64
	Rows                 [][]float64
}

func NewHeatmapData(manualMin, manualMax *float64) *HeatmapData {
	return &HeatmapData{
		BoundsTracker: NewAmplitudeHistogram(),
		ManualMin:     manualMin,
		ManualMax:     manualMax,
	}
}

func (h *HeatmapData) Update(s csi.Sample) {
	n := int(s.Count)
	if n > h.Width {
		h.Width = n
	}

	if h.Height == 0 || s.TimestampMS < h.TimestampStartMS {
		h.TimestampStartMS = s.TimestampMS
	}
	if s.TimestampMS > h.TimestampEndMS {
		h.TimestampEndMS = s.TimestampMS
	}
	h.Height++

	row := make([]float64, n)
	copy(row, s.Amplitude[:n])
	for _, a := range row {
		h.BoundsTracker.Update(a)
	}
	h.Rows = append(h.Rows, row)
}

// Bounds returns the color normalization bounds, preferring manual overrides
// over the tracked percentiles.
func (h *HeatmapData) Bounds() AmplitudeBounds {
	bounds := h.BoundsTracker.PercentileBounds()
	if h.ManualMin != nil {
		bounds.Min = *h.ManualMin
	}
	if h.ManualMax != nil {
		bounds.Max = *h.ManualMax
	}
	return bounds
}

// DurationMS returns the capture length on the sensor clock.
func (h *HeatmapData) DurationMS() uint32 {
	if h.Height == 0 {
		return 0
	}
	return h.TimestampEndMS - h.TimestampStartMS
}
