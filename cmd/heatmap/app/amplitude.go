package app

import "math"

const (
	defaultMinAmplitude = 0.0
	defaultMaxAmplitude = 60.0

	// For 20 samples:
	// - 5% percentile  = 1 sample
	// - 95% percentile = 19th sample
	minimumSampleCount = 20
)

// AmplitudeBounds represents the calculated amplitude boundaries used to
// normalize heatmap colors.
type AmplitudeBounds struct {
	Min  float64 // 5th percentile amplitude
	Max  float64 // 95th percentile amplitude
	Mean float64 // Mean amplitude
}

func defaultAmplitudeBounds() AmplitudeBounds {
	return AmplitudeBounds{
		Min:  defaultMinAmplitude,
		Max:  defaultMaxAmplitude,
		Mean: (defaultMinAmplitude + defaultMaxAmplitude) / 2,
	}
}

// AmplitudeHistogram maintains a histogram of amplitude values with unit
// bins. Amplitudes of signed byte I/Q pairs never exceed sqrt(2)*128, so the
// bin count stays small.
type AmplitudeHistogram struct {
	bins       map[int]uint32
	totalCount uint64
	minBin     int
	maxBin     int
}

// NewAmplitudeHistogram creates a new histogram
func NewAmplitudeHistogram() *AmplitudeHistogram {
	return &AmplitudeHistogram{
		bins:   make(map[int]uint32),
		minBin: math.MaxInt32,
		maxBin: math.MinInt32,
	}
}

// Update adds a new amplitude reading to the histogram
func (h *AmplitudeHistogram) Update(amplitude float64) {
	bin := int(math.Floor(amplitude))

	if h.bins[bin] == math.MaxUint32 || h.totalCount == math.MaxUint64 {
		h.scaleDown()
	}

	h.bins[bin]++
	h.totalCount++

	if bin < h.minBin {
		h.minBin = bin
	}
	if bin > h.maxBin {
		h.maxBin = bin
	}
}

// scaleDown scales all bin counts down by factor of 2
func (h *AmplitudeHistogram) scaleDown() {
	h.minBin = math.MaxInt32
	h.maxBin = math.MinInt32

	for bin := range h.bins {
		h.bins[bin] /= 2
		if h.bins[bin] == 0 {
			delete(h.bins, bin)
			continue
		}

		if bin < h.minBin {
			h.minBin = bin
		}
		if bin > h.maxBin {
			h.maxBin = bin
		}
	}
	h.totalCount /= 2
}

// PercentileBounds returns amplitude bounds based on the 5th and 95th
// percentiles, widened to a minimum range so flat captures still render with
// visible contrast.
func (h *AmplitudeHistogram) PercentileBounds() AmplitudeBounds {
	if h.totalCount < minimumSampleCount {
		return defaultAmplitudeBounds()
	}

	target := h.totalCount * 5 / 100

	var count uint64
	var min5th, max95th int

	for bin := h.minBin; bin <= h.maxBin; bin++ {
		count += uint64(h.bins[bin])
		if count >= target {
			min5th = bin
			break
		}
	}

	count = 0
	for bin := h.maxBin; bin >= h.minBin; bin-- {
		count += uint64(h.bins[bin])
		if count >= target {
			max95th = bin
			break
		}
	}

	var sumProduct float64
	for bin := h.minBin; bin <= h.maxBin; bin++ {
		sumProduct += float64(bin) * float64(h.bins[bin])
	}
	mean := sumProduct / float64(h.totalCount)

	if max95th-min5th < 10 {
		center := (max95th + min5th) / 2
		min5th = center - 5
		max95th = center + 5
	}

	margin := (max95th - min5th) / 10
	minAmp := math.Max(0, float64(min5th-margin))
	maxAmp := float64(max95th + margin)

	return AmplitudeBounds{
		Min:  minAmp,
		Max:  maxAmp,
		Mean: mean,
	}
}
