package app

import (
	"testing"
	"time"

	"github.com/airsense-io/csi-sense/internal/csi"
	"github.com/airsense-io/csi-sense/internal/storage"
)

func makeSample(ts uint32, count uint8, amplitude float64) csi.Sample {
	s := csi.Sample{TimestampMS: ts, RSSI: -45, Count: count}
	for i := 0; i < int(count); i++ {
		s.Amplitude[i] = amplitude
	}
	return s
}

func TestHeatmapDataUpdate(t *testing.T) {
	data := NewHeatmapData(nil, nil)

	data.Update(makeSample(100, 52, 20))
	data.Update(makeSample(110, 52, 25))
	data.Update(makeSample(120, 8, 30))

	if data.Width != 52 {
		t.Errorf("Width = %d, want 52", data.Width)
	}
	if data.Height != 3 {
		t.Errorf("Height = %d, want 3", data.Height)
	}
	if data.TimestampStartMS != 100 || data.TimestampEndMS != 120 {
		t.Errorf("time range = %d-%d, want 100-120", data.TimestampStartMS, data.TimestampEndMS)
	}
	if data.DurationMS() != 20 {
		t.Errorf("DurationMS() = %d, want 20", data.DurationMS())
	}
	if len(data.Rows[2]) != 8 {
		t.Errorf("short row length = %d, want 8", len(data.Rows[2]))
	}
}

func TestHeatmapDataManualBounds(t *testing.T) {
	minAmp, maxAmp := 5.0, 40.0
	data := NewHeatmapData(&minAmp, &maxAmp)
	for i := 0; i < 10; i++ {
		data.Update(makeSample(uint32(i*10), 52, 100))
	}

	bounds := data.Bounds()
	if bounds.Min != 5.0 || bounds.Max != 40.0 {
		t.Errorf("bounds = %v-%v, want 5-40", bounds.Min, bounds.Max)
	}
}

func TestAmplitudeHistogramDefaults(t *testing.T) {
	h := NewAmplitudeHistogram()
	for i := 0; i < minimumSampleCount-1; i++ {
		h.Update(100)
	}

	bounds := h.PercentileBounds()
	if bounds.Min != defaultMinAmplitude || bounds.Max != defaultMaxAmplitude {
		t.Errorf("bounds below minimum count = %+v, want defaults", bounds)
	}
}

func TestAmplitudeHistogramPercentiles(t *testing.T) {
	h := NewAmplitudeHistogram()
	// 100 values spread uniformly across 0..99.
	for i := 0; i < 100; i++ {
		h.Update(float64(i))
	}

	bounds := h.PercentileBounds()
	if bounds.Min < 0 || bounds.Min > 10 {
		t.Errorf("Min = %v, want near the 5th percentile", bounds.Min)
	}
	if bounds.Max < 90 || bounds.Max > 110 {
		t.Errorf("Max = %v, want near the 95th percentile", bounds.Max)
	}
	if bounds.Mean < 45 || bounds.Mean > 55 {
		t.Errorf("Mean = %v, want near 50", bounds.Mean)
	}
}

func TestColorMapperClamping(t *testing.T) {
	cm := NewColorMapper(ThermalTheme, AmplitudeBounds{Min: 10, Max: 50})

	lo := cm.Color(-100)
	if lo != cm.Color(10) {
		t.Error("below-range amplitude should clamp to the minimum color")
	}
	hi := cm.Color(1000)
	if hi != cm.Color(50) {
		t.Error("above-range amplitude should clamp to the maximum color")
	}
	if lo == hi {
		t.Error("minimum and maximum colors should differ")
	}
}

func TestColorMapperFlatBounds(t *testing.T) {
	// A manual override with min == max has no range of its own; the mapper
	// widens it instead of dividing by zero.
	cm := NewColorMapper(ClassicTheme, AmplitudeBounds{Min: 20, Max: 20})

	lo := cm.Color(0)
	hi := cm.Color(100)
	if lo == hi {
		t.Error("flat bounds should still span a color range")
	}
	if got := cm.Color(20); got == lo || got == hi {
		t.Errorf("center amplitude mapped to an extreme: %+v", got)
	}
}

func TestRenderImageSize(t *testing.T) {
	data := NewHeatmapData(nil, nil)
	for i := 0; i < 50; i++ {
		data.Update(makeSample(uint32(i*10), 52, float64(10+i)))
	}

	renderer := NewHeatmapRenderer(RenderConfig{ColorTheme: GrayscaleTheme, CellWidth: 4})
	img, err := renderer.Render(data, &storage.Session{
		StartTime:  time.Now(),
		Label:      "walking",
		DeviceType: "esp32",
		DeviceID:   "dev-1",
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	wantWidth := 52*4 + defaultLeftBorder + defaultRightBorder
	wantHeight := 50 + defaultTopBorder + defaultBottomBorder
	bounds := img.Bounds()
	if bounds.Dx() != wantWidth || bounds.Dy() != wantHeight {
		t.Errorf("image size = %dx%d, want %dx%d", bounds.Dx(), bounds.Dy(), wantWidth, wantHeight)
	}
}

func TestNiceSubcarrierStep(t *testing.T) {
	tests := []struct {
		width int
		want  int
	}{
		{width: 8, want: 1},
		{width: 26, want: 2},
		{width: 52, want: 4},
		{width: 64, want: 8},
	}

	for _, tt := range tests {
		if got := niceSubcarrierStep(tt.width); got != tt.want {
			t.Errorf("niceSubcarrierStep(%d) = %d, want %d", tt.width, got, tt.want)
		}
	}
}
