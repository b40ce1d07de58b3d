package storage

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/airsense-io/csi-sense/internal/csi"
	"github.com/airsense-io/csi-sense/internal/presence"
)

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()

	s := NewSqliteStore(filepath.Join(t.TempDir(), "capture.db"))
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return s
}

func makeSample(ts uint32, rssi int8, count uint8) csi.Sample {
	s := csi.Sample{TimestampMS: ts, RSSI: rssi, Count: count}
	for i := 0; i < int(count); i++ {
		s.Amplitude[i] = float64(i) + 0.5
		s.Phase[i] = float64(i) * 0.1
	}
	return s
}

func TestSessionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateSession(ctx, "walking", "esp32", "AA:BB:CC:DD:EE:FF", map[string]int{"sampleRateHz": 100})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if id <= 0 {
		t.Fatalf("CreateSession() id = %d, want > 0", id)
	}

	sess, err := s.Session(ctx, id)
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if sess.Label != "walking" {
		t.Errorf("Label = %q, want %q", sess.Label, "walking")
	}
	if sess.DeviceType != "esp32" || sess.DeviceID != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("unexpected device fields: %+v", sess)
	}
	if sess.Config == nil || *sess.Config != `{"sampleRateHz":100}` {
		t.Errorf("unexpected config: %v", sess.Config)
	}

	if _, err = s.CreateSession(ctx, "", "esp32", "11:22:33:44:55:66", nil); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	sessions, err := s.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions() error = %v", err)
	}
	if len(sessions) != 2 {
		t.Errorf("sessions = %d, want 2", len(sessions))
	}
}

func TestSamplesRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateSession(ctx, "empty-room", "esp32", "dev-1", nil)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	in := []csi.Sample{
		makeSample(100, -45, 52),
		makeSample(110, -46, 52),
		makeSample(120, -44, 8),
	}
	if err = s.StoreSamples(ctx, id, in); err != nil {
		t.Fatalf("StoreSamples() error = %v", err)
	}

	r, err := s.ReadSamples(ctx, id)
	if err != nil {
		t.Fatalf("ReadSamples() error = %v", err)
	}
	defer r.Close()

	if r.Session().Label != "empty-room" {
		t.Errorf("session label = %q, want %q", r.Session().Label, "empty-room")
	}

	var out []csi.Sample
	for r.Next(ctx) {
		out = append(out, r.Current())
	}
	if err = r.Error(); err != nil {
		t.Fatalf("Error() = %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("samples read = %d, want %d", len(out), len(in))
	}

	for i := range in {
		if out[i].TimestampMS != in[i].TimestampMS || out[i].RSSI != in[i].RSSI || out[i].Count != in[i].Count {
			t.Errorf("sample %d metadata = %d/%d/%d, want %d/%d/%d",
				i, out[i].TimestampMS, out[i].RSSI, out[i].Count,
				in[i].TimestampMS, in[i].RSSI, in[i].Count)
		}
		for j := 0; j < int(in[i].Count); j++ {
			if math.Abs(out[i].Amplitude[j]-in[i].Amplitude[j]) > 1e-9 {
				t.Fatalf("sample %d amplitude[%d] = %v, want %v", i, j, out[i].Amplitude[j], in[i].Amplitude[j])
			}
			if math.Abs(out[i].Phase[j]-in[i].Phase[j]) > 1e-9 {
				t.Fatalf("sample %d phase[%d] = %v, want %v", i, j, out[i].Phase[j], in[i].Phase[j])
			}
		}
	}
}

func TestReadSamplesTimeRange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateSession(ctx, "", "esp32", "dev-1", nil)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	var in []csi.Sample
	for ts := uint32(100); ts <= 200; ts += 10 {
		in = append(in, makeSample(ts, -45, 4))
	}
	if err = s.StoreSamples(ctx, id, in); err != nil {
		t.Fatalf("StoreSamples() error = %v", err)
	}

	r, err := s.ReadSamples(ctx, id, WithTimeRangeMS(120, 150))
	if err != nil {
		t.Fatalf("ReadSamples() error = %v", err)
	}
	defer r.Close()

	var got []uint32
	for r.Next(ctx) {
		got = append(got, r.Current().TimestampMS)
	}
	if err = r.Error(); err != nil {
		t.Fatalf("Error() = %v", err)
	}

	want := []uint32{120, 130, 140, 150}
	if len(got) != len(want) {
		t.Fatalf("timestamps = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("timestamps = %v, want %v", got, want)
			break
		}
	}
}

func TestReadSamplesMissingSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Schema is created lazily by the write connection.
	if _, err := s.CreateSession(ctx, "", "esp32", "dev-1", nil); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if _, err := s.ReadSamples(ctx, 9999); !errors.Is(err, ErrNoData) {
		t.Errorf("ReadSamples() error = %v, want ErrNoData", err)
	}
}

func TestStoreResult(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateSession(ctx, "walking", "esp32", "dev-1", nil)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	res := presence.Result{
		Presence:      true,
		Class:         presence.ClassMoving,
		Confidence:    0.6,
		MotionLevel:   0.8,
		AmplitudeMean: 12.5,
		AmplitudeStd:  3.1,
		PhaseVariance: 0.4,
		AvgRSSI:       -45.5,
		TimestampMS:   5000,
		DurationMS:    500,
	}
	if err = s.StoreResult(ctx, id, res); err != nil {
		t.Fatalf("StoreResult() error = %v", err)
	}
}
