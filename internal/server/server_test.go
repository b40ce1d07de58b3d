package server

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/airsense-io/csi-sense/internal/csi"
	"github.com/airsense-io/csi-sense/internal/pipeline"
	"github.com/airsense-io/csi-sense/internal/presence"
)

type stubSensor struct {
	sample    csi.Sample
	sampleErr error
	result    presence.Result
	resultErr error
	stats     pipeline.Stats
}

func (s *stubSensor) LatestSample() (csi.Sample, error) {
	return s.sample, s.sampleErr
}

func (s *stubSensor) LatestResult() (presence.Result, error) {
	return s.result, s.resultErr
}

func (s *stubSensor) Stats() pipeline.Stats {
	return s.stats
}

func testRequest(t *testing.T, srv *Server, path string) (int, []byte) {
	t.Helper()

	resp, err := srv.app.Test(httptest.NewRequest(fiber.MethodGet, path, nil))
	if err != nil {
		t.Fatalf("Test(%s) error = %v", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return resp.StatusCode, body
}

func TestLatestSample(t *testing.T) {
	sample := csi.Sample{TimestampMS: 1234, RSSI: -45, Count: 2}
	sample.Amplitude[0], sample.Amplitude[1] = 50, 130
	sample.Phase[0], sample.Phase[1] = 0.5, -0.5

	srv := New(&stubSensor{sample: sample})

	status, body := testRequest(t, srv, "/api/csi")
	if status != fiber.StatusOK {
		t.Fatalf("status = %d, want %d", status, fiber.StatusOK)
	}

	var view struct {
		TS    uint32    `json:"ts"`
		RSSI  int8      `json:"rssi"`
		Num   uint8     `json:"num"`
		Amp   []float64 `json:"amp"`
		Phase []float64 `json:"phase"`
	}
	if err := json.Unmarshal(body, &view); err != nil {
		t.Fatalf("unmarshaling body: %v", err)
	}
	if view.TS != 1234 || view.RSSI != -45 || view.Num != 2 {
		t.Errorf("unexpected metadata: %+v", view)
	}
	if len(view.Amp) != 2 || len(view.Phase) != 2 {
		t.Errorf("vectors not trimmed to count: %d amp, %d phase", len(view.Amp), len(view.Phase))
	}
}

func TestLatestSampleErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "not ready", err: pipeline.ErrNotReady, status: fiber.StatusNotFound},
		{name: "timeout", err: pipeline.ErrTimeout, status: fiber.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New(&stubSensor{sampleErr: tt.err, resultErr: tt.err})

			for _, path := range []string{"/api/csi", "/api/presence"} {
				if status, _ := testRequest(t, srv, path); status != tt.status {
					t.Errorf("GET %s status = %d, want %d", path, status, tt.status)
				}
			}
		})
	}
}

func TestLatestResult(t *testing.T) {
	srv := New(&stubSensor{result: presence.Result{
		Presence:    true,
		Class:       presence.ClassMoving,
		Confidence:  0.6,
		MotionLevel: 0.85,
	}})

	status, body := testRequest(t, srv, "/api/presence")
	if status != fiber.StatusOK {
		t.Fatalf("status = %d, want %d", status, fiber.StatusOK)
	}

	var result struct {
		Presence bool   `json:"presence"`
		Class    string `json:"class"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("unmarshaling body: %v", err)
	}
	if !result.Presence || result.Class != "moving" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestStats(t *testing.T) {
	srv := New(&stubSensor{stats: pipeline.Stats{Received: 100, Dropped: 3}})

	status, body := testRequest(t, srv, "/api/stats")
	if status != fiber.StatusOK {
		t.Fatalf("status = %d, want %d", status, fiber.StatusOK)
	}

	var stats pipeline.Stats
	if err := json.Unmarshal(body, &stats); err != nil {
		t.Fatalf("unmarshaling body: %v", err)
	}
	if stats.Received != 100 || stats.Dropped != 3 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestIndexPage(t *testing.T) {
	srv := New(&stubSensor{})

	status, body := testRequest(t, srv, "/")
	if status != fiber.StatusOK {
		t.Fatalf("status = %d, want %d", status, fiber.StatusOK)
	}
	if !strings.Contains(string(body), "csi-sense") {
		t.Error("index page missing title")
	}
}

func TestBroadcastDoesNotAllocate(t *testing.T) {
	srv := New(&stubSensor{})

	sample := csi.Sample{TimestampMS: 1, RSSI: -45, Count: 4}
	result := presence.Result{Class: presence.ClassPresent}

	if allocs := testing.AllocsPerRun(100, func() {
		srv.BroadcastSample(sample)
	}); allocs != 0 {
		t.Errorf("BroadcastSample allocated %.1f times per call, want 0", allocs)
	}
	if allocs := testing.AllocsPerRun(100, func() {
		srv.BroadcastResult(result)
	}); allocs != 0 {
		t.Errorf("BroadcastResult allocated %.1f times per call, want 0", allocs)
	}
}

func TestBroadcastReachesStream(t *testing.T) {
	srv := New(&stubSensor{})
	srv.wg.Add(1)
	go srv.encodeLoop()
	defer func() {
		close(srv.done)
		srv.wg.Wait()
	}()

	sample := csi.Sample{TimestampMS: 1234, RSSI: -45, Count: 1}
	sample.Amplitude[0] = 12.5
	srv.BroadcastSample(sample)
	srv.BroadcastResult(presence.Result{Presence: true, Class: presence.ClassMoving})

	for i := 0; i < 2; i++ {
		select {
		case msg := <-srv.stream.broadcast:
			var decoded struct {
				TS    uint32 `json:"ts"`
				Event string `json:"event"`
				Class string `json:"class"`
			}
			if err := json.Unmarshal(msg, &decoded); err != nil {
				t.Fatalf("unmarshaling message %q: %v", msg, err)
			}

			switch decoded.Event {
			case "":
				if decoded.TS != 1234 {
					t.Errorf("sample ts = %d, want 1234", decoded.TS)
				}
			case "presence":
				if decoded.Class != "moving" {
					t.Errorf("result class = %q, want moving", decoded.Class)
				}
			default:
				t.Errorf("unexpected event %q", decoded.Event)
			}

		case <-time.After(time.Second):
			t.Fatal("broadcast message not published")
		}
	}
}

func TestResultEventEncoding(t *testing.T) {
	msg, err := encodeResultEvent(presence.Result{Class: presence.ClassEmpty, Confidence: 0.9})
	if err != nil {
		t.Fatalf("encodeResultEvent() error = %v", err)
	}

	var event struct {
		Event string `json:"event"`
		Class string `json:"class"`
	}
	if err = json.Unmarshal(msg, &event); err != nil {
		t.Fatalf("unmarshaling event: %v", err)
	}
	if event.Event != "presence" || event.Class != "empty" {
		t.Errorf("unexpected event: %+v", event)
	}
}
