package server

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/airsense-io/csi-sense/internal/csi"
	"github.com/airsense-io/csi-sense/internal/pipeline"
	"github.com/airsense-io/csi-sense/internal/presence"
)

// sampleView is the API shape of a sample, with the per-subcarrier vectors
// trimmed to the subcarrier count. Field names match the NDJSON stream.
type sampleView struct {
	TimestampMS uint32    `json:"ts"`
	RSSI        int8      `json:"rssi"`
	Num         uint8     `json:"num"`
	Amplitude   []float64 `json:"amp"`
	Phase       []float64 `json:"phase"`
}

func toSampleView(s csi.Sample) sampleView {
	n := int(s.Count)
	return sampleView{
		TimestampMS: s.TimestampMS,
		RSSI:        s.RSSI,
		Num:         s.Count,
		Amplitude:   s.Amplitude[:n:n],
		Phase:       s.Phase[:n:n],
	}
}

// resultEvent tags a classification result for the websocket stream, where
// it is interleaved with raw sample lines.
type resultEvent struct {
	Event string `json:"event"`
	presence.Result
}

func encodeResultEvent(r presence.Result) ([]byte, error) {
	return json.Marshal(resultEvent{Event: "presence", Result: r})
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(indexHTML)
}

func (s *Server) handleLatestSample(c *fiber.Ctx) error {
	sample, err := s.sensor.LatestSample()
	if err != nil {
		return sensorError(c, err)
	}
	return c.JSON(toSampleView(sample))
}

func (s *Server) handleLatestResult(c *fiber.Ctx) error {
	result, err := s.sensor.LatestResult()
	if err != nil {
		return sensorError(c, err)
	}
	return c.JSON(result)
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(s.sensor.Stats())
}

// sensorError maps pipeline cache errors onto HTTP statuses: no data yet is
// a 404, a timed out read of a busy cache is a 503.
func sensorError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, pipeline.ErrNotReady):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no data available yet",
		})
	case errors.Is(err, pipeline.ErrTimeout):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "sensor busy, retry",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}
