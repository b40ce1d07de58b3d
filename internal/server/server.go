// Package server exposes the sensing pipeline over HTTP: a small JSON API
// for the latest sample, the latest classification and pipeline statistics,
// plus a websocket stream of live data and an embedded dashboard page.
package server

import (
	_ "embed"
	"io"
	"log/slog"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/airsense-io/csi-sense/internal/csi"
	"github.com/airsense-io/csi-sense/internal/pipeline"
	"github.com/airsense-io/csi-sense/internal/presence"
	"github.com/airsense-io/csi-sense/internal/telemetry"
)

//go:embed index.html
var indexHTML []byte

// Sensor is the part of the pipeline the API exposes.
type Sensor interface {
	LatestSample() (csi.Sample, error)
	LatestResult() (presence.Result, error)
	Stats() pipeline.Stats
}

// Server is the HTTP front-end for a running sensor.
type Server struct {
	app    *fiber.App
	sensor Sensor
	logger *slog.Logger

	stream *hub

	// Broadcast callbacks run on the producer path; encoding happens on the
	// server's own goroutine, fed through these bounded queues.
	samples chan csi.Sample
	results chan presence.Result

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option is a functional option for configuring Server.
type Option func(*Server)

// WithLogger sets the logger. Defaults to a discard logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a server for the given sensor.
func New(sensor Sensor, opts ...Option) *Server {
	s := &Server{
		sensor:  sensor,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
		stream:  newHub(),
		samples: make(chan csi.Sample, 64),
		results: make(chan presence.Result, 16),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	app := fiber.New(fiber.Config{
		AppName:               "csi-sense",
		DisableStartupMessage: true,
	})

	app.Use(cors.New())

	app.Get("/", s.handleIndex)

	api := app.Group("/api")
	api.Get("/csi", s.handleLatestSample)
	api.Get("/presence", s.handleLatestResult)
	api.Get("/stats", s.handleStats)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(s.handleStream))

	s.app = app
	return s
}

// Listen serves on the given address until Shutdown is called. It blocks.
func (s *Server) Listen(addr string) error {
	go s.stream.run()
	s.wg.Add(1)
	go s.encodeLoop()

	s.logger.Info("http server listening", slog.String("addr", addr))
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
	s.stream.stop()
	return s.app.Shutdown()
}

// BroadcastSample queues a sample for the websocket stream. Intended to be
// registered as a pipeline sample callback: it never blocks and never
// allocates, and a full queue silently drops the sample.
func (s *Server) BroadcastSample(sample csi.Sample) {
	select {
	case s.samples <- sample:
	default:
	}
}

// BroadcastResult queues a classification result for the websocket stream,
// under the same contract as BroadcastSample.
func (s *Server) BroadcastResult(result presence.Result) {
	select {
	case s.results <- result:
	default:
	}
}

// encodeLoop drains the broadcast queues, encoding at its own pace so the
// producer path stays free of the allocations encoding costs.
func (s *Server) encodeLoop() {
	defer s.wg.Done()

	for {
		select {
		case sample := <-s.samples:
			line := telemetry.AppendSample(nil, sample)
			s.stream.publish(line[:len(line)-1]) // Strip trailing newline

		case result := <-s.results:
			msg, err := encodeResultEvent(result)
			if err != nil {
				continue
			}
			s.stream.publish(msg)

		case <-s.done:
			return
		}
	}
}

func (s *Server) handleStream(c *websocket.Conn) {
	newClient(s.stream, c).serve()
}
