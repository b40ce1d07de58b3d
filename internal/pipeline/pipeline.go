// Package pipeline turns raw channel frames into a live telemetry stream and
// a presence classification. It owns every buffer, cache and counter of the
// signal path; nothing is process-global.
//
// Two execution contexts meet here. Ingest is the restricted producer path,
// invoked once per received frame: it never blocks and never allocates, and
// its only failure mode is a bumped drop counter. The drain worker is the one
// place allowed to wait indefinitely; it formats and publishes queued samples
// at its own pace, which is exactly why publishing is kept off the producer
// path. Overload therefore loses the newest frames, never stalls the source.
package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/airsense-io/csi-sense/internal/csi"
	"github.com/airsense-io/csi-sense/internal/presence"
)

const (
	// DefaultQueueSize bounds the streaming hand-off queue.
	DefaultQueueSize = 16

	// consumerWait bounds how long polling readers wait for a contended
	// cache slot before reporting ErrTimeout.
	consumerWait = 100 * time.Millisecond
)

// Sink receives samples from the drain worker. Publish may block and perform
// unbounded-latency work.
type Sink interface {
	Publish(csi.Sample) error
}

type discardSink struct{}

func (discardSink) Publish(csi.Sample) error { return nil }

// SampleFunc observes every converted sample. It is invoked synchronously on
// the producer path and must not block or allocate.
type SampleFunc func(csi.Sample)

// ResultFunc observes every classification result. It is invoked
// synchronously in whichever context completed the window and must honor the
// same contract as SampleFunc.
type ResultFunc func(presence.Result)

// Config sizes the pipeline at initialization. Buffers never grow afterwards.
type Config struct {
	WindowSamples int // Samples per classification window
	Subcarriers   int // Subcarriers kept per sample, at most csi.MaxSubcarriers
	QueueSize     int // Streaming queue capacity, 0 for DefaultQueueSize

	EnablePresenceDetection bool
	Features                presence.FeatureFlags // Zero value selects every family
	Thresholds              presence.Thresholds
}

// WithLogger sets the logger for the pipeline.
func WithLogger(logger *slog.Logger) func(*Pipeline) {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithSink sets the destination for the telemetry stream.
func WithSink(sink Sink) func(*Pipeline) {
	return func(p *Pipeline) {
		p.sink = sink
	}
}

// Pipeline is the explicit context object owning the whole signal path.
// Create it with New, feed it with Ingest from a single producer goroutine,
// and poll it from anywhere.
type Pipeline struct {
	cfg Config

	queue       chan csi.Sample
	window      *windowBuffer
	sampleCache *latestCache[csi.Sample]
	resultCache *latestCache[presence.Result]
	counters    counters

	sampleFns []SampleFunc
	resultFns []ResultFunc

	sink   Sink
	logger *slog.Logger

	started atomic.Bool
	wg      sync.WaitGroup
}

// New allocates every buffer up front and validates the configuration. A
// failure here is fatal to the caller and leaves no partial state running.
func New(cfg Config, options ...func(*Pipeline)) (*Pipeline, error) {
	if cfg.QueueSize == 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.QueueSize < 0 {
		return nil, fmt.Errorf("invalid queue size: %d", cfg.QueueSize)
	}
	if cfg.Features == (presence.FeatureFlags{}) {
		cfg.Features = presence.DefaultFeatureFlags()
	}
	if cfg.Thresholds == (presence.Thresholds{}) {
		cfg.Thresholds = presence.DefaultThresholds()
	}

	p := Pipeline{
		cfg:         cfg,
		queue:       make(chan csi.Sample, cfg.QueueSize),
		sampleCache: newLatestCache[csi.Sample](),
		resultCache: newLatestCache[presence.Result](),
		sink:        discardSink{},
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	if cfg.EnablePresenceDetection {
		window, err := newWindowBuffer(cfg.WindowSamples, cfg.Subcarriers)
		if err != nil {
			return nil, fmt.Errorf("creating window buffer: %w", err)
		}
		p.window = window
	}

	for _, option := range options {
		option(&p)
	}

	return &p, nil
}

// RegisterSampleCallback adds an observer for converted samples. Callbacks
// run synchronously on the producer path; registration is only valid before
// Start.
func (p *Pipeline) RegisterSampleCallback(fn SampleFunc) {
	p.sampleFns = append(p.sampleFns, fn)
}

// RegisterResultCallback adds an observer for classification results, under
// the same contract as RegisterSampleCallback.
func (p *Pipeline) RegisterResultCallback(fn ResultFunc) {
	p.resultFns = append(p.resultFns, fn)
}

// Start launches the drain worker. The pipeline runs until Stop.
func (p *Pipeline) Start() {
	if !p.started.CompareAndSwap(false, true) {
		return
	}

	p.wg.Add(1)
	go p.drain()
}

// Stop closes the streaming queue and waits for the drain worker to publish
// whatever is still queued. The caller must have stopped frame delivery
// first; Ingest must not be called after Stop.
func (p *Pipeline) Stop() {
	if !p.started.CompareAndSwap(true, false) {
		return
	}

	close(p.queue)
	p.wg.Wait()
}

// drain is the single worker consuming the streaming queue. Waiting for the
// next item is the one indefinite block in the pipeline; Publish itself may
// be arbitrarily slow without ever touching the producer.
func (p *Pipeline) drain() {
	defer p.wg.Done()

	for sample := range p.queue {
		if err := p.sink.Publish(sample); err != nil {
			p.logger.Warn(fmt.Sprintf("publishing sample: %s", err.Error()))
		}
	}
}

// Ingest is the restricted producer path, called once per received frame.
// It converts the frame, refreshes the latest-sample cache, offers the sample
// to the streaming queue and advances the classification window. Under
// contention or overload it skips work and counts; it never blocks the
// caller and never escalates an error.
func (p *Pipeline) Ingest(frame csi.RawFrame) {
	p.counters.received.Add(1)

	if len(frame.Data) == 0 {
		return
	}

	sample := csi.Convert(frame.Data, frame.RSSI, frame.TimestampMS)

	// Cache write is a zero-wait try: a contended slot means this sample is
	// simply not the one pollers will see.
	if p.sampleCache.tryStore(sample) {
		p.counters.processed.Add(1)
	}

	for _, fn := range p.sampleFns {
		fn(sample)
	}

	// Drop-newest backpressure: a full queue rejects this sample, counted
	// and never retried.
	select {
	case p.queue <- sample:
	default:
		p.counters.dropped.Add(1)
	}

	p.observe(sample)
}

// observe appends to the window and, when a window completes, runs one
// classification pass synchronously in the calling context.
func (p *Pipeline) observe(sample csi.Sample) {
	if p.window == nil {
		return
	}

	p.window.append(sample)
	if !p.window.takeReady() {
		return
	}

	start := time.Now()

	result := presence.Classify(presence.Extract(p.window.view(), p.cfg.Features), p.cfg.Thresholds)
	result.TimestampMS = p.window.endMS
	result.DurationMS = p.window.endMS - p.window.startMS

	// Latency and inference counters update regardless of whether the cache
	// write below wins its slot.
	p.counters.inferences.Add(1)
	p.counters.inferenceTimeUS.Add(uint64(time.Since(start).Microseconds()))

	p.resultCache.tryStore(result)

	for _, fn := range p.resultFns {
		fn(result)
	}
}

// LatestSample returns the most recent converted sample. Before the first
// frame it reports ErrNotReady; if the cache stays contended past the bounded
// wait it reports ErrTimeout.
func (p *Pipeline) LatestSample() (csi.Sample, error) {
	return p.sampleCache.load(consumerWait)
}

// LatestResult returns the most recent classification, with the same error
// semantics as LatestSample.
func (p *Pipeline) LatestResult() (presence.Result, error) {
	return p.resultCache.load(consumerWait)
}

// Stats snapshots the pipeline counters.
func (p *Pipeline) Stats() Stats {
	return p.counters.snapshot()
}
