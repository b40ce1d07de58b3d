package storage

import (
	"context"
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
	// DefaultBatchSize is the number of samples written per transaction.
	DefaultBatchSize = 64

	// DefaultFlushInterval bounds how long a partial batch may sit unwritten.
	DefaultFlushInterval = time.Second
)

// Recorder persists a live capture into a store. Its Record methods are safe
// to call from the pipeline's processing goroutine: they only perform a
// non-blocking channel send and drop data when the recorder cannot keep up
// with the feed. Batching and database writes happen on the recorder's own
// goroutine.
type Recorder struct {
	store     Store
	sessionID int64
	logger    *slog.Logger

	batchSize     int
	flushInterval time.Duration

	samples chan csi.Sample
	results chan presence.Result
	dropped atomic.Uint64

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// RecorderOption is a functional option for configuring Recorder.
type RecorderOption func(*Recorder)

// WithRecorderLogger sets the logger. Defaults to a discard logger.
func WithRecorderLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithBatchSize sets the number of samples per write transaction.
func WithBatchSize(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithFlushInterval sets the maximum age of an unwritten partial batch.
func WithFlushInterval(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		if d > 0 {
			r.flushInterval = d
		}
	}
}

// NewRecorder creates a recorder writing to the given session of the store.
func NewRecorder(store Store, sessionID int64, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:         store,
		sessionID:     sessionID,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
		batchSize:     DefaultBatchSize,
		flushInterval: DefaultFlushInterval,
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.samples = make(chan csi.Sample, 4*r.batchSize)
	r.results = make(chan presence.Result, 16)
	return r
}

// Start launches the write goroutine. Subsequent calls are no-ops.
func (r *Recorder) Start() {
	r.startOnce.Do(func() {
		r.wg.Add(1)
		go r.run()
	})
}

// RecordSample queues a sample for persistence. It never blocks; when the
// queue is full the sample is dropped and counted.
func (r *Recorder) RecordSample(s csi.Sample) {
	select {
	case r.samples <- s:
	default:
		r.dropped.Add(1)
	}
}

// RecordResult queues a classification result for persistence. It never
// blocks; when the queue is full the result is dropped and counted.
func (r *Recorder) RecordResult(res presence.Result) {
	select {
	case r.results <- res:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns the number of samples and results discarded because the
// recorder could not keep up.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Stop flushes pending data and stops the write goroutine. The recorder
// cannot be restarted.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
	})
}

func (r *Recorder) run() {
	defer r.wg.Done()

	batch := make([]csi.Sample, 0, r.batchSize)

	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case s := <-r.samples:
			batch = append(batch, s)
			if len(batch) >= r.batchSize {
				batch = r.flush(batch)
			}

		case res := <-r.results:
			r.storeResult(res)

		case <-ticker.C:
			batch = r.flush(batch)

		case <-r.done:
			// Drain whatever made it into the queues before shutdown.
			for {
				select {
				case s := <-r.samples:
					batch = append(batch, s)
				case res := <-r.results:
					r.storeResult(res)
				default:
					r.flush(batch)
					return
				}
			}
		}
	}
}

func (r *Recorder) flush(batch []csi.Sample) []csi.Sample {
	if len(batch) == 0 {
		return batch
	}
	if err := r.store.StoreSamples(context.Background(), r.sessionID, batch); err != nil {
		r.logger.Error(fmt.Sprintf("storing samples: %s", err.Error()))
	}
	return batch[:0]
}

func (r *Recorder) storeResult(res presence.Result) {
	if err := r.store.StoreResult(context.Background(), r.sessionID, res); err != nil {
		r.logger.Error(fmt.Sprintf("storing result: %s", err.Error()))
	}
}
