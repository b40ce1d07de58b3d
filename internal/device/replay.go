package device

import (
	"context"
	"errors"
	"io"
	"log/slog"
)

// ReaderSource replays the line protocol from any reader, typically a capture
// file. It is also the seam the tests use to drive sources without hardware.
type ReaderSource struct {
	r      io.Reader
	logger *slog.Logger
}

// ReaderOption is a functional option for configuring ReaderSource.
type ReaderOption func(*ReaderSource)

// WithReaderLogger sets the logger. Defaults to a discard logger.
func WithReaderLogger(logger *slog.Logger) ReaderOption {
	return func(s *ReaderSource) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewReaderSource creates a source reading frames from r.
func NewReaderSource(r io.Reader, opts ...ReaderOption) *ReaderSource {
	s := &ReaderSource{
		r:      r,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run reads frames until the context is cancelled or the reader is drained.
// When the reader is an io.Closer, cancellation closes it to unblock a
// pending read.
func (s *ReaderSource) Run(ctx context.Context, ingest IngestFunc) error {
	done := make(chan struct{})
	defer close(done)

	if closer, ok := s.r.(io.Closer); ok {
		go func() {
			select {
			case <-ctx.Done():
				_ = closer.Close()
			case <-done:
			}
		}()
	}

	err := scanFrames(ctx, s.r, s.logger, ingest)
	if ctx.Err() != nil {
		// The reader may have been closed underneath the scanner; report the
		// cancellation rather than the resulting read error.
		if err == nil || !errors.Is(err, ErrTooManyParseErrors) {
			return ctx.Err()
		}
	}

	return err
}
