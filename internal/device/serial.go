package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"go.bug.st/serial"
)

// DefaultBaudRate matches the sensing firmware's console output rate.
const DefaultBaudRate = 115200

// SerialSource reads frames from a sensor attached over a serial port.
type SerialSource struct {
	port   serial.Port
	logger *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// SerialOption is a functional option for configuring SerialSource.
type SerialOption func(*SerialSource)

// WithSerialLogger sets the logger. Defaults to a discard logger.
func WithSerialLogger(logger *slog.Logger) SerialOption {
	return func(s *SerialSource) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// OpenSerial opens the named port in the 8N1 framing the firmware uses.
// A baudRate of 0 selects DefaultBaudRate.
func OpenSerial(portName string, baudRate int, opts ...SerialOption) (*SerialSource, error) {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}

	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", portName, err)
	}

	s := &SerialSource{
		port:   port,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Run reads frames until the context is cancelled or the port fails.
// Cancellation closes the port to unblock the pending read.
func (s *SerialSource) Run(ctx context.Context, ingest IngestFunc) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-done:
		}
	}()

	err := scanFrames(ctx, s.port, s.logger, ingest)
	if ctx.Err() != nil {
		// The port was closed under the reader; report the cancellation
		// rather than the resulting read error.
		if err == nil || !errors.Is(err, ErrTooManyParseErrors) {
			return ctx.Err()
		}
	}

	return err
}

// Close closes the serial port. Safe to call more than once.
func (s *SerialSource) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.port.Close()
	})
	return s.closeErr
}
