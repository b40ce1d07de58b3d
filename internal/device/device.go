// Package device delivers raw channel frames from a sensing front-end to the
// pipeline. Sources speak the sensor's serial line protocol:
//
//	CSI_DATA,<timestamp_ms>,<rssi_dbm>,[<i> <q> <i> <q> ...]
//
// one frame per line, I/Q values as signed bytes. Malformed lines are logged
// and tolerated up to a consecutive-error threshold, after which the source
// gives up rather than spin on a broken feed.
package device

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"

	"github.com/airsense-io/csi-sense/internal/csi"
)

const (
	// ParseErrorsThreshold is the number of consecutive parse errors allowed
	// before a source aborts.
	ParseErrorsThreshold = 5

	framePrefix = "CSI_DATA,"
)

var (
	// ErrTooManyParseErrors is returned when consecutive parse errors exceed
	// the threshold.
	ErrTooManyParseErrors = errors.New("too many consecutive parse errors")
)

// IngestFunc receives each parsed frame. It is invoked on the source's read
// goroutine, which is the restricted producer context: implementations must
// not block and must not retain frame.Data past the call.
type IngestFunc func(frame csi.RawFrame)

// Source delivers frames until the context is cancelled or the feed ends.
type Source interface {
	Run(ctx context.Context, ingest IngestFunc) error
}

// scanFrames reads the line protocol from r and hands each frame to ingest.
// The frame payload buffer is reused across lines; nothing is allocated per
// frame once the scanner's internal buffer has grown.
func scanFrames(ctx context.Context, r io.Reader, logger *slog.Logger, ingest IngestFunc) error {
	var parseErrors uint8

	data := make([]byte, 0, 2*csi.MaxSubcarriers)
	frame := csi.RawFrame{}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if !hasFramePrefix(line) {
			continue // Boot noise, log output, blank lines
		}

		n, err := parseFrame(line, &frame, data[:0])
		if err != nil {
			parseErrors++
			logger.Warn(fmt.Sprintf("parsing frame: %s", err.Error()), slog.String("line", string(line)))

			if parseErrors >= ParseErrorsThreshold {
				return ErrTooManyParseErrors
			}
			continue
		}
		parseErrors = 0

		frame.Data = n
		ingest(frame)
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		return fmt.Errorf("reading frames: %w", err)
	}

	return nil
}

func hasFramePrefix(line []byte) bool {
	if len(line) < len(framePrefix) {
		return false
	}
	for i := 0; i < len(framePrefix); i++ {
		if line[i] != framePrefix[i] {
			return false
		}
	}
	return true
}

// parseFrame decodes one protocol line into frame metadata and the reused
// payload buffer. It returns the filled payload slice.
func parseFrame(line []byte, frame *csi.RawFrame, data []byte) ([]byte, error) {
	rest := line[len(framePrefix):]

	ts, rest, err := parseUint32Field(rest)
	if err != nil {
		return nil, fmt.Errorf("timestamp: %w", err)
	}

	rssi, rest, err := parseInt8Field(rest)
	if err != nil {
		return nil, fmt.Errorf("rssi: %w", err)
	}

	data, err = parsePayload(rest, data)
	if err != nil {
		return nil, fmt.Errorf("payload: %w", err)
	}
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("payload: odd I/Q count %d", len(data))
	}

	frame.TimestampMS = ts
	frame.RSSI = rssi
	return data, nil
}

func parseUint32Field(b []byte) (uint32, []byte, error) {
	var v uint64
	var i int
	for ; i < len(b) && b[i] != ','; i++ {
		if b[i] < '0' || b[i] > '9' {
			return 0, nil, fmt.Errorf("unexpected byte %q", b[i])
		}
		v = v*10 + uint64(b[i]-'0')
		if v > 1<<32-1 {
			return 0, nil, errors.New("value out of range")
		}
	}
	if i == 0 || i == len(b) {
		return 0, nil, errors.New("missing field")
	}
	return uint32(v), b[i+1:], nil
}

func parseInt8Field(b []byte) (int8, []byte, error) {
	neg := false
	i := 0
	if i < len(b) && b[i] == '-' {
		neg = true
		i++
	}

	var v int
	start := i
	for ; i < len(b) && b[i] != ','; i++ {
		if b[i] < '0' || b[i] > '9' {
			return 0, nil, fmt.Errorf("unexpected byte %q", b[i])
		}
		v = v*10 + int(b[i]-'0')
		if v > 128 {
			return 0, nil, errors.New("value out of range")
		}
	}
	if i == start || i == len(b) {
		return 0, nil, errors.New("missing field")
	}
	if neg {
		v = -v
	}
	if v > 127 {
		return 0, nil, errors.New("value out of range")
	}
	return int8(v), b[i+1:], nil
}

// parsePayload decodes "[i q i q ...]" into signed bytes appended to data.
func parsePayload(b, data []byte) ([]byte, error) {
	if len(b) < 2 || b[0] != '[' || b[len(b)-1] != ']' {
		return nil, errors.New("not bracketed")
	}
	b = b[1 : len(b)-1]

	i := 0
	for i < len(b) {
		for i < len(b) && b[i] == ' ' {
			i++
		}
		if i == len(b) {
			break
		}

		neg := false
		if b[i] == '-' {
			neg = true
			i++
		}

		v := 0
		start := i
		for ; i < len(b) && b[i] != ' '; i++ {
			if b[i] < '0' || b[i] > '9' {
				return nil, fmt.Errorf("unexpected byte %q", b[i])
			}
			v = v*10 + int(b[i]-'0')
			if v > 128 {
				return nil, errors.New("value out of range")
			}
		}
		if i == start {
			return nil, errors.New("dangling sign")
		}
		if neg {
			v = -v
		}
		if v > 127 {
			return nil, errors.New("value out of range")
		}

		if len(data) < 2*csi.MaxSubcarriers {
			data = append(data, byte(int8(v)))
		}
		// Values past the converter's capacity are dropped here already;
		// Convert would truncate them anyway.
	}

	return data, nil
}
