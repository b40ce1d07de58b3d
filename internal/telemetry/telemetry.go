// Package telemetry formats converted channel samples as a newline-delimited
// JSON stream for downstream viewers. The stream is loss-tolerant: the
// pipeline drops frames under overload, so consumers must treat it as gapful
// and never assume completeness.
package telemetry

import (
	"io"
	"strconv"
	"sync"

	"github.com/airsense-io/csi-sense/internal/csi"
)

// AppendSample appends one wire line for the sample to dst and returns the
// extended buffer. The format is fixed:
//
//	{"ts":<ms>,"rssi":<dBm>,"num":<n>,"amp":[<2dp>...],"phase":[<4dp>...]}
//
// Amplitudes carry two decimal places and phases four, which is why the line
// is assembled by hand rather than through encoding/json.
func AppendSample(dst []byte, s csi.Sample) []byte {
	dst = append(dst, `{"ts":`...)
	dst = strconv.AppendUint(dst, uint64(s.TimestampMS), 10)
	dst = append(dst, `,"rssi":`...)
	dst = strconv.AppendInt(dst, int64(s.RSSI), 10)
	dst = append(dst, `,"num":`...)
	dst = strconv.AppendUint(dst, uint64(s.Count), 10)

	dst = append(dst, `,"amp":[`...)
	for i := 0; i < int(s.Count); i++ {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = strconv.AppendFloat(dst, s.Amplitude[i], 'f', 2, 64)
	}

	dst = append(dst, `],"phase":[`...)
	for i := 0; i < int(s.Count); i++ {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = strconv.AppendFloat(dst, s.Phase[i], 'f', 4, 64)
	}

	dst = append(dst, ']', '}', '\n')
	return dst
}

// Stream publishes wire lines to a writer. It reuses one encode buffer and
// serializes writes, so a single Stream may back both the drain worker and a
// broadcast fan-out.
type Stream struct {
	mu  sync.Mutex
	w   io.Writer
	buf []byte
}

// NewStream creates a Stream writing to w.
func NewStream(w io.Writer) *Stream {
	return &Stream{w: w, buf: make([]byte, 0, 2048)}
}

// Publish encodes the sample and writes one line. It may block for as long
// as the underlying writer does.
func (s *Stream) Publish(sample csi.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf = AppendSample(s.buf[:0], sample)
	_, err := s.w.Write(s.buf)
	return err
}
