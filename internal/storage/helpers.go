package storage

import (
	"encoding/json"
	"fmt"

	"github.com/airsense-io/csi-sense/internal/csi"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && *err == nil {
		*err = cErr
	}
}

// toSampleRow flattens a sample for insertion. Per-subcarrier vectors are
// stored as JSON arrays trimmed to the subcarrier count.
func toSampleRow(sessionID int64, s csi.Sample) (*sampleRow, error) {
	n := int(s.Count)

	amp, err := json.Marshal(s.Amplitude[:n])
	if err != nil {
		return nil, fmt.Errorf("marshaling amplitude: %w", err)
	}

	phase, err := json.Marshal(s.Phase[:n])
	if err != nil {
		return nil, fmt.Errorf("marshaling phase: %w", err)
	}

	return &sampleRow{
		SessionID:      sessionID,
		TimestampMS:    int64(s.TimestampMS),
		RSSI:           int64(s.RSSI),
		NumSubcarriers: int64(n),
		Amplitude:      string(amp),
		Phase:          string(phase),
	}, nil
}

// fromSampleRow reconstructs a sample from its stored form.
func fromSampleRow(row *sampleRow) (csi.Sample, error) {
	var s csi.Sample

	if row.NumSubcarriers < 0 || row.NumSubcarriers > csi.MaxSubcarriers {
		return s, fmt.Errorf("subcarrier count %d out of range", row.NumSubcarriers)
	}

	var amp, phase []float64
	if err := json.Unmarshal([]byte(row.Amplitude), &amp); err != nil {
		return s, fmt.Errorf("unmarshaling amplitude: %w", err)
	}
	if err := json.Unmarshal([]byte(row.Phase), &phase); err != nil {
		return s, fmt.Errorf("unmarshaling phase: %w", err)
	}

	n := int(row.NumSubcarriers)
	if len(amp) != n || len(phase) != n {
		return s, fmt.Errorf("vector length mismatch: %d subcarriers, %d amplitudes, %d phases", n, len(amp), len(phase))
	}

	s.TimestampMS = uint32(row.TimestampMS)
	s.RSSI = int8(row.RSSI)
	s.Count = uint8(n)
	copy(s.Amplitude[:], amp)
	copy(s.Phase[:], phase)
	return s, nil
}
