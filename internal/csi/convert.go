package csi

import "math"

// Convert turns a raw interleaved I/Q buffer into a Sample. Each subcarrier
// contributes two signed bytes; the subcarrier count is len(raw)/2 capped at
// MaxSubcarriers, with excess pairs silently truncated.
//
// Amplitude is sqrt(I²+Q²) with both components promoted to float64 before
// squaring, so the extreme I=Q=-128 cannot overflow a narrow accumulator.
// Phase is atan2(Q, I) in (-π, π]; the degenerate I=Q=0 case is pinned to 0
// rather than left to float edge cases, since a stray NaN would poison every
// aggregate computed downstream.
//
// Convert is a pure function. An empty buffer yields a zero-valued Sample
// with Count 0.
func Convert(raw []byte, rssi int8, timestampMS uint32) Sample {
	s := Sample{
		TimestampMS: timestampMS,
		RSSI:        rssi,
	}

	count := len(raw) / 2
	if count > MaxSubcarriers {
		count = MaxSubcarriers
	}
	s.Count = uint8(count)

	for i := 0; i < count; i++ {
		re := float64(int8(raw[i*2]))
		im := float64(int8(raw[i*2+1]))

		s.Amplitude[i] = math.Sqrt(re*re + im*im)

		if re == 0 && im == 0 {
			s.Phase[i] = 0
			continue
		}
		s.Phase[i] = math.Atan2(im, re)
	}

	return s
}
