// Package csi models per-packet channel state information and its conversion
// from raw in-phase/quadrature pairs into amplitude and phase features.
package csi

// MaxSubcarriers is the fixed per-sample subcarrier capacity. Frames carrying
// more subcarriers than this are truncated during conversion.
const MaxSubcarriers = 64

// RawFrame is a raw channel measurement as delivered by a frame source.
// The Data slice holds interleaved signed I/Q byte pairs: [I0, Q0, I1, Q1, ...].
// It is borrowed from the source and must not be retained past conversion.
type RawFrame struct {
	Data        []byte // Interleaved I/Q pairs, signed bytes
	RSSI        int8   // Received signal strength in dBm
	TimestampMS uint32 // Arrival time hint, milliseconds since sensor boot
}

// Sample is a converted channel measurement. Amplitude and Phase hold one
// value per subcarrier in [0, Count); entries past Count are zero. Sample is
// a value type and is copied into queues and caches, never shared.
type Sample struct {
	TimestampMS uint32
	RSSI        int8
	Count       uint8

	Amplitude [MaxSubcarriers]float64
	Phase     [MaxSubcarriers]float64 // Radians, each value in (-π, π]
}
