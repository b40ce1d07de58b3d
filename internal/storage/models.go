package storage

import (
	"time"
)

// Session describes a recorded capture session. Label carries the ground
// truth annotation given at capture time (e.g. "empty-room", "walking") and
// may be blank for unlabeled captures.
type Session struct {
	ID         int64
	StartTime  time.Time
	Label      string
	DeviceType string
	DeviceID   string
	Config     *string
}

type sampleRow struct {
	SessionID      int64
	TimestampMS    int64
	RSSI           int64
	NumSubcarriers int64
	Amplitude      string
	Phase          string
}
