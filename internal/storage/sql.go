package storage

import (
	_ "embed"
)

const (
	insertSessionSQL = `
INSERT INTO sessions (
                      start_time,
                      label,
                      device_type,
                      device_id,
                      config)
VALUES (CURRENT_TIMESTAMP, ?, ?, ?, ?)`

	selectSessionSQL = `
SELECT
    id,
    start_time,
    label,
    device_type,
    device_id,
    config
FROM sessions
WHERE
    id = ?`

	selectSessionsSQL = `
SELECT
    id,
    start_time,
    label,
    device_type,
    device_id,
    config
FROM sessions
ORDER BY start_time`

	insertSampleSQL = `
INSERT INTO samples (session_id,
                     timestamp_ms,
                     rssi,
                     num_subcarriers,
                     amplitude,
                     phase)
VALUES (?, ?, ?, ?, ?, ?)`

	insertResultSQL = `
INSERT INTO results (session_id,
                     timestamp_ms,
                     duration_ms,
                     class,
                     presence,
                     confidence,
                     motion_level,
                     amplitude_mean,
                     amplitude_std,
                     phase_variance,
                     avg_rssi)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectSamplesSQL = `
SELECT
    timestamp_ms,
    rssi,
    num_subcarriers,
    amplitude,
    phase
FROM samples
WHERE
    session_id = ?`

	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_samples_session_ts ON samples (session_id, timestamp_ms);
CREATE INDEX IF NOT EXISTS idx_results_session_ts ON results (session_id, timestamp_ms);`
)

//go:embed schema.sql
var initSchemaSQL string
