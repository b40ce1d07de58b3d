package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/airsense-io/csi-sense/internal/csi"
)

// ErrNoData indicates either that no sample data exists for the given
// parameters, or that all available data has been read from the reader.
var ErrNoData = fmt.Errorf("no data available")

// SampleReader provides an iterator-based interface for reading a session's
// samples with optional time filtering.
type SampleReader interface {
	// Session returns metadata about the capture session this reader is
	// accessing.
	Session() *Session

	// Next advances the iterator and returns true if there is another sample
	// to read, false when the iteration is complete or if an error occurred.
	Next(context.Context) bool

	// Current returns the current sample in the iteration. If called after
	// Next() returns false, the behavior is undefined.
	Current() csi.Sample

	// Error returns any error that occurred during iteration. If Next()
	// returns false, Error() should be checked to distinguish between end of
	// data and an error condition.
	Error() error

	// Close releases any resources associated with the reader. After Close
	// is called, the reader should not be used.
	Close() error
}

// ReaderOption configures a SampleReader with specific filtering criteria.
type ReaderOption func(*SqliteSampleReader)

// WithStartMS sets the start of the time range filter, in the sensor's
// millisecond clock. Samples stamped before it are excluded.
func WithStartMS(ms uint32) ReaderOption {
	return func(r *SqliteSampleReader) {
		v := int64(ms)
		r.startMS = &v
	}
}

// WithEndMS sets the end of the time range filter, in the sensor's
// millisecond clock. Samples stamped after it are excluded.
func WithEndMS(ms uint32) ReaderOption {
	return func(r *SqliteSampleReader) {
		v := int64(ms)
		r.endMS = &v
	}
}

// WithTimeRangeMS sets both ends of the time range filter. This is a
// convenience function equivalent to applying both WithStartMS and
// WithEndMS.
func WithTimeRangeMS(startMS, endMS uint32) ReaderOption {
	return func(r *SqliteSampleReader) {
		s, e := int64(startMS), int64(endMS)
		r.startMS = &s
		r.endMS = &e
	}
}

// SqliteSampleReader implements SampleReader for the SQLite backend.
type SqliteSampleReader struct {
	db *sql.DB

	sessionID int64
	session   *Session

	startMS *int64
	endMS   *int64

	rows    *sql.Rows
	current csi.Sample
	err     error
}

func newSqliteSampleReader(ctx context.Context, db *sql.DB, sessionID int64, opts ...ReaderOption) (*SqliteSampleReader, error) {
	if db == nil {
		return nil, errors.New("database connection required")
	}
	if sessionID <= 0 {
		return nil, errors.New("session ID required")
	}

	sr := &SqliteSampleReader{
		db:        db,
		sessionID: sessionID,
	}
	for _, opt := range opts {
		opt(sr)
	}

	if err := sr.loadSession(ctx); err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if err := sr.initQuery(ctx); err != nil {
		return nil, fmt.Errorf("initializing query: %w", err)
	}
	return sr, nil
}

func (sr *SqliteSampleReader) loadSession(ctx context.Context) (err error) {
	stmt, err := sr.db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	var sess Session
	var config sql.NullString
	if err = stmt.QueryRowContext(ctx, sr.sessionID).Scan(&sess.ID, &sess.StartTime, &sess.Label, &sess.DeviceType, &sess.DeviceID, &config); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNoData
		}
		return fmt.Errorf("querying session: %w", err)
	}
	if config.Valid {
		sess.Config = &config.String
	}

	sr.session = &sess
	return
}

func (sr *SqliteSampleReader) initQuery(ctx context.Context) error {
	var sb strings.Builder
	sb.WriteString(selectSamplesSQL)

	args := []any{sr.sessionID}
	if sr.startMS != nil {
		sb.WriteString(" AND timestamp_ms >= ?")
		args = append(args, *sr.startMS)
	}
	if sr.endMS != nil {
		sb.WriteString(" AND timestamp_ms <= ?")
		args = append(args, *sr.endMS)
	}
	sb.WriteString(" ORDER BY timestamp_ms, id")

	rows, err := sr.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return fmt.Errorf("querying samples: %w", err)
	}

	sr.rows = rows
	return nil
}

func (sr *SqliteSampleReader) Session() *Session {
	return sr.session
}

func (sr *SqliteSampleReader) Next(ctx context.Context) bool {
	if sr.err != nil || sr.rows == nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		sr.err = err
		return false
	}

	if !sr.rows.Next() {
		if err := sr.rows.Err(); err != nil {
			sr.err = fmt.Errorf("iterating samples: %w", err)
		}
		return false
	}

	var row sampleRow
	if err := sr.rows.Scan(&row.TimestampMS, &row.RSSI, &row.NumSubcarriers, &row.Amplitude, &row.Phase); err != nil {
		sr.err = fmt.Errorf("scanning sample: %w", err)
		return false
	}

	sample, err := fromSampleRow(&row)
	if err != nil {
		sr.err = fmt.Errorf("decoding sample: %w", err)
		return false
	}

	sr.current = sample
	return true
}

func (sr *SqliteSampleReader) Current() csi.Sample {
	return sr.current
}

func (sr *SqliteSampleReader) Error() error {
	return sr.err
}

func (sr *SqliteSampleReader) Close() error {
	if sr.rows == nil {
		return nil
	}
	err := sr.rows.Close()
	sr.rows = nil
	return err
}
