package storage

import (
	"context"

	_ "github.com/mattn/go-sqlite3"

	"github.com/airsense-io/csi-sense/internal/csi"
	"github.com/airsense-io/csi-sense/internal/presence"
)

// Store provides an interface for managing channel sensing data storage.
// It handles capture sessions, raw samples and classification results in a
// thread-safe manner. All operations that write to the database should be
// considered atomic.
type Store interface {
	// CreateSession initializes a new capture session and returns its unique
	// identifier. The label is a free-form ground truth annotation for the
	// capture (e.g. "empty-room", "walking"); config is an optional device
	// configuration which can be a string, []byte or a JSON-serializable
	// value.
	CreateSession(ctx context.Context, label, deviceType, deviceID string, config any) (sessionID int64, err error)

	// Session retrieves a capture session by its ID.
	Session(ctx context.Context, id int64) (session *Session, err error)

	// Sessions returns all capture sessions ordered by start time.
	Sessions(ctx context.Context) (sessions []*Session, err error)

	// StoreSamples saves a batch of samples for a session in a single
	// transaction.
	StoreSamples(ctx context.Context, sessionID int64, samples []csi.Sample) error

	// StoreResult saves a classification result for a session.
	StoreResult(ctx context.Context, sessionID int64, result presence.Result) error

	// Close releases all database connections and resources. After Close is
	// called, the store instance cannot be reused. It is safe to call Close
	// multiple times.
	Close() error
}
