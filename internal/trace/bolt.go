package trace

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/boltdb/bolt"
	"github.com/jmank88/nuts"
	"github.com/pkg/errors"
)

var spansBucket = []byte("spans")

// record is the on-disk shape of one emitted event.
type record struct {
	Name      string                 `json:"name"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Timestamp int64                  `json:"ts"`
}

// BoltCollector persists events to a BoltDB file, one entry per event,
// keyed by a monotonically increasing sequence number encoded with
// nuts.Key so that iteration order matches emission order. This
// generalizes the teacher's BoltDB source cache (source_cache_bolt.go),
// which uses the same database for revision metadata instead of spans.
type BoltCollector struct {
	db *bolt.DB

	mu  sync.Mutex
	seq uint64
}

// OpenBoltCollector opens (creating if absent) a BoltDB file at path and
// returns a Collector backed by it. Callers should Close it on exit.
func OpenBoltCollector(path string) (*BoltCollector, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create %s", filepath.Dir(path))
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open span database %q", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(spansBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create spans bucket")
	}

	seq := uint64(0)
	_ = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(spansBucket)
		if b == nil {
			return nil
		}
		seq = b.Sequence()
		return nil
	})

	return &BoltCollector{db: db, seq: seq}, nil
}

// Event implements Collector. Failures to persist are swallowed: a
// profiling sink must never be able to fail the operation it observes.
func (c *BoltCollector) Event(name string, fields map[string]interface{}) {
	rec := record{Name: name, Fields: fields, Timestamp: time.Now().UnixNano()}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}

	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	key := make(nuts.Key, nuts.KeyLen(math.MaxUint64))
	key.Put(seq)

	_ = c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(spansBucket)
		if b == nil {
			return nil
		}
		if seq > b.Sequence() {
			if err := b.SetSequence(seq); err != nil {
				return err
			}
		}
		return b.Put(key, data)
	})
}

// Close releases the underlying BoltDB file.
func (c *BoltCollector) Close() error {
	return errors.Wrap(c.db.Close(), "failed to close span database")
}
