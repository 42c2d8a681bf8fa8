package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	ConfigBucket = []byte("config") // schema version
	RecentBucket = []byte("recent") // path -> RecentVault JSON
)

// Config keys
var (
	ConfigVersion = []byte("version")
)

// DefaultHistorySize is how many recent vaults are kept
const DefaultHistorySize = 20

// RecentVault is one remembered vault file
type RecentVault struct {
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	OpenedAt time.Time `json:"opened_at"`
}

// History provides BBolt-based storage for recently opened vaults
type History struct {
	db    *bolt.DB
	limit int
	now   func() time.Time
}

// OpenHistory opens or creates the history database at path
func OpenHistory(path string) (*History, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{ConfigBucket, RecentBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		config := tx.Bucket(ConfigBucket)
		if config.Get(ConfigVersion) == nil {
			return config.Put(ConfigVersion, []byte("1"))
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &History{db: db, limit: DefaultHistorySize, now: time.Now}, nil
}

// Close closes the database
func (h *History) Close() error {
	return h.db.Close()
}

// SetLimit changes how many entries Record keeps. Values below one are ignored.
func (h *History) SetLimit(n int) {
	if n > 0 {
		h.limit = n
	}
}

// Record remembers that the vault at path was opened, moving it to the
// front. The oldest entries beyond the limit are dropped.
func (h *History) Record(path, name string) error {
	entry := RecentVault{Path: path, Name: name, OpenedAt: h.now().UTC()}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return h.db.Update(func(tx *bolt.Tx) error {
		recent := tx.Bucket(RecentBucket)
		if err := recent.Put([]byte(path), data); err != nil {
			return err
		}

		entries, err := readRecent(recent)
		if err != nil {
			return err
		}
		for _, stale := range entries[min(len(entries), h.limit):] {
			if err := recent.Delete([]byte(stale.Path)); err != nil {
				return err
			}
		}
		return nil
	})
}

// List returns remembered vaults, most recently opened first
func (h *History) List() ([]RecentVault, error) {
	var entries []RecentVault
	err := h.db.View(func(tx *bolt.Tx) error {
		recent := tx.Bucket(RecentBucket)
		if recent == nil {
			return nil
		}
		var err error
		entries, err = readRecent(recent)
		return err
	})
	return entries, err
}

// Forget removes a path. Unknown paths are not an error.
func (h *History) Forget(path string) error {
	return h.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(RecentBucket).Delete([]byte(path))
	})
}

func readRecent(b *bolt.Bucket) ([]RecentVault, error) {
	var entries []RecentVault
	err := b.ForEach(func(k, v []byte) error {
		var entry RecentVault
		if err := json.Unmarshal(v, &entry); err != nil {
			return fmt.Errorf("corrupt history entry %q: %w", k, err)
		}
		entries = append(entries, entry)
		return nil
	})
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].OpenedAt.After(entries[j].OpenedAt)
	})
	return entries, err
}
