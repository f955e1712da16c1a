package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/metaDAOproject/acctsync/pkg/keyed"
)

// StateVersion is the current version of the snapshot file format.
const StateVersion = 1

// ErrVersionMismatch is returned when a snapshot file has an unknown version.
var ErrVersionMismatch = errors.New("snapshot version mismatch")

var (
	snapEncMode cbor.EncMode
	snapDecMode cbor.DecMode
)

func init() {
	var err error

	snapEncMode, err = cbor.EncOptions{
		Sort: cbor.SortCanonical,
		Time: cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create snapshot CBOR encoder mode: %v", err))
	}

	snapDecMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create snapshot CBOR decoder mode: %v", err))
	}
}

// State is the content of a snapshot file.
type State[K comparable, V any] struct {
	// Version is the file format version.
	Version int `cbor:"1,keyasint"`

	// SavedAt is when the snapshot was written.
	SavedAt time.Time `cbor:"2,keyasint"`

	// Records holds one record per cached key.
	Records []Record[K, V] `cbor:"3,keyasint,omitempty"`
}

// Record is one saved entry.
type Record[K comparable, V any] struct {
	Key       K         `cbor:"1,keyasint"`
	Value     V         `cbor:"2,keyasint"`
	UpdatedAt time.Time `cbor:"3,keyasint"`
}

// FileStore reads and writes a snapshot file.
type FileStore[K comparable, V any] struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a snapshot store for path.
func NewFileStore[K comparable, V any](path string) *FileStore[K, V] {
	return &FileStore[K, V]{path: path}
}

// Path returns the snapshot file path.
func (s *FileStore[K, V]) Path() string {
	return s.path
}

// Save writes state to disk, replacing the previous snapshot atomically.
func (s *FileStore[K, V]) Save(state *State[K, V]) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	state.Version = StateVersion
	if state.SavedAt.IsZero() {
		state.SavedAt = time.Now()
	}

	data, err := snapEncMode.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Load reads the snapshot from disk.
// Returns nil, nil if the file doesn't exist.
func (s *FileStore[K, V]) Load() (*State[K, V], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state := &State[K, V]{}
	if err := snapDecMode.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if state.Version != StateVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, state.Version, StateVersion)
	}

	return state, nil
}

// Clear removes the snapshot file.
func (s *FileStore[K, V]) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Capture collects every entry of store that holds a value, oldest write
// first.
func Capture[K comparable, V any](store *keyed.Store[K, V]) *State[K, V] {
	entries := store.Entries()

	state := &State[K, V]{Records: make([]Record[K, V], 0, len(entries))}
	for key, entry := range entries {
		if !entry.HasValue {
			continue
		}
		state.Records = append(state.Records, Record[K, V]{
			Key:       key,
			Value:     entry.Value,
			UpdatedAt: entry.UpdatedAt,
		})
	}
	sort.SliceStable(state.Records, func(i, j int) bool {
		return state.Records[i].UpdatedAt.Before(state.Records[j].UpdatedAt)
	})
	return state
}

// Restore seeds store with the records of state and returns how many were
// restored. A nil state restores nothing.
func Restore[K comparable, V any](store *keyed.Store[K, V], state *State[K, V]) int {
	if state == nil {
		return 0
	}
	for _, r := range state.Records {
		store.Seed(r.Key, r.Value, r.UpdatedAt)
	}
	return len(state.Records)
}
