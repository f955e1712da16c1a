package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metaDAOproject/acctsync/pkg/clock"
	"github.com/metaDAOproject/acctsync/pkg/keyed"
)

type account struct {
	Balance uint64 `cbor:"1,keyasint"`
	Slot    uint64 `cbor:"2,keyasint"`
}

var start = time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)

func TestLoadMissingFile(t *testing.T) {
	fs := NewFileStore[string, account](filepath.Join(t.TempDir(), "missing.snap"))

	state, err := fs.Load()
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.snap")
	fs := NewFileStore[string, account](path)

	in := &State[string, account]{
		SavedAt: start,
		Records: []Record[string, account]{
			{Key: "acct-1", Value: account{Balance: 10, Slot: 100}, UpdatedAt: start.Add(-time.Minute)},
			{Key: "acct-2", Value: account{Balance: 20, Slot: 101}, UpdatedAt: start},
		},
	}
	require.NoError(t, fs.Save(in))

	out, err := fs.Load()
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, StateVersion, out.Version)
	assert.True(t, out.SavedAt.Equal(start))
	require.Len(t, out.Records, 2)
	assert.Equal(t, "acct-2", out.Records[1].Key)
	assert.Equal(t, account{Balance: 20, Slot: 101}, out.Records[1].Value)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must not be left behind")
}

func TestSaveStampsSavedAt(t *testing.T) {
	fs := NewFileStore[string, account](filepath.Join(t.TempDir(), "cache.snap"))

	state := &State[string, account]{}
	require.NoError(t, fs.Save(state))
	assert.False(t, state.SavedAt.IsZero())
}

func TestLoadVersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.snap")
	data, err := snapEncMode.Marshal(&State[string, account]{Version: 99})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	_, err = NewFileStore[string, account](path).Load()
	assert.ErrorIs(t, err, ErrVersionMismatch)
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.snap")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0x00, 0x13}, 0644))

	_, err := NewFileStore[string, account](path).Load()
	assert.Error(t, err)
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.snap")
	fs := NewFileStore[string, account](path)
	require.NoError(t, fs.Save(&State[string, account]{}))

	require.NoError(t, fs.Clear())
	require.NoError(t, fs.Clear())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestCaptureAndRestore(t *testing.T) {
	clk := clock.NewManual(start)
	src, err := keyed.New[string, account](keyed.Config{Clock: clk})
	require.NoError(t, err)

	src.Set("acct-2", account{Balance: 20})
	clk.Advance(time.Second)
	src.Set("acct-1", account{Balance: 10})
	src.MarkPending("acct-3") // no value yet
	src.SetAbsent("acct-4")

	state := Capture(src)
	require.Len(t, state.Records, 2)
	assert.Equal(t, "acct-2", state.Records[0].Key, "oldest write first")
	assert.Equal(t, "acct-1", state.Records[1].Key)

	dst := keyed.NewDefault[string, account]()
	assert.Equal(t, 2, Restore(dst, state))

	entry, ok := dst.Get("acct-1")
	require.True(t, ok)
	assert.Equal(t, uint64(10), entry.Value.Balance)
	assert.True(t, entry.Invalidated)
	assert.Equal(t, start.Add(time.Second), entry.UpdatedAt)

	assert.Equal(t, 0, Restore[string, account](dst, nil))
}
