package pkg

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Step   int     `json:"step"`
	Reward float64 `json:"reward"`
}

func TestJournal_AppendAndRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steps.jsonl")

	journal, err := NewJournal[entry](path)
	require.NoError(t, err)
	defer journal.Close()

	require.NoError(t, journal.Append(entry{Step: 1, Reward: 0.1}))
	require.NoError(t, journal.Append(entry{Step: 2, Reward: 0.3}))

	assert.Equal(t, uint64(2), journal.Len())
	assert.Equal(t, path, journal.Path())

	var got []entry
	err = journal.Range(func(index uint64, item entry) error {
		assert.Equal(t, uint64(len(got)), index)
		got = append(got, item)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []entry{{Step: 1, Reward: 0.1}, {Step: 2, Reward: 0.3}}, got)
}

func TestJournal_ReopenKeepsCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steps.jsonl")

	journal, err := NewJournal[entry](path)
	require.NoError(t, err)
	require.NoError(t, journal.Append(entry{Step: 1}))
	require.NoError(t, journal.Close())

	reopened, err := NewJournal[entry](path)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, uint64(1), reopened.Len())

	require.NoError(t, reopened.Append(entry{Step: 2}))
	assert.Equal(t, uint64(2), reopened.Len())
}

func TestJournal_CreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "steps.jsonl")

	journal, err := NewJournal[entry](path)
	require.NoError(t, err)
	defer journal.Close()

	require.NoError(t, journal.Append(entry{Step: 1}))
}

func TestJournal_RangeStopsOnCallbackError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steps.jsonl")

	journal, err := NewJournal[entry](path)
	require.NoError(t, err)
	defer journal.Close()

	require.NoError(t, journal.Append(entry{Step: 1}))
	require.NoError(t, journal.Append(entry{Step: 2}))

	calls := 0
	err = journal.Range(func(_ uint64, _ entry) error {
		calls++
		return assert.AnError
	})

	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, calls)
}
