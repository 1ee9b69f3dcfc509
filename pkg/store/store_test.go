package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/txgraph/txgraph"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	g, ok := txgraph.New(txgraph.Options{AutoGC: -1})
	require.True(t, ok)
	s, err := Open(filepath.Join(t.TempDir(), "badger"), g, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutThenGetWithinSameTransaction(t *testing.T) {
	s := openTestStore(t)
	tx, err := s.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.Put("checking", []byte("100")))
	v, err := tx.Get("checking")
	require.NoError(t, err)
	assert.Equal(t, "100", string(v))
	require.NoError(t, tx.Commit())
}

func TestCommittedWriteIsVisibleToLaterTransaction(t *testing.T) {
	s := openTestStore(t)

	tx1, err := s.Begin()
	require.NoError(t, err)
	require.NoError(t, tx1.Put("saving", []byte("500")))
	require.NoError(t, tx1.Commit())

	tx2, err := s.Begin()
	require.NoError(t, err)
	v, err := tx2.Get("saving")
	require.NoError(t, err)
	assert.Equal(t, "500", string(v))
	require.NoError(t, tx2.Commit())
}

func TestWriteSkewRejectsSecondCommitter(t *testing.T) {
	s := openTestStore(t)

	tx1, err := s.Begin()
	require.NoError(t, err)
	tx2, err := s.Begin()
	require.NoError(t, err)

	_, err = tx1.Get("doctors")
	assert.Error(t, err, "expected doctors to be absent")
	_, err = tx2.Get("doctors")
	assert.Error(t, err, "expected doctors to be absent")

	require.NoError(t, tx1.Put("doctors", []byte("t1-on-call")))
	require.NoError(t, tx1.Commit())

	require.NoError(t, tx2.Put("doctors", []byte("t2-on-call")))
	assert.ErrorIs(t, tx2.Commit(), ErrConflict)
}

func TestRollbackDiscardsBufferedWrites(t *testing.T) {
	s := openTestStore(t)
	tx, err := s.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.Put("dots", []byte("1")))
	tx.Rollback()

	tx2, err := s.Begin()
	require.NoError(t, err)
	_, err = tx2.Get("dots")
	assert.Error(t, err, "expected dots to be absent after rollback")
	require.NoError(t, tx2.Commit())
}

func TestDeleteBuffersRemoval(t *testing.T) {
	s := openTestStore(t)
	tx1, err := s.Begin()
	require.NoError(t, err)
	require.NoError(t, tx1.Put("mytab", []byte("v")))
	require.NoError(t, tx1.Commit())
	// autogc is off in openTestStore: reclaim tx1 so it is no longer a
	// committed writer of mytab that tx2's delete would conflict with.
	s.GC()

	tx2, err := s.Begin()
	require.NoError(t, err)
	require.NoError(t, tx2.Delete("mytab"))
	_, err = tx2.Get("mytab")
	assert.Error(t, err)
	require.NoError(t, tx2.Commit())

	tx3, err := s.Begin()
	require.NoError(t, err)
	_, err = tx3.Get("mytab")
	assert.Error(t, err)
	require.NoError(t, tx3.Commit())
}
