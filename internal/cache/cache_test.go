package cache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "verso-cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache_StoreAndLookup(t *testing.T) {
	c := openTemp(t)

	e := Entry{
		SrcHash:  HashBytes([]byte("source")),
		DestPath: "src/main/java/V1/X.kt",
		OutHash:  HashBytes([]byte("output")),
	}
	require.NoError(t, c.Store("fp1", "src/main/kotlin/X.kt", e))

	got, err := c.Lookup("fp1", "src/main/kotlin/X.kt")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, e, *got)
}

func TestCache_MissOnUnknownKey(t *testing.T) {
	c := openTemp(t)

	got, err := c.Lookup("fp1", "never/seen.kt")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCache_FingerprintIsolation(t *testing.T) {
	c := openTemp(t)

	require.NoError(t, c.Store("fp1", "a.kt", Entry{SrcHash: "h", DestPath: "d", OutHash: "o"}))

	got, err := c.Lookup("fp2", "a.kt")
	require.NoError(t, err)
	assert.Nil(t, got, "entries are scoped to the ruleset fingerprint")
}

func TestCache_StoreOverwrites(t *testing.T) {
	c := openTemp(t)

	require.NoError(t, c.Store("fp", "a.kt", Entry{SrcHash: "h1", DestPath: "d", OutHash: "o1"}))
	require.NoError(t, c.Store("fp", "a.kt", Entry{SrcHash: "h2", DestPath: "d", OutHash: "o2"}))

	got, err := c.Lookup("fp", "a.kt")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "h2", got.SrcHash)
	assert.Equal(t, "o2", got.OutHash)
}

func TestHashBytes_Stable(t *testing.T) {
	assert.Equal(t, HashBytes([]byte("x")), HashBytes([]byte("x")))
	assert.NotEqual(t, HashBytes([]byte("x")), HashBytes([]byte("y")))
}
