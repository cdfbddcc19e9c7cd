package offline

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waveline/feedsync/internal/feed"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "snapshots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func cachedItem(id string, seq int) feed.Item {
	return feed.Item{
		ID:        id,
		Seq:       seq,
		CreatedAt: time.Unix(1700000000+int64(seq), 0).UTC(),
		Votes:     seq,
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	c := openTestCache(t)

	items := []feed.Item{cachedItem("a", 0), cachedItem("b", 1), cachedItem("c", 2)}
	require.NoError(t, c.Save("parent=post-1", items))

	got, ok, err := c.Load("parent=post-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, items, got)
}

func TestLoadUnknownScope(t *testing.T) {
	c := openTestCache(t)

	got, ok, err := c.Load("parent=missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestSaveReplacesPreviousSnapshot(t *testing.T) {
	c := openTestCache(t)

	require.NoError(t, c.Save("root", []feed.Item{cachedItem("a", 0)}))
	require.NoError(t, c.Save("root", []feed.Item{cachedItem("b", 0), cachedItem("c", 1)}))

	got, ok, err := c.Load("root")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
}

func TestScopesAreIsolated(t *testing.T) {
	c := openTestCache(t)

	require.NoError(t, c.Save("parent=p1", []feed.Item{cachedItem("a", 0)}))
	require.NoError(t, c.Save("parent=p2", []feed.Item{cachedItem("x", 0)}))

	got, ok, err := c.Load("parent=p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", got[0].ID)
}

func TestPruneDropsOnlyStaleRows(t *testing.T) {
	c := openTestCache(t)

	require.NoError(t, c.Save("old", []feed.Item{cachedItem("a", 0)}))
	require.NoError(t, c.db.Model(&snapshotRow{}).
		Where("scope = ?", "old").
		Update("updated_at", time.Now().UTC().Add(-48*time.Hour)).Error)
	require.NoError(t, c.Save("fresh", []feed.Item{cachedItem("b", 0)}))

	dropped, err := c.Prune(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dropped)

	_, ok, err := c.Load("old")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = c.Load("fresh")
	require.NoError(t, err)
	assert.True(t, ok)
}
