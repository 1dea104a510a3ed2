package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "nested", "journal.db"), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestClaim_FirstOnly(t *testing.T) {
	j := openTestJournal(t)

	first, err := j.Claim("mainnet/0x01/3/in/0xaa")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := j.Claim("mainnet/0x01/3/in/0xaa")
	require.NoError(t, err)
	assert.False(t, again)

	other, err := j.Claim("mainnet/0x01/3/out/0xbb")
	require.NoError(t, err)
	assert.True(t, other)

	n, err := j.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPrune_DropsExpired(t *testing.T) {
	j := openTestJournal(t)
	base := time.Unix(1_700_000_000, 0)

	j.now = func() time.Time { return base }
	_, err := j.Claim("old")
	require.NoError(t, err)

	j.now = func() time.Time { return base.Add(50 * time.Minute) }
	_, err = j.Claim("fresh")
	require.NoError(t, err)

	j.now = func() time.Time { return base.Add(90 * time.Minute) }
	removed, err := j.Prune()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	first, err := j.Claim("old")
	require.NoError(t, err)
	assert.True(t, first, "expired key is claimable again")

	first, err = j.Claim("fresh")
	require.NoError(t, err)
	assert.False(t, first)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path, time.Hour)
	require.NoError(t, err)
	_, err = j.Claim("k")
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = Open(path, time.Hour)
	require.NoError(t, err)
	defer j.Close()

	first, err := j.Claim("k")
	require.NoError(t, err)
	assert.False(t, first)
}
