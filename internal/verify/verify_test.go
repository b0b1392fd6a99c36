package verify

import (
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func md5hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

func writeFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "file.bin")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestVerified_Match(t *testing.T) {
	data := []byte("the quick brown fox")
	path := writeFile(t, data)

	ok, err := New(0).Verified(path, md5hex(data), int64(len(data)))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerified_CaseInsensitiveDigest(t *testing.T) {
	data := []byte("payload")
	path := writeFile(t, data)

	ok, err := New(0).Verified(path, strings.ToUpper(md5hex(data)), int64(len(data)))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerified_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.bin")

	ok, err := New(0).Verified(path, md5hex(nil), 0)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestVerified_SizeMismatchShortCircuits(t *testing.T) {
	data := []byte("some bytes")
	path := writeFile(t, data)

	// Digest is correct but the expected size is wrong; the check must fail
	// without it mattering.
	ok, err := New(0).Verified(path, md5hex(data), int64(len(data))+1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerified_DigestMismatch(t *testing.T) {
	data := []byte("actual contents")
	other := []byte("other contentsX")
	require.Equal(t, len(data), len(other))

	path := writeFile(t, data)

	ok, err := New(0).Verified(path, md5hex(other), int64(len(data)))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerified_FileLargerThanChunk(t *testing.T) {
	data := []byte(strings.Repeat("abcdefgh", 1000))
	path := writeFile(t, data)

	ok, err := New(64).Verified(path, md5hex(data), int64(len(data)))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerified_UnreadableFile(t *testing.T) {
	// A directory can be stat'd but not digested; that is a real I/O error,
	// not a missing file.
	dir := t.TempDir()
	info, statErr := os.Stat(dir)
	require.NoError(t, statErr)

	ok, err := New(0).Verified(dir, md5hex(nil), info.Size())
	if err == nil {
		t.Skip("platform allowed digesting a directory")
	}

	assert.False(t, ok)
	var verr *Error
	assert.ErrorAs(t, err, &verr)
}
