package storage

import (
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestLocalStorageStoreOpenDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir, []string{"application/pdf", "image/png"})
	require.NoError(t, err)
	store.now = func() time.Time { return time.Unix(1700000000, 0) }

	ref, err := store.Store("id-cards", "stu-1", pngHeader)
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^id-cards/stu-1_1700000000_[0-9a-f]{8}\.png$`), ref)

	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(ref)))
	require.NoError(t, err)

	file, contentType, err := store.Open(ref)
	require.NoError(t, err)
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	require.NoError(t, file.Close())
	require.Equal(t, pngHeader, data)
	require.Equal(t, "image/png", contentType)

	require.NoError(t, store.Delete(ref))
	require.NoError(t, store.Delete(ref))
	_, _, err = store.Open(ref)
	require.Error(t, err)
}

func TestLocalStorageRejectsDisallowedTypes(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir(), []string{"application/pdf"})
	require.NoError(t, err)

	_, err = store.Store("aadhar", "stu-1", []byte("plain text is not evidence"))
	require.ErrorIs(t, err, ErrUnsupportedType)
}

func TestLocalStorageRejectsEscapingRefs(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir(), nil)
	require.NoError(t, err)

	for _, ref := range []string{"../etc/passwd", "/etc/passwd", "nofolder", "aadhar/../../x"} {
		_, _, err := store.Open(ref)
		require.ErrorIs(t, err, ErrInvalidRef, ref)
	}
	_, err = store.Store("../up", "stu-1", pngHeader)
	require.ErrorIs(t, err, ErrInvalidRef)
}

func TestSniff(t *testing.T) {
	contentType, ext := Sniff([]byte("%PDF-1.4\n%âãÏÓ\n"))
	require.Equal(t, "application/pdf", contentType)
	require.Equal(t, ".pdf", ext)
}
