package logutil

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactKey(t *testing.T) {
	assert.Equal(t, "********", RedactKey("short"))
	assert.Equal(t, "gsk_...wxyz", RedactKey("gsk_abcdefghijklmnopqrstuvwxyz"))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "line one line two", Sanitize("line one\r\nline two"))
	assert.Equal(t, "a b", Sanitize("a\x1b\tb"))

	long := strings.Repeat("é", 200)
	out := Sanitize(long)
	assert.True(t, strings.HasSuffix(out, "..."))
	assert.Equal(t, previewRunes+3, len([]rune(out)))
}

func TestRotatorKeepsArchives(t *testing.T) {
	w, err := Open(t.TempDir())
	require.NoError(t, err)
	defer w.Close()
	w.MaxBytes = 10

	line := []byte("0123456789")
	for i := 0; i < 4; i++ {
		n, err := w.Write(line)
		require.NoError(t, err)
		assert.Equal(t, len(line), n)
	}

	for _, p := range []string{w.Path(), w.archive(1), w.archive(2)} {
		data, err := os.ReadFile(p)
		require.NoError(t, err, p)
		assert.Equal(t, line, data, p)
	}
	_, err = os.Stat(w.archive(3))
	assert.True(t, os.IsNotExist(err), "only two archives are kept")
}

func TestRotatorAppendsToExistingFile(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir)
	require.NoError(t, err)
	_, err = w.Write([]byte("first\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	w, err = Open(dir)
	require.NoError(t, err)
	defer w.Close()
	_, err = w.Write([]byte("second\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(w.Path())
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(data))
}
