package system

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindLatest(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.png")
	fresh := filepath.Join(dir, "look.PDF")
	require.NoError(t, os.WriteFile(old, []byte("a"), 0644))
	require.NoError(t, os.WriteFile(fresh, []byte("b"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("c"), 0644))

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	got, err := FindLatestInput(dir)
	require.NoError(t, err)
	assert.Equal(t, fresh, got)

	got, err = FindLatestImage(fresh)
	require.NoError(t, err)
	assert.Equal(t, old, got)

	_, err = FindLatest(dir, []string{".mp4"})
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger(&buf, "warn", false)
	require.NoError(t, err)

	log.Info().Msg("hidden")
	log.Warn().Str("component", "test").Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"component":"test"`)

	_, err = NewLogger(&buf, "chatty", false)
	assert.Error(t, err)
}

func TestPickEncoder(t *testing.T) {
	assert.Equal(t, "h264_nvenc", pickEncoder(" V....D h264_nvenc  NVIDIA NVENC"))
	assert.Equal(t, "libx264", pickEncoder(""))
	assert.Equal(t, 28, DefaultQuality("h264_nvenc"))
	assert.Equal(t, 23, DefaultQuality("libx264"))
}

func TestCurrentUsage(t *testing.T) {
	u, err := CurrentUsage()
	if err != nil {
		t.Skipf("process stats unavailable: %v", err)
	}
	assert.Greater(t, u.RSSBytes, uint64(0))
}
