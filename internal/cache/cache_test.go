package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"ivr/internal/speech"
	"ivr/pkg/pcm"
)

var (
	_ speech.Cache = (*File)(nil)
	_ speech.Cache = (*Redis)(nil)
)

func TestFile_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "audio_files")

	c, err := NewFile(dir)
	require.NoError(t, err)

	_, ok, err := c.Get(ctx, "welcome-0a1b2c3d")
	require.NoError(t, err)
	assert.False(t, ok)

	clip, err := pcm.EncodeWAV([]float32{0, 0.1, -0.1}, pcm.SampleRate)
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, "welcome-0a1b2c3d", clip))

	data, ok, err := c.Get(ctx, "welcome-0a1b2c3d")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, clip, data)

	_, err = os.Stat(filepath.Join(dir, "welcome-0a1b2c3d.wav"))
	assert.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}

func TestFile_NamesClipsByFormat(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	c, err := NewFile(dir)
	require.NoError(t, err)

	mp3 := []byte("ID3\x04\x00\x00\x00\x00\x00\x00")
	require.NoError(t, c.Put(ctx, "menu-1", mp3))
	_, err = os.Stat(filepath.Join(dir, "menu-1.mp3"))
	assert.NoError(t, err)

	data, ok, err := c.Get(ctx, "menu-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, mp3, data)

	require.NoError(t, c.Put(ctx, "raw-1", []byte("opaque")))
	_, err = os.Stat(filepath.Join(dir, "raw-1"))
	assert.NoError(t, err)

	// re-synthesized in another format replaces the old file
	wav, err := pcm.EncodeWAV([]float32{0.2}, pcm.SampleRate)
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, "menu-1", wav))
	_, err = os.Stat(filepath.Join(dir, "menu-1.mp3"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	data, ok, err = c.Get(ctx, "menu-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, wav, data)
}

func TestFile_EmptyFileIsAMiss(t *testing.T) {
	dir := t.TempDir()
	c, err := NewFile(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "menu-1.wav"), nil, 0o644))

	_, ok, err := c.Get(context.Background(), "menu-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFile_RejectsPathKeys(t *testing.T) {
	c, err := NewFile(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "..", "../x", `a\b`} {
		_, _, err := c.Get(context.Background(), key)
		assert.Error(t, err, key)
		assert.Error(t, c.Put(context.Background(), key, []byte("x")), key)
	}
}

func TestRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("redis integration test needs docker")
	}

	ctx := context.Background()

	container, err := tcredis.Run(ctx,
		"docker.io/redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("* Ready to accept connections").
				WithOccurrence(1).
				WithStartupTimeout(1*time.Minute),
		),
	)
	require.NoError(t, err, "Failed to start redis container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	c, err := NewRedis(ctx, fmt.Sprintf("redis://%s:%s/0", host, port.Port()), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, ok, err := c.Get(ctx, "menu-deadbeef")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, "menu-deadbeef", []byte("RIFF")))

	data, ok, err := c.Get(ctx, "menu-deadbeef")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("RIFF"), data)

	ttl, err := c.client.TTL(ctx, keyPrefix+"menu-deadbeef").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)
}

func TestNewRedis_BadURL(t *testing.T) {
	_, err := NewRedis(context.Background(), "not-a-url", 0)
	assert.Error(t, err)
}
