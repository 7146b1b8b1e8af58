package blob

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_WriteReadOverwrite(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	ctx := context.Background()

	key := "calls/ac_1/audio.wav"
	require.NoError(t, s.Write(ctx, key, strings.NewReader("first"), 5, "audio/wav"))

	ok, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	// Same key overwrites, never duplicates.
	require.NoError(t, s.Write(ctx, key, strings.NewReader("second"), 6, "audio/wav"))

	rc, size, err := s.Read(ctx, key)
	require.NoError(t, err)
	defer rc.Close()

	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "second", string(b))
	assert.Equal(t, int64(len("second")), size)
}

func TestLocalStore_RejectsPathEscape(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	_, _, err := s.Read(context.Background(), "../outside")
	assert.ErrorIs(t, err, ErrInvalidKey)

	err = s.Write(context.Background(), "../outside", strings.NewReader("x"), 1, "text/plain")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestLocalStore_ReadMissing(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	_, _, err := s.Read(context.Background(), "calls/none/audio.wav")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_PublicURL(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	assert.Equal(t, "/v1/recordings/calls/ac_1/audio.wav", s.PublicURL("calls/ac_1/audio.wav"))
}

func TestLocalStore_Delete(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "calls/ac_2/audio.wav", strings.NewReader("x"), 1, "audio/wav"))
	require.NoError(t, s.Delete(ctx, "calls/ac_2/audio.wav"))

	ok, err := s.Exists(ctx, "calls/ac_2/audio.wav")
	require.NoError(t, err)
	assert.False(t, ok)
}
