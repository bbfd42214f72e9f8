package watch

import (
	"strings"
	"testing"

	"github.com/fivetwenty-io/okapi/pkg/okapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoder_Feed(t *testing.T) {
	t.Parallel()
	t.Run("single complete frame", func(t *testing.T) {
		t.Parallel()

		decoder := NewDecoder(1024)

		frames, err := decoder.Feed([]byte(`{"type":"ADDED"}`))
		require.NoError(t, err)
		require.Len(t, frames, 1)
		assert.JSONEq(t, `{"type":"ADDED"}`, string(frames[0]))
		assert.Equal(t, 0, decoder.Buffered())
	})

	t.Run("frame split across chunks", func(t *testing.T) {
		t.Parallel()

		decoder := NewDecoder(1024)

		frames, err := decoder.Feed([]byte(`{"type":"ADD`))
		require.NoError(t, err)
		assert.Empty(t, frames)
		assert.Positive(t, decoder.Buffered())

		frames, err = decoder.Feed([]byte(`ED"}`))
		require.NoError(t, err)
		require.Len(t, frames, 1)
		assert.JSONEq(t, `{"type":"ADDED"}`, string(frames[0]))
		assert.Equal(t, 0, decoder.Buffered())
	})

	t.Run("multiple frames in one chunk", func(t *testing.T) {
		t.Parallel()

		decoder := NewDecoder(1024)

		frames, err := decoder.Feed([]byte(`{"type":"ADDED"}` + "\n" + `{"type":"DELETED"}` + "\n"))
		require.NoError(t, err)
		require.Len(t, frames, 2)
		assert.JSONEq(t, `{"type":"ADDED"}`, string(frames[0]))
		assert.JSONEq(t, `{"type":"DELETED"}`, string(frames[1]))
	})

	t.Run("second frame completes later", func(t *testing.T) {
		t.Parallel()

		decoder := NewDecoder(1024)

		frames, err := decoder.Feed([]byte(`{"type":"ADDED"}{"type":"MOD`))
		require.NoError(t, err)
		require.Len(t, frames, 1)

		frames, err = decoder.Feed([]byte(`IFIED"}`))
		require.NoError(t, err)
		require.Len(t, frames, 1)
		assert.JSONEq(t, `{"type":"MODIFIED"}`, string(frames[0]))
	})

	t.Run("whitespace between frames is skipped", func(t *testing.T) {
		t.Parallel()

		decoder := NewDecoder(1024)

		frames, err := decoder.Feed([]byte("\r\n  {\"a\":1}  \n\n  {\"b\":2}"))
		require.NoError(t, err)
		require.Len(t, frames, 2)
	})

	t.Run("garbage stays buffered without error", func(t *testing.T) {
		t.Parallel()

		decoder := NewDecoder(1024)

		frames, err := decoder.Feed([]byte(`not json at all`))
		require.NoError(t, err)
		assert.Empty(t, frames)
		assert.Positive(t, decoder.Buffered())
	})

	t.Run("overrunning the bound reports an error", func(t *testing.T) {
		t.Parallel()

		decoder := NewDecoder(32)

		// An opening brace that never closes.
		frames, err := decoder.Feed([]byte(`{"payload":"` + strings.Repeat("a", 64)))
		require.ErrorIs(t, err, okapi.ErrFrameTooLarge)
		assert.Empty(t, frames)
	})

	t.Run("frames before an overrun are still delivered", func(t *testing.T) {
		t.Parallel()

		decoder := NewDecoder(32)

		frames, err := decoder.Feed([]byte(`{"a":1}{"payload":"` + strings.Repeat("a", 64)))
		require.ErrorIs(t, err, okapi.ErrFrameTooLarge)
		require.Len(t, frames, 1)
		assert.JSONEq(t, `{"a":1}`, string(frames[0]))
	})

	t.Run("reset discards pending bytes", func(t *testing.T) {
		t.Parallel()

		decoder := NewDecoder(1024)

		_, err := decoder.Feed([]byte(`{"partial":`))
		require.NoError(t, err)
		assert.Positive(t, decoder.Buffered())

		decoder.Reset()
		assert.Equal(t, 0, decoder.Buffered())
	})
}
