package buffering

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trackingBody struct {
	io.Reader
	closed bool
}

func (b *trackingBody) Close() error {
	b.closed = true
	return nil
}

func newTestBody(t *testing.T, cfg Config, content string) (*Body, *trackingBody) {
	t.Helper()

	buf, err := New(cfg)
	require.NoError(t, err)

	src := &trackingBody{Reader: strings.NewReader(content)}

	return NewBody(src, buf), src
}

func TestBody(t *testing.T) {
	t.Run("peek then rewind replays from the first byte", func(t *testing.T) {
		body, _ := newTestBody(t, Config{}, "hello, world")
		defer body.Close()

		p := make([]byte, 5)
		n, err := io.ReadFull(body, p)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(p[:n]))

		require.NoError(t, body.Rewind())

		data, err := io.ReadAll(body)
		require.NoError(t, err)
		assert.Equal(t, "hello, world", string(data))
	})

	t.Run("rewind drains the source", func(t *testing.T) {
		body, _ := newTestBody(t, Config{}, "unread body")
		defer body.Close()

		require.NoError(t, body.Rewind())
		assert.EqualValues(t, len("unread body"), body.Buffer().Size())

		data, err := io.ReadAll(body)
		require.NoError(t, err)
		assert.Equal(t, "unread body", string(data))
	})

	t.Run("passes are identical after spilling", func(t *testing.T) {
		content := strings.Repeat("spill me ", 100)

		body, _ := newTestBody(t, Config{TmpDir: t.TempDir(), Threshold: 64, ProduceBlockSize: 50}, content)
		defer body.Close()

		for range 3 {
			require.NoError(t, body.Rewind())

			var out strings.Builder
			_, err := body.WriteTo(&out)
			require.NoError(t, err)
			assert.Equal(t, content, out.String())
		}

		assert.True(t, body.Buffer().Spilled())
	})

	t.Run("rewind reports overflow", func(t *testing.T) {
		body, _ := newTestBody(t, Config{BufferLimit: 4}, "too large")
		defer body.Close()

		assert.ErrorIs(t, body.Rewind(), ErrOverflow)
	})

	t.Run("read reports overflow", func(t *testing.T) {
		body, _ := newTestBody(t, Config{BufferLimit: 4}, "too large")
		defer body.Close()

		_, err := io.ReadAll(body)
		assert.ErrorIs(t, err, ErrOverflow)
	})

	t.Run("overflow during a peek is sticky", func(t *testing.T) {
		buf, err := New(Config{BufferLimit: 10})
		require.NoError(t, err)

		src := &trackingBody{Reader: io.MultiReader(
			strings.NewReader("AAAAAAAA"),
			strings.NewReader("BBBBB"),
			strings.NewReader("C"),
		)}

		body := NewBody(src, buf)
		defer body.Close()

		_, err = io.ReadAll(body)
		require.ErrorIs(t, err, ErrOverflow)

		assert.ErrorIs(t, body.Rewind(), ErrOverflow)

		_, err = body.Read(make([]byte, 4))
		assert.ErrorIs(t, err, ErrOverflow)

		_, err = body.WriteTo(io.Discard)
		assert.ErrorIs(t, err, ErrOverflow)
	})

	t.Run("source error is sticky", func(t *testing.T) {
		buf, err := New(Config{})
		require.NoError(t, err)

		reset := errors.New("connection reset")
		src := &trackingBody{Reader: io.MultiReader(
			strings.NewReader("partial"),
			iotest.ErrReader(reset),
		)}

		body := NewBody(src, buf)
		defer body.Close()

		_, err = io.ReadAll(body)
		require.ErrorIs(t, err, reset)

		assert.ErrorIs(t, body.Rewind(), reset)
	})

	t.Run("close closes source and removes spill file", func(t *testing.T) {
		body, src := newTestBody(t, Config{TmpDir: t.TempDir(), Threshold: 2}, "spilled body")

		require.NoError(t, body.Rewind())
		path := body.Buffer().Path()
		require.FileExists(t, path)

		require.NoError(t, body.Close())
		assert.True(t, src.closed)
		assert.NoFileExists(t, path)
	})

	t.Run("no body", func(t *testing.T) {
		buf, err := New(Config{})
		require.NoError(t, err)

		body := NewBody(http.NoBody, buf)
		defer body.Close()

		require.NoError(t, body.Rewind())

		data, err := io.ReadAll(body)
		require.NoError(t, err)
		assert.Empty(t, data)
	})
}

func TestEnableRequestBuffering(t *testing.T) {
	t.Run("wraps and marks the request", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("payload"))

		body, owned, err := EnableRequestBuffering(Config{}, r)
		require.NoError(t, err)
		defer body.Close()

		assert.True(t, owned)
		assert.Same(t, body, r.Body)
		assert.NotEmpty(t, r.Header.Get(BufferedHeader))
	})

	t.Run("is idempotent", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("payload"))

		outer, owned, err := EnableRequestBuffering(Config{}, r)
		require.NoError(t, err)
		require.True(t, owned)
		defer outer.Close()

		inner, owned, err := EnableRequestBuffering(Config{}, r)
		require.NoError(t, err)

		assert.False(t, owned)
		assert.Same(t, outer, inner)
	})

	t.Run("ignores a spoofed marker header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("payload"))
		r.Header.Set(BufferedHeader, "1")

		body, owned, err := EnableRequestBuffering(Config{}, r)
		require.NoError(t, err)
		defer body.Close()

		assert.True(t, owned)

		require.NoError(t, body.Rewind())

		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, "payload", string(data))
	})

	t.Run("invalid config", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("payload"))

		_, _, err := EnableRequestBuffering(Config{Threshold: -1}, r)
		assert.ErrorIs(t, err, ErrInvalidThreshold)
	})
}
