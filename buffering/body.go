package buffering

import (
	"errors"
	"io"
	"net/http"
)

// BufferedHeader marks a request whose body has already been wrapped by
// EnableRequestBuffering.
const BufferedHeader = "X-Buffered-Request"

// Body is an io.ReadCloser that owns a message body through a Buffer.
//
// Until the raw source reaches EOF, Read passes source bytes through and
// records them in the buffer, so a caller may peek at the body without
// losing it. Rewind drains what is left of the source and restarts
// reading from the first byte.
//
// The first source or buffer error is sticky: every later Read, WriteTo
// and Rewind returns it, so a body that lost bytes is never replayed.
type Body struct {
	src     io.ReadCloser
	buf     *Buffer
	srcDone bool
	pass    *Reader
	err     error
}

// NewBody wraps src. The Body takes ownership of both src and buf.
func NewBody(src io.ReadCloser, buf *Buffer) *Body {
	return &Body{src: src, buf: buf, srcDone: src == nil || src == http.NoBody}
}

// Buffer returns the underlying buffer.
func (b *Body) Buffer() *Buffer {
	return b.buf
}

// Read implements io.Reader.
func (b *Body) Read(p []byte) (int, error) {
	if b.err != nil {
		return 0, b.err
	}

	if !b.srcDone {
		n, err := b.src.Read(p)
		if n > 0 {
			if _, werr := b.buf.Write(p[:n]); werr != nil {
				b.err = werr
				return 0, werr
			}
		}

		switch {
		case errors.Is(err, io.EOF):
			b.srcDone = true
		case err != nil:
			b.err = err
		}

		return n, err
	}

	if b.pass == nil {
		return 0, io.EOF
	}

	return b.pass.Read(p)
}

// WriteTo implements io.WriterTo for rewound bodies so that copies stream
// in ProduceBlockSize chunks.
func (b *Body) WriteTo(w io.Writer) (int64, error) {
	if b.err != nil {
		return 0, b.err
	}

	if b.srcDone && b.pass != nil {
		return b.pass.WriteTo(w)
	}

	return io.Copy(w, struct{ io.Reader }{b})
}

// Rewind reads the remaining source into the buffer and starts a fresh
// pass at offset zero. Buffer errors such as ErrOverflow are returned
// unchanged, including one first seen by an earlier Read.
func (b *Body) Rewind() error {
	if b.err != nil {
		return b.err
	}

	if !b.srcDone {
		if _, err := b.buf.ReadFrom(b.src); err != nil {
			b.err = err
			return err
		}

		b.srcDone = true
	}

	b.pass = b.buf.NewReader()

	return nil
}

// Close closes the source and the buffer, removing any spill file.
func (b *Body) Close() error {
	var srcErr error
	if b.src != nil {
		srcErr = b.src.Close()
	}

	return errors.Join(srcErr, b.buf.Close())
}

// EnableRequestBuffering replaces r.Body with a *Body. It is idempotent:
// when an outer layer already wrapped the body, that Body is returned with
// owned set to false. When owned is true the caller must Close the Body.
func EnableRequestBuffering(cfg Config, r *http.Request) (body *Body, owned bool, err error) {
	if len(r.Header.Values(BufferedHeader)) > 0 {
		if existing, ok := r.Body.(*Body); ok {
			return existing, false, nil
		}
	}

	buf, err := New(cfg)
	if err != nil {
		return nil, false, err
	}

	body = NewBody(r.Body, buf)
	r.Body = body
	r.Header.Set(BufferedHeader, "1")

	return body, true, nil
}
