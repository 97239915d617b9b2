package buffering

import (
	"net/http"
	"strconv"
)

// ResponseWriter captures a handler's response body into a Buffer instead
// of sending it. Headers are shared with the wrapped writer; status and
// body are held back until Replay.
type ResponseWriter struct {
	http.ResponseWriter
	buf *Buffer

	statusCode  int
	wroteHeader bool
	err         error
}

// NewResponseWriter wraps w. The caller keeps ownership of buf.
func NewResponseWriter(w http.ResponseWriter, buf *Buffer) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w, buf: buf, statusCode: http.StatusOK}
}

// WriteHeader records the status code. Only the first call has effect.
func (rw *ResponseWriter) WriteHeader(statusCode int) {
	if rw.wroteHeader {
		return
	}

	rw.statusCode = statusCode
	rw.wroteHeader = true
}

// Write appends to the buffer. The first failure is kept and returned by
// every later call and by Err.
func (rw *ResponseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}

	if rw.err != nil {
		return 0, rw.err
	}

	n, err := rw.buf.Write(b)
	if err != nil {
		rw.err = err
	}

	return n, err
}

// StatusCode returns the captured status, http.StatusOK by default.
func (rw *ResponseWriter) StatusCode() int {
	return rw.statusCode
}

// Err returns the first buffering error seen by Write.
func (rw *ResponseWriter) Err() error {
	return rw.err
}

// Buffer returns the capture buffer.
func (rw *ResponseWriter) Buffer() *Buffer {
	return rw.buf
}

// Replay sends the captured status and a fresh read pass of the body to
// the wrapped writer. Content-Length is set to the buffered size for
// statuses that carry a body.
func (rw *ResponseWriter) Replay() error {
	if bodyAllowedForStatus(rw.statusCode) {
		rw.Header().Set("Content-Length", strconv.FormatInt(rw.buf.Size(), 10))
	}

	rw.ResponseWriter.WriteHeader(rw.statusCode)

	_, err := rw.buf.NewReader().WriteTo(rw.ResponseWriter)

	return err
}

// Flush does nothing. The captured response is sent only by Replay.
func (rw *ResponseWriter) Flush() {}

// FlushError does nothing and reports no error, so that an
// http.ResponseController stops here instead of flushing the wrapped
// writer before Replay.
func (rw *ResponseWriter) FlushError() error {
	return nil
}

// Unwrap returns the underlying ResponseWriter for middleware chaining.
// Flushes never reach it; see FlushError.
func (rw *ResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// bodyAllowedForStatus reports whether a response with the given status
// may include a body per RFC 9110 Section 6.4.1.
func bodyAllowedForStatus(status int) bool {
	switch {
	case status >= 100 && status <= 199:
		return false
	case status == http.StatusNoContent:
		return false
	case status == http.StatusNotModified:
		return false
	}

	return true
}
