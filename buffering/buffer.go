package buffering

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultThreshold is the number of bytes kept in memory before a
	// buffer spills to a temporary file.
	DefaultThreshold = 30 * 1024

	// DefaultProduceBlockSize is the chunk size of read passes.
	DefaultProduceBlockSize = 30 * 1024
)

// SpillObserver is notified once per buffer when it moves to a file.
type SpillObserver interface {
	ObserveSpill(size int64)
}

// Config configures spill buffers.
type Config struct {
	// TmpDir is the directory spill files are created in. Defaults to
	// os.TempDir().
	TmpDir string

	// Threshold is the number of bytes held in memory. A write that would
	// take the total above it moves the whole buffer to a file. When zero,
	// DefaultThreshold is used.
	Threshold int

	// ProduceBlockSize bounds the size of chunks produced by read passes.
	// When zero, DefaultProduceBlockSize is used.
	ProduceBlockSize int

	// BufferLimit is the maximum total size in bytes. When zero, the size
	// is unlimited.
	BufferLimit int64

	// Logger receives spill-file cleanup failures. Defaults to a no-op
	// logger.
	Logger *zap.Logger

	// Observer, when set, is told about every spill.
	Observer SpillObserver
}

// Validate reports whether cfg holds usable values.
func (cfg Config) Validate() error {
	if cfg.Threshold < 0 {
		return ErrInvalidThreshold
	}

	if cfg.ProduceBlockSize < 0 {
		return ErrInvalidBlockSize
	}

	if cfg.BufferLimit < 0 {
		return ErrInvalidBufferLimit
	}

	return nil
}

func (cfg Config) withDefaults() Config {
	if cfg.TmpDir == "" {
		cfg.TmpDir = os.TempDir()
	}

	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}

	if cfg.ProduceBlockSize == 0 {
		cfg.ProduceBlockSize = DefaultProduceBlockSize
	}

	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return cfg
}

// storage is where buffered bytes live: either *memoryStorage or
// *fileStorage. A buffer moves from the first to the second at most once.
type storage interface {
	io.ReaderAt
	write(p []byte) error
	release() error
}

type memoryStorage struct {
	data []byte
}

func (m *memoryStorage) write(p []byte) error {
	m.data = append(m.data, p...)
	return nil
}

func (m *memoryStorage) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}

	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}

	return n, nil
}

func (m *memoryStorage) release() error {
	m.data = nil
	return nil
}

type fileStorage struct {
	path string
	file *os.File
}

func (f *fileStorage) write(p []byte) error {
	_, err := f.file.Write(p)
	return err
}

func (f *fileStorage) ReadAt(p []byte, off int64) (int, error) {
	return f.file.ReadAt(p, off)
}

func (f *fileStorage) release() error {
	return errors.Join(f.file.Close(), os.Remove(f.path))
}

// Buffer accumulates a byte stream in memory up to a threshold, then in a
// temporary file. It has one write phase followed by any number of
// sequential read passes. A Buffer is owned by a single message and is not
// safe for concurrent use.
type Buffer struct {
	cfg     Config
	store   storage
	size    int64
	reading bool
	closed  bool
}

// New returns an empty in-memory buffer.
func New(cfg Config) (*Buffer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Buffer{
		cfg:   cfg.withDefaults(),
		store: &memoryStorage{},
	}, nil
}

// Write appends p. It fails with ErrOverflow, leaving the buffer
// unchanged, when the configured limit would be exceeded.
func (b *Buffer) Write(p []byte) (int, error) {
	switch {
	case b.closed:
		return 0, ErrClosed
	case b.reading:
		return 0, ErrWriteAfterRead
	case len(p) == 0:
		return 0, nil
	}

	next := b.size + int64(len(p))
	if b.cfg.BufferLimit > 0 && next > b.cfg.BufferLimit {
		return 0, ErrOverflow
	}

	switch s := b.store.(type) {
	case *memoryStorage:
		if next > int64(b.cfg.Threshold) {
			fs, err := b.spill(s.data, p)
			if err != nil {
				return 0, err
			}

			s.release()
			b.store = fs
		} else {
			s.write(p)
		}
	case *fileStorage:
		if err := s.write(p); err != nil {
			return 0, fmt.Errorf("buffering: write spill file: %w", err)
		}
	}

	b.size = next

	return len(p), nil
}

// spill creates a uniquely named file holding head followed by tail.
func (b *Buffer) spill(head, tail []byte) (*fileStorage, error) {
	name := strings.ReplaceAll(uuid.NewString(), "-", "")
	path := filepath.Join(b.cfg.TmpDir, name)

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("buffering: create spill file: %w", err)
	}

	fs := &fileStorage{path: path, file: file}

	if err := fs.write(head); err != nil {
		fs.release()
		return nil, fmt.Errorf("buffering: write spill file: %w", err)
	}

	if err := fs.write(tail); err != nil {
		fs.release()
		return nil, fmt.Errorf("buffering: write spill file: %w", err)
	}

	if b.cfg.Observer != nil {
		b.cfg.Observer.ObserveSpill(b.size + int64(len(tail)))
	}

	return fs, nil
}

// ReadFrom drains r into the buffer in ProduceBlockSize chunks.
func (b *Buffer) ReadFrom(r io.Reader) (int64, error) {
	chunk := make([]byte, b.cfg.ProduceBlockSize)

	var total int64

	for {
		n, err := r.Read(chunk)
		if n > 0 {
			if _, werr := b.Write(chunk[:n]); werr != nil {
				return total, werr
			}

			total += int64(n)
		}

		if errors.Is(err, io.EOF) {
			return total, nil
		}

		if err != nil {
			return total, err
		}
	}
}

// NewReader starts a read pass from offset zero. Once a pass has started
// the buffer no longer accepts writes.
func (b *Buffer) NewReader() *Reader {
	b.reading = true
	return &Reader{buf: b}
}

// NewReadCloser starts a read pass whose Close closes the buffer. It hands
// buffer ownership to whoever consumes the pass.
func (b *Buffer) NewReadCloser() io.ReadCloser {
	return &ownedReader{Reader: b.NewReader()}
}

// Size returns the number of bytes written, wherever they are stored.
func (b *Buffer) Size() int64 {
	return b.size
}

// Spilled reports whether the buffer has moved to a file.
func (b *Buffer) Spilled() bool {
	_, ok := b.store.(*fileStorage)
	return ok
}

// Path returns the spill file path, or an empty string while in memory.
func (b *Buffer) Path() string {
	if fs, ok := b.store.(*fileStorage); ok {
		return fs.path
	}

	return ""
}

// Close releases the buffer and removes its spill file. Removal failures
// are logged and returned. Close is idempotent.
func (b *Buffer) Close() error {
	if b.closed {
		return nil
	}

	b.closed = true

	err := b.store.release()
	if err != nil {
		b.cfg.Logger.Warn("remove spill file",
			zap.String("path", b.Path()),
			zap.Error(err),
		)
	}

	return err
}

// Reader is one sequential read pass over a Buffer.
type Reader struct {
	buf *Buffer
	off int64
}

// Next returns the next chunk of at most ProduceBlockSize bytes, or io.EOF
// once the pass has reached the end of the buffer.
func (r *Reader) Next() ([]byte, error) {
	if r.buf.closed {
		return nil, ErrClosed
	}

	remaining := r.buf.size - r.off
	if remaining <= 0 {
		return nil, io.EOF
	}

	chunk := make([]byte, min(int64(r.buf.cfg.ProduceBlockSize), remaining))

	n, err := r.buf.store.ReadAt(chunk, r.off)
	r.off += int64(n)

	if n < len(chunk) {
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}

		return chunk[:n], fmt.Errorf("buffering: read spill file: %w", err)
	}

	return chunk, nil
}

// Read implements io.Reader. Each call returns at most ProduceBlockSize
// bytes.
func (r *Reader) Read(p []byte) (int, error) {
	if r.buf.closed {
		return 0, ErrClosed
	}

	remaining := r.buf.size - r.off
	if remaining <= 0 {
		return 0, io.EOF
	}

	if len(p) == 0 {
		return 0, nil
	}

	limit := min(int64(len(p)), int64(r.buf.cfg.ProduceBlockSize), remaining)

	n, err := r.buf.store.ReadAt(p[:limit], r.off)
	r.off += int64(n)

	if int64(n) < limit {
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}

		return n, fmt.Errorf("buffering: read spill file: %w", err)
	}

	return n, nil
}

// WriteTo implements io.WriterTo, streaming the rest of the pass in
// ProduceBlockSize chunks.
func (r *Reader) WriteTo(w io.Writer) (int64, error) {
	var total int64

	for {
		chunk, err := r.Next()
		if errors.Is(err, io.EOF) {
			return total, nil
		}

		if err != nil {
			return total, err
		}

		n, err := w.Write(chunk)
		total += int64(n)

		if err != nil {
			return total, err
		}
	}
}

type ownedReader struct {
	*Reader
}

func (o *ownedReader) Close() error {
	return o.buf.Close()
}
