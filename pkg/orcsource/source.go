// Package orcsource provides the byte-range access layer used to read ORC
// file tails and stripe footers.
package orcsource

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

var (
	ErrShortRead  = errors.New("short read")
	ErrOutOfRange = errors.New("range out of bounds")
)

// DataType is a hint passed to Source.ReadAt for caching and accounting layers.
type DataType string

const (
	DataTypeTail         DataType = "tail"
	DataTypeStripeFooter DataType = "stripe_footer"
)

// Source is the storage backend interface for one ORC file.
// All implementations must be safe for concurrent use.
type Source interface {
	Size() (int64, error)
	ReadAt(p []byte, off int64, dataType DataType) (int, error)
}

// Named is implemented by sources that can identify themselves, such as a
// file path or object key. Decorators forward the name of what they wrap.
type Named interface {
	Name() string
}

// Name returns the name of src, or "" if it has none.
func Name(src Source) string {
	if n, ok := src.(Named); ok {
		return n.Name()
	}
	return ""
}

// ReadRange reads exactly length bytes at off.
func ReadRange(src Source, off, length int64, dt DataType) ([]byte, error) {
	if off < 0 || length < 0 {
		return nil, fmt.Errorf("%w: offset %d length %d", ErrOutOfRange, off, length)
	}
	buf := make([]byte, length)
	if length == 0 {
		return buf, nil
	}

	n, err := src.ReadAt(buf, off, dt)
	if err != nil && !(errors.Is(err, io.EOF) && int64(n) == length) {
		return nil, fmt.Errorf("read %d bytes at %d: %w", length, off, err)
	}
	if int64(n) != length {
		return nil, fmt.Errorf("%w: got %d of %d bytes at %d", ErrShortRead, n, length, off)
	}
	return buf, nil
}

// readerAtSource adapts an io.ReaderAt with a known size.
type readerAtSource struct {
	r    io.ReaderAt
	size int64
}

// NewReaderAtSource wraps r, which must hold size bytes.
func NewReaderAtSource(r io.ReaderAt, size int64) Source {
	return &readerAtSource{r: r, size: size}
}

// NewBytesSource serves reads from an in-memory file image.
func NewBytesSource(data []byte) Source {
	return &readerAtSource{r: bytes.NewReader(data), size: int64(len(data))}
}

func (s *readerAtSource) Size() (int64, error) { return s.size, nil }

func (s *readerAtSource) ReadAt(p []byte, off int64, _ DataType) (int, error) {
	if off < 0 || off+int64(len(p)) > s.size {
		return 0, fmt.Errorf("%w: [%d, %d) of %d", ErrOutOfRange, off, off+int64(len(p)), s.size)
	}
	return s.r.ReadAt(p, off)
}
