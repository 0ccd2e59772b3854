// Package orccodec decompresses ORC metadata and stream buffers.
//
// Compressed ORC buffers are a sequence of chunks, each prefixed by a 3-byte
// little-endian header holding (chunkLength << 1) | isOriginal. Original chunks
// are stored uncompressed; the rest are raw codec blocks.
package orccodec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

var (
	ErrUnsupportedCompression = errors.New("unsupported compression kind")
	ErrCorruptChunk           = errors.New("corrupt compressed chunk")
)

// Kind is the ORC CompressionKind enum.
type Kind int32

const (
	None   Kind = 0
	Zlib   Kind = 1
	Snappy Kind = 2
	Lzo    Kind = 3
	Lz4    Kind = 4
	Zstd   Kind = 5
)

func (k Kind) String() string {
	switch k {
	case None:
		return "NONE"
	case Zlib:
		return "ZLIB"
	case Snappy:
		return "SNAPPY"
	case Lzo:
		return "LZO"
	case Lz4:
		return "LZ4"
	case Zstd:
		return "ZSTD"
	default:
		return fmt.Sprintf("CompressionKind(%d)", int32(k))
	}
}

// ParseKind parses a compression name such as "zstd". Matching ignores case.
func ParseKind(s string) (Kind, error) {
	for k := None; k <= Zstd; k++ {
		if strings.EqualFold(s, k.String()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedCompression, s)
}

const (
	// ChunkHeaderSize is the size of the per-chunk header.
	ChunkHeaderSize = 3

	// DefaultBlockSize is the writer default compression block size.
	DefaultBlockSize = 256 * 1024

	// MaxChunkLength is the largest length a 3-byte header can carry.
	MaxChunkLength = 1<<23 - 1
)

// Decompressor turns a framed ORC buffer into plain bytes.
type Decompressor interface {
	Kind() Kind
	Decompress(src []byte) ([]byte, error)
}

// blockDecoder decodes src into dst, which has capacity for the chunk limit.
// Implementations fail or stop once the output would pass cap(dst), so a
// chunk never allocates more than the block size.
type blockDecoder func(dst, src []byte) ([]byte, error)

type chunkedDecompressor struct {
	kind      Kind
	blockSize int
	decode    blockDecoder
}

// NewDecompressor returns a Decompressor for kind. blockSize bounds the
// decompressed size of a single chunk; 0 selects DefaultBlockSize.
func NewDecompressor(kind Kind, blockSize uint64) (Decompressor, error) {
	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}
	if blockSize > MaxChunkLength {
		return nil, fmt.Errorf("compression block size %d exceeds %d", blockSize, MaxChunkLength)
	}

	d := &chunkedDecompressor{kind: kind, blockSize: int(blockSize)}
	switch kind {
	case None:
		return passthrough{}, nil
	case Zlib:
		d.decode = decodeDeflate
	case Snappy:
		d.decode = decodeSnappy
	case Lz4:
		d.decode = decodeLz4
	case Zstd:
		d.decode = decodeZstd
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, kind)
	}
	return d, nil
}

func (d *chunkedDecompressor) Kind() Kind { return d.kind }

func (d *chunkedDecompressor) Decompress(src []byte) ([]byte, error) {
	out := make([]byte, 0, len(src))
	pos := 0
	for pos < len(src) {
		if len(src)-pos < ChunkHeaderSize {
			return nil, fmt.Errorf("%w: truncated header at %d", ErrCorruptChunk, pos)
		}
		original, length := parseChunkHeader(src[pos:])
		pos += ChunkHeaderSize

		if length > len(src)-pos {
			return nil, fmt.Errorf("%w: chunk at %d claims %d bytes, %d remain", ErrCorruptChunk, pos, length, len(src)-pos)
		}
		chunk := src[pos : pos+length]
		pos += length

		if original {
			if length > d.blockSize {
				return nil, fmt.Errorf("%w: original chunk of %d bytes exceeds block size %d", ErrCorruptChunk, length, d.blockSize)
			}
			out = append(out, chunk...)
			continue
		}

		decoded, err := d.decode(make([]byte, 0, d.blockSize), chunk)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorruptChunk, d.kind, err)
		}
		if len(decoded) > d.blockSize {
			return nil, fmt.Errorf("%w: chunk decompressed to %d bytes, block size %d", ErrCorruptChunk, len(decoded), d.blockSize)
		}
		out = append(out, decoded...)
	}
	return out, nil
}

func parseChunkHeader(b []byte) (original bool, length int) {
	h := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
	return h&1 == 1, int(h >> 1)
}

// AppendChunkHeader appends the 3-byte header for a chunk of length bytes.
func AppendChunkHeader(dst []byte, length int, original bool) []byte {
	h := uint32(length) << 1 //nolint:gosec // length bounded by MaxChunkLength
	if original {
		h |= 1
	}
	return append(dst, byte(h), byte(h>>8), byte(h>>16))
}

type passthrough struct{}

func (passthrough) Kind() Kind { return None }

func (passthrough) Decompress(src []byte) ([]byte, error) { return src, nil }

func decodeDeflate(dst, src []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(src))
	defer r.Close()

	buf := bytes.NewBuffer(dst)
	if _, err := io.Copy(buf, io.LimitReader(r, int64(cap(dst))+1)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeSnappy(dst, src []byte) ([]byte, error) {
	n, err := snappy.DecodedLen(src)
	if err != nil {
		return nil, err
	}
	if n > cap(dst) {
		return nil, fmt.Errorf("snappy block decodes to %d bytes, limit %d", n, cap(dst))
	}
	return snappy.Decode(dst[:cap(dst)], src)
}

func decodeLz4(dst, src []byte) ([]byte, error) {
	dst = dst[:cap(dst)]
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}

var (
	zstdDecoder     *zstd.Decoder
	zstdDecoderErr  error
	zstdDecoderOnce sync.Once
)

// zstd decoders are safe for concurrent DecodeAll calls; one is shared. Its
// memory cap is the largest chunk a header can describe.
func sharedZstdDecoder() (*zstd.Decoder, error) {
	zstdDecoderOnce.Do(func() {
		zstdDecoder, zstdDecoderErr = zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(0),
			zstd.WithDecoderMaxMemory(MaxChunkLength+1),
		)
	})
	return zstdDecoder, zstdDecoderErr
}

func decodeZstd(dst, src []byte) ([]byte, error) {
	var h zstd.Header
	if err := h.Decode(src); err != nil {
		return nil, err
	}
	if h.HasFCS && h.FrameContentSize > uint64(cap(dst)) {
		return nil, fmt.Errorf("zstd frame declares %d bytes, limit %d", h.FrameContentSize, cap(dst))
	}

	dec, err := sharedZstdDecoder()
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return dec.DecodeAll(src, dst)
}
