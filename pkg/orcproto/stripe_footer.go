// Package orcproto decodes the protobuf-encoded ORC stripe footer.
package orcproto

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

var ErrMalformed = errors.New("malformed protobuf message")

// StripeFooter field numbers.
const (
	fieldStreams        protowire.Number = 1
	fieldColumns        protowire.Number = 2
	fieldWriterTimezone protowire.Number = 3
)

// Stream and ColumnEncoding field numbers.
const (
	fieldKind           protowire.Number = 1
	fieldColumn         protowire.Number = 2
	fieldLength         protowire.Number = 3
	fieldDictionarySize protowire.Number = 2
	fieldBloomEncoding  protowire.Number = 3
)

// DecodeStripeFooter parses a decompressed stripe footer. Unknown fields are skipped.
func DecodeStripeFooter(b []byte) (*StripeFooter, error) {
	f := &StripeFooter{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldStreams && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			s, err := decodeStream(v)
			if err != nil {
				return 0, fmt.Errorf("stream %d: %w", len(f.Streams), err)
			}
			f.Streams = append(f.Streams, s)
			return n, nil
		case num == fieldColumns && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			c, err := decodeColumnEncoding(v)
			if err != nil {
				return 0, fmt.Errorf("column encoding %d: %w", len(f.Columns), err)
			}
			f.Columns = append(f.Columns, c)
			return n, nil
		case num == fieldWriterTimezone && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			f.WriterTimezone = string(v)
			return n, nil
		default:
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
	})
	if err != nil {
		return nil, fmt.Errorf("stripe footer: %w", err)
	}
	return f, nil
}

func decodeStream(b []byte) (Stream, error) {
	var s Stream
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.VarintType {
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
		v, n := protowire.ConsumeVarint(b)
		switch num {
		case fieldKind:
			s.Kind = StreamKind(int32(v)) //nolint:gosec // enum values are small
		case fieldColumn:
			s.Column = uint32(v) //nolint:gosec // proto uint32 field
		case fieldLength:
			s.Length = v
		}
		return n, nil
	})
	return s, err
}

func decodeColumnEncoding(b []byte) (ColumnEncoding, error) {
	var c ColumnEncoding
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.VarintType {
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
		v, n := protowire.ConsumeVarint(b)
		switch num {
		case fieldKind:
			c.Kind = EncodingKind(int32(v)) //nolint:gosec // enum values are small
		case fieldDictionarySize:
			c.DictionarySize = uint32(v) //nolint:gosec // proto uint32 field
		case fieldBloomEncoding:
			c.BloomEncoding = uint32(v) //nolint:gosec // proto uint32 field
		}
		return n, nil
	})
	return c, err
}

// walkFields calls fn for each field in b. fn receives the bytes after the tag
// and returns how many of them the field value consumed.
func walkFields(b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return nil
}

// Marshal encodes f in the stripe footer wire format.
func (f *StripeFooter) Marshal() []byte {
	var b []byte
	for _, s := range f.Streams {
		var m []byte
		m = appendVarintField(m, fieldKind, uint64(s.Kind)) //nolint:gosec // enum values are non-negative
		m = appendVarintField(m, fieldColumn, uint64(s.Column))
		m = appendVarintField(m, fieldLength, s.Length)
		b = protowire.AppendTag(b, fieldStreams, protowire.BytesType)
		b = protowire.AppendBytes(b, m)
	}
	for _, c := range f.Columns {
		var m []byte
		m = appendVarintField(m, fieldKind, uint64(c.Kind)) //nolint:gosec // enum values are non-negative
		if c.DictionarySize != 0 {
			m = appendVarintField(m, fieldDictionarySize, uint64(c.DictionarySize))
		}
		if c.BloomEncoding != 0 {
			m = appendVarintField(m, fieldBloomEncoding, uint64(c.BloomEncoding))
		}
		b = protowire.AppendTag(b, fieldColumns, protowire.BytesType)
		b = protowire.AppendBytes(b, m)
	}
	if f.WriterTimezone != "" {
		b = protowire.AppendTag(b, fieldWriterTimezone, protowire.BytesType)
		b = protowire.AppendString(b, f.WriterTimezone)
	}
	return b
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}
