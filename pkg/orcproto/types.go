package orcproto

import (
	"fmt"
	"slices"
	"strings"
)

// TypeKind is the ORC Type.Kind enum.
type TypeKind int32

const (
	Boolean          TypeKind = 0
	Byte             TypeKind = 1
	Short            TypeKind = 2
	Int              TypeKind = 3
	Long             TypeKind = 4
	Float            TypeKind = 5
	Double           TypeKind = 6
	String           TypeKind = 7
	Binary           TypeKind = 8
	Timestamp        TypeKind = 9
	List             TypeKind = 10
	Map              TypeKind = 11
	Struct           TypeKind = 12
	Union            TypeKind = 13
	Decimal          TypeKind = 14
	Date             TypeKind = 15
	Varchar          TypeKind = 16
	Char             TypeKind = 17
	TimestampInstant TypeKind = 18
)

var typeKindNames = [...]string{
	"BOOLEAN", "BYTE", "SHORT", "INT", "LONG", "FLOAT", "DOUBLE", "STRING",
	"BINARY", "TIMESTAMP", "LIST", "MAP", "STRUCT", "UNION", "DECIMAL", "DATE",
	"VARCHAR", "CHAR", "TIMESTAMP_INSTANT",
}

func (k TypeKind) String() string {
	if k >= 0 && int(k) < len(typeKindNames) {
		return typeKindNames[k]
	}
	return fmt.Sprintf("TypeKind(%d)", int32(k))
}

// ParseTypeKind parses a kind name such as "struct". Matching ignores case.
func ParseTypeKind(s string) (TypeKind, error) {
	for i, name := range typeKindNames {
		if strings.EqualFold(s, name) {
			return TypeKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown type kind %q", s)
}

// IsCompound reports whether the kind carries child types.
func (k TypeKind) IsCompound() bool {
	switch k {
	case List, Map, Struct, Union:
		return true
	default:
		return false
	}
}

// StreamKind is the ORC Stream.Kind enum.
type StreamKind int32

const (
	StreamPresent          StreamKind = 0
	StreamData             StreamKind = 1
	StreamLength           StreamKind = 2
	StreamDictionaryData   StreamKind = 3
	StreamDictionaryCount  StreamKind = 4
	StreamSecondary        StreamKind = 5
	StreamRowIndex         StreamKind = 6
	StreamBloomFilter      StreamKind = 7
	StreamBloomFilterUTF8  StreamKind = 8
	StreamEncryptedIndex   StreamKind = 9
	StreamEncryptedData    StreamKind = 10
	StreamStripeStatistics StreamKind = 100
	StreamFileStatistics   StreamKind = 101
)

// IsIndex reports whether the stream lives in the stripe's index section.
func (k StreamKind) IsIndex() bool {
	switch k {
	case StreamRowIndex, StreamBloomFilter, StreamBloomFilterUTF8, StreamEncryptedIndex:
		return true
	default:
		return false
	}
}

// EncodingKind is the ORC ColumnEncoding.Kind enum.
type EncodingKind int32

const (
	EncodingDirect       EncodingKind = 0
	EncodingDictionary   EncodingKind = 1
	EncodingDirectV2     EncodingKind = 2
	EncodingDictionaryV2 EncodingKind = 3
)

// Stream describes one stream in a stripe.
type Stream struct {
	Kind   StreamKind
	Column uint32
	Length uint64
}

// ColumnEncoding describes how one column is encoded in a stripe.
type ColumnEncoding struct {
	Kind           EncodingKind
	DictionarySize uint32
	BloomEncoding  uint32
}

// StripeFooter is the per-stripe stream directory and column encodings.
type StripeFooter struct {
	Streams        []Stream
	Columns        []ColumnEncoding
	WriterTimezone string
}

// IndexLength sums the lengths of the index-section streams.
func (f *StripeFooter) IndexLength() uint64 {
	var n uint64
	for _, s := range f.Streams {
		if s.Kind.IsIndex() {
			n += s.Length
		}
	}
	return n
}

// DataLength sums the lengths of the data-section streams.
func (f *StripeFooter) DataLength() uint64 {
	var n uint64
	for _, s := range f.Streams {
		if !s.Kind.IsIndex() {
			n += s.Length
		}
	}
	return n
}

// Clone returns a deep copy of f.
func (f *StripeFooter) Clone() StripeFooter {
	return StripeFooter{
		Streams:        slices.Clone(f.Streams),
		Columns:        slices.Clone(f.Columns),
		WriterTimezone: f.WriterTimezone,
	}
}
