package orcmeta

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/golang/snappy"
	"github.com/stretchr/testify/require"

	"github.com/enigmarikki/cudf/pkg/orccodec"
	"github.com/enigmarikki/cudf/pkg/orcproto"
	"github.com/enigmarikki/cudf/pkg/orcsource"
)

const (
	fixtureIndexLength = 8
	fixtureDataLength  = 16
)

var fixtureTail = []byte("ORCTAIL")

type fixtureStripe struct {
	rows    uint64
	noIndex bool
}

type fixture struct {
	data   []byte
	footer *FileFooter
}

func (f fixture) source() orcsource.Source { return orcsource.NewBytesSource(f.data) }

func uint32p(v uint32) *uint32 { return &v }

// flatSchema is a root struct of one long and one string column.
func flatSchema() []SchemaNode {
	return []SchemaNode{
		{Kind: orcproto.Struct, Subtypes: []int{1, 2}, FieldNames: []string{"id", "name"}},
		{Kind: orcproto.Long},
		{Kind: orcproto.String},
	}
}

// nestedSchema:
//
//	0 struct<a, c, d>
//	1   a struct<b, x>
//	2     b struct<e, f>
//	3       e list
//	4         int
//	5       f string
//	6     x int
//	7   c decimal(10, 2)
//	8   d map
//	9     string
//	10    long
func nestedSchema() []SchemaNode {
	return []SchemaNode{
		{Kind: orcproto.Struct, Subtypes: []int{1, 7, 8}, FieldNames: []string{"a", "c", "d"}},
		{Kind: orcproto.Struct, Subtypes: []int{2, 6}, FieldNames: []string{"b", "x"}},
		{Kind: orcproto.Struct, Subtypes: []int{3, 5}, FieldNames: []string{"e", "f"}},
		{Kind: orcproto.List, Subtypes: []int{4}},
		{Kind: orcproto.Int},
		{Kind: orcproto.String},
		{Kind: orcproto.Int},
		{Kind: orcproto.Decimal, Scale: uint32p(2)},
		{Kind: orcproto.Map, Subtypes: []int{9, 10}},
		{Kind: orcproto.String},
		{Kind: orcproto.Long},
	}
}

// buildFixture lays out stripes back to back, each followed by its encoded
// footer, and ends the file with a tail whose last byte is id. tailDecoder
// uses that byte to pick the file footer.
func buildFixture(t *testing.T, id byte, kind orccodec.Kind, types []SchemaNode, stripes ...fixtureStripe) fixture {
	t.Helper()

	var buf bytes.Buffer
	ff := &FileFooter{
		Types:       types,
		Compression: kind,
	}

	for i, s := range stripes {
		info := StripeInfo{
			Offset:       uint64(buf.Len()),
			DataLength:   fixtureDataLength,
			NumberOfRows: s.rows,
		}
		sf := orcproto.StripeFooter{
			Columns:        []orcproto.ColumnEncoding{{Kind: orcproto.EncodingDirect}, {Kind: orcproto.EncodingDirectV2}},
			WriterTimezone: "UTC",
		}
		if !s.noIndex {
			info.IndexLength = fixtureIndexLength
			sf.Streams = append(sf.Streams, orcproto.Stream{Kind: orcproto.StreamRowIndex, Column: 1, Length: fixtureIndexLength})
		}
		sf.Streams = append(sf.Streams, orcproto.Stream{Kind: orcproto.StreamData, Column: 1, Length: fixtureDataLength})

		buf.Write(bytes.Repeat([]byte{byte(i)}, int(info.IndexLength+info.DataLength)))

		encoded := encodeFooter(kind, sf.Marshal())
		info.FooterLength = uint64(len(encoded))
		buf.Write(encoded)

		ff.Stripes = append(ff.Stripes, info)
		ff.NumberOfRows += s.rows
	}

	buf.Write(fixtureTail)
	buf.WriteByte(id)

	return fixture{data: buf.Bytes(), footer: ff}
}

func encodeFooter(kind orccodec.Kind, raw []byte) []byte {
	switch kind {
	case orccodec.None:
		return raw
	case orccodec.Snappy:
		c := snappy.Encode(nil, raw)
		return append(orccodec.AppendChunkHeader(nil, len(c), false), c...)
	default:
		return append(orccodec.AppendChunkHeader(nil, len(raw), true), raw...)
	}
}

func tailDecoder(footers ...*FileFooter) FooterDecoder {
	return FooterDecoderFunc(func(src orcsource.Source) (*FileFooter, error) {
		size, err := src.Size()
		if err != nil {
			return nil, err
		}
		b, err := orcsource.ReadRange(src, size-1, 1, orcsource.DataTypeTail)
		if err != nil {
			return nil, err
		}
		if int(b[0]) >= len(footers) {
			return nil, fmt.Errorf("no footer for file %d", b[0])
		}
		return footers[b[0]], nil
	})
}

// newTestAggregate builds one fixture per stripe list and aggregates them.
func newTestAggregate(t *testing.T, kind orccodec.Kind, types []SchemaNode, files [][]fixtureStripe, opts ...Option) (*Aggregate, []*orcsource.TrackingSource) {
	t.Helper()

	sources := make([]orcsource.Source, 0, len(files))
	trackers := make([]*orcsource.TrackingSource, 0, len(files))
	footers := make([]*FileFooter, 0, len(files))
	for i, stripes := range files {
		fx := buildFixture(t, byte(i), kind, types, stripes...)
		tr := orcsource.NewTrackingSource(fx.source())
		sources = append(sources, tr)
		trackers = append(trackers, tr)
		footers = append(footers, fx.footer)
	}

	a, err := NewAggregate(sources, tailDecoder(footers...), opts...)
	require.NoError(t, err)
	return a, trackers
}

func rows(counts ...uint64) []fixtureStripe {
	out := make([]fixtureStripe, 0, len(counts))
	for _, c := range counts {
		out = append(out, fixtureStripe{rows: c})
	}
	return out
}
