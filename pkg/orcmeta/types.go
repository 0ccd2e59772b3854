package orcmeta

import (
	"github.com/enigmarikki/cudf/pkg/orccodec"
	"github.com/enigmarikki/cudf/pkg/orcproto"
	"github.com/enigmarikki/cudf/pkg/orcsource"
)

// SchemaNode is one entry of the flattened ORC type tree. Its column id is
// its index in FileFooter.Types; id 0 is the root struct.
type SchemaNode struct {
	Kind       orcproto.TypeKind
	Subtypes   []int
	FieldNames []string
	// Scale is set for decimal columns only.
	Scale *uint32
}

// ScaleOrZero returns the decimal scale, treating an absent scale as 0.
func (n SchemaNode) ScaleOrZero() uint32 {
	if n.Scale == nil {
		return 0
	}
	return *n.Scale
}

// StripeInfo is one entry of the file's stripe directory.
type StripeInfo struct {
	Offset       uint64
	IndexLength  uint64
	DataLength   uint64
	FooterLength uint64
	NumberOfRows uint64
}

// FooterOffset is where the stripe footer starts.
func (s StripeInfo) FooterOffset() uint64 {
	return s.Offset + s.IndexLength + s.DataLength
}

// FileFooter is the decoded file tail of one source.
type FileFooter struct {
	NumberOfRows         uint64
	Types                []SchemaNode
	Stripes              []StripeInfo
	Compression          orccodec.Kind
	CompressionBlockSize uint64
}

// FooterDecoder reads and decodes the postscript and footer of a source.
type FooterDecoder interface {
	DecodeFooter(src orcsource.Source) (*FileFooter, error)
}

// FooterDecoderFunc adapts a function to FooterDecoder.
type FooterDecoderFunc func(src orcsource.Source) (*FileFooter, error)

func (f FooterDecoderFunc) DecodeFooter(src orcsource.Source) (*FileFooter, error) {
	return f(src)
}
