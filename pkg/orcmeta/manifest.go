package orcmeta

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/enigmarikki/cudf/pkg/orccodec"
	"github.com/enigmarikki/cudf/pkg/orcproto"
	"github.com/enigmarikki/cudf/pkg/orcsource"
)

// ManifestSuffix is appended to a source name to find its manifest.
const ManifestSuffix = ".meta.yaml"

// Manifest is the YAML form of an already decoded file footer. Tools that
// decode ORC tails elsewhere write one next to each file.
type Manifest struct {
	Rows                 uint64           `yaml:"rows"`
	Compression          string           `yaml:"compression"`
	CompressionBlockSize uint64           `yaml:"compression_block_size"`
	Types                []ManifestType   `yaml:"types"`
	Stripes              []ManifestStripe `yaml:"stripes"`
}

type ManifestType struct {
	Kind       string   `yaml:"kind"`
	Subtypes   []int    `yaml:"subtypes,omitempty"`
	FieldNames []string `yaml:"field_names,omitempty"`
	Scale      *uint32  `yaml:"scale,omitempty"`
}

type ManifestStripe struct {
	Offset       uint64 `yaml:"offset"`
	IndexLength  uint64 `yaml:"index_length"`
	DataLength   uint64 `yaml:"data_length"`
	FooterLength uint64 `yaml:"footer_length"`
	Rows         uint64 `yaml:"rows"`
}

// ParseManifest decodes a YAML manifest into a FileFooter.
func ParseManifest(data []byte) (*FileFooter, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parse manifest: %v", ErrFormat, err)
	}
	return m.FileFooter()
}

// FileFooter converts the manifest. An empty compression means NONE.
func (m *Manifest) FileFooter() (*FileFooter, error) {
	ff := &FileFooter{
		NumberOfRows:         m.Rows,
		CompressionBlockSize: m.CompressionBlockSize,
		Types:                make([]SchemaNode, 0, len(m.Types)),
		Stripes:              make([]StripeInfo, 0, len(m.Stripes)),
	}

	if m.Compression != "" {
		kind, err := orccodec.ParseKind(m.Compression)
		if err != nil {
			return nil, fmt.Errorf("%w: manifest: %v", ErrFormat, err)
		}
		ff.Compression = kind
	}

	for i, t := range m.Types {
		kind, err := orcproto.ParseTypeKind(t.Kind)
		if err != nil {
			return nil, fmt.Errorf("%w: manifest type %d: %v", ErrFormat, i, err)
		}
		ff.Types = append(ff.Types, SchemaNode{
			Kind:       kind,
			Subtypes:   t.Subtypes,
			FieldNames: t.FieldNames,
			Scale:      t.Scale,
		})
	}

	for _, s := range m.Stripes {
		ff.Stripes = append(ff.Stripes, StripeInfo{
			Offset:       s.Offset,
			IndexLength:  s.IndexLength,
			DataLength:   s.DataLength,
			FooterLength: s.FooterLength,
			NumberOfRows: s.Rows,
		})
	}
	return ff, nil
}

// ManifestDecoder serves file footers from manifests keyed by source name
// (see orcsource.Name). Add every manifest before loading; lookups are
// read-only afterwards.
type ManifestDecoder struct {
	footers map[string]*FileFooter
}

func NewManifestDecoder() *ManifestDecoder {
	return &ManifestDecoder{footers: make(map[string]*FileFooter)}
}

// Add parses data as the manifest of the source called name.
func (d *ManifestDecoder) Add(name string, data []byte) error {
	ff, err := ParseManifest(data)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	d.footers[name] = ff
	return nil
}

func (d *ManifestDecoder) DecodeFooter(src orcsource.Source) (*FileFooter, error) {
	name := orcsource.Name(src)
	ff, ok := d.footers[name]
	if !ok {
		return nil, fmt.Errorf("no manifest for source %q", name)
	}
	return ff, nil
}
