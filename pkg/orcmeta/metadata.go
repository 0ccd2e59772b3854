package orcmeta

import (
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/enigmarikki/cudf/pkg/orccodec"
	"github.com/enigmarikki/cudf/pkg/orcproto"
	"github.com/enigmarikki/cudf/pkg/orcsource"
)

const noParent = -1

// Metadata is the read-only view of one source's file footer, plus the stripe
// footers parsed from it so far.
type Metadata struct {
	src      orcsource.Source
	size     int64
	footer   *FileFooter
	decomp   orccodec.Decompressor
	opts     *readerOptions
	numRows  int64
	parents  []int
	paths    []string
	pathToID map[string]int

	mu      sync.Mutex
	footers map[int]*orcproto.StripeFooter
}

// LoadMetadata decodes the file footer of src and validates its type tree.
func LoadMetadata(src orcsource.Source, dec FooterDecoder, opts ...Option) (*Metadata, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return loadMetadata(src, dec, &o)
}

func loadMetadata(src orcsource.Source, dec FooterDecoder, opts *readerOptions) (*Metadata, error) {
	size, err := src.Size()
	if err != nil {
		return nil, fmt.Errorf("source size: %w", err)
	}

	ff, err := dec.DecodeFooter(src)
	if err != nil {
		return nil, fmt.Errorf("%w: decode footer: %v", ErrFormat, err)
	}
	if ff == nil {
		return nil, fmt.Errorf("%w: decoder returned no footer", ErrFormat)
	}

	md := &Metadata{
		src:     src,
		size:    size,
		footer:  ff,
		opts:    opts,
		footers: make(map[int]*orcproto.StripeFooter),
	}

	if ff.NumberOfRows > math.MaxInt64 {
		return nil, fmt.Errorf("%w: row count %d overflows", ErrFormat, ff.NumberOfRows)
	}
	md.numRows = int64(ff.NumberOfRows)

	var stripeRows uint64
	for i, s := range ff.Stripes {
		if s.NumberOfRows > math.MaxInt64-stripeRows {
			return nil, fmt.Errorf("%w: stripe %d row count %d overflows", ErrFormat, i, s.NumberOfRows)
		}
		stripeRows += s.NumberOfRows
	}
	if stripeRows != ff.NumberOfRows {
		return nil, fmt.Errorf("%w: footer holds %d rows, stripes hold %d", ErrFormat, ff.NumberOfRows, stripeRows)
	}

	if err := md.buildColumnIndex(); err != nil {
		return nil, err
	}

	md.decomp, err = orccodec.NewDecompressor(ff.Compression, ff.CompressionBlockSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	return md, nil
}

// buildColumnIndex fills the parent index and column paths, rejecting type
// trees where a column has zero or several parents or is unreachable from the root.
func (md *Metadata) buildColumnIndex() error {
	types := md.footer.Types
	n := len(types)
	if n == 0 {
		return fmt.Errorf("%w: empty type list", ErrFormat)
	}
	if types[0].Kind != orcproto.Struct {
		return fmt.Errorf("%w: root column is %s, want STRUCT", ErrFormat, types[0].Kind)
	}

	md.parents = make([]int, n)
	for i := range md.parents {
		md.parents[i] = noParent
	}

	for id, node := range types {
		if node.Kind == orcproto.Struct && len(node.FieldNames) != len(node.Subtypes) {
			return fmt.Errorf("%w: column %d has %d field names for %d children", ErrFormat, id, len(node.FieldNames), len(node.Subtypes))
		}
		for _, child := range node.Subtypes {
			if child <= 0 || child >= n {
				return fmt.Errorf("%w: column %d has child id %d outside [1, %d)", ErrFormat, id, child, n)
			}
			if md.parents[child] != noParent {
				return fmt.Errorf("%w: column %d is a child of both %d and %d", ErrFormat, child, md.parents[child], id)
			}
			md.parents[child] = id
		}
	}

	// Breadth-first from the root; with unique parents this visits every
	// reachable column exactly once.
	md.paths = make([]string, n)
	md.pathToID = make(map[string]int, n)
	reached := 1
	queue := []int{0}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		node := types[id]
		for i, child := range node.Subtypes {
			name := strconv.Itoa(i)
			if node.Kind == orcproto.Struct {
				name = node.FieldNames[i]
			}
			if id == 0 {
				md.paths[child] = name
			} else {
				md.paths[child] = md.paths[id] + "." + name
			}
			if prev, ok := md.pathToID[md.paths[child]]; !ok || child < prev {
				md.pathToID[md.paths[child]] = child
			}
			reached++
			queue = append(queue, child)
		}
	}
	if reached != n {
		for id := 1; id < n; id++ {
			if md.parents[id] == noParent {
				return fmt.Errorf("%w: column %d has no parent", ErrFormat, id)
			}
		}
		return fmt.Errorf("%w: %d columns are unreachable from the root", ErrFormat, n-reached)
	}

	return nil
}

// Source returns the underlying source.
func (md *Metadata) Source() orcsource.Source { return md.src }

// NumRows returns the row count recorded in the file footer.
func (md *Metadata) NumRows() int64 { return md.numRows }

// NumStripes returns the number of stripes in the file.
func (md *Metadata) NumStripes() int { return len(md.footer.Stripes) }

// NumColumns returns the number of schema nodes, root included.
func (md *Metadata) NumColumns() int { return len(md.footer.Types) }

// Types returns the schema nodes indexed by column id. Do not modify.
func (md *Metadata) Types() []SchemaNode { return md.footer.Types }

// Stripes returns the stripe directory. Do not modify.
func (md *Metadata) Stripes() []StripeInfo { return md.footer.Stripes }

// Compression returns the file's compression kind.
func (md *Metadata) Compression() orccodec.Kind { return md.footer.Compression }

// ParentID returns the parent of column id; false for the root.
func (md *Metadata) ParentID(id int) (int, bool) {
	if id <= 0 || id >= len(md.parents) || md.parents[id] == noParent {
		return 0, false
	}
	return md.parents[id], true
}

// ColumnPath returns the dotted path of column id. The root has an empty path.
func (md *Metadata) ColumnPath(id int) string {
	if id < 0 || id >= len(md.paths) {
		return ""
	}
	return md.paths[id]
}

// ColumnID returns the lowest column id whose path equals path.
func (md *Metadata) ColumnID(path string) (int, bool) {
	id, ok := md.pathToID[path]
	return id, ok
}

// footerRegion returns the byte range of stripe idx's footer, failing if it
// does not lie strictly inside the source.
func (md *Metadata) footerRegion(idx int) (off, length int64, err error) {
	s := md.footer.Stripes[idx]
	size := uint64(md.size) //nolint:gosec // sizes are non-negative

	// Each term is bounded by size before summing, so the sum cannot overflow.
	if s.Offset > size || s.IndexLength > size || s.DataLength > size || s.FooterLength > size ||
		s.FooterOffset()+s.FooterLength >= size {
		return 0, 0, fmt.Errorf("%w: invalid stripe information: stripe %d footer at %d+%d outside source of %d bytes",
			ErrCorruptMetadata, idx, s.Offset+s.IndexLength+s.DataLength, s.FooterLength, md.size)
	}
	if s.FooterLength > uint64(md.opts.cfg.MaxStripeFooterSize) { //nolint:gosec // validated positive
		return 0, 0, fmt.Errorf("%w: stripe %d footer of %d bytes exceeds limit %d",
			ErrCorruptMetadata, idx, s.FooterLength, md.opts.cfg.MaxStripeFooterSize)
	}
	return int64(s.FooterOffset()), int64(s.FooterLength), nil //nolint:gosec // bounded by size
}

// StripeFooter reads, decompresses and decodes the footer of stripe idx.
// Results are cached per source.
func (md *Metadata) StripeFooter(idx int) (*orcproto.StripeFooter, error) {
	if idx < 0 || idx >= len(md.footer.Stripes) {
		return nil, fmt.Errorf("%w: stripe %d out of range [0, %d)", ErrInvalidStripe, idx, len(md.footer.Stripes))
	}

	md.mu.Lock()
	defer md.mu.Unlock()

	if f, ok := md.footers[idx]; ok {
		return f, nil
	}

	off, length, err := md.footerRegion(idx)
	if err != nil {
		return nil, err
	}

	raw, err := orcsource.ReadRange(md.src, off, length, orcsource.DataTypeStripeFooter)
	if err != nil {
		return nil, fmt.Errorf("stripe %d footer: %w", idx, err)
	}
	md.opts.metrics.footerRead(len(raw))

	plain, err := md.decomp.Decompress(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: stripe %d footer: %v", ErrFormat, idx, err)
	}

	f, err := orcproto.DecodeStripeFooter(plain)
	if err != nil {
		return nil, fmt.Errorf("%w: stripe %d footer: %v", ErrFormat, idx, err)
	}

	// footerRegion bounded both lengths by the source size, so the sum is exact.
	s := md.footer.Stripes[idx]
	limit := s.IndexLength + s.DataLength
	var spanned uint64
	for i, st := range f.Streams {
		if st.Length > limit-spanned {
			return nil, fmt.Errorf("%w: stripe %d stream %d of %d bytes passes the %d-byte stripe",
				ErrCorruptMetadata, idx, i, st.Length, limit)
		}
		spanned += st.Length
	}

	md.footers[idx] = f
	return f, nil
}
