// Package orcmeta aggregates the metadata of several ORC sources that share a
// schema and plans reads against them: which columns to decode, in what
// nesting order, and which stripes of which source cover a row window.
package orcmeta

import (
	"fmt"
	"math"
	"slices"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"

	"github.com/enigmarikki/cudf/pkg/orcsource"
)

// Aggregate presents several same-schema sources as one logical dataset.
type Aggregate struct {
	id         uuid.UUID
	perSource  []*Metadata
	sources    []*orcsource.DefaultSource
	numRows    int64
	numStripes int
	opts       readerOptions
	logger     log.Logger
}

// NewAggregate loads the metadata of every source and checks that all of them
// agree on column count, compression, and per-column kind, field names and
// decimal scale.
func NewAggregate(sources []orcsource.Source, dec FooterDecoder, opts ...Option) (*Aggregate, error) {
	a := &Aggregate{
		id:   uuid.New(),
		opts: defaultOptions(),
	}
	for _, opt := range opts {
		opt(&a.opts)
	}
	a.logger = log.With(a.opts.logger, "aggregate", a.id.String())

	if err := a.opts.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no sources", ErrInvalidArgument)
	}
	if dec == nil {
		return nil, fmt.Errorf("%w: nil footer decoder", ErrInvalidArgument)
	}

	a.perSource = make([]*Metadata, 0, len(sources))
	a.sources = make([]*orcsource.DefaultSource, 0, len(sources))
	var cacheBytes int64
	if a.opts.cfg.RangeCache {
		cacheBytes = a.opts.cfg.RangeCacheMaxBytes
	}
	for i, s := range sources {
		src := orcsource.NewDefaultSource(s, cacheBytes)
		a.sources = append(a.sources, src)
		md, err := loadMetadata(src, dec, &a.opts)
		if err != nil {
			level.Error(a.logger).Log("msg", "failed to load source metadata", "source", i, "name", orcsource.Name(src), "err", err)
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
		a.perSource = append(a.perSource, md)
	}

	if err := a.validateSchemas(); err != nil {
		level.Error(a.logger).Log("msg", "sources are not compatible", "err", err)
		return nil, err
	}

	for i, md := range a.perSource {
		if a.numRows > math.MaxInt64-md.NumRows() {
			return nil, fmt.Errorf("%w: source %d: total row count overflows", ErrFormat, i)
		}
		a.numRows += md.NumRows()
		a.numStripes += md.NumStripes()
	}

	level.Debug(a.logger).Log("msg", "loaded aggregate metadata",
		"sources", len(a.perSource), "rows", a.numRows, "stripes", a.numStripes)

	return a, nil
}

func (a *Aggregate) validateSchemas() error {
	first := a.perSource[0]
	for i, md := range a.perSource[1:] {
		src := i + 1
		if md.NumColumns() != first.NumColumns() {
			return fmt.Errorf("%w: source %d has %d columns, source 0 has %d",
				ErrSchemaMismatch, src, md.NumColumns(), first.NumColumns())
		}
		if md.Compression() != first.Compression() {
			return fmt.Errorf("%w: source %d uses %s compression, source 0 uses %s",
				ErrSchemaMismatch, src, md.Compression(), first.Compression())
		}

		want := first.Types()
		for col, node := range md.Types() {
			if node.Kind != want[col].Kind {
				return fmt.Errorf("%w: source %d column %d is %s, source 0 has %s",
					ErrSchemaMismatch, src, col, node.Kind, want[col].Kind)
			}
			if !slices.Equal(node.FieldNames, want[col].FieldNames) {
				return fmt.Errorf("%w: source %d column %d field names %q differ from %q",
					ErrSchemaMismatch, src, col, node.FieldNames, want[col].FieldNames)
			}
			if node.ScaleOrZero() != want[col].ScaleOrZero() {
				return fmt.Errorf("%w: source %d column %d has scale %d, source 0 has %d",
					ErrSchemaMismatch, src, col, node.ScaleOrZero(), want[col].ScaleOrZero())
			}
		}
	}
	return nil
}

// ID identifies the aggregate in log lines.
func (a *Aggregate) ID() uuid.UUID { return a.id }

// NumRows returns the total row count across all sources.
func (a *Aggregate) NumRows() int64 { return a.numRows }

// NumStripes returns the total stripe count across all sources.
func (a *Aggregate) NumStripes() int { return a.numStripes }

// NumSources returns the number of sources.
func (a *Aggregate) NumSources() int { return len(a.perSource) }

// IOStats returns the reads that reached storage across all sources, including
// those made while loading.
func (a *Aggregate) IOStats() orcsource.IOStats {
	var total orcsource.IOStats
	for _, src := range a.sources {
		total = total.Add(src.Stats())
	}
	return total
}

// Metadata returns the per-source view of source i.
func (a *Aggregate) Metadata(i int) *Metadata { return a.perSource[i] }
