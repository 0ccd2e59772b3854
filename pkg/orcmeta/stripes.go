package orcmeta

import (
	"context"
	"fmt"
	"math"

	"github.com/go-kit/log/level"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/enigmarikki/cudf/pkg/orcproto"
)

// StripeRequest describes what to read. A non-empty Stripes selects explicit
// stripe indices, one list per source, and requires RowStart == 0. Otherwise
// RowStart and RowCount select a global row window; a negative RowCount reads
// to the end of the dataset.
type StripeRequest struct {
	Stripes  [][]int
	RowStart int64
	RowCount int64
}

// SelectedStripe is one stripe to read, with its parsed footer.
type SelectedStripe struct {
	Index  int
	Info   StripeInfo
	Footer orcproto.StripeFooter
}

// SourceStripes lists the stripes to read from one source, in ascending order
// for range requests and in request order for explicit ones.
type SourceStripes struct {
	SourceIndex int
	Stripes     []SelectedStripe
}

// StripeSelection is the physical read plan for a request.
type StripeSelection struct {
	Sources []SourceStripes
	// RowStart is the number of rows to skip in the first selected stripe.
	RowStart int64
	// RowCount is the exact number of rows the selection yields after the skip.
	RowCount int64
	// RowGroupIndexPresent is false if any selected stripe has no index section.
	RowGroupIndexPresent bool
}

// NumStripes returns the number of selected stripes across all sources.
func (s *StripeSelection) NumStripes() int {
	n := 0
	for _, src := range s.Sources {
		n += len(src.Stripes)
	}
	return n
}

// SelectStripes computes which stripes of which sources cover req and reads
// their footers. Every selected footer region is validated before any footer
// is read.
func (a *Aggregate) SelectStripes(ctx context.Context, req StripeRequest) (*StripeSelection, error) {
	ctx, span := tracer.Start(ctx, "orcmeta.Aggregate.SelectStripes")
	defer span.End()

	sel, err := a.selectStripes(ctx, req)
	if err != nil {
		span.RecordError(err)
		a.opts.metrics.failed("select_stripes")
		level.Debug(a.logger).Log("msg", "stripe selection failed", "err", err)
		return nil, err
	}

	n := sel.NumStripes()
	span.SetAttributes(
		attribute.Int("stripes", n),
		attribute.Int64("row_start", sel.RowStart),
		attribute.Int64("row_count", sel.RowCount),
	)
	a.opts.metrics.stripesSelected(n)
	level.Debug(a.logger).Log("msg", "selected stripes", "stripes", n,
		"row_start", sel.RowStart, "row_count", sel.RowCount,
		"row_group_index", sel.RowGroupIndexPresent)

	return sel, nil
}

func (a *Aggregate) selectStripes(ctx context.Context, req StripeRequest) (*StripeSelection, error) {
	var (
		sel *StripeSelection
		err error
	)
	if len(req.Stripes) > 0 {
		sel, err = a.selectExplicit(req)
	} else {
		sel, err = a.selectRange(req.RowStart, req.RowCount)
	}
	if err != nil {
		return nil, err
	}

	if err := a.resolveFooters(ctx, sel); err != nil {
		return nil, err
	}
	return sel, nil
}

func (a *Aggregate) selectExplicit(req StripeRequest) (*StripeSelection, error) {
	if len(req.Stripes) != len(a.perSource) {
		return nil, fmt.Errorf("%w: %d stripe lists for %d sources", ErrInvalidArgument, len(req.Stripes), len(a.perSource))
	}
	if req.RowStart != 0 {
		return nil, fmt.Errorf("%w: row start %d cannot be combined with explicit stripes", ErrInvalidArgument, req.RowStart)
	}

	sel := &StripeSelection{Sources: make([]SourceStripes, 0, len(req.Stripes))}
	for i, indices := range req.Stripes {
		md := a.perSource[i]
		stripes := md.Stripes()
		src := SourceStripes{SourceIndex: i, Stripes: make([]SelectedStripe, 0, len(indices))}
		for _, idx := range indices {
			if idx < 0 || idx >= len(stripes) {
				return nil, fmt.Errorf("%w: source %d stripe %d, source has %d stripes", ErrInvalidStripe, i, idx, len(stripes))
			}
			rows := int64(stripes[idx].NumberOfRows) //nolint:gosec // checked at load
			if sel.RowCount > math.MaxInt64-rows {
				return nil, fmt.Errorf("%w: selected row count overflows", ErrInvalidArgument)
			}
			sel.RowCount += rows
			src.Stripes = append(src.Stripes, SelectedStripe{Index: idx, Info: stripes[idx]})
		}
		sel.Sources = append(sel.Sources, src)
	}
	return sel, nil
}

func (a *Aggregate) selectRange(rowStart, rowCount int64) (*StripeSelection, error) {
	total := a.numRows
	rowStart = max(rowStart, 0)
	if rowCount < 0 {
		rowCount = total
	}
	rowCount = min(rowCount, total-rowStart)
	if rowCount < 0 || rowStart > total {
		return nil, fmt.Errorf("%w: row window [%d, +%d) outside %d rows", ErrInvalidArgument, rowStart, rowCount, total)
	}

	end := rowStart + rowCount
	sel := &StripeSelection{RowCount: rowCount}

	var count, skip int64
	for i, md := range a.perSource {
		if count >= end {
			break
		}
		src := SourceStripes{SourceIndex: i}
		for idx, info := range md.Stripes() {
			if count >= end {
				break
			}
			rows := int64(info.NumberOfRows) //nolint:gosec // checked at load
			if count > math.MaxInt64-rows {
				return nil, fmt.Errorf("%w: source %d stripe row counts overflow", ErrCorruptMetadata, i)
			}
			count += rows
			// Zero-row stripes are kept so the read stays structurally complete.
			if count > rowStart || count == 0 {
				src.Stripes = append(src.Stripes, SelectedStripe{Index: idx, Info: info})
			} else {
				skip = count
			}
		}
		sel.Sources = append(sel.Sources, src)
	}

	sel.RowStart = rowStart - skip
	return sel, nil
}

// resolveFooters validates every selected footer region, then fetches the
// footers concurrently across sources. Each source fills only its own entry.
func (a *Aggregate) resolveFooters(ctx context.Context, sel *StripeSelection) error {
	sel.RowGroupIndexPresent = true
	for _, src := range sel.Sources {
		md := a.perSource[src.SourceIndex]
		for _, st := range src.Stripes {
			if _, _, err := md.footerRegion(st.Index); err != nil {
				return fmt.Errorf("source %d: %w", src.SourceIndex, err)
			}
			if st.Info.IndexLength == 0 {
				sel.RowGroupIndexPresent = false
			}
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.cfg.FooterConcurrency)

	for i := range sel.Sources {
		src := &sel.Sources[i]
		if len(src.Stripes) == 0 {
			continue
		}
		md := a.perSource[src.SourceIndex]
		g.Go(func() error {
			for j := range src.Stripes {
				if err := ctx.Err(); err != nil {
					return err
				}
				f, err := md.StripeFooter(src.Stripes[j].Index)
				if err != nil {
					return fmt.Errorf("source %d: %w", src.SourceIndex, err)
				}
				src.Stripes[j].Footer = f.Clone()
			}
			return nil
		})
	}

	return g.Wait()
}
