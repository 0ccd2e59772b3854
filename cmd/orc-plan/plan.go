package main

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/minio/minio-go/v7"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/enigmarikki/cudf/pkg/orcmeta"
	"github.com/enigmarikki/cudf/pkg/orcsource"
)

type options struct {
	dir      string
	files    arrayFlags
	keys     arrayFlags
	columns  string
	stripes  arrayFlags
	rowStart int64
	rowCount int64
	object   orcsource.ObjectConfig
	cfg      orcmeta.Config
}

// plan is the YAML document written to stdout.
type plan struct {
	Aggregate string      `yaml:"aggregate"`
	Rows      int64       `yaml:"rows"`
	Stripes   int         `yaml:"stripes"`
	Columns   []planLevel `yaml:"columns"`
	Read      planRead    `yaml:"read"`
}

type planLevel struct {
	Level   int          `yaml:"level"`
	Columns []planColumn `yaml:"columns"`
}

type planColumn struct {
	ID       int    `yaml:"id"`
	Path     string `yaml:"path"`
	Children int    `yaml:"children,omitempty"`
}

type planRead struct {
	RowStart      int64        `yaml:"row_start"`
	RowCount      int64        `yaml:"row_count"`
	RowGroupIndex bool         `yaml:"row_group_index"`
	Sources       []planSource `yaml:"sources"`
}

type planSource struct {
	Source  string       `yaml:"source"`
	Stripes []planStripe `yaml:"stripes"`
}

type planStripe struct {
	Index   int    `yaml:"index"`
	Offset  uint64 `yaml:"offset"`
	Length  uint64 `yaml:"length"`
	Rows    uint64 `yaml:"rows"`
	Streams int    `yaml:"streams"`
}

func run(ctx context.Context, fs afero.Fs, opts options, logger log.Logger, metrics *orcmeta.Metrics, out io.Writer) error {
	sources, dec, closeAll, err := openSources(ctx, fs, opts, logger)
	defer closeAll()
	if err != nil {
		return err
	}

	a, err := orcmeta.NewAggregate(sources, dec,
		orcmeta.WithLogger(logger),
		orcmeta.WithMetrics(metrics),
		orcmeta.WithConfig(opts.cfg),
	)
	if err != nil {
		return err
	}

	h, err := a.SelectColumns(splitList(opts.columns))
	if err != nil {
		return err
	}

	req, err := buildRequest(opts)
	if err != nil {
		return err
	}
	sel, err := a.SelectStripes(ctx, req)
	if err != nil {
		return err
	}

	stats := a.IOStats()
	level.Info(logger).Log("msg", "planned read", "aggregate", a.ID().String(),
		"sources", a.NumSources(), "stripes", sel.NumStripes(), "levels", h.NumLevels(),
		"io_ops", stats.Ops, "bytes_read", stats.Bytes)

	enc := yaml.NewEncoder(out)
	defer enc.Close()
	return enc.Encode(buildPlan(a, h, sel))
}

// openSources opens object-store sources when a bucket is configured and
// local files otherwise, registering each source's manifest with the decoder.
func openSources(ctx context.Context, fs afero.Fs, opts options, logger log.Logger) ([]orcsource.Source, orcmeta.FooterDecoder, func(), error) {
	dec := orcmeta.NewManifestDecoder()
	var closers []io.Closer
	closeAll := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}

	if opts.object.Bucket != "" {
		client, err := orcsource.NewObjectClient(&opts.object)
		if err != nil {
			return nil, nil, closeAll, err
		}
		sources := make([]orcsource.Source, 0, len(opts.keys))
		for _, key := range opts.keys {
			data, err := readObject(ctx, client, opts.object.Bucket, key+orcmeta.ManifestSuffix)
			if err != nil {
				return nil, nil, closeAll, err
			}
			if err := dec.Add(key, data); err != nil {
				return nil, nil, closeAll, err
			}
			src, err := orcsource.NewObjectSource(ctx, client, opts.object.Bucket, key)
			if err != nil {
				return nil, nil, closeAll, err
			}
			closers = append(closers, src)
			sources = append(sources, src)
		}
		level.Debug(logger).Log("msg", "opened objects", "bucket", opts.object.Bucket, "count", len(sources))
		return sources, dec, closeAll, nil
	}

	paths := append([]string(nil), opts.files...)
	if opts.dir != "" {
		found, err := findSources(fs, opts.dir)
		if err != nil {
			return nil, nil, closeAll, err
		}
		if len(found) == 0 {
			level.Warn(logger).Log("msg", "no orc files found", "dir", opts.dir)
		}
		paths = append(paths, found...)
	}

	for _, p := range paths {
		data, err := afero.ReadFile(fs, p+orcmeta.ManifestSuffix)
		if err != nil {
			return nil, nil, closeAll, fmt.Errorf("read manifest: %w", err)
		}
		if err := dec.Add(p, data); err != nil {
			return nil, nil, closeAll, err
		}
	}

	files, err := orcsource.OpenFiles(fs, paths)
	if err != nil {
		return nil, nil, closeAll, err
	}
	sources := make([]orcsource.Source, 0, len(files))
	for _, f := range files {
		closers = append(closers, f)
		sources = append(sources, f)
	}
	return sources, dec, closeAll, nil
}

// findSources returns the *.orc files directly under dir, sorted by name.
func findSources(fs afero.Fs, dir string) ([]string, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".orc") {
			continue
		}
		paths = append(paths, path.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

func readObject(ctx context.Context, client *minio.Client, bucket, key string) ([]byte, error) {
	obj, err := client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s/%s: %w", bucket, key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

func buildRequest(opts options) (orcmeta.StripeRequest, error) {
	req := orcmeta.StripeRequest{RowStart: opts.rowStart, RowCount: opts.rowCount}
	for i, list := range opts.stripes {
		indices := []int{}
		for _, s := range splitList(list) {
			idx, err := strconv.Atoi(s)
			if err != nil {
				return req, fmt.Errorf("stripes for source %d: %w", i, err)
			}
			indices = append(indices, idx)
		}
		req.Stripes = append(req.Stripes, indices)
	}
	return req, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func buildPlan(a *orcmeta.Aggregate, h *orcmeta.ColumnHierarchy, sel *orcmeta.StripeSelection) plan {
	md := a.Metadata(0)
	p := plan{
		Aggregate: a.ID().String(),
		Rows:      a.NumRows(),
		Stripes:   a.NumStripes(),
		Read: planRead{
			RowStart:      sel.RowStart,
			RowCount:      sel.RowCount,
			RowGroupIndex: sel.RowGroupIndexPresent,
		},
	}

	for i, entries := range h.Levels {
		lvl := planLevel{Level: i}
		for _, e := range entries {
			lvl.Columns = append(lvl.Columns, planColumn{ID: e.ID, Path: md.ColumnPath(e.ID), Children: e.NumChildren})
		}
		p.Columns = append(p.Columns, lvl)
	}

	for _, src := range sel.Sources {
		ps := planSource{Source: orcsource.Name(a.Metadata(src.SourceIndex).Source())}
		for _, st := range src.Stripes {
			ps.Stripes = append(ps.Stripes, planStripe{
				Index:   st.Index,
				Offset:  st.Info.Offset,
				Length:  st.Info.IndexLength + st.Info.DataLength,
				Rows:    st.Info.NumberOfRows,
				Streams: len(st.Footer.Streams),
			})
		}
		p.Read.Sources = append(p.Read.Sources, ps)
	}
	return p
}
