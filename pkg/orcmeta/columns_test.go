package orcmeta

import (
	"testing"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enigmarikki/cudf/pkg/orccodec"
	"github.com/enigmarikki/cudf/pkg/orcproto"
)

func nestedAggregate(t *testing.T, opts ...Option) *Aggregate {
	t.Helper()
	a, _ := newTestAggregate(t, orccodec.None, nestedSchema(), [][]fixtureStripe{rows(10), rows(10)}, opts...)
	return a
}

func TestSelectColumns(t *testing.T) {
	tests := []struct {
		name     string
		paths    []string
		children NestingMap
		levels   [][]LevelEntry
	}{
		{
			name:  "all columns",
			paths: nil,
			children: NestingMap{
				0: {1, 7, 8},
				1: {2, 6},
				2: {3, 5},
				3: {4},
				8: {9, 10},
			},
			levels: [][]LevelEntry{
				{{ID: 1, NumChildren: 2}, {ID: 7}, {ID: 8, NumChildren: 2}},
				{{ID: 2, NumChildren: 2}, {ID: 6}, {ID: 9}, {ID: 10}},
				{{ID: 3, NumChildren: 1}, {ID: 5}},
				{{ID: 4}},
			},
		},
		{
			name:  "nested struct pulls ancestors and subtree",
			paths: []string{"a.b"},
			children: NestingMap{
				0: {1},
				1: {2},
				2: {3, 5},
				3: {4},
			},
			levels: [][]LevelEntry{
				{{ID: 1, NumChildren: 1}},
				{{ID: 2, NumChildren: 2}},
				{{ID: 3, NumChildren: 1}, {ID: 5}},
				{{ID: 4}},
			},
		},
		{
			name:  "request order decides sibling order",
			paths: []string{"c", "a.x"},
			children: NestingMap{
				0: {7, 1},
				1: {6},
			},
			levels: [][]LevelEntry{
				{{ID: 7}, {ID: 1, NumChildren: 1}},
				{{ID: 6}},
			},
		},
		{
			name:  "overlapping paths are merged",
			paths: []string{"a.b.e", "a.b", "a.b.e.0"},
			children: NestingMap{
				0: {1},
				1: {2},
				2: {3, 5},
				3: {4},
			},
			levels: [][]LevelEntry{
				{{ID: 1, NumChildren: 1}},
				{{ID: 2, NumChildren: 2}},
				{{ID: 3, NumChildren: 1}, {ID: 5}},
				{{ID: 4}},
			},
		},
		{
			name:  "map children by ordinal",
			paths: []string{"d.1"},
			children: NestingMap{
				0: {8},
				8: {10},
			},
			levels: [][]LevelEntry{
				{{ID: 8, NumChildren: 1}},
				{{ID: 10}},
			},
		},
	}

	a := nestedAggregate(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := a.SelectColumns(tt.paths)
			require.NoError(t, err)
			assert.Equal(t, tt.children, h.Children())
			assert.Equal(t, tt.levels, h.Levels)
			assert.Equal(t, len(tt.levels), h.NumLevels())
		})
	}
}

func TestSelectColumns_ExcludesUnrelatedSiblings(t *testing.T) {
	a := nestedAggregate(t)

	h, err := a.SelectColumns([]string{"a.b"})
	require.NoError(t, err)

	for _, id := range []int{1, 2, 3, 4, 5} {
		assert.True(t, h.Selected(id), "column %d", id)
	}
	for _, id := range []int{6, 7, 8, 9, 10} {
		assert.False(t, h.Selected(id), "column %d", id)
	}
}

func TestSelectColumns_UnknownColumn(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	a := nestedAggregate(t, WithMetrics(m))

	for _, path := range []string{"missing", "a.missing", "", "a..b"} {
		_, err := a.SelectColumns([]string{"a", path})
		require.ErrorIs(t, err, ErrUnknownColumn, path)
		assert.Contains(t, err.Error(), path)
	}
	assert.Equal(t, float64(4), testutil.ToFloat64(m.SelectionFailures.WithLabelValues("select_columns")))
}

func TestSelectColumns_Idempotent(t *testing.T) {
	a := nestedAggregate(t)

	first, err := a.SelectColumns([]string{"d", "a.b.f"})
	require.NoError(t, err)
	second, err := a.SelectColumns([]string{"d", "a.b.f"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSelectColumns_CycleGuards(t *testing.T) {
	t.Run("parent cycle", func(t *testing.T) {
		md := &Metadata{
			footer: &FileFooter{Types: []SchemaNode{
				{Kind: orcproto.Struct},
				{Kind: orcproto.Struct, Subtypes: []int{2}, FieldNames: []string{"y"}},
				{Kind: orcproto.Struct, Subtypes: []int{1}, FieldNames: []string{"x"}},
			}},
			parents: []int{noParent, 2, 1},
		}
		err := addColumnToMapping(make(NestingMap), md, 1)
		require.ErrorIs(t, err, ErrCorruptMetadata)
	})

	t.Run("subtype cycle", func(t *testing.T) {
		md := &Metadata{
			footer: &FileFooter{Types: []SchemaNode{
				{Kind: orcproto.Struct, Subtypes: []int{1}, FieldNames: []string{"x"}},
				{Kind: orcproto.Struct, Subtypes: []int{2}, FieldNames: []string{"y"}},
				{Kind: orcproto.Struct, Subtypes: []int{1}, FieldNames: []string{"z"}},
			}},
			parents: []int{noParent, 0, 1},
		}
		err := addColumnToMapping(make(NestingMap), md, 1)
		require.ErrorIs(t, err, ErrCorruptMetadata)
	})

	t.Run("through aggregate", func(t *testing.T) {
		md := &Metadata{
			footer: &FileFooter{Types: []SchemaNode{
				{Kind: orcproto.Struct, Subtypes: []int{1}, FieldNames: []string{"x"}},
				{Kind: orcproto.Struct, Subtypes: []int{1}, FieldNames: []string{"x"}},
			}},
			parents:  []int{noParent, 0},
			pathToID: map[string]int{"x": 1},
		}
		a := &Aggregate{perSource: []*Metadata{md}, opts: defaultOptions(), logger: log.NewNopLogger()}

		_, err := a.SelectColumns([]string{"x"})
		require.ErrorIs(t, err, ErrCorruptMetadata)
	})
}

func TestNewColumnHierarchy_Empty(t *testing.T) {
	h := newColumnHierarchy(NestingMap{})
	assert.Zero(t, h.NumLevels())
	assert.False(t, h.Selected(1))
}

func TestNestingMap_AddIsIdempotent(t *testing.T) {
	m := make(NestingMap)
	m.add(0, 3)
	m.add(0, 1)
	m.add(0, 3)
	m.add(1, 2)

	assert.Equal(t, NestingMap{0: {3, 1}, 1: {2}}, m)
}
