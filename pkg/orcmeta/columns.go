package orcmeta

import (
	"fmt"

	"github.com/go-kit/log/level"
)

// SelectColumns resolves dotted column paths into the hierarchy of columns to
// decode. Each requested column brings along every ancestor up to the root
// and its whole subtree; unrelated siblings are pruned. An empty request
// selects every column.
func (a *Aggregate) SelectColumns(paths []string) (*ColumnHierarchy, error) {
	h, err := a.selectColumns(paths)
	if err != nil {
		a.opts.metrics.failed("select_columns")
		level.Debug(a.logger).Log("msg", "column selection failed", "err", err)
		return nil, err
	}
	return h, nil
}

func (a *Aggregate) selectColumns(paths []string) (*ColumnHierarchy, error) {
	// Every source shares the schema of source 0.
	md := a.perSource[0]
	selected := make(NestingMap)

	if len(paths) == 0 {
		for _, id := range md.Types()[0].Subtypes {
			if err := addColumnToMapping(selected, md, id); err != nil {
				return nil, err
			}
		}
		return newColumnHierarchy(selected), nil
	}

	for _, path := range paths {
		id, ok := md.ColumnID(path)
		if !ok || id == 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, path)
		}
		if err := addColumnToMapping(selected, md, id); err != nil {
			return nil, err
		}
	}
	return newColumnHierarchy(selected), nil
}

// addColumnToMapping adds id with all of its ancestors and descendants.
func addColumnToMapping(selected NestingMap, md *Metadata, id int) error {
	if err := addParentMapping(selected, md, id); err != nil {
		return err
	}
	return addNestedColumns(selected, md.Types(), id)
}

// addParentMapping walks from id up to the root, recording each edge.
func addParentMapping(selected NestingMap, md *Metadata, id int) error {
	visited := map[int]struct{}{id: {}}
	current := id
	for {
		parent, ok := md.ParentID(current)
		if !ok {
			return nil
		}
		if _, seen := visited[parent]; seen {
			return fmt.Errorf("%w: parent cycle through column %d", ErrCorruptMetadata, parent)
		}
		visited[parent] = struct{}{}

		selected.add(parent, current)
		current = parent
	}
}

// addNestedColumns records the full subtree under id.
func addNestedColumns(selected NestingMap, types []SchemaNode, id int) error {
	visited := map[int]struct{}{id: {}}
	stack := []int{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, child := range types[cur].Subtypes {
			if _, seen := visited[child]; seen {
				return fmt.Errorf("%w: column %d is nested under itself", ErrCorruptMetadata, child)
			}
			visited[child] = struct{}{}

			selected.add(cur, child)
			stack = append(stack, child)
		}
	}
	return nil
}
