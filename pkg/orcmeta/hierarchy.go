package orcmeta

// NestingMap maps a column id to the ordered, duplicate-free list of its
// selected child ids. Key 0 holds the selected top-level columns.
type NestingMap map[int][]int

// add appends child under parent unless it is already there.
func (m NestingMap) add(parent, child int) {
	for _, c := range m[parent] {
		if c == child {
			return
		}
	}
	m[parent] = append(m[parent], child)
}

// LevelEntry is one column in a hierarchy level.
type LevelEntry struct {
	ID          int
	NumChildren int
}

// ColumnHierarchy is the selected column tree sorted by nesting level.
// Levels[0] holds the top-level columns; a column at depth d sits in Levels[d].
// Within a level, columns appear in pre-order of the selected tree.
type ColumnHierarchy struct {
	children NestingMap
	Levels   [][]LevelEntry
}

func newColumnHierarchy(children NestingMap) *ColumnHierarchy {
	h := &ColumnHierarchy{children: children}

	type frame struct {
		id    int
		level int
	}

	// Explicit-stack pre-order walk; children are pushed in reverse so they
	// pop in NestingMap order.
	top := children[0]
	stack := make([]frame, 0, len(top))
	for i := len(top) - 1; i >= 0; i-- {
		stack = append(stack, frame{id: top[i], level: 0})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if len(h.Levels) == f.level {
			h.Levels = append(h.Levels, nil)
		}
		kids := children[f.id]
		h.Levels[f.level] = append(h.Levels[f.level], LevelEntry{ID: f.id, NumChildren: len(kids)})

		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{id: kids[i], level: f.level + 1})
		}
	}

	return h
}

// Children returns the nesting map the hierarchy was built from. Do not modify.
func (h *ColumnHierarchy) Children() NestingMap { return h.children }

// NumLevels returns the nesting depth of the selection.
func (h *ColumnHierarchy) NumLevels() int { return len(h.Levels) }

// Selected reports whether column id is part of the selection.
func (h *ColumnHierarchy) Selected(id int) bool {
	for _, level := range h.Levels {
		for _, e := range level {
			if e.ID == id {
				return true
			}
		}
	}
	return false
}
