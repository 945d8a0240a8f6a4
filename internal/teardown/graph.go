// Package teardown deletes an entity together with every row that depends on it.
//
// Foreign keys are declared as ownership edges of a Graph. Plan walks the graph
// depth-first from the root table and emits steps in post-order, so children
// are always removed (or detached, for nullable references) before the rows
// they point at.
package teardown

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownTable = errors.New("teardown: unknown table")
	ErrCycle        = errors.New("teardown: ownership cycle")
)

// Action is what happens to a child row when its parent is removed.
type Action int

const (
	// Cascade deletes the child row.
	Cascade Action = iota
	// SetNull clears the referencing column and keeps the child row.
	SetNull
)

func (a Action) String() string {
	if a == SetNull {
		return "set null"
	}
	return "delete"
}

// Edge declares that Child.Column references Parent's primary key.
type Edge struct {
	Parent string
	Child  string
	Column string
	Action Action
}

// Graph is the set of ownership edges between tables.
type Graph struct {
	keys  map[string]string
	edges map[string][]Edge
	order []string
}

func NewGraph() *Graph {
	return &Graph{keys: map[string]string{}, edges: map[string][]Edge{}}
}

// Table registers a table with its primary key column.
func (g *Graph) Table(name, primaryKey string) *Graph {
	if _, ok := g.keys[name]; !ok {
		g.order = append(g.order, name)
	}
	g.keys[name] = primaryKey
	return g
}

// Own declares that deleting a parent row deletes the child rows referencing it.
func (g *Graph) Own(parent, child, column string) *Graph {
	g.edges[parent] = append(g.edges[parent], Edge{Parent: parent, Child: child, Column: column, Action: Cascade})
	return g
}

// Nullify declares a nullable reference that is cleared when the parent goes away.
func (g *Graph) Nullify(parent, child, column string) *Graph {
	g.edges[parent] = append(g.edges[parent], Edge{Parent: parent, Child: child, Column: column, Action: SetNull})
	return g
}

// PrimaryKey returns the key column of table.
func (g *Graph) PrimaryKey(table string) string {
	return g.keys[table]
}

// Step is one statement of a teardown plan. Path leads from the root table to
// Table; an empty path addresses the root row itself.
type Step struct {
	Table  string
	Action Action
	Column string // column cleared by a SetNull step
	Path   []Edge
}

func (s Step) String() string {
	parts := make([]string, 0, len(s.Path)+1)
	for _, e := range s.Path {
		parts = append(parts, e.Child+"."+e.Column)
	}
	target := s.Table
	if s.Action == SetNull {
		target += "." + s.Column
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%s %s (root)", s.Action, target)
	}
	return fmt.Sprintf("%s %s via %s", s.Action, target, strings.Join(parts, " -> "))
}

// Plan returns the ordered steps that remove one row of root and everything it owns.
func (g *Graph) Plan(root string) ([]Step, error) {
	if _, ok := g.keys[root]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, root)
	}

	var steps []Step
	onPath := map[string]bool{}

	var visit func(table string, path []Edge) error
	visit = func(table string, path []Edge) error {
		if onPath[table] {
			return fmt.Errorf("%w at %s", ErrCycle, table)
		}
		onPath[table] = true
		defer delete(onPath, table)

		for _, e := range g.edges[table] {
			if _, ok := g.keys[e.Child]; !ok {
				return fmt.Errorf("%w: %s", ErrUnknownTable, e.Child)
			}
			childPath := append(append([]Edge(nil), path...), e)
			if e.Action == SetNull {
				steps = append(steps, Step{Table: e.Child, Action: SetNull, Column: e.Column, Path: childPath})
				continue
			}
			if err := visit(e.Child, childPath); err != nil {
				return err
			}
		}

		steps = append(steps, Step{Table: table, Action: Cascade, Path: path})
		return nil
	}

	if err := visit(root, nil); err != nil {
		return nil, err
	}
	return steps, nil
}

// Index resolves references for in-memory stores.
type Index interface {
	// IDs returns the primary keys of rows in table whose column holds one of values.
	IDs(table, column string, values []string) []string
}

// Targets returns the primary keys of the rows the step touches.
func (s Step) Targets(rootID string, idx Index) []string {
	ids := []string{rootID}
	for _, e := range s.Path {
		ids = idx.IDs(e.Child, e.Column, ids)
		if len(ids) == 0 {
			return nil
		}
	}
	return ids
}
