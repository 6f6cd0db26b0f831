// Package table holds the minimal column-oriented table model that scripting
// nodes exchange with external engines. It stands in for the workbench's own
// data table and execution context collaborators.
package table

import (
	"github.com/pkg/errors"
)

// Kind identifies the value type of a column.
type Kind string

const (
	// Double is a numeric column, represented as float64.
	Double Kind = "double"
	// Text is a string column.
	Text Kind = "string"
	// Bool is a boolean column.
	Bool Kind = "bool"
)

// Column is one named, typed column and its values.
type Column struct {
	Name   string
	Kind   Kind
	Values []any
}

// Table is an ordered collection of equally long columns.
type Table struct {
	cols []Column
}

// New builds a table from the given columns. All columns must carry the same
// number of values and distinct names.
func New(cols ...Column) (*Table, error) {
	seen := make(map[string]bool, len(cols))
	rows := -1
	for _, c := range cols {
		if c.Name == "" {
			return nil, errors.New("table: column with empty name")
		}
		if seen[c.Name] {
			return nil, errors.Errorf("table: duplicate column %q", c.Name)
		}
		seen[c.Name] = true
		if rows == -1 {
			rows = len(c.Values)
		} else if len(c.Values) != rows {
			return nil, errors.Errorf("table: column %q has %d rows, want %d", c.Name, len(c.Values), rows)
		}
	}
	return &Table{cols: cols}, nil
}

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.cols) }

// NumRows returns the number of rows. An empty table has zero rows.
func (t *Table) NumRows() int {
	if len(t.cols) == 0 {
		return 0
	}
	return len(t.cols[0].Values)
}

// Columns returns the table's columns in order.
func (t *Table) Columns() []Column { return t.cols }

// Column returns the named column, or false if it does not exist.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.cols {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// AppendRow adds one value per column, in column order.
func (t *Table) AppendRow(values ...any) error {
	if len(values) != len(t.cols) {
		return errors.Errorf("table: row has %d values, want %d", len(values), len(t.cols))
	}
	for i := range t.cols {
		t.cols[i].Values = append(t.cols[i].Values, values[i])
	}
	return nil
}

// Context is the table-construction facility handed to result read-back
// paths. The workbench supplies the real one; this stand-in only validates.
type Context struct{}

// NewContext returns a fresh construction context.
func NewContext() *Context { return &Context{} }

// NewTable builds a result table under this context.
func (c *Context) NewTable(cols ...Column) (*Table, error) {
	return New(cols...)
}
