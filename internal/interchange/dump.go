// Package interchange moves tables across the process boundary to external
// scripting engines. A table is flattened to a key/value dump (column name to
// column values) in a uniquely named temporary file; after a snippet task the
// engine overwrites the dump under the output-variable convention and the
// adapter reads it back.
package interchange

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/certxg/knime-scripting/internal/table"
)

// dumpPrefix is the file name prefix of every interchange dump.
const dumpPrefix = "kscripting-table-"

type dumpColumn struct {
	Name   string     `json:"name"`
	Kind   table.Kind `json:"kind"`
	Values []any      `json:"values"`
}

type dumpFile struct {
	Columns []dumpColumn `json:"columns"`
}

// Marshal serializes a table to the dump wire form.
func Marshal(t *table.Table) ([]byte, error) {
	d := dumpFile{Columns: make([]dumpColumn, 0, t.NumCols())}
	for _, c := range t.Columns() {
		values := c.Values
		if values == nil {
			values = []any{}
		}
		d.Columns = append(d.Columns, dumpColumn{Name: c.Name, Kind: c.Kind, Values: values})
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, errors.Wrap(err, "interchange: marshal table")
	}
	return raw, nil
}

// Unmarshal reconstructs a table from dump bytes using the given
// construction context. The shape must match what the engine-side
// output-variable convention produces.
func Unmarshal(tctx *table.Context, raw []byte) (*table.Table, error) {
	var d dumpFile
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, errors.Wrap(err, "interchange: decode dump")
	}
	if d.Columns == nil {
		return nil, errors.New("interchange: dump has no columns key")
	}
	cols := make([]table.Column, 0, len(d.Columns))
	for _, c := range d.Columns {
		if c.Name == "" {
			return nil, errors.New("interchange: dump column without name")
		}
		kind := c.Kind
		if kind == "" {
			kind = table.Double
		}
		cols = append(cols, table.Column{Name: c.Name, Kind: kind, Values: c.Values})
	}
	out, err := tctx.NewTable(cols...)
	if err != nil {
		return nil, errors.Wrap(err, "interchange: rebuild table")
	}
	return out, nil
}

// Adapter owns one table's interchange dump for the duration of a task.
type Adapter struct {
	tbl  *table.Table
	path string
}

// New wraps a table for interchange with an external engine.
func New(t *table.Table) *Adapter {
	return &Adapter{tbl: t}
}

// WriteDump persists the table to a fresh, uniquely named file in the
// temporary directory and returns its path. The random token keeps
// concurrent clients from colliding.
func (a *Adapter) WriteDump() (string, error) {
	raw, err := Marshal(a.tbl)
	if err != nil {
		return "", err
	}
	path := filepath.Join(os.TempDir(), dumpPrefix+uuid.NewString()+".json")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return "", errors.Wrap(err, "interchange: write dump")
	}
	a.path = path
	return path, nil
}

// Path returns the dump location, or the empty string before WriteDump.
func (a *Adapter) Path() string { return a.path }

// ReadDump reads the engine-rewritten dump back into a new table.
func (a *Adapter) ReadDump(tctx *table.Context) (*table.Table, error) {
	if a.path == "" {
		return nil, errors.New("interchange: no dump written")
	}
	raw, err := os.ReadFile(a.path)
	if err != nil {
		return nil, errors.Wrap(err, "interchange: read dump")
	}
	return Unmarshal(tctx, raw)
}

// Cleanup deletes the dump if present. Safe to call repeatedly and before
// WriteDump.
func (a *Adapter) Cleanup() {
	if a.path == "" {
		return
	}
	os.Remove(a.path)
	a.path = ""
}
