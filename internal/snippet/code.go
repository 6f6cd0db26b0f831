// Package snippet composes the engine-native command text for the three task
// kinds (open-in-session, run-snippet, render-plot). A command is fixed
// preamble boilerplate around the interchange-dump path and the user-authored
// fragment; the plot variant additionally parameterizes output dimensions.
package snippet

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Variable-name conventions shared with the script templates. A snippet reads
// its input table from InputVariable and leaves its result in OutputVariable.
const (
	InputVariable  = "kIn"
	OutputVariable = "mOut"
)

// Table representations a MATLAB snippet can ask for.
const (
	TableTypeStruct  = "struct"
	TableTypeMap     = "map"
	TableTypeDataset = "dataset"
)

// Composer builds MATLAB command text for one task. It owns the temporary
// script file it writes (and, for plots, the rendered image location) until
// Cleanup is called.
type Composer struct {
	fragment   string
	dumpPath   string
	tableType  string
	scriptPath string
	plotPath   string
}

// NewComposer prepares composition of an inline user fragment against the
// table dump at dumpPath. tableType selects the MATLAB representation of the
// input variable; empty means struct.
func NewComposer(fragment, dumpPath, tableType string) *Composer {
	if tableType == "" {
		tableType = TableTypeStruct
	}
	return &Composer{fragment: fragment, dumpPath: dumpPath, tableType: tableType}
}

// NewComposerFromFile prepares composition from a pre-existing script file.
// The script is copied under a random name into the temporary directory so
// concurrent tasks never share a script file.
func NewComposerFromFile(scriptFile, dumpPath, tableType string) (*Composer, error) {
	raw, err := os.ReadFile(scriptFile)
	if err != nil {
		return nil, errors.Wrap(err, "snippet: read script file")
	}
	c := NewComposer(string(raw), dumpPath, tableType)
	if _, err := c.writeScript(); err != nil {
		return nil, err
	}
	return c, nil
}

// loadCode is the preamble loading the interchange dump into InputVariable.
// The dump's columns array is reshaped into one field per column, so a
// fragment addresses kIn.<column> directly; the declared kinds are kept
// aside for the postamble. jsondecode yields a struct array for uniform
// columns and a cell array for mixed ones, so both are normalized.
func (c *Composer) loadCode() string {
	var b strings.Builder
	fmt.Fprintf(&b, "kscripting_raw = jsondecode(fileread('%s'));\n", c.dumpPath)
	b.WriteString("if ~iscell(kscripting_raw.columns), kscripting_raw.columns = num2cell(kscripting_raw.columns); end\n")
	fmt.Fprintf(&b, "%s = struct();\nkscripting_kinds = struct();\n", InputVariable)
	b.WriteString("for kscripting_i = 1:numel(kscripting_raw.columns)\n")
	b.WriteString("    kscripting_col = kscripting_raw.columns{kscripting_i};\n")
	fmt.Fprintf(&b, "    %s.(kscripting_col.name) = kscripting_col.values;\n", InputVariable)
	b.WriteString("    kscripting_kinds.(kscripting_col.name) = kscripting_col.kind;\n")
	b.WriteString("end\n")
	switch c.tableType {
	case TableTypeMap:
		fmt.Fprintf(&b, "%s = containers.Map(fieldnames(%s), struct2cell(%s));\n",
			InputVariable, InputVariable, InputVariable)
	case TableTypeDataset:
		fmt.Fprintf(&b, "%s = struct2dataset(%s);\n", InputVariable, InputVariable)
	}
	return b.String()
}

// saveCode is the postamble writing OutputVariable back to the dump in the
// column-map shape the adapter reads: the output fields are rebuilt into a
// columns array, with kinds carried over from the input where known and
// inferred for columns the fragment added.
func (c *Composer) saveCode() string {
	var b strings.Builder
	fmt.Fprintf(&b, "if isa(%s, 'containers.Map'), %s = cell2struct(values(%s), keys(%s), 2); end\n",
		OutputVariable, OutputVariable, OutputVariable, OutputVariable)
	fmt.Fprintf(&b, "if isa(%s, 'dataset'), %s = dataset2struct(%s, 'AsScalar', true); end\n",
		OutputVariable, OutputVariable, OutputVariable)
	fmt.Fprintf(&b, "kscripting_names = fieldnames(%s);\n", OutputVariable)
	b.WriteString("kscripting_cols = cell(numel(kscripting_names), 1);\n")
	b.WriteString("for kscripting_i = 1:numel(kscripting_names)\n")
	fmt.Fprintf(&b, "    kscripting_vals = %s.(kscripting_names{kscripting_i});\n", OutputVariable)
	b.WriteString("    if isfield(kscripting_kinds, kscripting_names{kscripting_i})\n")
	b.WriteString("        kscripting_kind = kscripting_kinds.(kscripting_names{kscripting_i});\n")
	b.WriteString("    elseif islogical(kscripting_vals)\n")
	b.WriteString("        kscripting_kind = 'bool';\n")
	b.WriteString("    elseif isnumeric(kscripting_vals)\n")
	b.WriteString("        kscripting_kind = 'double';\n")
	b.WriteString("    else\n")
	b.WriteString("        kscripting_kind = 'string';\n")
	b.WriteString("    end\n")
	b.WriteString("    kscripting_cols{kscripting_i} = struct('name', kscripting_names{kscripting_i}, 'kind', kscripting_kind, 'values', {kscripting_vals});\n")
	b.WriteString("end\n")
	fmt.Fprintf(&b, "fid = fopen('%s','w'); fwrite(fid, jsonencode(struct('columns', {kscripting_cols}))); fclose(fid);\n",
		c.dumpPath)
	return b.String()
}

// writeScript persists the fragment to a uniquely named .m file and returns
// its path. Repeated calls reuse the first file.
func (c *Composer) writeScript() (string, error) {
	if c.scriptPath != "" {
		return c.scriptPath, nil
	}
	path := filepath.Join(os.TempDir(), "kscripting-snippet-"+uuid.NewString()+".m")
	if err := os.WriteFile(path, []byte(c.fragment), 0o600); err != nil {
		return "", errors.Wrap(err, "snippet: write script")
	}
	c.scriptPath = path
	return path, nil
}

// PrepareOpenCode composes the command for the open-in-session task: load the
// dump as the input variable and leave the session ready for interactive use.
// No result is read back.
func (c *Composer) PrepareOpenCode() string {
	var b strings.Builder
	b.WriteString("disp('Loading workbench table...');\n")
	b.WriteString(c.loadCode())
	if c.scriptPath != "" {
		fmt.Fprintf(&b, "run('%s');\n", c.scriptPath)
	}
	fmt.Fprintf(&b, "disp('Variable %s is available in this session.');\n", InputVariable)
	return b.String()
}

// PrepareSnippetCode composes the command for the run-snippet task: load the
// dump, run the user fragment, write the output variable back to the dump.
func (c *Composer) PrepareSnippetCode() (string, error) {
	script, err := c.writeScript()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(c.loadCode())
	fmt.Fprintf(&b, "%s = %s;\n", OutputVariable, InputVariable)
	fmt.Fprintf(&b, "run('%s');\n", script)
	b.WriteString(c.saveCode())
	return b.String(), nil
}

// PreparePlotCode composes the command for the render-plot task, sized to the
// given pixel dimensions. The rendered PNG lands at PlotFile.
func (c *Composer) PreparePlotCode(width, height int) (string, error) {
	script, err := c.writeScript()
	if err != nil {
		return "", err
	}
	c.plotPath = filepath.Join(os.TempDir(), "kscripting-plot-"+uuid.NewString()+".png")
	var b strings.Builder
	b.WriteString(c.loadCode())
	fmt.Fprintf(&b, "fig = figure('visible','off','units','pixels','position',[0 0 %d %d]);\n", width, height)
	fmt.Fprintf(&b, "run('%s');\n", script)
	fmt.Fprintf(&b, "print(fig, '-dpng', '%s');\nclose(fig);\n", c.plotPath)
	return b.String(), nil
}

// PlotFile returns the rendered image path. Valid after PreparePlotCode; the
// file itself exists only once the composed command has executed. Callers
// that want to keep the image must move it before Cleanup.
func (c *Composer) PlotFile() string { return c.plotPath }

// Cleanup deletes the temporary script file and, if still present, the
// rendered plot. Idempotent.
func (c *Composer) Cleanup() {
	if c.scriptPath != "" {
		os.Remove(c.scriptPath)
		c.scriptPath = ""
	}
	if c.plotPath != "" {
		os.Remove(c.plotPath)
		c.plotPath = ""
	}
}
