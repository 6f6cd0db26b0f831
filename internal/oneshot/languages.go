package oneshot

import (
	"fmt"
	"strings"
)

// Language describes how to wrap a user fragment into a runnable one-shot
// script. The input table is exposed as kIn (column name to value list) and
// the script's mOut is written back to the dump.
type Language struct {
	Name string
	Ext  string
	// template contains two %q verbs, both receiving the dump path, around
	// a %s verb receiving the user fragment.
	template string
}

// Compose renders the full script for a fragment and dump path.
func (l Language) Compose(fragment, dumpPath string) string {
	if !strings.HasSuffix(fragment, "\n") {
		fragment += "\n"
	}
	return fmt.Sprintf(l.template, dumpPath, fragment, dumpPath)
}

// Python runs fragments under a CPython interpreter.
var Python = Language{
	Name: "python",
	Ext:  ".py",
	template: `import json

with open(%q) as fh:
    _raw = json.load(fh)
kIn = {c["name"]: list(c["values"]) for c in _raw["columns"]}
_kinds = {c["name"]: c.get("kind", "double") for c in _raw["columns"]}
mOut = dict(kIn)

%s
_columns = []
for _name, _values in mOut.items():
    _kind = _kinds.get(_name)
    if _kind is None:
        _kind = "double" if all(isinstance(v, (int, float)) for v in _values) else "string"
    _columns.append({"name": _name, "kind": _kind, "values": list(_values)})
with open(%q, "w") as fh:
    json.dump({"columns": _columns}, fh)
`,
}

// R runs fragments under an Rscript interpreter; jsonlite handles the
// interchange dump.
var R = Language{
	Name: "r",
	Ext:  ".R",
	template: `library(jsonlite)

.raw <- fromJSON(%q, simplifyVector = TRUE)
kIn <- setNames(as.list(.raw$columns$values), .raw$columns$name)
.kinds <- setNames(as.list(.raw$columns$kind), .raw$columns$name)
mOut <- kIn

%s
.columns <- lapply(names(mOut), function(n) {
  kind <- .kinds[[n]]
  if (is.null(kind)) kind <- if (is.numeric(mOut[[n]])) "double" else "string"
  list(name = n, kind = kind, values = mOut[[n]])
})
write(toJSON(list(columns = .columns), auto_unbox = TRUE), file = %q)
`,
}
