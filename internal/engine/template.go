package engine

import (
	"regexp"
	"strings"

	"github.com/roach88/encounterlab/internal/ir"
)

// placeholder matches ${scope.path.to.value}.
var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z0-9_]+)*)\}`)

// render substitutes placeholders in tmpl against scope.
// Unknown paths render as the empty string.
func render(tmpl string, scope ir.IRObject) string {
	if !strings.Contains(tmpl, "${") {
		return tmpl
	}
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		v, _ := lookup(scope, m[2:len(m)-1])
		return ir.Text(v)
	})
}

// resolve renders tmpl, keeping the referenced value's type when tmpl is
// exactly one placeholder ("${data.count}" stays an int).
func resolve(tmpl string, scope ir.IRObject) ir.IRValue {
	if loc := placeholder.FindStringSubmatchIndex(tmpl); loc != nil && loc[0] == 0 && loc[1] == len(tmpl) {
		if v, ok := lookup(scope, tmpl[loc[2]:loc[3]]); ok {
			return ir.Clone(v)
		}
		return ir.IRNull{}
	}
	return ir.IRString(render(tmpl, scope))
}

// lookup walks a dotted path through nested objects.
func lookup(obj ir.IRObject, path string) (ir.IRValue, bool) {
	var cur ir.IRValue = obj
	for _, part := range strings.Split(path, ".") {
		o, ok := cur.(ir.IRObject)
		if !ok {
			return nil, false
		}
		cur, ok = o[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Placeholders lists the paths referenced by tmpl, in order.
func Placeholders(tmpl string) []string {
	var paths []string
	for _, m := range placeholder.FindAllStringSubmatch(tmpl, -1) {
		paths = append(paths, m[1])
	}
	return paths
}
