// internal/pipeline/eval.go
package pipeline

import (
	"regexp"
	"strings"

	"github.com/dop251/goja"
)

// evalExpression evaluates a formula against the accumulated variable bag.
// A fresh VM per call keeps evaluation free of cross-node state. Failures
// surface as (nil, false): the simulator records a nil result rather than
// erroring, since formulas are author-supplied and conceptually evaluated.
func evalExpression(expr string, vars map[string]interface{}) (interface{}, bool) {
	if expr == "" {
		return nil, false
	}

	vm := goja.New()
	for k, v := range vars {
		_ = vm.Set(k, v)
	}

	result, err := vm.RunString(expr)
	if err != nil {
		return nil, false
	}
	return result.Export(), true
}

// evalCondition evaluates a boolean expression; failures read as false.
func evalCondition(expr string, vars map[string]interface{}) (bool, bool) {
	if expr == "" {
		return false, false
	}

	vm := goja.New()
	for k, v := range vars {
		_ = vm.Set(k, v)
	}

	result, err := vm.RunString(expr)
	if err != nil {
		return false, false
	}
	return result.ToBoolean(), true
}

var identifierPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z0-9_]+)*`)

// jsReserved are tokens that look like identifiers but never name a pipeline
// variable or entity.
var jsReserved = map[string]bool{
	"true": true, "false": true, "null": true, "undefined": true,
	"Math": true, "Number": true, "String": true, "Boolean": true,
	"Date": true, "JSON": true, "Array": true, "Object": true,
	"if": true, "else": true, "return": true, "typeof": true,
	"new": true, "in": true, "of": true, "var": true, "let": true, "const": true,
}

// referencedIdentifiers extracts the base identifiers an expression refers
// to: for "cashData.totalBalance / 30" it yields ["cashData"].
func referencedIdentifiers(expr string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, match := range identifierPattern.FindAllString(expr, -1) {
		base := match
		if idx := strings.IndexByte(base, '.'); idx >= 0 {
			base = base[:idx]
		}
		if jsReserved[base] || seen[base] {
			continue
		}
		seen[base] = true
		out = append(out, base)
	}
	return out
}

// referencedFields returns the field names an expression reads off a given
// base identifier: for base "cashData" and "cashData.totalBalance/30" it
// yields ["totalBalance"].
func referencedFields(expr, base string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, match := range identifierPattern.FindAllString(expr, -1) {
		idx := strings.IndexByte(match, '.')
		if idx < 0 || match[:idx] != base {
			continue
		}
		rest := match[idx+1:]
		if end := strings.IndexByte(rest, '.'); end >= 0 {
			rest = rest[:end]
		}
		if rest == "" || seen[rest] {
			continue
		}
		seen[rest] = true
		out = append(out, rest)
	}
	return out
}
