// Package template implements the response template DSL: variable
// interpolation with formatting filters, conditional blocks, and loops.
//
// The grammar is a stable, versioned mini-language — AI-authored and
// human-edited templates must parse identically:
//
//	{name}                              interpolation; undefined renders [name]
//	{name | filter} {name | filter:arg} formatted interpolation
//	{#if cond}...{#elseif cond}...{#else}...{/if}
//	{#each items}...{/each}
//
// Render is pure and total: malformed tags are emitted literally, unknown
// filters fall back to the unfiltered value, and identical inputs always
// produce byte-identical output.
package template

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"github.com/tidwall/gjson"
)

// DSLVersion identifies the template grammar revision.
const DSLVersion = "1"

// Render interpolates a template against a flat variable bag. It never
// returns an error: every failure mode degrades to literal text.
func Render(template string, data map[string]interface{}) string {
	nodes, _, _ := parse(template, 0, "")
	var sb strings.Builder
	renderNodes(&sb, nodes, data)
	return sb.String()
}

type nodeKind int

const (
	kindText nodeKind = iota
	kindVar
	kindIf
	kindEach
)

type node struct {
	kind nodeKind

	text string

	// kindVar
	name      string
	filter    string
	filterArg string

	// kindIf
	branches []branch
	elseBody []node

	// kindEach
	items string
	body  []node
}

type branch struct {
	cond string
	body []node
}

// stopReason says what ended a body parse: the matching closer, a branch
// boundary owned by the enclosing if block, or end of input.
type stopReason int

const (
	stopEOF stopReason = iota
	stopCloser
	stopBranch
)

// parse consumes the template starting at pos until it hits a closer owned
// by an enclosing block (closeTag), returning the nodes, the resume
// position, and what stopped it. closeTag "" means parse to end of input.
func parse(template string, pos int, closeTag string) ([]node, int, stopReason) {
	var nodes []node

	for pos < len(template) {
		open := strings.IndexByte(template[pos:], '{')
		if open < 0 {
			nodes = append(nodes, node{kind: kindText, text: template[pos:]})
			return nodes, len(template), stopEOF
		}
		open += pos
		if open > pos {
			nodes = append(nodes, node{kind: kindText, text: template[pos:open]})
		}

		end := strings.IndexByte(template[open:], '}')
		if end < 0 {
			// Unterminated tag: the rest of the input is literal text.
			nodes = append(nodes, node{kind: kindText, text: template[open:]})
			return nodes, len(template), stopEOF
		}
		end += open
		tag := template[open+1 : end]
		trimmed := strings.TrimSpace(tag)

		switch {
		case closeTag != "" && trimmed == closeTag:
			return nodes, end + 1, stopCloser

		case closeTag == "/if" && (strings.HasPrefix(trimmed, "#elseif") || trimmed == "#else"):
			// Owned by the enclosing if block; hand control back without
			// consuming so the block parser can read it.
			return nodes, open, stopBranch

		case strings.HasPrefix(trimmed, "#if "):
			ifNode, next := parseIf(template, trimmed[len("#if "):], end+1)
			if next < 0 {
				// Unclosed block degrades to a literal tag.
				nodes = append(nodes, node{kind: kindText, text: template[open : end+1]})
				pos = end + 1
				continue
			}
			nodes = append(nodes, ifNode)
			pos = next

		case strings.HasPrefix(trimmed, "#each "):
			items := strings.TrimSpace(trimmed[len("#each "):])
			body, next, stop := parse(template, end+1, "/each")
			if stop != stopCloser {
				nodes = append(nodes, node{kind: kindText, text: template[open : end+1]})
				pos = end + 1
				continue
			}
			nodes = append(nodes, node{kind: kindEach, items: items, body: body})
			pos = next

		case trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "/"):
			// Stray closer or malformed block tag: literal.
			nodes = append(nodes, node{kind: kindText, text: template[open : end+1]})
			pos = end + 1

		default:
			nodes = append(nodes, parseVar(tag))
			pos = end + 1
		}
	}

	return nodes, pos, stopEOF
}

// parseIf parses the branches of an if block whose first condition is cond
// and whose body starts at pos. Returns (node, -1) when the block is never
// closed.
func parseIf(template, cond string, pos int) (node, int) {
	n := node{kind: kindIf}
	current := strings.TrimSpace(cond)

	for {
		body, next, stop := parse(template, pos, "/if")
		switch stop {
		case stopEOF:
			return n, -1

		case stopBranch:
			end := strings.IndexByte(template[next:], '}') + next
			tag := strings.TrimSpace(template[next+1 : end])
			n.branches = append(n.branches, branch{cond: current, body: body})

			if tag == "#else" {
				elseBody, after, elseStop := parse(template, end+1, "/if")
				if elseStop != stopCloser {
					return n, -1
				}
				n.elseBody = elseBody
				return n, after
			}

			current = strings.TrimSpace(strings.TrimPrefix(tag, "#elseif"))
			pos = end + 1

		case stopCloser:
			n.branches = append(n.branches, branch{cond: current, body: body})
			return n, next
		}
	}
}

func parseVar(tag string) node {
	name := tag
	filter := ""
	arg := ""

	if idx := strings.IndexByte(tag, '|'); idx >= 0 {
		name = strings.TrimSpace(tag[:idx])
		filter = strings.TrimSpace(tag[idx+1:])
		if colon := strings.IndexByte(filter, ':'); colon >= 0 {
			arg = filter[colon+1:]
			filter = filter[:colon]
		}
	} else {
		name = strings.TrimSpace(tag)
	}

	return node{kind: kindVar, name: name, filter: filter, filterArg: arg}
}

func renderNodes(sb *strings.Builder, nodes []node, data map[string]interface{}) {
	for _, n := range nodes {
		switch n.kind {
		case kindText:
			sb.WriteString(n.text)

		case kindVar:
			value, ok := lookup(data, n.name)
			if !ok {
				// Unresolved variables are marked visibly, never thrown.
				sb.WriteString("[" + n.name + "]")
				continue
			}
			sb.WriteString(applyFilter(value, n.filter, n.filterArg))

		case kindIf:
			rendered := false
			for _, b := range n.branches {
				if evalCondition(b.cond, data) {
					renderNodes(sb, b.body, data)
					rendered = true
					break
				}
			}
			if !rendered && n.elseBody != nil {
				renderNodes(sb, n.elseBody, data)
			}

		case kindEach:
			items, ok := lookup(data, n.items)
			if !ok {
				continue
			}
			for _, item := range toSlice(items) {
				renderNodes(sb, n.body, iterationScope(data, item))
			}
		}
	}
}

// lookup resolves a possibly dotted name against the bag.
func lookup(data map[string]interface{}, name string) (interface{}, bool) {
	if v, ok := data[name]; ok {
		return v, true
	}
	if !strings.ContainsRune(name, '.') {
		return nil, false
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, false
	}
	value := gjson.GetBytes(raw, name)
	if !value.Exists() {
		return nil, false
	}
	return value.Value(), true
}

// evalCondition evaluates an equality/threshold condition against the bag.
// Any evaluation failure, including references to unknown variables, reads
// as false.
func evalCondition(cond string, data map[string]interface{}) bool {
	if strings.TrimSpace(cond) == "" {
		return false
	}

	vm := goja.New()
	for k, v := range data {
		_ = vm.Set(k, v)
	}
	result, err := vm.RunString(cond)
	if err != nil {
		return false
	}
	return result.ToBoolean()
}

func toSlice(v interface{}) []interface{} {
	switch items := v.(type) {
	case []interface{}:
		return items
	case []map[string]interface{}:
		out := make([]interface{}, len(items))
		for i, m := range items {
			out[i] = m
		}
		return out
	case []string:
		out := make([]interface{}, len(items))
		for i, s := range items {
			out[i] = s
		}
		return out
	default:
		return nil
	}
}

// iterationScope exposes the element as "this" and promotes map fields,
// with the outer scope visible underneath.
func iterationScope(outer map[string]interface{}, item interface{}) map[string]interface{} {
	scope := make(map[string]interface{}, len(outer)+2)
	for k, v := range outer {
		scope[k] = v
	}
	if fields, ok := item.(map[string]interface{}); ok {
		for k, v := range fields {
			scope[k] = v
		}
	}
	scope["this"] = item
	return scope
}

// Stringify renders a bag value the way interpolation does, exported for
// reuse by preview tooling.
func Stringify(v interface{}) string {
	return stringify(v)
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		// JSON numbers decode as float64; print integers without a trailing
		// .0 so {a} with a=5 renders "5".
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%v", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
