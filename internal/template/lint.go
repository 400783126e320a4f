// internal/template/lint.go
package template

import (
	"fmt"
	"strings"
)

// Lint reports malformed-template findings without rendering: unclosed
// blocks, stray closers, and unterminated tags. Render tolerates all of
// these; Lint exists so editors can surface them while the flow is authored.
func Lint(template string) []string {
	var findings []string
	var stack []string

	pos := 0
	for pos < len(template) {
		open := strings.IndexByte(template[pos:], '{')
		if open < 0 {
			break
		}
		open += pos

		end := strings.IndexByte(template[open:], '}')
		if end < 0 {
			findings = append(findings, fmt.Sprintf("unterminated tag at offset %d", open))
			break
		}
		end += open
		tag := strings.TrimSpace(template[open+1 : end])

		switch {
		case strings.HasPrefix(tag, "#if "):
			stack = append(stack, "if")
		case strings.HasPrefix(tag, "#each "):
			stack = append(stack, "each")
		case tag == "/if", tag == "/each":
			want := strings.TrimPrefix(tag, "/")
			if len(stack) == 0 || stack[len(stack)-1] != want {
				findings = append(findings, fmt.Sprintf("stray closer {%s} at offset %d", tag, open))
			} else {
				stack = stack[:len(stack)-1]
			}
		case strings.HasPrefix(tag, "#elseif") || tag == "#else":
			if len(stack) == 0 || stack[len(stack)-1] != "if" {
				findings = append(findings, fmt.Sprintf("{%s} outside an if block at offset %d", tag, open))
			}
		}

		pos = end + 1
	}

	for i := len(stack) - 1; i >= 0; i-- {
		findings = append(findings, fmt.Sprintf("unclosed {#%s} block", stack[i]))
	}
	return findings
}
