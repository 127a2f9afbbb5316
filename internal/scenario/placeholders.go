package scenario

import (
	"regexp"
	"strings"
)

// placeholderPattern matches {{key}} and {{key|default}}.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([^}|]+?)\s*(?:\|([^}]*))?\}\}`)

// render substitutes placeholders in tmpl. lookup resolves a key; a miss
// falls back to the default when one is given and otherwise keeps the
// placeholder verbatim.
func render(tmpl string, lookup func(key string) (string, bool)) string {
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		parts := placeholderPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if val, ok := lookup(parts[1]); ok {
			return val
		}
		if strings.Contains(match, "|") {
			return parts[2]
		}
		return match
	})
}

