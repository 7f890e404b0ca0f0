// Package target normalizes build target specifications.
package target

import (
	"fmt"
	"strings"
)

// Separator splits a target list given as a single string.
const Separator = ","

// Resolve normalizes a target specification into an ordered list.
//
// spec may be a string or a []string. A string containing Separator is split
// and each element trimmed; a string without it becomes a one-element list.
// A []string is returned unchanged. Duplicates are kept and order is
// preserved. Identifiers are not validated here; unknown ones fail at build
// time. The result always has at least one element.
func Resolve(spec any) []string {
	switch v := spec.(type) {
	case []string:
		if len(v) == 0 {
			return []string{""}
		}
		return v
	case string:
		return ResolveString(v)
	case fmt.Stringer:
		return ResolveString(v.String())
	case nil:
		return []string{""}
	default:
		return ResolveString(fmt.Sprint(v))
	}
}

// ResolveString is Resolve for a string specification.
func ResolveString(spec string) []string {
	if !strings.Contains(spec, Separator) {
		return []string{strings.TrimSpace(spec)}
	}
	parts := strings.Split(spec, Separator)
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
