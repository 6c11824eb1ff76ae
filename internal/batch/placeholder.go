package batch

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// UnresolvedReferenceError is returned when a payload references a name no
// earlier operation saved.
type UnresolvedReferenceError struct {
	Name string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("unresolved reference ${%s}: no earlier operation saved it", e.Name)
}

// Substitute returns a copy of payload where every ${name} token inside a
// top-level string value is replaced by vars[name]. Non-string values are
// copied untouched. Fields are expanded in key order, so the first
// unresolved reference reported is stable. The input map is never modified.
func Substitute(payload map[string]any, vars map[string]string) (map[string]any, error) {
	if payload == nil {
		return map[string]any{}, nil
	}

	out := maps.Clone(payload)
	for _, field := range slices.Sorted(maps.Keys(payload)) {
		s, ok := payload[field].(string)
		if !ok || !strings.Contains(s, "${") {
			continue
		}
		expanded, err := expand(s, vars)
		if err != nil {
			return nil, err
		}
		out[field] = expanded
	}
	return out, nil
}

// expand replaces ${name} tokens in s. Text that does not form a valid
// token (unterminated brace, empty or malformed name) is kept literally.
func expand(s string, vars map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))

	i := 0
	for i < len(s) {
		start := strings.Index(s[i:], "${")
		if start < 0 {
			break
		}
		start += i

		end := strings.IndexByte(s[start+2:], '}')
		if end < 0 {
			break
		}
		end += start + 2

		name := s[start+2 : end]
		if !isTokenName(name) {
			// Keep "${" and rescan after it; a valid token may follow.
			b.WriteString(s[i : start+2])
			i = start + 2
			continue
		}

		value, ok := vars[name]
		if !ok {
			return "", &UnresolvedReferenceError{Name: name}
		}
		b.WriteString(s[i:start])
		b.WriteString(value)
		i = end + 1
	}
	b.WriteString(s[i:])
	return b.String(), nil
}

func isTokenName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}
