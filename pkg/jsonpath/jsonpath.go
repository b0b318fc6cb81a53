// Package jsonpath extracts values from JSON documents.
//
// Paths starting with "$" use a JSONPath subset:
//
//	$.methods.Accumulate.count
//	$.methods['checkout.ProcessOrder'].average
//	$.items[0].name
//	$.items[*].name
//
// Any other path is handed to gjson unchanged, so gjson modifiers such as
// "methods.@keys" also work.
package jsonpath

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrNotFound is returned when the path matches nothing.
	ErrNotFound = errors.New("path not found")

	// ErrInvalidPath is returned for malformed JSONPath expressions.
	ErrInvalidPath = errors.New("invalid path")
)

// Query returns the raw gjson result for path.
func Query(doc []byte, path string) (gjson.Result, error) {
	if len(doc) == 0 {
		return gjson.Result{}, fmt.Errorf("empty JSON document")
	}
	if path == "" {
		return gjson.Result{}, fmt.Errorf("%w: empty expression", ErrInvalidPath)
	}
	if !gjson.ValidBytes(doc) {
		return gjson.Result{}, fmt.Errorf("invalid JSON document")
	}

	gpath, err := toGJSON(path)
	if err != nil {
		return gjson.Result{}, err
	}

	result := gjson.GetBytes(doc, gpath)
	if !result.Exists() {
		return gjson.Result{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return result, nil
}

// Extract returns the value at path as a string. Objects and arrays are
// returned as raw JSON; null is returned as "null".
func Extract(doc []byte, path string) (string, error) {
	result, err := Query(doc, path)
	if err != nil {
		return "", err
	}

	switch result.Type {
	case gjson.Null:
		return "null", nil
	case gjson.JSON:
		return result.Raw, nil
	default:
		return result.String(), nil
	}
}

// ExtractMultiple evaluates several named paths. Values that resolve are
// returned even when others fail; the error lists every failure.
func ExtractMultiple(doc []byte, paths map[string]string) (map[string]string, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no paths provided")
	}

	results := make(map[string]string, len(paths))
	var failures []string

	for name, path := range paths {
		value, err := Extract(doc, path)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		results[name] = value
	}

	if len(failures) > 0 {
		return results, fmt.Errorf("extraction errors: %s", strings.Join(failures, "; "))
	}
	return results, nil
}

// toGJSON converts a JSONPath expression into a gjson path. Keys are escaped
// so names containing dots or wildcards are matched literally.
func toGJSON(path string) (string, error) {
	if !strings.HasPrefix(path, "$") {
		return path, nil
	}

	rest := path[1:]
	if rest == "" {
		return "@this", nil
	}

	var parts []string
	for len(rest) > 0 {
		switch rest[0] {
		case '.':
			rest = rest[1:]
			end := strings.IndexAny(rest, ".[")
			if end < 0 {
				end = len(rest)
			}
			key := rest[:end]
			if key == "" {
				return "", fmt.Errorf("%w: empty key in %s", ErrInvalidPath, path)
			}
			if key == "*" {
				parts = append(parts, "#")
			} else {
				parts = append(parts, escape(key))
			}
			rest = rest[end:]

		case '[':
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return "", fmt.Errorf("%w: unclosed bracket in %s", ErrInvalidPath, path)
			}
			inner := rest[1:end]
			switch {
			case inner == "*":
				parts = append(parts, "#")
			case len(inner) >= 2 && (inner[0] == '\'' || inner[0] == '"') && inner[len(inner)-1] == inner[0]:
				parts = append(parts, escape(inner[1:len(inner)-1]))
			case inner != "" && strings.Trim(inner, "0123456789") == "":
				parts = append(parts, inner)
			default:
				return "", fmt.Errorf("%w: unsupported selector [%s] in %s", ErrInvalidPath, inner, path)
			}
			rest = rest[end+1:]

		default:
			return "", fmt.Errorf("%w: unexpected %q in %s", ErrInvalidPath, rest[0], path)
		}
	}

	return strings.Join(parts, "."), nil
}

// escape backslash-escapes gjson path syntax characters.
func escape(key string) string {
	var sb strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
