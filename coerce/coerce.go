package coerce

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// maxUnwrap bounds envelope unwrapping for pathologically nested input.
const maxUnwrap = 8

// Apply returns a coerced copy of obj following shape. obj is not modified.
// Applying the same shape to the result returns an equal object.
func Apply(obj map[string]any, shape *Shape) map[string]any {
	return applyAt(obj, shape, 0)
}

func applyAt(obj map[string]any, shape *Shape, index int) map[string]any {
	if shape == nil {
		return copyMap(obj)
	}
	obj = unwrap(obj, shape)
	out := copyMap(obj)

	for _, r := range shape.Rules {
		v, found := take(out, r)
		if v == nil {
			if r.Default != nil {
				d := r.Default(index)
				if r.Item != nil {
					d = applyItem(d, r.Item)
				}
				out[r.Canonical] = d
			} else if found {
				out[r.Canonical] = nil
			}
			continue
		}
		v = applyCardinality(v, r.Cardinality)
		if r.AsString {
			v = stringify(v)
		}
		if r.Flatten {
			v = flattenList(v)
		}
		if r.Values != nil || r.Fallback != "" {
			v = normalizeEnum(v, r)
		}
		if r.Item != nil {
			v = applyItem(v, r.Item)
		}
		out[r.Canonical] = v
	}
	return out
}

// unwrap descends into envelope keys such as {"usecase_diagram": {...}}.
// An object that already carries one of the shape's own fields is not an
// envelope, whatever else it holds.
func unwrap(obj map[string]any, shape *Shape) map[string]any {
	for i := 0; i < maxUnwrap && !hasField(obj, shape); i++ {
		inner := envelope(obj, shape.Unwrap)
		if inner == nil {
			return obj
		}
		obj = inner
	}
	return obj
}

func envelope(obj map[string]any, keys []string) map[string]any {
	for _, k := range keys {
		if m, ok := obj[k].(map[string]any); ok {
			return m
		}
	}
	return nil
}

// hasField reports whether obj holds a canonical key or alias of shape.
func hasField(obj map[string]any, shape *Shape) bool {
	for _, r := range shape.Rules {
		if _, ok := obj[r.Canonical]; ok {
			return true
		}
		for _, alias := range r.Aliases {
			if _, ok := obj[alias]; ok {
				return true
			}
		}
	}
	return false
}

// take removes the canonical key and its aliases from obj and returns the
// first non-null value among them, canonical first.
func take(obj map[string]any, r Rule) (any, bool) {
	v, found := obj[r.Canonical]
	delete(obj, r.Canonical)
	for _, alias := range r.Aliases {
		av, ok := obj[alias]
		if !ok {
			continue
		}
		delete(obj, alias)
		found = true
		if v == nil {
			v = av
		}
	}
	return v, found
}

func applyCardinality(v any, c Cardinality) any {
	switch c {
	case Scalar:
		for {
			list, ok := v.([]any)
			if !ok {
				break
			}
			if len(list) == 0 {
				return ""
			}
			v = list[0]
		}
		if m, ok := v.(map[string]any); ok {
			if name, ok := m["name"].(string); ok {
				return name
			}
		}
		return v
	case List:
		if _, ok := v.([]any); ok {
			return v
		}
		return []any{v}
	case Joined:
		list, ok := v.([]any)
		if !ok {
			return v
		}
		parts := make([]string, 0, len(list))
		for _, e := range list {
			parts = append(parts, textOf(e))
		}
		return strings.Join(parts, "\n")
	default:
		return v
	}
}

func applyItem(v any, shape *Shape) any {
	switch t := v.(type) {
	case map[string]any:
		return applyAt(t, shape, 0)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			switch et := e.(type) {
			case map[string]any:
				out[i] = applyAt(et, shape, i)
			case string:
				if shape.ScalarKey != "" {
					out[i] = applyAt(map[string]any{shape.ScalarKey: et}, shape, i)
				} else {
					out[i] = e
				}
			default:
				out[i] = e
			}
		}
		return out
	}
	return v
}

func normalizeEnum(v any, r Rule) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if canonical, ok := r.Values[strings.ToLower(strings.TrimSpace(s))]; ok {
		return canonical
	}
	if r.Fallback != "" {
		return r.Fallback
	}
	return v
}

func stringify(v any) any {
	switch t := v.(type) {
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	}
	return v
}

func flattenList(v any) any {
	list, ok := v.([]any)
	if !ok {
		return v
	}
	out := make([]any, len(list))
	for i, e := range list {
		out[i] = textOf(e)
	}
	return out
}

// textOf renders a loosely typed element as text. Objects with a name render
// as "name" or "name: type".
func textOf(e any) string {
	switch t := e.(type) {
	case string:
		return t
	case nil:
		return ""
	case map[string]any:
		name, _ := t["name"].(string)
		typ, _ := t["type"].(string)
		switch {
		case name != "" && typ != "":
			return name + ": " + typ
		case name != "":
			return name
		}
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	default:
		if s, ok := stringify(t).(string); ok {
			return s
		}
		return fmt.Sprint(t)
	}
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
