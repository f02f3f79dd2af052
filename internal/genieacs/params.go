package genieacs

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// child walks a parameter tree by key, returning nil when a step is missing.
func child(m map[string]any, keys ...string) map[string]any {
	cur := m
	for _, k := range keys {
		if cur == nil {
			return nil
		}
		next, ok := cur[k].(map[string]any)
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

// value reads the _value leaf under keys as text.
func value(m map[string]any, keys ...string) string {
	n := child(m, keys...)
	if n == nil {
		return ""
	}
	return scalar(n["_value"])
}

func truthy(m map[string]any, keys ...string) bool {
	n := child(m, keys...)
	if n == nil {
		return false
	}
	switch v := n["_value"].(type) {
	case bool:
		return v
	case string:
		return v == "1" || strings.EqualFold(v, "true")
	case json.Number:
		return v.String() != "0"
	}
	return false
}

func scalar(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return ""
}

// instances returns the numbered child objects of a TR-069 table in
// ascending key order, skipping metadata such as _object.
func instances(m map[string]any) []map[string]any {
	if m == nil {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		if strings.HasPrefix(k, "_") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})
	out := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		if v, ok := m[k].(map[string]any); ok {
			out = append(out, v)
		}
	}
	return out
}
