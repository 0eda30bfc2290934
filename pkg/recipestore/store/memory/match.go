package memory

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// matches evaluates the subset of the MongoDB query language the service
// issues: equality, $eq, $in, $exists, $regex/$options, $all and $elemMatch,
// with dotted paths traversing arrays.
func matches(doc interface{}, filter bson.M) (bool, error) {
	for key, cond := range filter {
		values := lookup(doc, strings.Split(key, "."))
		ok, err := matchCondition(values, cond)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchCondition(values []interface{}, cond interface{}) (bool, error) {
	ops, isOps := operatorDoc(cond)
	if !isOps {
		return anyEqual(values, cond), nil
	}

	var options string
	if o, ok := ops["$options"].(string); ok {
		options = o
	}

	for op, arg := range ops {
		var ok bool
		var err error
		switch op {
		case "$options":
			continue
		case "$eq":
			ok = anyEqual(values, arg)
		case "$in":
			for _, candidate := range toSlice(arg) {
				if anyEqual(values, candidate) {
					ok = true
					break
				}
			}
		case "$exists":
			want, _ := arg.(bool)
			ok = (len(values) > 0) == want
		case "$regex":
			ok, err = matchRegex(values, arg, options)
		case "$all":
			ok, err = matchAll(values, toSlice(arg))
		case "$elemMatch":
			ok, err = matchElem(values, arg)
		default:
			return false, fmt.Errorf("unsupported query operator %s", op)
		}
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchRegex(values []interface{}, pattern interface{}, options string) (bool, error) {
	expr, ok := pattern.(string)
	if !ok {
		return false, fmt.Errorf("$regex must be a string, got %T", pattern)
	}
	if strings.Contains(options, "i") {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return false, fmt.Errorf("invalid $regex: %w", err)
	}
	for _, v := range flatten(values) {
		if s, ok := v.(string); ok && re.MatchString(s) {
			return true, nil
		}
	}
	return false, nil
}

// matchAll reports whether one of the candidate arrays satisfies every condition
func matchAll(values []interface{}, conditions []interface{}) (bool, error) {
	for _, v := range values {
		arr, ok := normalize(v).([]interface{})
		if !ok {
			arr = []interface{}{v}
		}
		all := true
		for _, cond := range conditions {
			var ok bool
			var err error
			if ops, isOps := operatorDoc(cond); isOps && ops["$elemMatch"] != nil {
				ok, err = matchElem([]interface{}{arr}, ops["$elemMatch"])
			} else {
				ok = anyEqual(arr, cond)
			}
			if err != nil {
				return false, err
			}
			if !ok {
				all = false
				break
			}
		}
		if all {
			return true, nil
		}
	}
	return false, nil
}

func matchElem(values []interface{}, sub interface{}) (bool, error) {
	subFilter, ok := normalize(sub).(map[string]interface{})
	if !ok {
		return false, fmt.Errorf("$elemMatch must be a document, got %T", sub)
	}
	for _, v := range values {
		arr, ok := normalize(v).([]interface{})
		if !ok {
			continue
		}
		for _, elem := range arr {
			matched, err := matches(elem, bson.M(subFilter))
			if err != nil {
				return false, err
			}
			if matched {
				return true, nil
			}
		}
	}
	return false, nil
}

// lookup resolves a dotted path, fanning out over arrays along the way
func lookup(v interface{}, parts []string) []interface{} {
	if len(parts) == 0 {
		return []interface{}{v}
	}
	switch t := normalize(v).(type) {
	case map[string]interface{}:
		child, ok := t[parts[0]]
		if !ok {
			return nil
		}
		return lookup(child, parts[1:])
	case []interface{}:
		var out []interface{}
		for _, elem := range t {
			out = append(out, lookup(elem, parts)...)
		}
		return out
	}
	return nil
}

// setPath sets a dotted path on doc, creating intermediate documents
func setPath(doc bson.M, path string, value interface{}) {
	parts := strings.Split(path, ".")
	current := map[string]interface{}(doc)
	for _, part := range parts[:len(parts)-1] {
		next, ok := normalize(current[part]).(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
		}
		current[part] = next
		current = next
	}
	current[parts[len(parts)-1]] = value
}

func anyEqual(values []interface{}, want interface{}) bool {
	for _, v := range values {
		if valuesEqual(v, want) {
			return true
		}
		if arr, ok := normalize(v).([]interface{}); ok {
			for _, elem := range arr {
				if valuesEqual(elem, want) {
					return true
				}
			}
		}
	}
	return false
}

func valuesEqual(a, b interface{}) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	if oa, ok := a.(primitive.ObjectID); ok {
		ob, ok := b.(primitive.ObjectID)
		return ok && oa == ob
	}
	return reflect.DeepEqual(normalize(a), normalize(b))
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// operatorDoc reports whether v is a document made only of $-operators
func operatorDoc(v interface{}) (map[string]interface{}, bool) {
	m, ok := normalize(v).(map[string]interface{})
	if !ok || len(m) == 0 {
		return nil, false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return m, true
}

func flatten(values []interface{}) []interface{} {
	var out []interface{}
	for _, v := range values {
		if arr, ok := normalize(v).([]interface{}); ok {
			out = append(out, arr...)
			continue
		}
		out = append(out, v)
	}
	return out
}

func toSlice(v interface{}) []interface{} {
	if arr, ok := normalize(v).([]interface{}); ok {
		return arr
	}
	return []interface{}{v}
}

// normalize maps the driver's document and array types onto plain Go maps and slices
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.M:
		return map[string]interface{}(t)
	case bson.D:
		m := make(map[string]interface{}, len(t))
		for _, e := range t {
			m[e.Key] = e.Value
		}
		return m
	case bson.A:
		return []interface{}(t)
	case []bson.M:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	}
	return v
}
