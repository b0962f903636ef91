package pattern

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/grauwen/utlx-conformance-harness/framework/helpers"
)

// ContainsKey is the object key that turns an object pattern into a containment check.
const ContainsKey = "contains"

// Mismatch is one difference between an actual value and a pattern.
type Mismatch struct {
	Path    string
	Message string
}

func (m Mismatch) String() string {
	if m.Path == "" {
		return m.Message
	}
	return m.Path + ": " + m.Message
}

// Match compares actual against pattern and returns every mismatch found, or nil if the value
// matches. The path is the label for the root value, such as "result" or "params", and is used
// as the prefix for nested paths. Object keys are visited in sorted order, so the result is
// deterministic.
func Match(actual, pattern ldvalue.Value, path string) []Mismatch {
	var out []Mismatch
	match(actual, true, pattern, path, &out)
	return out
}

// MatchMissing is like Match, but for a value that is absent rather than null.
func MatchMissing(pattern ldvalue.Value, path string) []Mismatch {
	var out []Mismatch
	match(ldvalue.Null(), false, pattern, path, &out)
	return out
}

func match(actual ldvalue.Value, present bool, pattern ldvalue.Value, path string, out *[]Mismatch) {
	fail := func(format string, args ...interface{}) {
		*out = append(*out, Mismatch{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if pattern.IsNull() {
		if !actual.IsNull() {
			fail("expected null, got %s", actual.JSONString())
		}
		return
	}
	if p, ok := parsePlaceholder(pattern); ok && p.kind == kindAny {
		return
	}
	if !present {
		fail("missing")
		return
	}

	switch pattern.Type() {
	case ldvalue.ObjectType:
		patternMap := pattern.AsValueMap().AsMap()
		if items, ok := patternMap[ContainsKey]; ok {
			matchContains(actual, items, fail)
			return
		}
		if actual.Type() != ldvalue.ObjectType {
			fail("expected object, got %s", describeType(actual))
			return
		}
		actualMap := actual.AsValueMap().AsMap()
		for _, key := range helpers.SortedKeys(patternMap) {
			sub, found := actualMap[key]
			match(sub, found, patternMap[key], childPath(path, key), out)
		}

	case ldvalue.ArrayType:
		if actual.Type() != ldvalue.ArrayType {
			fail("expected array, got %s", describeType(actual))
			return
		}
		if actual.Count() != pattern.Count() {
			fail("expected array of length %d, got length %d", pattern.Count(), actual.Count())
			return
		}
		actualItems := actual.AsValueArray().AsSlice()
		for i, item := range pattern.AsValueArray().AsSlice() {
			match(actualItems[i], true, item, indexPath(path, i), out)
		}

	case ldvalue.StringType:
		if p, ok := parsePlaceholder(pattern); ok {
			if problem := p.check(actual); problem != "" {
				fail("%s", problem)
			}
			return
		}
		if !actual.Equal(pattern) {
			fail("expected %s, got %s", pattern.JSONString(), actual.JSONString())
		}

	default:
		if !actual.Equal(pattern) {
			fail("expected %s, got %s", pattern.JSONString(), actual.JSONString())
		}
	}
}

func matchContains(actual, items ldvalue.Value, fail func(string, ...interface{})) {
	if items.Type() != ldvalue.ArrayType {
		fail("%q pattern must be an array, got %s", ContainsKey, describeType(items))
		return
	}
	switch actual.Type() {
	case ldvalue.StringType:
		s := actual.StringValue()
		for _, item := range items.AsValueArray().AsSlice() {
			needle := item.StringValue()
			if !item.IsString() {
				needle = item.JSONString()
			}
			if !strings.Contains(s, needle) {
				fail("string does not contain %q", needle)
			}
		}
	case ldvalue.ArrayType:
		elements := actual.AsValueArray().AsSlice()
		for _, item := range items.AsValueArray().AsSlice() {
			found := false
			for _, e := range elements {
				if e.Equal(item) {
					found = true
					break
				}
			}
			if !found {
				fail("array does not contain %s", item.JSONString())
			}
		}
	case ldvalue.ObjectType:
		// Needles are searched in both the compact form and the form with a space after
		// each ',' and ':', so `"hoverProvider": true` and `"hoverProvider":true` both work.
		compact, spaced := helpers.CanonicalizedJSONString(actual), spacedJSONString(actual)
		for _, item := range items.AsValueArray().AsSlice() {
			if item.IsString() {
				needle := item.StringValue()
				if !strings.Contains(compact, needle) && !strings.Contains(spaced, needle) {
					fail("object does not contain %q", needle)
				}
				continue
			}
			needle := helpers.CanonicalizedJSONString(item)
			if !strings.Contains(compact, needle) && !strings.Contains(spaced, spacedJSONString(item)) {
				fail("object does not contain %q", needle)
			}
		}
	default:
		fail("cannot check containment in %s", describeType(actual))
	}
}

// spacedJSONString is CanonicalizedJSONString with ", " and ": " as separators.
func spacedJSONString(value ldvalue.Value) string {
	switch value.Type() {
	case ldvalue.ArrayType:
		items := make([]string, 0, value.Count())
		for _, item := range value.AsValueArray().AsSlice() {
			items = append(items, spacedJSONString(item))
		}
		return "[" + strings.Join(items, ", ") + "]"
	case ldvalue.ObjectType:
		props := value.AsValueMap().AsMap()
		items := make([]string, 0, len(props))
		for _, k := range helpers.SortedKeys(props) {
			items = append(items, ldvalue.String(k).JSONString()+": "+spacedJSONString(props[k]))
		}
		return "{" + strings.Join(items, ", ") + "}"
	default:
		return value.JSONString()
	}
}

func childPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func indexPath(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}

func describeType(v ldvalue.Value) string {
	return v.Type().String()
}
