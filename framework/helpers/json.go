package helpers

import (
	"strings"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// CanonicalizedJSONString reformats a JSON value so that object properties are alphabetized.
// Two values that are equal always produce the same string, so it is safe for substring checks.
func CanonicalizedJSONString(value ldvalue.Value) string {
	switch value.Type() {
	case ldvalue.ArrayType:
		items := make([]string, 0, value.Count())
		for _, item := range value.AsValueArray().AsSlice() {
			items = append(items, CanonicalizedJSONString(item))
		}
		return "[" + strings.Join(items, ",") + "]"
	case ldvalue.ObjectType:
		props := value.AsValueMap().AsMap()
		items := make([]string, 0, len(props))
		for _, k := range SortedKeys(props) {
			items = append(items, ldvalue.String(k).JSONString()+":"+CanonicalizedJSONString(props[k]))
		}
		return "{" + strings.Join(items, ",") + "}"
	default:
		return value.JSONString()
	}
}
