package pattern

import (
	"strings"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/launchdarkly/go-test-helpers/v2/jsonhelpers"
	m "github.com/launchdarkly/go-test-helpers/v2/matchers"
)

// Matches returns a Matcher that applies a pattern to any JSON-serializable value.
func Matches(p ldvalue.Value) m.Matcher {
	toValue := func(value interface{}) ldvalue.Value {
		if v, ok := value.(ldvalue.Value); ok {
			return v
		}
		return ldvalue.Parse(jsonhelpers.ToJSON(value))
	}
	return m.New(
		func(value interface{}) bool {
			return len(Match(toValue(value), p, "")) == 0
		},
		func() string {
			return "matches pattern " + p.JSONString()
		},
		func(value interface{}) string {
			var lines []string
			for _, mm := range Match(toValue(value), p, "") {
				lines = append(lines, mm.String())
			}
			return strings.Join(lines, "; ")
		},
	)
}
