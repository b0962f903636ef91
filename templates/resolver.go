// Package templates substitutes {{documents.*}} and {{variables.*}} tokens in request
// parameters and expectations.
package templates

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

const (
	rootDocuments = "documents"
	rootVariables = "variables"
)

var tokenRegex = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Context is the data that tokens can refer to. It does not change during a test file's run.
type Context struct {
	Documents ldvalue.Value
	Variables ldvalue.Value
}

// Resolve returns a copy of the value with every resolvable token substituted. Objects and
// arrays are walked recursively; object keys are left alone.
func (c Context) Resolve(value ldvalue.Value) ldvalue.Value {
	switch value.Type() {
	case ldvalue.StringType:
		return c.ResolveString(value.StringValue())
	case ldvalue.ArrayType:
		items := value.AsValueArray().AsSlice()
		b := ldvalue.ArrayBuildWithCapacity(len(items))
		for _, item := range items {
			b.Add(c.Resolve(item))
		}
		return b.Build()
	case ldvalue.ObjectType:
		props := value.AsValueMap().AsMap()
		b := ldvalue.ObjectBuildWithCapacity(len(props))
		for k, v := range props {
			b.Set(k, c.Resolve(v))
		}
		return b.Build()
	default:
		return value
	}
}

// ResolveString substitutes the tokens in one string. If the whole string is a single token,
// the result has the type of the referenced value; otherwise the result is a string, with
// non-string values written as JSON.
func (c Context) ResolveString(s string) ldvalue.Value {
	if groups := tokenRegex.FindStringSubmatchIndex(s); groups != nil && groups[0] == 0 && groups[1] == len(s) {
		if v, ok := c.Lookup(s[groups[2]:groups[3]]); ok {
			return v
		}
		return ldvalue.String(s)
	}
	return ldvalue.String(tokenRegex.ReplaceAllStringFunc(s, func(token string) string {
		v, ok := c.Lookup(token[2 : len(token)-2])
		if !ok {
			return token
		}
		if v.IsString() {
			return v.StringValue()
		}
		return v.JSONString()
	}))
}

// Lookup resolves a dotted path such as "documents.main.uri" or "variables.items.0". It returns
// false if the root is unknown or any part of the path does not exist.
func (c Context) Lookup(path string) (ldvalue.Value, bool) {
	parts := strings.Split(strings.TrimSpace(path), ".")
	var current ldvalue.Value
	switch parts[0] {
	case rootDocuments:
		if len(parts) < 2 {
			return ldvalue.Null(), false
		}
		current = c.Documents
	case rootVariables:
		current = c.Variables
	default:
		return ldvalue.Null(), false
	}
	for _, part := range parts[1:] {
		next, ok := step(current, part)
		if !ok {
			return ldvalue.Null(), false
		}
		current = next
	}
	return current, true
}

func step(v ldvalue.Value, part string) (ldvalue.Value, bool) {
	switch v.Type() {
	case ldvalue.ObjectType:
		next, found := v.AsValueMap().AsMap()[part]
		return next, found
	case ldvalue.ArrayType:
		i, err := strconv.Atoi(part)
		if err != nil || i < 0 || i >= v.Count() {
			return ldvalue.Null(), false
		}
		return v.GetByIndex(i), true
	default:
		return ldvalue.Null(), false
	}
}
