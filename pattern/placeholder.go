package pattern

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

const (
	kindAny       = "ANY"
	kindNumber    = "NUMBER"
	kindString    = "STRING"
	kindBoolean   = "BOOLEAN"
	kindJSON      = "JSON"
	kindTimestamp = "TIMESTAMP"
	kindISO8601   = "ISO8601"
	kindUUID      = "UUID"
	kindRegex     = "REGEX"
)

var (
	placeholderRegex = regexp.MustCompile(`^\{\{\s*([A-Z][A-Z0-9_]*)(?::(?s:(.*)))?\s*\}\}$`)
	timestampRegex   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})?$`)
	uuidRegex        = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
)

type placeholder struct {
	text string
	kind string
	arg  string
}

// IsPlaceholder returns true if the value is a string of the form {{KIND}} or {{KIND:arg}}.
func IsPlaceholder(v ldvalue.Value) bool {
	_, ok := parsePlaceholder(v)
	return ok
}

func parsePlaceholder(v ldvalue.Value) (placeholder, bool) {
	if !v.IsString() {
		return placeholder{}, false
	}
	groups := placeholderRegex.FindStringSubmatch(v.StringValue())
	if groups == nil {
		return placeholder{}, false
	}
	return placeholder{text: v.StringValue(), kind: groups[1], arg: strings.TrimSpace(groups[2])}, true
}

// check returns an empty string if the value satisfies the placeholder, or a description of
// the problem otherwise.
func (p placeholder) check(actual ldvalue.Value) string {
	ok := false
	switch p.kind {
	case kindAny:
		ok = true
	case kindNumber:
		ok = actual.IsNumber()
	case kindString:
		ok = actual.IsString()
	case kindBoolean:
		ok = actual.IsBool()
	case kindJSON:
		ok = actual.IsString() && json.Valid([]byte(actual.StringValue()))
	case kindTimestamp, kindISO8601:
		ok = actual.IsString() && timestampRegex.MatchString(actual.StringValue())
	case kindUUID:
		ok = actual.IsString() && uuidRegex.MatchString(actual.StringValue())
	case kindRegex:
		re, err := regexp.Compile(p.arg)
		if err != nil {
			return fmt.Sprintf("invalid regex in %s: %s", p.text, err)
		}
		ok = actual.IsString() && re.MatchString(actual.StringValue())
	default:
		// An unknown kind is most likely a template token that was not resolved; it can still
		// be expected literally.
		if actual.IsString() && actual.StringValue() == p.text {
			return ""
		}
		return fmt.Sprintf("unknown placeholder %s, got %s", p.text, actual.JSONString())
	}
	if ok {
		return ""
	}
	return fmt.Sprintf("expected %s, got %s", p.text, actual.JSONString())
}
