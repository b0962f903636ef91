package helpers

import (
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/stretchr/testify/assert"
)

func TestCanonicalizedJSONString(t *testing.T) {
	for _, p := range []struct {
		input    string
		expected string
	}{
		{`null`, `null`},
		{`"a\"b"`, `"a\"b"`},
		{`[3, 1, 2]`, `[3,1,2]`},
		{`{"b": 1, "a": {"d": true, "c": [null]}}`, `{"a":{"c":[null],"d":true},"b":1}`},
	} {
		t.Run(p.input, func(t *testing.T) {
			assert.Equal(t, p.expected, CanonicalizedJSONString(ldvalue.Parse([]byte(p.input))))
		})
	}
}
