package templates

import (
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/stretchr/testify/assert"
)

func parse(s string) ldvalue.Value { return ldvalue.Parse([]byte(s)) }

func makeContext() Context {
	return Context{
		Documents: parse(`{"main":{"uri":"file:///test.utlx","languageId":"utlx","version":1,
			"text":"%utlx 1.0\ninput json\n---\n$input"}}`),
		Variables: parse(`{"name":"world","count":3,"nested":{"list":["a","b"]},"options":{"strict":true}}`),
	}
}

func TestResolveWholeTokenKeepsType(t *testing.T) {
	c := makeContext()
	assert.Equal(t, ldvalue.String("file:///test.utlx"), c.Resolve(ldvalue.String("{{documents.main.uri}}")))
	assert.Equal(t, ldvalue.Int(1), c.Resolve(ldvalue.String("{{documents.main.version}}")))
	assert.Equal(t, parse(`{"strict":true}`), c.Resolve(ldvalue.String("{{variables.options}}")))
	assert.Equal(t, ldvalue.String("b"), c.Resolve(ldvalue.String("{{variables.nested.list.1}}")))
	assert.Equal(t, ldvalue.Int(3), c.Resolve(ldvalue.String("{{ variables.count }}")))
}

func TestResolveEmbeddedTokens(t *testing.T) {
	c := makeContext()
	assert.Equal(t, ldvalue.String("hello world x3"), c.Resolve(ldvalue.String("hello {{variables.name}} x{{variables.count}}")))
	assert.Equal(t, ldvalue.String(`opts={"strict":true}`), c.Resolve(ldvalue.String("opts={{variables.options}}")))
}

func TestResolveLeavesUnresolvableTokens(t *testing.T) {
	c := makeContext()
	for _, s := range []string{
		"{{ANY}}",
		"{{UUID}}",
		"{{documents.missing.uri}}",
		"{{documents.main.missing}}",
		"{{documents.main.uri.deeper}}",
		"{{documents}}",
		"{{variables.nested.list.5}}",
		"{{variables.nested.list.x}}",
		"{{other.thing}}",
		"prefix {{variables.nope}} suffix",
	} {
		t.Run(s, func(t *testing.T) {
			assert.Equal(t, ldvalue.String(s), c.Resolve(ldvalue.String(s)))
		})
	}
}

func TestResolveWalksStructures(t *testing.T) {
	c := makeContext()
	params := parse(`{"textDocument":{"uri":"{{documents.main.uri}}","version":"{{documents.main.version}}"},
		"items":["{{variables.name}}",2,null,true],"{{variables.name}}":"key not resolved"}`)
	expected := parse(`{"textDocument":{"uri":"file:///test.utlx","version":1},
		"items":["world",2,null,true],"{{variables.name}}":"key not resolved"}`)
	assert.Equal(t, expected, c.Resolve(params))
}

func TestResolveWithEmptyContext(t *testing.T) {
	var c Context
	assert.Equal(t, ldvalue.String("{{documents.main.uri}}"), c.Resolve(ldvalue.String("{{documents.main.uri}}")))
	assert.Equal(t, ldvalue.Int(5), c.Resolve(ldvalue.Int(5)))
	assert.Equal(t, ldvalue.Null(), c.Resolve(ldvalue.Null()))
}

func TestResolveVariablesRoot(t *testing.T) {
	c := makeContext()
	v, ok := c.Lookup("variables")
	assert.True(t, ok)
	assert.Equal(t, c.Variables, v)
}
