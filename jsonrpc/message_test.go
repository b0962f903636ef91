package jsonrpc

import (
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeRequest(t *testing.T) {
	params := ldvalue.ObjectBuild().Set("processId", ldvalue.Null()).Build()
	m := NewRequest(NumberID(7), "initialize", params)
	assert.Equal(t, KindRequest, m.Kind())
	assert.Equal(t, `{"jsonrpc":"2.0","id":7,"method":"initialize","params":{"processId":null}}`, string(m.Encode()))
}

func TestEncodeNotificationWithoutParams(t *testing.T) {
	m := NewNotification("exit", ldvalue.Null())
	assert.Equal(t, KindNotification, m.Kind())
	assert.Equal(t, `{"jsonrpc":"2.0","method":"exit"}`, string(m.Encode()))
}

func TestEncodeResponses(t *testing.T) {
	assert.Equal(t, `{"jsonrpc":"2.0","id":3,"result":null}`, string(NewResponse(NumberID(3), ldvalue.Null()).Encode()))
	assert.Equal(t, `{"jsonrpc":"2.0","id":"abc","error":{"code":-32601,"message":"Method not found"}}`,
		string(NewErrorResponse(StringID("abc"), CodeMethodNotFound, "Method not found").Encode()))
}

func TestDecodeResponse(t *testing.T) {
	m, err := DecodeMessage([]byte(`{"jsonrpc":"2.0","id":7,"result":{"capabilities":{}}}`))
	require.NoError(t, err)
	assert.Equal(t, KindResponse, m.Kind())
	assert.Equal(t, NumberID(7), m.ID)
	assert.Equal(t, `{"capabilities":{}}`, m.Result.JSONString())
	assert.Nil(t, m.Error)
}

func TestDecodeErrorResponse(t *testing.T) {
	m, err := DecodeMessage([]byte(`{"jsonrpc":"2.0","id":2,"error":{"code":-32601,"message":"Method not found","data":"x"}}`))
	require.NoError(t, err)
	require.NotNil(t, m.Error)
	assert.Equal(t, CodeMethodNotFound, m.Error.Code)
	assert.Equal(t, "Method not found", m.Error.Message)
	assert.Equal(t, ldvalue.String("x"), m.Error.Data)
	assert.Equal(t, ldvalue.Parse([]byte(`{"code":-32601,"data":"x","message":"Method not found"}`)), m.Error.Value())
}

func TestDecodeNotificationKeepsRawBytes(t *testing.T) {
	raw := `{"method":"textDocument/publishDiagnostics","jsonrpc":"2.0","params":{"diagnostics":[]}}`
	m, err := DecodeMessage([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, KindNotification, m.Kind())
	assert.Equal(t, raw, string(m.Raw()))
	assert.Equal(t, "textDocument/publishDiagnostics", m.Value().GetByKey("method").StringValue())
}

func TestDecodeStringAndNumberIDsAreDistinct(t *testing.T) {
	m1, err := DecodeMessage([]byte(`{"jsonrpc":"2.0","id":"1","result":1}`))
	require.NoError(t, err)
	m2, err := DecodeMessage([]byte(`{"jsonrpc":"2.0","id":1,"result":1}`))
	require.NoError(t, err)
	assert.NotEqual(t, m1.ID, m2.ID)
	n, ok := m2.ID.Number()
	assert.True(t, ok)
	assert.Equal(t, int64(1), n)
	_, ok = m1.ID.Number()
	assert.False(t, ok)
}

func TestDecodeErrors(t *testing.T) {
	for name, raw := range map[string]string{
		"not JSON":        `{"jsonrpc":`,
		"not an object":   `[1,2]`,
		"wrong version":   `{"jsonrpc":"1.0","id":1,"result":1}`,
		"missing version": `{"id":1,"result":1}`,
		"bad id":          `{"jsonrpc":"2.0","id":true,"result":1}`,
		"no method or id": `{"jsonrpc":"2.0","result":1}`,
		"bad error":       `{"jsonrpc":"2.0","id":1,"error":"oops"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeMessage([]byte(raw))
			require.Error(t, err)
			var pe *ProtocolError
			assert.ErrorAs(t, err, &pe)
		})
	}
}

func TestIDValue(t *testing.T) {
	assert.Equal(t, ldvalue.Int(4), NumberID(4).Value())
	assert.Equal(t, ldvalue.String("a"), StringID("a").Value())
	assert.Equal(t, ldvalue.Null(), ID{}.Value())
	assert.Equal(t, "<none>", ID{}.String())
}
