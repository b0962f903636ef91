package jsonrpc

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeCodec(t *testing.T, framing Framing, input string) (Codec, *bytes.Buffer) {
	var out bytes.Buffer
	c, err := NewCodec(framing, strings.NewReader(input), &out)
	require.NoError(t, err)
	return c, &out
}

func TestHeaderCodecWrite(t *testing.T) {
	c, out := makeCodec(t, FramingHeader, "")
	params := ldvalue.ObjectBuild().Set("processId", ldvalue.Null()).Build()
	require.NoError(t, c.Write(NewRequest(NumberID(7), "initialize", params)))
	body := `{"jsonrpc":"2.0","id":7,"method":"initialize","params":{"processId":null}}`
	assert.Equal(t, "Content-Length: 74\r\n\r\n"+body, out.String())
	assert.Len(t, body, 74)
}

func TestHeaderCodecContentLengthCountsBytes(t *testing.T) {
	c, out := makeCodec(t, FramingHeader, "")
	require.NoError(t, c.Write(NewNotification("note", ldvalue.String("héllo wörld"))))
	header, body, ok := strings.Cut(out.String(), "\r\n\r\n")
	require.True(t, ok)
	assert.Equal(t, fmt.Sprintf("Content-Length: %d", len(body)), header)
}

func TestHeaderCodecReadsConsecutiveFrames(t *testing.T) {
	b1 := `{"jsonrpc":"2.0","id":1,"result":null}`
	b2 := `{"jsonrpc":"2.0","method":"window/logMessage","params":{"message":"hi"}}`
	input := "Content-Length: 38\r\nContent-Type: application/vscode-jsonrpc; charset=utf-8\r\n\r\n" + b1 +
		"content-length:72\r\n\r\n" + b2
	c, _ := makeCodec(t, FramingHeader, input)

	m1, err := c.Read()
	require.NoError(t, err)
	assert.Equal(t, NumberID(1), m1.ID)
	m2, err := c.Read()
	require.NoError(t, err)
	assert.Equal(t, "window/logMessage", m2.Method)
	_, err = c.Read()
	assert.Equal(t, io.EOF, err)
}

func TestHeaderCodecRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	writer, err := NewCodec(FramingHeader, strings.NewReader(""), &buf)
	require.NoError(t, err)
	sent := NewRequest(StringID("x-1"), "textDocument/hover", ldvalue.Parse([]byte(`{"position":{"line":0,"character":3}}`)))
	require.NoError(t, writer.Write(sent))

	reader, err := NewCodec(FramingHeader, &buf, io.Discard)
	require.NoError(t, err)
	got, err := reader.Read()
	require.NoError(t, err)
	assert.Equal(t, sent.ID, got.ID)
	assert.Equal(t, sent.Method, got.Method)
	assert.Equal(t, sent.Params, got.Params)
}

func TestHeaderCodecProtocolErrors(t *testing.T) {
	for name, input := range map[string]string{
		"missing length":   "Content-Type: x\r\n\r\n{}",
		"zero length":      "Content-Length: 0\r\n\r\n",
		"bad length":       "Content-Length: abc\r\n\r\n{}",
		"malformed header": "Content-Length 10\r\n\r\n{}",
		"truncated body":   "Content-Length: 100\r\n\r\n{\"jsonrpc\":\"2.0\"}",
		"unterminated":     "Content-Length: 10\r\n",
		"bad json":         "Content-Length: 5\r\n\r\nhello",
	} {
		t.Run(name, func(t *testing.T) {
			c, _ := makeCodec(t, FramingHeader, input)
			_, err := c.Read()
			var pe *ProtocolError
			assert.ErrorAs(t, err, &pe)
		})
	}
}

func TestLineCodecWriteAndRead(t *testing.T) {
	c, out := makeCodec(t, FramingLine,
		"\n"+`{"jsonrpc":"2.0","id":1,"result":{"tools":[]}}`+"\r\n\n"+`{"jsonrpc":"2.0","method":"notifications/progress"}`)
	require.NoError(t, c.Write(NewRequest(NumberID(1), "tools/list", ldvalue.Null())))
	assert.Equal(t, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`+"\n", out.String())

	m1, err := c.Read()
	require.NoError(t, err)
	assert.Equal(t, `{"tools":[]}`, m1.Result.JSONString())
	m2, err := c.Read()
	require.NoError(t, err)
	assert.Equal(t, "notifications/progress", m2.Method)
	_, err = c.Read()
	assert.Equal(t, io.EOF, err)
}

func TestLineCodecInvalidLine(t *testing.T) {
	c, _ := makeCodec(t, FramingLine, "not json\n")
	_, err := c.Read()
	var pe *ProtocolError
	assert.ErrorAs(t, err, &pe)
}

func TestWriteAfterClose(t *testing.T) {
	r, w := io.Pipe()
	c, err := NewCodec(FramingLine, r, w)
	require.NoError(t, err)
	require.NoError(t, c.Close())
	err = c.Write(NewNotification("exit", ldvalue.Null()))
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = c.Read()
	assert.Equal(t, io.EOF, err)
}

func TestUnknownFraming(t *testing.T) {
	_, err := NewCodec("carrier-pigeon", strings.NewReader(""), io.Discard)
	assert.Error(t, err)
}
