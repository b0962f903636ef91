package jsonrpc

import (
	"fmt"
	"strconv"

	"github.com/launchdarkly/go-jsonstream/v3/jreader"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// Version is the only protocol version that is accepted or produced.
const Version = "2.0"

// Standard error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Kind says which of the three JSON-RPC message shapes a Message has.
type Kind int

const (
	KindRequest Kind = iota
	KindNotification
	KindResponse
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindNotification:
		return "notification"
	default:
		return "response"
	}
}

// ID is a request identifier. It holds the JSON text of the id, so that numeric and string
// ids can both be used as map keys. The zero value means "no id".
type ID struct {
	raw string
}

// NumberID returns a numeric ID.
func NumberID(n int64) ID { return ID{raw: strconv.FormatInt(n, 10)} }

// StringID returns a string ID.
func StringID(s string) ID { return ID{raw: ldvalue.String(s).JSONString()} }

// IDFromValue converts a JSON value to an ID. Only strings and integers are valid ids; null
// gives an undefined ID.
func IDFromValue(v ldvalue.Value) (ID, error) {
	switch {
	case v.IsNull():
		return ID{}, nil
	case v.IsString():
		return StringID(v.StringValue()), nil
	case v.IsInt():
		return NumberID(int64(v.IntValue())), nil
	default:
		return ID{}, fmt.Errorf("invalid id %s", v.JSONString())
	}
}

func (id ID) IsDefined() bool { return id.raw != "" }

// Number returns the numeric value of the ID, if it is numeric.
func (id ID) Number() (int64, bool) {
	n, err := strconv.ParseInt(id.raw, 10, 64)
	return n, err == nil
}

// Value returns the ID as a JSON value, or null if undefined.
func (id ID) Value() ldvalue.Value {
	if !id.IsDefined() {
		return ldvalue.Null()
	}
	return ldvalue.Parse([]byte(id.raw))
}

func (id ID) String() string {
	if !id.IsDefined() {
		return "<none>"
	}
	return id.raw
}

// ResponseError is the error member of a response.
type ResponseError struct {
	Code    int
	Message string
	Data    ldvalue.Value
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("code %d: %s", e.Code, e.Message)
}

// Value returns the error object as a JSON value, for matching against an expected error pattern.
func (e *ResponseError) Value() ldvalue.Value {
	b := ldvalue.ObjectBuild().Set("code", ldvalue.Int(e.Code)).Set("message", ldvalue.String(e.Message))
	if !e.Data.IsNull() {
		b.Set("data", e.Data)
	}
	return b.Build()
}

// Message is a single JSON-RPC 2.0 message of any kind; see Kind. Params and Result are
// null when absent.
type Message struct {
	ID     ID
	Method string
	Params ldvalue.Value
	Result ldvalue.Value
	Error  *ResponseError

	raw []byte
}

// NewRequest creates a request message.
func NewRequest(id ID, method string, params ldvalue.Value) Message {
	return Message{ID: id, Method: method, Params: params}
}

// NewNotification creates a notification message.
func NewNotification(method string, params ldvalue.Value) Message {
	return Message{Method: method, Params: params}
}

// NewResponse creates a successful response message.
func NewResponse(id ID, result ldvalue.Value) Message {
	return Message{ID: id, Result: result}
}

// NewErrorResponse creates an error response message.
func NewErrorResponse(id ID, code int, message string) Message {
	return Message{ID: id, Error: &ResponseError{Code: code, Message: message}}
}

// Kind classifies the message. Anything with a method is a request or notification depending
// on whether it has an id; anything else is a response.
func (m Message) Kind() Kind {
	switch {
	case m.Method != "" && m.ID.IsDefined():
		return KindRequest
	case m.Method != "":
		return KindNotification
	default:
		return KindResponse
	}
}

// Raw returns the bytes the message was decoded from, or its encoding if it was not decoded.
func (m Message) Raw() []byte {
	if m.raw != nil {
		return m.raw
	}
	return m.Encode()
}

// Value returns the whole message as a JSON value.
func (m Message) Value() ldvalue.Value {
	return ldvalue.Parse(m.Raw())
}

// Encode serializes the message. A response always has either "error" or "result", even if
// the result is null.
func (m Message) Encode() []byte {
	w := jwriter.NewWriter()
	obj := w.Object()
	obj.Name("jsonrpc").String(Version)
	if m.ID.IsDefined() {
		obj.Name("id").Raw([]byte(m.ID.raw))
	}
	if m.Method != "" {
		obj.Name("method").String(m.Method)
		if !m.Params.IsNull() {
			m.Params.WriteToJSONWriter(obj.Name("params"))
		}
	} else if m.Error != nil {
		errObj := obj.Name("error").Object()
		errObj.Name("code").Int(m.Error.Code)
		errObj.Name("message").String(m.Error.Message)
		if !m.Error.Data.IsNull() {
			m.Error.Data.WriteToJSONWriter(errObj.Name("data"))
		}
		errObj.End()
	} else {
		m.Result.WriteToJSONWriter(obj.Name("result"))
	}
	obj.End()
	return w.Bytes()
}

// DecodeMessage parses one JSON-RPC message. Any problem with the content is a *ProtocolError.
func DecodeMessage(data []byte) (Message, error) {
	var (
		m       Message
		version string
		idValue ldvalue.Value
		errObj  ldvalue.Value
		hasErr  bool
	)
	r := jreader.NewReader(data)
	for obj := r.Object(); obj.Next(); {
		switch string(obj.Name()) {
		case "jsonrpc":
			version = r.String()
		case "id":
			idValue.ReadFromJSONReader(&r)
		case "method":
			m.Method = r.String()
		case "params":
			m.Params.ReadFromJSONReader(&r)
		case "result":
			m.Result.ReadFromJSONReader(&r)
		case "error":
			hasErr = true
			errObj.ReadFromJSONReader(&r)
		default:
			_ = r.SkipValue()
		}
	}
	if err := r.Error(); err != nil {
		return Message{}, &ProtocolError{Reason: "malformed JSON-RPC message", Err: err}
	}
	if version != Version {
		return Message{}, &ProtocolError{Reason: fmt.Sprintf("unsupported jsonrpc version %q", version)}
	}
	id, err := IDFromValue(idValue)
	if err != nil {
		return Message{}, &ProtocolError{Reason: err.Error()}
	}
	m.ID = id
	if hasErr && m.Method == "" {
		if errObj.Type() != ldvalue.ObjectType {
			return Message{}, &ProtocolError{Reason: "error member is not an object"}
		}
		m.Error = &ResponseError{
			Code:    errObj.GetByKey("code").IntValue(),
			Message: errObj.GetByKey("message").StringValue(),
			Data:    errObj.GetByKey("data"),
		}
	}
	if m.Method == "" && !m.ID.IsDefined() && m.Error == nil {
		return Message{}, &ProtocolError{Reason: "message has neither a method nor an id"}
	}
	m.raw = append([]byte(nil), data...)
	return m, nil
}
