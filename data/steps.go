package data

import (
	"fmt"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/grauwen/utlx-conformance-harness/framework/opt"
)

// Step types as written in test files.
const (
	StepTypeRequest            = "request"
	StepTypeNotification       = "notification"
	StepTypeExpectNotification = "expect_notification"
	StepTypeExchange           = "exchange"
)

// Step is one entry in a test file's sequence. The set of implementations is closed; use
// Accept with a StepVisitor to handle each kind.
type Step interface {
	// Label is a short name for the step in failure reports, such as the method name.
	Label() string
	// Describe returns the step's description, or a generated one.
	Describe() string
	Accept(v StepVisitor) error
	isStep()
}

// StepVisitor has one method per kind of Step.
type StepVisitor interface {
	VisitSendRequest(SendRequest) error
	VisitSendNotification(SendNotification) error
	VisitExpectNotification(ExpectNotification) error
	VisitRawExchange(RawExchange) error
	VisitHTTPExchange(HTTPExchange) error
}

// SendRequest sends a request and checks its response. If ExpectError is defined, the peer
// must answer with an error; otherwise an error response fails the step.
type SendRequest struct {
	Description  string
	Method       string
	Params       ldvalue.Value
	ExpectResult opt.Maybe[ldvalue.Value]
	ExpectError  opt.Maybe[ldvalue.Value]
	Timeout      opt.Maybe[time.Duration]
}

// SendNotification sends a notification; nothing comes back.
type SendNotification struct {
	Description string
	Method      string
	Params      ldvalue.Value
}

// ExpectNotification waits for a message from the peer with the given method.
type ExpectNotification struct {
	Description string
	Method      string
	Params      opt.Maybe[ldvalue.Value]
	Timeout     opt.Maybe[time.Duration]
}

// RawExchange sends a complete JSON-RPC message as written, and matches the whole response
// message (including "jsonrpc" and "id") against Expect.
type RawExchange struct {
	Description string
	Request     ldvalue.Value
	Expect      opt.Maybe[ldvalue.Value]
	Timeout     opt.Maybe[time.Duration]
}

// HTTPExchange is one call to a REST daemon.
type HTTPExchange struct {
	Description   string
	Method        string
	Endpoint      string
	Headers       map[string]string
	Body          ldvalue.Value
	Timeout       opt.Maybe[time.Duration]
	ExpectStatus  opt.Maybe[ldvalue.Value]
	ExpectHeaders map[string]ldvalue.Value
	ExpectBody    opt.Maybe[ldvalue.Value]
}

func (s SendRequest) Label() string        { return s.Method }
func (s SendNotification) Label() string   { return s.Method }
func (s ExpectNotification) Label() string { return s.Method }
func (s RawExchange) Label() string        { return s.Request.GetByKey("method").StringValue() }
func (s HTTPExchange) Label() string       { return s.Method + " " + s.Endpoint }

func (s SendRequest) Describe() string {
	return describe(s.Description, "request %s", s.Method)
}

func (s SendNotification) Describe() string {
	return describe(s.Description, "notification %s", s.Method)
}

func (s ExpectNotification) Describe() string {
	return describe(s.Description, "expect notification %s", s.Method)
}

func (s RawExchange) Describe() string {
	return describe(s.Description, "exchange %s", s.Label())
}

func (s HTTPExchange) Describe() string {
	return describe(s.Description, "%s", s.Label())
}

func (s SendRequest) Accept(v StepVisitor) error        { return v.VisitSendRequest(s) }
func (s SendNotification) Accept(v StepVisitor) error   { return v.VisitSendNotification(s) }
func (s ExpectNotification) Accept(v StepVisitor) error { return v.VisitExpectNotification(s) }
func (s RawExchange) Accept(v StepVisitor) error        { return v.VisitRawExchange(s) }
func (s HTTPExchange) Accept(v StepVisitor) error       { return v.VisitHTTPExchange(s) }

func (SendRequest) isStep()        {}
func (SendNotification) isStep()   {}
func (ExpectNotification) isStep() {}
func (RawExchange) isStep()        {}
func (HTTPExchange) isStep()       {}

func describe(description, format string, args ...interface{}) string {
	if description != "" {
		return description
	}
	return fmt.Sprintf(format, args...)
}
