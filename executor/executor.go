// Package executor runs the steps of one test file against a connected peer.
package executor

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/grauwen/utlx-conformance-harness/data"
	"github.com/grauwen/utlx-conformance-harness/framework"
	"github.com/grauwen/utlx-conformance-harness/framework/helpers"
	"github.com/grauwen/utlx-conformance-harness/jsonrpc"
	"github.com/grauwen/utlx-conformance-harness/pattern"
	"github.com/grauwen/utlx-conformance-harness/restclient"
	"github.com/grauwen/utlx-conformance-harness/rpcconn"
	"github.com/grauwen/utlx-conformance-harness/templates"
)

const (
	DefaultResponseTimeout     = 5 * time.Second
	DefaultNotificationTimeout = 5 * time.Second
)

// State is where an Executor is in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateConnected
	StateRunning
	StatePassed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnected:
		return "connected"
	case StateRunning:
		return "running"
	case StatePassed:
		return "passed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config holds the timing settings for a run. Zero values are replaced by defaults.
type Config struct {
	ResponseTimeout     time.Duration
	NotificationTimeout time.Duration
	// HTTPTimeout applies to HTTP steps that do not set their own timeout.
	HTTPTimeout time.Duration
	// SettleDelay is a pause after each notification that is sent.
	SettleDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = DefaultResponseTimeout
	}
	if c.NotificationTimeout <= 0 {
		c.NotificationTimeout = DefaultNotificationTimeout
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = restclient.DefaultTimeout
	}
	return c
}

type executorConfig struct {
	config          Config
	logger          framework.Logger
	templateContext templates.Context
}

// Option is a parameter for New.
type Option = helpers.ConfigOption[executorConfig]

// WithConfig sets the timeouts and delays.
func WithConfig(config Config) Option {
	return helpers.ConfigOptionFunc[executorConfig](func(c *executorConfig) error {
		c.config = config
		return nil
	})
}

// WithLogger sets where step progress is logged.
func WithLogger(logger framework.Logger) Option {
	return helpers.ConfigOptionFunc[executorConfig](func(c *executorConfig) error {
		c.logger = logger
		return nil
	})
}

// WithTemplateContext sets the documents and variables that tokens in steps refer to.
func WithTemplateContext(tc templates.Context) Option {
	return helpers.ConfigOptionFunc[executorConfig](func(c *executorConfig) error {
		c.templateContext = tc
		return nil
	})
}

// Outcome is the result of Run.
type Outcome struct {
	State State
	// StepsRun counts the steps that were started, including a failed one.
	StepsRun int
	Failure  *StepFailure
	Duration time.Duration
}

// Passed returns true if every step succeeded.
func (o Outcome) Passed() bool { return o.State == StatePassed }

// Err returns the failure as an error, or nil.
func (o Outcome) Err() error {
	if o.Failure == nil {
		return nil
	}
	return o.Failure
}

// Executor runs a sequence of steps over one connection. It is not safe for concurrent use.
type Executor struct {
	config    Config
	logger    framework.Logger
	templates templates.Context
	state     State
	rpc       *rpcconn.Conn
	http      *restclient.Client
}

// New creates an Executor in the idle state.
func New(options ...Option) (*Executor, error) {
	var cfg executorConfig
	if err := helpers.ApplyOptions(&cfg, options...); err != nil {
		return nil, err
	}
	if cfg.logger == nil {
		cfg.logger = framework.NullLogger()
	}
	return &Executor{
		config:    cfg.config.withDefaults(),
		logger:    cfg.logger,
		templates: cfg.templateContext,
	}, nil
}

// State returns the current state.
func (e *Executor) State() State { return e.state }

// AttachRPC connects the executor to a stdio peer.
func (e *Executor) AttachRPC(conn *rpcconn.Conn) error {
	if e.state != StateIdle {
		return fmt.Errorf("cannot attach a connection in state %s", e.state)
	}
	e.rpc = conn
	e.state = StateConnected
	return nil
}

// AttachHTTP connects the executor to a REST daemon.
func (e *Executor) AttachHTTP(client *restclient.Client) error {
	if e.state != StateIdle {
		return fmt.Errorf("cannot attach a client in state %s", e.state)
	}
	e.http = client
	e.state = StateConnected
	return nil
}

// Run executes the steps in order and stops at the first failure. It can only be called once,
// after a connection has been attached; otherwise the outcome is a config failure.
func (e *Executor) Run(steps []data.Step) Outcome {
	startTime := time.Now()
	if e.state != StateConnected {
		failure := &StepFailure{
			Kind: FailureConfig,
			Err:  &data.ConfigError{Problems: []string{fmt.Sprintf("cannot run steps in state %s", e.state)}},
		}
		return Outcome{State: e.state, Failure: failure}
	}
	e.state = StateRunning
	r := &stepRunner{e: e}
	for i, step := range steps {
		r.mismatches = nil
		e.logger.Printf("step %d: %s", i+1, step.Describe())
		if err := step.Accept(r); err != nil {
			e.state = StateFailed
			failure := &StepFailure{
				Index:       i + 1,
				Method:      step.Label(),
				Description: step.Describe(),
				Kind:        classify(err),
				Err:         err,
				Mismatches:  r.mismatches,
			}
			e.logger.Printf("%s", failure)
			return Outcome{State: e.state, StepsRun: i + 1, Failure: failure, Duration: time.Since(startTime)}
		}
	}
	e.state = StatePassed
	return Outcome{State: e.state, StepsRun: len(steps), Duration: time.Since(startTime)}
}

type stepRunner struct {
	e          *Executor
	mismatches []pattern.Mismatch
}

func (r *stepRunner) resolve(v ldvalue.Value) ldvalue.Value {
	return r.e.templates.Resolve(v)
}

func (r *stepRunner) validate(mismatches []pattern.Mismatch) error {
	r.mismatches = mismatches
	return pattern.NewValidationError(mismatches)
}

func (r *stepRunner) requireRPC(stepType string) error {
	if r.e.rpc == nil {
		return &data.ConfigError{Problems: []string{stepType + " steps need a JSON-RPC connection"}}
	}
	return nil
}

func (r *stepRunner) VisitSendRequest(s data.SendRequest) error {
	if err := r.requireRPC(data.StepTypeRequest); err != nil {
		return err
	}
	id, err := r.e.rpc.SendRequest(s.Method, r.resolve(s.Params))
	if err != nil {
		return err
	}
	resp, err := r.e.rpc.AwaitResponse(id, s.Timeout.OrElse(r.e.config.ResponseTimeout))
	if err != nil {
		return err
	}
	if resp.Error != nil {
		expectError, ok := s.ExpectError.Get()
		if !ok {
			return &UnexpectedErrorResponse{Method: s.Method, Response: resp.Error}
		}
		return r.validate(pattern.Match(resp.Error.Value(), r.resolve(expectError), "error"))
	}
	if s.ExpectError.IsDefined() {
		return r.validate([]pattern.Mismatch{{
			Path:    "error",
			Message: "expected an error response, got result " + resp.Result.JSONString(),
		}})
	}
	if expectResult, ok := s.ExpectResult.Get(); ok {
		return r.validate(pattern.Match(resp.Result, r.resolve(expectResult), "result"))
	}
	return nil
}

func (r *stepRunner) VisitSendNotification(s data.SendNotification) error {
	if err := r.requireRPC(data.StepTypeNotification); err != nil {
		return err
	}
	if err := r.e.rpc.SendNotification(s.Method, r.resolve(s.Params)); err != nil {
		return err
	}
	if r.e.config.SettleDelay > 0 {
		time.Sleep(r.e.config.SettleDelay)
	}
	return nil
}

func (r *stepRunner) VisitExpectNotification(s data.ExpectNotification) error {
	if err := r.requireRPC(data.StepTypeExpectNotification); err != nil {
		return err
	}
	m, err := r.e.rpc.AwaitNotification(s.Method, s.Timeout.OrElse(r.e.config.NotificationTimeout))
	if err != nil {
		return err
	}
	if expectParams, ok := s.Params.Get(); ok && !isEmptyPattern(expectParams) {
		return r.validate(pattern.Match(m.Params, r.resolve(expectParams), "params"))
	}
	return nil
}

func (r *stepRunner) VisitRawExchange(s data.RawExchange) error {
	if err := r.requireRPC(data.StepTypeExchange); err != nil {
		return err
	}
	request := r.resolve(s.Request)
	id, err := jsonrpc.IDFromValue(request.GetByKey("id"))
	if err != nil {
		return &data.ConfigError{Problems: []string{"exchange request: " + err.Error()}}
	}
	m := jsonrpc.Message{ID: id, Method: request.GetByKey("method").StringValue(), Params: request.GetByKey("params")}
	if err := r.e.rpc.Send(m); err != nil {
		return err
	}
	if !id.IsDefined() {
		return nil
	}
	resp, err := r.e.rpc.AwaitResponse(id, s.Timeout.OrElse(r.e.config.ResponseTimeout))
	if err != nil {
		return err
	}
	if expect, ok := s.Expect.Get(); ok {
		return r.validate(pattern.Match(resp.Value(), r.resolve(expect), "response"))
	}
	return nil
}

func (r *stepRunner) VisitHTTPExchange(s data.HTTPExchange) error {
	if r.e.http == nil {
		return &data.ConfigError{Problems: []string{"HTTP steps need an HTTP client"}}
	}
	headers := make(map[string]string, len(s.Headers))
	for k, v := range s.Headers {
		headers[k] = r.e.templates.ResolveString(v).StringValue()
	}
	resp, err := r.e.http.Do(restclient.Request{
		Method:   s.Method,
		Endpoint: r.e.templates.ResolveString(s.Endpoint).StringValue(),
		Headers:  headers,
		Body:     r.resolve(s.Body),
		Timeout:  s.Timeout.OrElse(r.e.config.HTTPTimeout),
	})
	if err != nil {
		return err
	}
	var mismatches []pattern.Mismatch
	if expectStatus, ok := s.ExpectStatus.Get(); ok {
		mismatches = append(mismatches, pattern.Match(ldvalue.Int(resp.Status), r.resolve(expectStatus), "status")...)
	}
	mismatches = append(mismatches, matchHeaders(resp.Headers, s.ExpectHeaders, r.resolve)...)
	if expectBody, ok := s.ExpectBody.Get(); ok {
		mismatches = append(mismatches, pattern.Match(resp.Body, r.resolve(expectBody), "body")...)
	}
	return r.validate(mismatches)
}

// matchHeaders looks up each expected header by name, ignoring case. Multiple values are
// joined with ", ".
func matchHeaders(
	actual http.Header,
	expected map[string]ldvalue.Value,
	resolve func(ldvalue.Value) ldvalue.Value,
) []pattern.Mismatch {
	var ret []pattern.Mismatch
	for _, name := range helpers.SortedKeys(expected) {
		path := "headers." + name
		values := actual.Values(name)
		if len(values) == 0 {
			ret = append(ret, pattern.MatchMissing(resolve(expected[name]), path)...)
			continue
		}
		ret = append(ret, pattern.Match(ldvalue.String(strings.Join(values, ", ")), resolve(expected[name]), path)...)
	}
	return ret
}

func isEmptyPattern(v ldvalue.Value) bool {
	return v.IsNull() || (v.Type() == ldvalue.ObjectType && v.Count() == 0)
}

// IsFatal returns true if a failure means the connection can no longer be used, so that the
// shutdown handshake should be skipped.
func IsFatal(err error) bool {
	var transportErr *jsonrpc.TransportError
	var timeoutErr *rpcconn.TimeoutError
	switch {
	case errors.As(err, &transportErr):
		return true
	case errors.As(err, &timeoutErr):
		return timeoutErr.Closed
	default:
		return classify(err) == FailureProtocol
	}
}
