// Package restclient sends single HTTP exchanges to a REST daemon and decodes the responses
// into JSON values for matching.
package restclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/grauwen/utlx-conformance-harness/framework"
	"github.com/grauwen/utlx-conformance-harness/framework/helpers"
	"github.com/grauwen/utlx-conformance-harness/jsonrpc"
	"github.com/grauwen/utlx-conformance-harness/rpcconn"
)

const (
	// DefaultTimeout applies to a request that does not set its own timeout.
	DefaultTimeout = 10 * time.Second

	// HealthEndpoint is polled to find out whether the daemon is up.
	HealthEndpoint = "/health"
)

// Methods lists the HTTP methods a request may use.
var Methods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete} //nolint:gochecknoglobals

// Request is one HTTP exchange. Body is sent as JSON for POST and PUT, unless it is null; other
// methods never carry a body.
type Request struct {
	Method   string
	Endpoint string
	Headers  map[string]string
	Body     ldvalue.Value
	Timeout  time.Duration
}

// Response is what came back. Body is the parsed JSON body; if the body was not valid JSON it
// is the raw text as a string, and if it was empty it is an empty object.
type Response struct {
	Status  int
	Headers http.Header
	Body    ldvalue.Value
	IsJSON  bool
}

type clientConfig struct {
	httpClient *http.Client
	logger     framework.Logger
}

// Option is an optional setting for New.
type Option = helpers.ConfigOption[clientConfig]

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(c *http.Client) Option {
	return helpers.ConfigOptionFunc[clientConfig](func(config *clientConfig) error {
		config.httpClient = c
		return nil
	})
}

// WithLogger sets the logger for request and response traffic.
func WithLogger(logger framework.Logger) Option {
	return helpers.ConfigOptionFunc[clientConfig](func(config *clientConfig) error {
		if logger != nil {
			config.logger = logger
		}
		return nil
	})
}

// Client talks to a daemon at a fixed base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     framework.Logger
}

// New creates a Client. The base URL must be an absolute http or https URL.
func New(baseURL string, options ...Option) (*Client, error) {
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("base URL must start with http:// or https://, got %q", baseURL)
	}
	config := clientConfig{httpClient: http.DefaultClient, logger: framework.NullLogger()}
	if err := helpers.ApplyOptions(&config, options...); err != nil {
		return nil, err
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: config.httpClient,
		logger:     config.logger,
	}, nil
}

// BaseURL returns the URL that endpoints are relative to.
func (c *Client) BaseURL() string { return c.baseURL }

// Do performs one exchange. A failure to connect or read is a *jsonrpc.TransportError, and
// running out of time is a *rpcconn.TimeoutError.
func (c *Client) Do(req Request) (Response, error) {
	method := helpers.IfElse(req.Method == "", http.MethodGet, strings.ToUpper(req.Method))
	endpoint := helpers.IfElse(req.Endpoint == "", "/", req.Endpoint)
	timeout := helpers.IfElse(req.Timeout <= 0, DefaultTimeout, req.Timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var bodyReader io.Reader
	if carriesBody(method) && !req.Body.IsNull() {
		bodyReader = bytes.NewBufferString(req.Body.JSONString())
	} else if !req.Body.IsNull() {
		c.logger.Printf("ignoring body for %s %s", method, endpoint)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, bodyReader)
	if err != nil {
		return Response{}, fmt.Errorf("invalid request %s %s: %w", method, endpoint, err)
	}
	if bodyReader != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	c.logger.Printf("send: %s %s %s", method, endpoint, helpers.IfElse(bodyReader == nil, "", req.Body.JSONString()))
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, c.classifyError(err, method, endpoint, timeout)
	}
	data, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return Response{}, c.classifyError(err, method, endpoint, timeout)
	}
	c.logger.Printf("recv: %d %s", resp.StatusCode, string(data))

	ret := Response{Status: resp.StatusCode, Headers: resp.Header}
	ret.Body, ret.IsJSON = parseBody(data)
	return ret, nil
}

// IsHealthy returns true if the daemon answers its health endpoint with status 200.
func (c *Client) IsHealthy() bool {
	resp, err := c.Do(Request{Method: http.MethodGet, Endpoint: HealthEndpoint, Timeout: 2 * time.Second})
	return err == nil && resp.Status == http.StatusOK
}

// WaitUntilHealthy polls the health endpoint until it succeeds or the timeout elapses, printing
// a dot for each attempt.
func (c *Client) WaitUntilHealthy(timeout time.Duration, output io.Writer) error {
	_, _ = fmt.Fprintf(output, "Connecting to daemon at %s", c.baseURL)
	healthy := helpers.PollForSpecificResultValue(func() bool {
		_, _ = fmt.Fprint(output, ".")
		return c.IsHealthy()
	}, timeout, 200*time.Millisecond, true)
	_, _ = fmt.Fprintln(output)
	if !healthy {
		return fmt.Errorf("daemon at %s did not become healthy within %s", c.baseURL, timeout)
	}
	return nil
}

func (c *Client) classifyError(err error, method, endpoint string, timeout time.Duration) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &rpcconn.TimeoutError{What: fmt.Sprintf("HTTP response to %s %s", method, endpoint), Timeout: timeout}
	}
	return &jsonrpc.TransportError{Op: fmt.Sprintf("%s %s", method, endpoint), Err: err}
}

func parseBody(data []byte) (ldvalue.Value, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return ldvalue.ObjectBuild().Build(), false
	}
	if v := ldvalue.Parse(trimmed); !v.IsNull() || string(trimmed) == "null" {
		return v, true
	}
	return ldvalue.String(string(data)), false
}

func carriesBody(method string) bool {
	return method == http.MethodPost || method == http.MethodPut
}
