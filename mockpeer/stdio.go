// Package mockpeer is a small language-tooling daemon used to exercise the harness. It speaks
// JSON-RPC over either stdio framing, and has an HTTP handler with the same operations.
package mockpeer

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/grauwen/utlx-conformance-harness/framework"
	"github.com/grauwen/utlx-conformance-harness/framework/helpers"
	"github.com/grauwen/utlx-conformance-harness/jsonrpc"
)

const (
	ServerName    = "utlx-mock-peer"
	ServerVersion = "1.0.0"

	// MethodIgnore is a request the peer never answers, for testing timeouts.
	MethodIgnore = "mock/ignore"
)

type peerConfig struct {
	logger framework.Logger
}

// Option is a parameter for Serve.
type Option = helpers.ConfigOption[peerConfig]

// WithLogger sets where the peer logs each message it handles.
func WithLogger(logger framework.Logger) Option {
	return helpers.ConfigOptionFunc[peerConfig](func(c *peerConfig) error {
		c.logger = logger
		return nil
	})
}

// ExitStatus says how a session ended.
type ExitStatus struct {
	// ShutdownRequested is true if a shutdown request came before the end of the session.
	ShutdownRequested bool
	// Exited is true if the session ended with an exit notification rather than end of input.
	Exited bool
}

// Code is the process exit code an LSP server uses: 0 after shutdown then exit, otherwise 1.
func (s ExitStatus) Code() int {
	return helpers.IfElse(s.ShutdownRequested, 0, 1)
}

type session struct {
	codec     jsonrpc.Codec
	logger    framework.Logger
	documents *DocumentStore
	writeLock sync.Mutex
	status    ExitStatus
}

// Serve handles messages from the codec until an exit notification or the end of input.
func Serve(codec jsonrpc.Codec, options ...Option) (ExitStatus, error) {
	var cfg peerConfig
	if err := helpers.ApplyOptions(&cfg, options...); err != nil {
		return ExitStatus{}, err
	}
	if cfg.logger == nil {
		cfg.logger = framework.NullLogger()
	}
	s := &session{codec: codec, logger: cfg.logger, documents: NewDocumentStore()}
	for {
		m, err := codec.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return s.status, nil
			}
			return s.status, err
		}
		s.logger.Printf("mock peer got %s %s", m.Kind(), m.Method)
		if m.Kind() == jsonrpc.KindResponse {
			continue
		}
		if m.Method == "exit" {
			s.status.Exited = true
			return s.status, nil
		}
		if err := s.handle(m); err != nil {
			return s.status, err
		}
	}
}

func (s *session) send(m jsonrpc.Message) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()
	return s.codec.Write(m)
}

func (s *session) reply(req jsonrpc.Message, result ldvalue.Value, rpcErr *jsonrpc.ResponseError) error {
	if req.Kind() != jsonrpc.KindRequest {
		return nil
	}
	if rpcErr != nil {
		return s.send(jsonrpc.Message{ID: req.ID, Error: rpcErr})
	}
	return s.send(jsonrpc.NewResponse(req.ID, result))
}

func (s *session) handle(m jsonrpc.Message) error {
	switch m.Method {
	case "initialize":
		return s.reply(m, initializeResult(), nil)
	case "initialized":
		return nil
	case "shutdown":
		s.status.ShutdownRequested = true
		return s.reply(m, ldvalue.Null(), nil)
	case "textDocument/didOpen", "textDocument/didChange":
		doc := s.documents.Update(m.Params)
		if doc.URI == "" {
			return nil
		}
		return s.send(jsonrpc.NewNotification("textDocument/publishDiagnostics", doc.DiagnosticsParams()))
	case "textDocument/didClose":
		s.documents.Remove(m.Params.GetByKey("textDocument").GetByKey("uri").StringValue())
		return nil
	case "textDocument/hover":
		result, rpcErr := s.documents.Hover(m.Params)
		return s.reply(m, result, rpcErr)
	case "tools/list":
		return s.reply(m, ldvalue.ObjectBuild().Set("tools", toolList()).Build(), nil)
	case "tools/call":
		result, rpcErr := callTool(m.Params)
		return s.reply(m, result, rpcErr)
	case "echo":
		return s.reply(m, m.Params, nil)
	case MethodIgnore:
		return nil
	default:
		return s.reply(m, ldvalue.Null(), &jsonrpc.ResponseError{
			Code:    jsonrpc.CodeMethodNotFound,
			Message: fmt.Sprintf("Method not found: %s", m.Method),
		})
	}
}

func initializeResult() ldvalue.Value {
	return ldvalue.ObjectBuild().
		Set("capabilities", ldvalue.ObjectBuild().
			Set("textDocumentSync", ldvalue.Int(1)).
			Set("hoverProvider", ldvalue.Bool(true)).
			Set("tools", ldvalue.ObjectBuild().Build()).
			Build()).
		Set("serverInfo", ldvalue.ObjectBuild().
			Set("name", ldvalue.String(ServerName)).
			Set("version", ldvalue.String(ServerVersion)).
			Build()).
		Build()
}
