package mockpeer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/grauwen/utlx-conformance-harness/jsonrpc"
)

// HeaderPrefix must start the first line of a valid transformation.
const HeaderPrefix = "%utlx"

// Document is an open text document.
type Document struct {
	URI     string
	Version int
	Text    string
}

// Diagnostics returns the problems the mock finds in the text. There are only two: a missing
// header, and any line containing "ERROR".
func (d Document) Diagnostics() []Diagnostic {
	return diagnose(d.Text)
}

// DiagnosticsParams returns the params of a textDocument/publishDiagnostics notification.
func (d Document) DiagnosticsParams() ldvalue.Value {
	diags := d.Diagnostics()
	arr := ldvalue.ArrayBuildWithCapacity(len(diags))
	for _, diag := range diags {
		arr.Add(diag.Value())
	}
	return ldvalue.ObjectBuild().
		Set("uri", ldvalue.String(d.URI)).
		Set("version", ldvalue.Int(d.Version)).
		Set("diagnostics", arr.Build()).
		Build()
}

// Diagnostic is an LSP diagnostic on a single line.
type Diagnostic struct {
	Line     int
	Severity int
	Message  string
}

func (d Diagnostic) Value() ldvalue.Value {
	position := func(ch int) ldvalue.Value {
		return ldvalue.ObjectBuild().Set("line", ldvalue.Int(d.Line)).Set("character", ldvalue.Int(ch)).Build()
	}
	return ldvalue.ObjectBuild().
		Set("range", ldvalue.ObjectBuild().Set("start", position(0)).Set("end", position(1)).Build()).
		Set("severity", ldvalue.Int(d.Severity)).
		Set("source", ldvalue.String(ServerName)).
		Set("message", ldvalue.String(d.Message)).
		Build()
}

func diagnose(text string) []Diagnostic {
	ret := []Diagnostic{}
	lines := strings.Split(text, "\n")
	if !strings.HasPrefix(strings.TrimSpace(lines[0]), HeaderPrefix) {
		ret = append(ret, Diagnostic{Line: 0, Severity: 1, Message: "missing " + HeaderPrefix + " header"})
	}
	for i, line := range lines {
		if strings.Contains(line, "ERROR") {
			ret = append(ret, Diagnostic{Line: i, Severity: 1, Message: "error marker on line " + fmt.Sprint(i+1)})
		}
	}
	return ret
}

// DocumentStore holds the documents opened in a session.
type DocumentStore struct {
	docs map[string]Document
	lock sync.Mutex
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[string]Document)}
}

// Update applies didOpen or didChange params. With didChange, only full-text changes are
// supported, and the last one wins.
func (s *DocumentStore) Update(params ldvalue.Value) Document {
	td := params.GetByKey("textDocument")
	doc := Document{URI: td.GetByKey("uri").StringValue(), Version: td.GetByKey("version").IntValue()}
	if doc.URI == "" {
		return doc
	}
	if text := td.GetByKey("text"); text.IsString() {
		doc.Text = text.StringValue()
	} else {
		s.lock.Lock()
		doc.Text = s.docs[doc.URI].Text
		s.lock.Unlock()
		for _, change := range params.GetByKey("contentChanges").AsValueArray().AsSlice() {
			if t := change.GetByKey("text"); t.IsString() {
				doc.Text = t.StringValue()
			}
		}
	}
	s.lock.Lock()
	s.docs[doc.URI] = doc
	s.lock.Unlock()
	return doc
}

func (s *DocumentStore) Remove(uri string) {
	s.lock.Lock()
	delete(s.docs, uri)
	s.lock.Unlock()
}

func (s *DocumentStore) Get(uri string) (Document, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	doc, ok := s.docs[uri]
	return doc, ok
}

// Hover returns the text of the line at the requested position as markdown.
func (s *DocumentStore) Hover(params ldvalue.Value) (ldvalue.Value, *jsonrpc.ResponseError) {
	uri := params.GetByKey("textDocument").GetByKey("uri").StringValue()
	doc, ok := s.Get(uri)
	if !ok {
		return ldvalue.Null(), &jsonrpc.ResponseError{
			Code:    jsonrpc.CodeInvalidParams,
			Message: fmt.Sprintf("unknown document %q", uri),
		}
	}
	line := params.GetByKey("position").GetByKey("line").IntValue()
	lines := strings.Split(doc.Text, "\n")
	if line < 0 || line >= len(lines) || strings.TrimSpace(lines[line]) == "" {
		return ldvalue.Null(), nil
	}
	return ldvalue.ObjectBuild().
		Set("contents", ldvalue.ObjectBuild().
			Set("kind", ldvalue.String("markdown")).
			Set("value", ldvalue.String("```utlx\n"+strings.TrimSpace(lines[line])+"\n```")).
			Build()).
		Build(), nil
}
