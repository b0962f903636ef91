package data

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/grauwen/utlx-conformance-harness/framework/helpers"
	"github.com/grauwen/utlx-conformance-harness/framework/opt"
	"github.com/grauwen/utlx-conformance-harness/restclient"
	"github.com/grauwen/utlx-conformance-harness/templates"
)

// DefaultCategory is used for a test file that has no category and sits at the top of the
// test directory.
const DefaultCategory = "default"

// TestFile is one runnable test: a parsed file, or one variant of a parameterized file.
type TestFile struct {
	Name        string
	Description string
	Category    string
	Tags        Tags
	// SkipReason is non-empty if the file says it should be skipped.
	SkipReason string
	Documents  ldvalue.Value
	Variables  ldvalue.Value
	Sequence   []Step
	Source     SourceInfo
	// Warnings are problems that do not prevent the file from running.
	Warnings []string
}

// SourceInfo says where a TestFile came from.
type SourceInfo struct {
	FilePath string
	// RelPath is the path relative to the test root, with forward slashes.
	RelPath string
	Params  substitutionSet
}

// BaseName is the file name without directories or extension.
func (s SourceInfo) BaseName() string {
	base := filepath.Base(s.FilePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ParamsString describes the parameter values of a variant, like "(kind=markdown)".
func (s SourceInfo) ParamsString() string { return paramsString(s.Params) }

// DisplayName is the name with the parameter values appended, if any.
func (f TestFile) DisplayName() string {
	if p := f.Source.ParamsString(); p != "" {
		return f.Name + " " + p
	}
	return f.Name
}

// ID returns the category and display name, which together identify the test in filters and
// reports.
func (f TestFile) ID() []string {
	return []string{f.Category, f.DisplayName()}
}

// TemplateContext returns the values that {{documents.*}} and {{variables.*}} tokens refer to.
func (f TestFile) TemplateContext() templates.Context {
	return templates.Context{Documents: f.Documents, Variables: f.Variables}
}

// ParseTestFile turns one parsed document into a TestFile, checking it against the rules for
// the transport. All problems are collected into a single *ConfigError.
func ParseTestFile(value ldvalue.Value, source SourceInfo, transport Transport) (TestFile, error) {
	var problems problemList
	tf := TestFile{Source: source}
	if value.Type() != ldvalue.ObjectType {
		problems.add("top level must be a mapping, got %s", value.Type())
		return tf, problems.errorFor(source.FilePath)
	}
	props := value.AsValueMap()

	tf.Name = optionalString(props.Get("name"), "name", &problems)
	if tf.Name == "" {
		tf.Name = source.BaseName()
	} else if tf.Name != source.BaseName() {
		tf.Warnings = append(tf.Warnings,
			fmt.Sprintf("test name %q differs from file name %q", tf.Name, source.BaseName()))
	}
	tf.Description = optionalString(props.Get("description"), "description", &problems)
	tf.Category = optionalString(props.Get("category"), "category", &problems)
	if tf.Category == "" {
		tf.Category = categoryFromPath(source.RelPath)
	}
	tf.Tags = parseTags(props.Get("tags"), &problems)
	tf.SkipReason = parseSkip(props.Get("skip"), &problems)
	tf.Documents = optionalObject(props.Get("documents"), "documents", &problems)
	tf.Variables = optionalObject(props.Get("variables"), "variables", &problems)

	sequence := props.Get("sequence")
	switch {
	case sequence.IsNull():
		problems.add("missing sequence")
	case sequence.Type() != ldvalue.ArrayType:
		problems.add("sequence must be a list, got %s", sequence.Type())
	case sequence.Count() == 0:
		problems.add("sequence is empty")
	default:
		for i, item := range sequence.AsValueArray().AsSlice() {
			sp := stepProblems{list: &problems, index: i + 1}
			if step := parseStep(item, transport, &sp); step != nil {
				tf.Sequence = append(tf.Sequence, step)
			}
		}
	}
	return tf, problems.errorFor(source.FilePath)
}

type stepProblems struct {
	list  *problemList
	index int
}

func (s *stepProblems) add(format string, args ...interface{}) {
	s.list.add("step %d: %s", s.index, fmt.Sprintf(format, args...))
}

func parseStep(item ldvalue.Value, transport Transport, problems *stepProblems) Step {
	if item.Type() != ldvalue.ObjectType {
		problems.add("must be a mapping, got %s", item.Type())
		return nil
	}
	props := item.AsValueMap()
	stepType := props.Get("type")
	if !stepType.IsNull() && !stepType.IsString() {
		problems.add("type must be a string")
		return nil
	}
	typeName := stepType.StringValue()
	if typeName == "" {
		switch {
		case transport == TransportHTTP:
			typeName = StepTypeRequest
		case props.Get("request").Type() == ldvalue.ObjectType:
			typeName = StepTypeExchange
		default:
			problems.add("missing type")
			return nil
		}
	}
	description := optionalString(props.Get("description"), "description", problems.list)

	if transport == TransportHTTP {
		if typeName != StepTypeRequest {
			problems.add("unknown step type %q for transport %s", typeName, transport)
			return nil
		}
		return parseHTTPStep(props, description, problems)
	}

	switch typeName {
	case StepTypeRequest:
		s := SendRequest{Description: description, Method: requiredMethod(props, problems)}
		s.Params = rpcParams(props.Get("params"), problems)
		s.Timeout = parseTimeout(props.Get("timeout"), problems)
		if expect, ok := expectObject(props, problems); ok {
			s.ExpectResult = optionalKey(expect, "result")
			s.ExpectError = optionalKey(expect, "error")
		}
		return s
	case StepTypeNotification:
		return SendNotification{
			Description: description,
			Method:      requiredMethod(props, problems),
			Params:      rpcParams(props.Get("params"), problems),
		}
	case StepTypeExpectNotification:
		return ExpectNotification{
			Description: description,
			Method:      requiredMethod(props, problems),
			Params:      optionalKey(props, "params"),
			Timeout:     parseTimeout(props.Get("timeout"), problems),
		}
	case StepTypeExchange:
		request := props.Get("request")
		if request.Type() != ldvalue.ObjectType {
			problems.add("exchange request must be a mapping")
			return nil
		}
		if m := request.GetByKey("method"); !m.IsString() || m.StringValue() == "" {
			problems.add("exchange request must have a method")
		}
		s := RawExchange{Description: description, Request: request, Timeout: parseTimeout(props.Get("timeout"), problems)}
		if _, ok := expectObject(props, problems); ok {
			s.Expect = optionalKey(props, "expect")
		}
		return s
	default:
		problems.add("unknown step type %q for transport %s", typeName, transport)
		return nil
	}
}

func parseHTTPStep(props ldvalue.ValueMap, description string, problems *stepProblems) Step {
	s := HTTPExchange{
		Description: description,
		Method:      strings.ToUpper(props.Get("method").StringValue()),
		Endpoint:    props.Get("endpoint").StringValue(),
		Body:        props.Get("body"),
		Timeout:     parseTimeout(props.Get("timeout"), problems),
	}
	if s.Method == "" {
		s.Method = http.MethodGet
	}
	if !helpers.SliceContains(s.Method, restclient.Methods) {
		problems.add("HTTP method %q is not one of %v", s.Method, restclient.Methods)
	}
	if s.Endpoint == "" {
		s.Endpoint = "/"
	}
	if !strings.HasPrefix(s.Endpoint, "/") {
		problems.add("endpoint %q must start with /", s.Endpoint)
	}
	if headers := props.Get("headers"); !headers.IsNull() {
		if headers.Type() != ldvalue.ObjectType {
			problems.add("headers must be a mapping")
		} else {
			s.Headers = make(map[string]string)
			for k, v := range headers.AsValueMap().AsMap() {
				s.Headers[k] = helpers.IfElse(v.IsString(), v.StringValue(), v.JSONString())
			}
		}
	}
	if expect, ok := expectObject(props, problems); ok {
		s.ExpectStatus = optionalKey(expect, "status")
		s.ExpectBody = optionalKey(expect, "body")
		if h := expect.Get("headers"); !h.IsNull() {
			if h.Type() != ldvalue.ObjectType {
				problems.add("expect.headers must be a mapping")
			} else {
				s.ExpectHeaders = h.AsValueMap().AsMap()
			}
		}
	}
	return s
}

func requiredMethod(props ldvalue.ValueMap, problems *stepProblems) string {
	m := props.Get("method")
	if !m.IsString() || m.StringValue() == "" {
		problems.add("method is required")
		return ""
	}
	return m.StringValue()
}

func rpcParams(v ldvalue.Value, problems *stepProblems) ldvalue.Value {
	switch v.Type() {
	case ldvalue.NullType, ldvalue.ObjectType, ldvalue.ArrayType:
		return v
	default:
		problems.add("params must be a mapping or a list, got %s", v.Type())
		return ldvalue.Null()
	}
}

func expectObject(props ldvalue.ValueMap, problems *stepProblems) (ldvalue.ValueMap, bool) {
	expect, ok := props.AsMap()["expect"]
	if !ok {
		return ldvalue.ValueMap{}, false
	}
	if expect.Type() != ldvalue.ObjectType {
		problems.add("expect must be a mapping")
		return ldvalue.ValueMap{}, false
	}
	return expect.AsValueMap(), true
}

// optionalKey distinguishes a key that is present with a null value from a missing key.
func optionalKey(props ldvalue.ValueMap, key string) opt.Maybe[ldvalue.Value] {
	if v, ok := props.AsMap()[key]; ok {
		return opt.Some(v)
	}
	return opt.None[ldvalue.Value]()
}

func parseTimeout(v ldvalue.Value, problems *stepProblems) opt.Maybe[time.Duration] {
	var d time.Duration
	switch {
	case v.IsNull():
		return opt.None[time.Duration]()
	case v.IsNumber():
		d = time.Duration(v.Float64Value() * float64(time.Second))
	case v.IsString():
		parsed, err := time.ParseDuration(v.StringValue())
		if err != nil {
			problems.add("timeout %q is not a duration", v.StringValue())
			return opt.None[time.Duration]()
		}
		d = parsed
	default:
		problems.add("timeout must be a number of seconds")
		return opt.None[time.Duration]()
	}
	if d <= 0 {
		problems.add("timeout must be positive")
		return opt.None[time.Duration]()
	}
	return opt.Some(d)
}

func optionalString(v ldvalue.Value, name string, problems *problemList) string {
	if !v.IsNull() && !v.IsString() {
		problems.add("%s must be a string", name)
	}
	return v.StringValue()
}

func optionalObject(v ldvalue.Value, name string, problems *problemList) ldvalue.Value {
	if v.IsNull() {
		return ldvalue.ObjectBuild().Build()
	}
	if v.Type() != ldvalue.ObjectType {
		problems.add("%s must be a mapping", name)
		return ldvalue.ObjectBuild().Build()
	}
	return v
}

func parseTags(v ldvalue.Value, problems *problemList) Tags {
	switch v.Type() {
	case ldvalue.NullType:
		return nil
	case ldvalue.StringType:
		return Tags{v.StringValue()}
	case ldvalue.ArrayType:
		var ret Tags
		for _, t := range v.AsValueArray().AsSlice() {
			if !t.IsString() {
				problems.add("tags must be strings")
				continue
			}
			ret = append(ret, t.StringValue())
		}
		return ret
	default:
		problems.add("tags must be a list of strings")
		return nil
	}
}

func parseSkip(v ldvalue.Value, problems *problemList) string {
	switch {
	case v.IsNull():
		return ""
	case v.IsBool():
		return helpers.IfElse(v.BoolValue(), "skipped", "")
	case v.IsString():
		return v.StringValue()
	default:
		problems.add("skip must be a boolean or a reason")
		return ""
	}
}

func categoryFromPath(relPath string) string {
	dir := filepath.ToSlash(filepath.Dir(relPath))
	if dir == "." || dir == "" || dir == "/" {
		return DefaultCategory
	}
	return strings.Split(strings.TrimPrefix(dir, "/"), "/")[0]
}
