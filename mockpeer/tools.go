package mockpeer

import (
	"fmt"
	"strings"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/grauwen/utlx-conformance-harness/jsonrpc"
)

const (
	ToolValidate = "validate_utlx"
	ToolEcho     = "echo"
)

func toolList() ldvalue.Value {
	tool := func(name, description string, required ...string) ldvalue.Value {
		props := ldvalue.ObjectBuild()
		req := ldvalue.ArrayBuild()
		for _, r := range required {
			props.Set(r, ldvalue.ObjectBuild().Set("type", ldvalue.String("string")).Build())
			req.Add(ldvalue.String(r))
		}
		return ldvalue.ObjectBuild().
			Set("name", ldvalue.String(name)).
			Set("description", ldvalue.String(description)).
			Set("inputSchema", ldvalue.ObjectBuild().
				Set("type", ldvalue.String("object")).
				Set("properties", props.Build()).
				Set("required", req.Build()).
				Build()).
			Build()
	}
	return ldvalue.ArrayOf(
		tool(ToolValidate, "Check a UTL-X transformation for problems", "utlx"),
		tool(ToolEcho, "Return the arguments unchanged"),
	)
}

func callTool(params ldvalue.Value) (ldvalue.Value, *jsonrpc.ResponseError) {
	args := params.GetByKey("arguments")
	switch name := params.GetByKey("name").StringValue(); name {
	case ToolEcho:
		return toolResult(args.JSONString(), false), nil
	case ToolValidate:
		source := args.GetByKey("utlx")
		if !source.IsString() {
			return ldvalue.Null(), &jsonrpc.ResponseError{
				Code:    jsonrpc.CodeInvalidParams,
				Message: "missing required argument: utlx",
			}
		}
		report := ValidateSource(source.StringValue())
		if report.Valid {
			return toolResult("valid", false), nil
		}
		return toolResult("invalid: "+strings.Join(report.Messages(), "; "), true), nil
	default:
		return ldvalue.Null(), &jsonrpc.ResponseError{
			Code:    jsonrpc.CodeInvalidParams,
			Message: fmt.Sprintf("unknown tool %q", name),
		}
	}
}

func toolResult(text string, isError bool) ldvalue.Value {
	return ldvalue.ObjectBuild().
		Set("content", ldvalue.ArrayOf(ldvalue.ObjectBuild().
			Set("type", ldvalue.String("text")).
			Set("text", ldvalue.String(text)).
			Build())).
		Set("isError", ldvalue.Bool(isError)).
		Build()
}

// ValidationReport is the result of checking a transformation.
type ValidationReport struct {
	Valid       bool
	Diagnostics []Diagnostic
}

func (r ValidationReport) Messages() []string {
	ret := make([]string, 0, len(r.Diagnostics))
	for _, d := range r.Diagnostics {
		ret = append(ret, d.Message)
	}
	return ret
}

func (r ValidationReport) Value() ldvalue.Value {
	arr := ldvalue.ArrayBuildWithCapacity(len(r.Diagnostics))
	for _, d := range r.Diagnostics {
		arr.Add(d.Value())
	}
	return ldvalue.ObjectBuild().
		Set("valid", ldvalue.Bool(r.Valid)).
		Set("diagnostics", arr.Build()).
		Build()
}

// ValidateSource applies the same checks as the document diagnostics.
func ValidateSource(source string) ValidationReport {
	diags := diagnose(source)
	return ValidationReport{Valid: len(diags) == 0, Diagnostics: diags}
}
