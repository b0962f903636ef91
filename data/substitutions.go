package data

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/grauwen/utlx-conformance-harness/framework/helpers"
)

// substitutionSet maps a placeholder NAME to the value that replaces "<NAME>".
type substitutionSet map[string]ldvalue.Value

// variant is the text of a test file after substitution, plus the parameter set that
// produced it.
type variant struct {
	params substitutionSet
	data   []byte
}

var errBadParameters = errors.New("parameters must be a list of objects, or a list of non-empty lists of objects")

// expandSubstitutions applies a file's "constants" and "parameters" blocks.
//
// Every "<NAME>" is replaced by the value of NAME. When the placeholder is a whole quoted
// string, the value keeps its JSON type; inside a longer string it is interpolated as text.
// A file with parameters becomes one variant per parameter set. Constants are applied both
// before and after the parameters, so a parameter value may refer to a constant.
func expandSubstitutions(raw []byte) ([]variant, error) {
	var blocks struct {
		Constants  substitutionSet   `json:"constants"`
		Parameters []json.RawMessage `json:"parameters"`
	}
	if err := ParseJSONOrYAML(raw, &blocks); err != nil {
		return nil, err
	}
	if len(blocks.Constants) == 0 && len(blocks.Parameters) == 0 {
		return []variant{{data: raw}}, nil
	}

	withConstants := substitute(raw, blocks.Constants)
	paramSets, err := parameterSets(blocks.Parameters)
	if err != nil {
		return nil, err
	}
	if len(paramSets) == 0 {
		return []variant{{data: withConstants}}, nil
	}
	variants := make([]variant, len(paramSets))
	for i, params := range paramSets {
		variants[i] = variant{
			params: params,
			data:   substitute(substitute(withConstants, params), blocks.Constants),
		}
	}
	return variants, nil
}

// parameterSets reads the parameters block. A list of objects gives one set per object. A
// list of lists gives the cartesian product, each set merging one object from every list.
func parameterSets(items []json.RawMessage) ([]substitutionSet, error) {
	if len(items) == 0 {
		return nil, nil
	}
	whole, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	switch ldvalue.Parse(items[0]).Type() {
	case ldvalue.ObjectType:
		var flat []substitutionSet
		if err := json.Unmarshal(whole, &flat); err != nil {
			return nil, err
		}
		return flat, nil
	case ldvalue.ArrayType:
		var axes [][]substitutionSet
		if err := json.Unmarshal(whole, &axes); err != nil {
			return nil, err
		}
		return crossProduct(axes)
	default:
		return nil, errBadParameters
	}
}

func crossProduct(axes [][]substitutionSet) ([]substitutionSet, error) {
	combined := []substitutionSet{{}}
	for _, axis := range axes {
		if len(axis) == 0 {
			return nil, errBadParameters
		}
		next := make([]substitutionSet, 0, len(combined)*len(axis))
		for _, base := range combined {
			for _, choice := range axis {
				merged := make(substitutionSet, len(base)+len(choice))
				for k, v := range base {
					merged[k] = v
				}
				for k, v := range choice {
					merged[k] = v
				}
				next = append(next, merged)
			}
		}
		combined = next
	}
	return combined, nil
}

func substitute(text []byte, values substitutionSet) []byte {
	if len(values) == 0 {
		return text
	}
	// JSON encoders escape angle brackets; undo that so placeholders are found.
	unescaped := strings.NewReplacer(`\u003c`, "<", `\u003e`, ">").Replace(string(text))

	pairs := make([]string, 0, 4*len(values))
	for _, name := range helpers.SortedKeys(values) {
		v := values[name]
		pairs = append(pairs,
			`"<`+name+`>"`, v.JSONString(),
			"<"+name+">", textOf(v),
		)
	}
	return []byte(strings.NewReplacer(pairs...).Replace(unescaped))
}

func textOf(v ldvalue.Value) string {
	return helpers.IfElse(v.IsString(), v.StringValue(), v.JSONString())
}

func paramsString(params substitutionSet) string {
	if len(params) == 0 {
		return ""
	}
	parts := make([]string, 0, len(params))
	for _, k := range helpers.SortedKeys(params) {
		parts = append(parts, k+"="+textOf(params[k]))
	}
	return "(" + strings.Join(parts, ",") + ")"
}
