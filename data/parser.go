package data

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	yaml "gopkg.in/yaml.v3"
)

// ParseJSONOrYAML decodes data into target like json.Unmarshal does. Data that is not JSON is
// read as YAML, converted to JSON, and then decoded, so JSON struct tags apply either way.
func ParseJSONOrYAML(data []byte, target interface{}) error {
	if json.Unmarshal(data, target) == nil {
		return nil
	}
	asJSON, err := yamlToJSON(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(asJSON, target)
}

// ParseValue reads JSON or YAML text as a JSON value.
func ParseValue(data []byte) (ldvalue.Value, error) {
	var v ldvalue.Value
	err := ParseJSONOrYAML(data, &v)
	if err != nil {
		return ldvalue.Null(), err
	}
	return v, nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	converted, err := jsonCompatible(doc, "")
	if err != nil {
		return nil, err
	}
	return json.Marshal(converted)
}

// jsonCompatible rewrites what yaml.v3 produces into types encoding/json can marshal. Path is
// the location within the document, used in errors.
func jsonCompatible(node interface{}, path string) (interface{}, error) {
	switch n := node.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(n))
		for k, v := range n {
			c, err := jsonCompatible(v, path+"."+k)
			if err != nil {
				return nil, err
			}
			out[k] = c
		}
		return out, nil
	case map[interface{}]interface{}:
		generic := make(map[string]interface{}, len(n))
		for k, v := range n {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("YAML key %v at %q is a %T; only string keys are allowed", k, path, k)
			}
			generic[key] = v
		}
		return jsonCompatible(generic, path)
	case []interface{}:
		out := make([]interface{}, len(n))
		for i, v := range n {
			c, err := jsonCompatible(v, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	case time.Time:
		// an unquoted timestamp stays a string
		return n.Format(time.RFC3339Nano), nil
	default:
		return n, nil
	}
}
