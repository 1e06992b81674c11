package registry

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"

	mcperrors "github.com/lespauI/mcp-ios-agent/pkg/errors"
	"github.com/lespauI/mcp-ios-agent/pkg/protocol"
)

// validateParams checks rawParams against the parameter specs and
// returns the validated, schema-shaped map. Coercion policy is lenient
// and deterministic: numeric-looking strings are accepted for integer
// and number fields, "true"/"false" for booleans, and integral floats
// for integers. Anything ambiguous is rejected. Missing optional
// parameters are filled with their declared default, or omitted when
// none is declared.
func validateParams(specs []protocol.ToolParameter, rawParams map[string]interface{}) (map[string]interface{}, []mcperrors.ParameterViolation) {
	validated := make(map[string]interface{}, len(specs))
	var violations []mcperrors.ParameterViolation

	for _, spec := range specs {
		value, present := rawParams[spec.Name]

		if !present {
			if spec.Required {
				violations = append(violations, mcperrors.ParameterViolation{
					Field:    spec.Name,
					Reason:   "required parameter missing",
					Expected: string(spec.Type),
				})
				continue
			}
			if spec.Default != nil {
				validated[spec.Name] = spec.Default
			}
			continue
		}

		coerced, ok := coerce(spec.Type, value)
		if !ok {
			violations = append(violations, mcperrors.ParameterViolation{
				Field:    spec.Name,
				Reason:   fmt.Sprintf("expected %s, got %T", spec.Type, value),
				Value:    value,
				Expected: string(spec.Type),
			})
			continue
		}

		if len(spec.Enum) > 0 && !enumAllows(spec.Enum, coerced) {
			violations = append(violations, mcperrors.ParameterViolation{
				Field:    spec.Name,
				Reason:   fmt.Sprintf("value not in enum %v", spec.Enum),
				Value:    value,
				Expected: fmt.Sprintf("one of %v", spec.Enum),
			})
			continue
		}

		validated[spec.Name] = coerced
	}

	return validated, violations
}

// coerce converts a decoded JSON value to the declared parameter type.
// A static switch over the type tag; no runtime type synthesis.
func coerce(t protocol.ParamType, v interface{}) (interface{}, bool) {
	switch t {
	case protocol.TypeString:
		s, ok := v.(string)
		return s, ok

	case protocol.TypeInteger:
		switch n := v.(type) {
		case float64:
			if n == math.Trunc(n) && !math.IsInf(n, 0) {
				return int64(n), true
			}
			return nil, false
		case int:
			return int64(n), true
		case int64:
			return n, true
		case json.Number:
			i, err := n.Int64()
			return i, err == nil
		case string:
			i, err := strconv.ParseInt(n, 10, 64)
			return i, err == nil
		}
		return nil, false

	case protocol.TypeNumber:
		switch n := v.(type) {
		case float64:
			return n, true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		case json.Number:
			f, err := n.Float64()
			return f, err == nil
		case string:
			f, err := strconv.ParseFloat(n, 64)
			return f, err == nil
		}
		return nil, false

	case protocol.TypeBoolean:
		switch b := v.(type) {
		case bool:
			return b, true
		case string:
			switch b {
			case "true":
				return true, true
			case "false":
				return false, true
			}
		}
		return nil, false

	case protocol.TypeArray:
		a, ok := v.([]interface{})
		return a, ok

	case protocol.TypeObject:
		o, ok := v.(map[string]interface{})
		return o, ok
	}

	return nil, false
}

// enumAllows reports whether value matches one of the permitted enum
// values. Numeric values compare by magnitude so that an int64 coerced
// from JSON matches an enum authored as int or float64.
func enumAllows(enum []interface{}, value interface{}) bool {
	for _, allowed := range enum {
		if reflect.DeepEqual(allowed, value) {
			return true
		}
		af, aok := asFloat(allowed)
		vf, vok := asFloat(value)
		if aok && vok && af == vf {
			return true
		}
	}
	return false
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
