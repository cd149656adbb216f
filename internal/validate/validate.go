// Package validate implements the parameter validator (C3): given an
// input schema and a caller-supplied mapping, apply defaults, enforce
// type and options constraints, and reject missing required inputs.
package validate

import (
	"github.com/samber/lo"

	"github.com/SolracHQ/rivet/internal/domain"
)

// Parameters validates params against schema, in schema declaration
// order, and returns a new mapping. It never mutates params.
//
// Per declared input:
//  1. If the caller supplied a value, its runtime type must match the
//     declared type, and (if an options list is present) the value must
//     be a member of it.
//  2. Else if a default is present, the default is adopted.
//  3. Else if required, validation fails.
//  4. Else the input is omitted.
//
// Caller-supplied keys not declared in the schema pass through
// unchanged, since pipelines may accept extension parameters.
func Parameters(schema map[string]domain.InputSchema, params map[string]interface{}, order []string) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(params))
	declared := make(map[string]struct{}, len(schema))

	for _, name := range order {
		def, ok := schema[name]
		if !ok {
			continue
		}
		declared[name] = struct{}{}

		value, supplied := params[name]
		switch {
		case supplied:
			if err := checkType(def.Type, value); err != nil {
				return nil, domain.Wrap(domain.KindBadInputType, err, "input %q", name)
			}
			if len(def.Options) > 0 && !containsStructural(def.Options, value) {
				return nil, domain.NewError(domain.KindNotInOptions, "input %q: value not in declared options", name)
			}
			out[name] = value
		case def.Default != nil:
			out[name] = def.Default
		case def.Required:
			return nil, domain.NewError(domain.KindMissingRequiredInput, "required input %q is not set", name)
		default:
			// omitted
		}
	}

	// Extension parameters: caller keys not declared in the schema pass
	// through unchanged.
	for k, v := range params {
		if _, ok := declared[k]; !ok {
			out[k] = v
		}
	}

	return out, nil
}

// FallbackOrder returns the keys of schema in map iteration order. It
// exists only for callers without an authoritative declaration order
// (e.g. ad-hoc tests); production callers should pass
// domain.Definition.InputOrder, which the sandbox evaluator populates
// from the script's actual declaration order.
func FallbackOrder(schema map[string]domain.InputSchema) []string {
	return lo.Keys(schema)
}

func checkType(t domain.InputType, v interface{}) error {
	ok := false
	switch t {
	case domain.InputString:
		_, ok = v.(string)
	case domain.InputNumber:
		switch v.(type) {
		case float64, float32, int, int64:
			ok = true
		}
	case domain.InputBool:
		_, ok = v.(bool)
	default:
		return domain.NewError(domain.KindUnknownInputType, "unknown input type %q", t)
	}
	if !ok {
		return domain.NewError(domain.KindBadInputType, "expected %s, got %T", t, v)
	}
	return nil
}

// containsStructural reports whether v structurally equals a member of
// options: numbers compared by value, strings by content, booleans
// directly.
func containsStructural(options []interface{}, v interface{}) bool {
	for _, opt := range options {
		if structuralEqual(opt, v) {
			return true
		}
	}
	return false
}

func structuralEqual(a, b interface{}) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return a == b
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
