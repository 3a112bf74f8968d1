package spi

import (
	"sort"

	memverrors "github.com/artemgetmann/memv2/pkg/errors"
)

// schemaField describes one key's expected shape within an InputSchema
// map. Two reserved keys drive validation: "_type" (one of "string",
// "number", "bool", "object", "array") and "_required" (bool, defaults to
// true whenever it is absent). A ToolSpec's InputSchema
// is keyed by field name to a schemaField-shaped map.
//
// ValidateShape checks required keys, top-level types, and forbidden
// extras only (spec 4.7: "Semantic/runtime errors... are NOT caught
// here").
func ValidateShape(schema map[string]interface{}, payload map[string]interface{}) error {
	allowed := make(map[string]bool, len(schema))
	var missing []string

	for field, rawSpec := range schema {
		allowed[field] = true

		spec, _ := rawSpec.(map[string]interface{})
		required := true
		if r, ok := spec["_required"].(bool); ok {
			required = r
		}

		value, present := payload[field]
		if !present {
			if required {
				missing = append(missing, field)
			}
			continue
		}

		if wantType, ok := spec["_type"].(string); ok {
			if !matchesType(wantType, value) {
				return memverrors.WithFields(
					memverrors.New(memverrors.ValidationShapeInvalid, "field has wrong top-level type"),
					memverrors.Fields{"field": field, "want_type": wantType},
				)
			}
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return memverrors.WithFields(
			memverrors.New(memverrors.ValidationShapeInvalid, "missing required fields"),
			memverrors.Fields{"fields": missing},
		)
	}

	var extras []string
	for field := range payload {
		if !allowed[field] {
			extras = append(extras, field)
		}
	}
	if len(extras) > 0 {
		sort.Strings(extras)
		return memverrors.WithFields(
			memverrors.New(memverrors.ValidationShapeInvalid, "forbidden extra fields"),
			memverrors.Fields{"fields": extras},
		)
	}

	return nil
}

func matchesType(want string, value interface{}) bool {
	switch want {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		switch value.(type) {
		case float64, int, int64:
			return true
		}
		return false
	case "bool":
		_, ok := value.(bool)
		return ok
	case "object":
		_, ok := value.(map[string]interface{})
		return ok
	case "array":
		_, ok := value.([]interface{})
		return ok
	default:
		return true
	}
}
