package contract

import (
	"fmt"
)

// FieldType enumerates the shapes a Schema field can take: primitives,
// enumerations, sum types, sequences, mappings, and the composite
// TraceableField.
type FieldType int

const (
	FieldString FieldType = iota
	FieldNumber
	FieldBool
	FieldEnum
	FieldSum
	FieldSequence
	FieldMapping
	FieldObject
	FieldTraceable
)

// FieldSchema describes one field of a registered Schema. Validation is
// fail-fast and path-accurate: the first violation found aborts with a
// SchemaViolation naming the exact path, never a best-effort partial parse.
type FieldSchema struct {
	Type     FieldType
	Required bool
	Nullable bool

	// Enum lists the closed set of accepted string values for FieldEnum.
	Enum []string

	// Min/Max bound FieldNumber values when non-nil.
	Min, Max *float64

	// Element describes the element schema for FieldSequence.
	Element *FieldSchema

	// MapValue describes the value schema for FieldMapping (keys are always
	// plain strings, matching JSON object semantics).
	MapValue *FieldSchema

	// Object describes the nested schema for FieldObject.
	Object *Schema

	// DiscriminatorTag names the field used to select a SumVariants entry
	// for FieldSum. Unknown discriminator values fail — there is no
	// fallback variant.
	DiscriminatorTag string
	SumVariants      map[string]*Schema
}

// Schema is a named, versioned record shape: a fixed set of required and
// optional fields, each with its own FieldSchema. Schema is the unit
// (kind, version) maps to in the Registry.
type Schema struct {
	// Fields maps field name to its FieldSchema.
	Fields map[string]*FieldSchema

	// Passthrough allows unknown *optional* fields to be silently dropped.
	// Unknown fields are never an error when Passthrough is true; when
	// false, an unrecognized field key is a SchemaViolation. Required
	// discriminators are never subject to passthrough — an unrecognized
	// required field is always fatal regardless of this flag.
	Passthrough bool
}

// SchemaViolation reports exactly where and why validation failed.
type SchemaViolation struct {
	Path   string
	Reason string
}

func (e *SchemaViolation) Error() string {
	return fmt.Sprintf("schema violation at %s: %s", e.Path, e.Reason)
}

// TraceableField is the composite value+provenance+source+confidence shape
// used for fields whose origin must be auditable (e.g. a fundamental-report
// figure with its filing citation).
type TraceableField struct {
	Value      any     `json:"value"`
	Provenance string  `json:"provenance"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
}

// Validate checks value against schema, returning the first SchemaViolation
// encountered (depth-first, field declaration order is not guaranteed —
// path strings make every violation reproducible regardless of order).
//
// Validate never coerces: a string where a number is expected, a missing
// required field, or an enum value outside the closed set are all failures,
// never best-effort acceptance.
func Validate(schema *Schema, value map[string]any, path string) error {
	for name, field := range schema.Fields {
		fieldPath := path + "." + name
		raw, present := value[name]
		if !present || raw == nil {
			if field.Required && !field.Nullable {
				return &SchemaViolation{Path: fieldPath, Reason: "required field missing"}
			}
			continue
		}
		if err := validateField(field, raw, fieldPath); err != nil {
			return err
		}
	}

	if !schema.Passthrough {
		for name := range value {
			if _, known := schema.Fields[name]; !known {
				return &SchemaViolation{Path: path + "." + name, Reason: "unknown field (passthrough disabled)"}
			}
		}
	}

	return nil
}

func validateField(field *FieldSchema, raw any, path string) error {
	switch field.Type {
	case FieldString:
		if _, ok := raw.(string); !ok {
			return &SchemaViolation{Path: path, Reason: "expected string"}
		}
	case FieldNumber:
		n, ok := toFloat(raw)
		if !ok {
			return &SchemaViolation{Path: path, Reason: "expected number"}
		}
		if field.Min != nil && n < *field.Min {
			return &SchemaViolation{Path: path, Reason: fmt.Sprintf("value %v below minimum %v", n, *field.Min)}
		}
		if field.Max != nil && n > *field.Max {
			return &SchemaViolation{Path: path, Reason: fmt.Sprintf("value %v above maximum %v", n, *field.Max)}
		}
	case FieldBool:
		if _, ok := raw.(bool); !ok {
			return &SchemaViolation{Path: path, Reason: "expected bool"}
		}
	case FieldEnum:
		s, ok := raw.(string)
		if !ok {
			return &SchemaViolation{Path: path, Reason: "expected string enum value"}
		}
		if !contains(field.Enum, s) {
			return &SchemaViolation{Path: path, Reason: fmt.Sprintf("value %q not in enum %v", s, field.Enum)}
		}
	case FieldSequence:
		seq, ok := raw.([]any)
		if !ok {
			return &SchemaViolation{Path: path, Reason: "expected sequence"}
		}
		for i, elem := range seq {
			if err := validateField(field.Element, elem, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	case FieldMapping:
		m, ok := raw.(map[string]any)
		if !ok {
			return &SchemaViolation{Path: path, Reason: "expected mapping"}
		}
		for k, v := range m {
			if err := validateField(field.MapValue, v, path+"."+k); err != nil {
				return err
			}
		}
	case FieldObject:
		m, ok := raw.(map[string]any)
		if !ok {
			return &SchemaViolation{Path: path, Reason: "expected object"}
		}
		return Validate(field.Object, m, path)
	case FieldSum:
		m, ok := raw.(map[string]any)
		if !ok {
			return &SchemaViolation{Path: path, Reason: "expected discriminated object"}
		}
		tagRaw, present := m[field.DiscriminatorTag]
		if !present {
			return &SchemaViolation{Path: path + "." + field.DiscriminatorTag, Reason: "missing discriminator"}
		}
		tag, ok := tagRaw.(string)
		if !ok {
			return &SchemaViolation{Path: path + "." + field.DiscriminatorTag, Reason: "discriminator must be a string"}
		}
		variant, known := field.SumVariants[tag]
		if !known {
			return &SchemaViolation{Path: path + "." + field.DiscriminatorTag, Reason: fmt.Sprintf("unknown discriminator %q", tag)}
		}
		return Validate(variant, m, path)
	case FieldTraceable:
		m, ok := raw.(map[string]any)
		if !ok {
			return &SchemaViolation{Path: path, Reason: "expected traceable field object"}
		}
		for _, req := range []string{"value", "provenance", "source", "confidence"} {
			if _, present := m[req]; !present {
				return &SchemaViolation{Path: path + "." + req, Reason: "required field missing"}
			}
		}
		if _, ok := toFloat(m["confidence"]); !ok {
			return &SchemaViolation{Path: path + ".confidence", Reason: "expected number"}
		}
	default:
		return &SchemaViolation{Path: path, Reason: "unrecognized field type"}
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
