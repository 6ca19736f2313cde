package interrupt

import (
	"errors"
	"fmt"
)

// ValidationError names the exact payload field that failed, mirroring the
// {loc, msg, type} shape used across the HTTP error surface.
type ValidationError struct {
	Loc  string
	Msg  string
	Type string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Loc, e.Msg)
}

// ErrInvalidResumePayload wraps every ValidationError raised by
// ValidateResume.
var ErrInvalidResumePayload = errors.New("interrupt: invalid resume payload")

// ValidateResume checks payload against req.Schema: every required property
// must be present, enumerated properties must match one of the schema's
// oneOf consts exactly, and types must match. Validation never coerces —
// a string "1" does not satisfy a number property.
func ValidateResume(req Request, payload map[string]any) error {
	for _, name := range req.Schema.Required {
		if _, present := payload[name]; !present {
			return joinInvalid(&ValidationError{Loc: name, Msg: "required field missing", Type: "missing"})
		}
	}

	for name, prop := range req.Schema.Properties {
		raw, present := payload[name]
		if !present {
			continue
		}
		if err := validateProp(name, prop, raw); err != nil {
			return err
		}
	}

	return nil
}

func validateProp(name string, prop PropSchema, raw any) error {
	if len(prop.OneOf) > 0 {
		s, ok := raw.(string)
		if !ok {
			return joinInvalid(&ValidationError{Loc: name, Msg: "expected string enum value", Type: "type_error"})
		}
		for _, entry := range prop.OneOf {
			if entry.Const == s {
				return nil
			}
		}
		return joinInvalid(&ValidationError{Loc: name, Msg: fmt.Sprintf("value %q not among allowed options", s), Type: "enum_error"})
	}

	if len(prop.Enum) > 0 {
		s, ok := raw.(string)
		if !ok {
			return joinInvalid(&ValidationError{Loc: name, Msg: "expected string enum value", Type: "type_error"})
		}
		for _, v := range prop.Enum {
			if v == s {
				return nil
			}
		}
		return joinInvalid(&ValidationError{Loc: name, Msg: fmt.Sprintf("value %q not in enum %v", s, prop.Enum), Type: "enum_error"})
	}

	switch prop.Type {
	case "string":
		if _, ok := raw.(string); !ok {
			return joinInvalid(&ValidationError{Loc: name, Msg: "expected string", Type: "type_error"})
		}
	case "number", "integer":
		switch raw.(type) {
		case float64, float32, int, int64:
		default:
			return joinInvalid(&ValidationError{Loc: name, Msg: "expected number", Type: "type_error"})
		}
	case "boolean":
		if _, ok := raw.(bool); !ok {
			return joinInvalid(&ValidationError{Loc: name, Msg: "expected boolean", Type: "type_error"})
		}
	}

	return nil
}

func joinInvalid(ve *ValidationError) error {
	return fmt.Errorf("%w: %w", ErrInvalidResumePayload, ve)
}
