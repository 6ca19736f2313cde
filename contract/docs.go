package contract

import (
	"reflect"

	"github.com/invopop/jsonschema"
)

// kindSchemaTypes maps each registered kind to the Go type its typed value
// parses into, so RenderJSONSchemaDoc can reflect a documentation schema
// without callers needing to know the concrete type up front.
var kindSchemaTypes = map[string]reflect.Type{
	KindFundamentalFinancialReports: reflect.TypeOf(FinancialReports{}),
	KindNewsItemsList:               reflect.TypeOf(NewsItemsList{}),
	KindTechnicalFullReport:         reflect.TypeOf(TechnicalFullReport{}),
	KindDebateVerdict:               reflect.TypeOf(DebateVerdict{}),
}

// RenderJSONSchemaDoc reflects kind's typed Go representation into a
// JSON-Schema document for the artifact introspection HTTP surface. This is
// documentation only — validation always runs through Validate against the
// hand-authored Schema, never against this reflected document, so a
// reflection quirk here can never let an invalid artifact through.
func RenderJSONSchemaDoc(kind string) (*jsonschema.Schema, error) {
	typ, known := kindSchemaTypes[kind]
	if !known {
		return nil, ErrUnknownKind
	}
	reflector := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	return reflector.ReflectFromType(typ), nil
}
