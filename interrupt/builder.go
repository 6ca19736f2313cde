package interrupt

// NewEnumRequest builds a Request whose resume payload is a single
// enumerated property, the shape used by ticker-selection-style
// disambiguation interrupts. options maps each machine const to its
// display title, preserving order.
func NewEnumRequest(typ, title, description, propName string, options []OneOfEntry, data any) Request {
	enum := make([]string, 0, len(options))
	for _, o := range options {
		enum = append(enum, o.Const)
	}

	return Request{
		Type:        typ,
		Title:       title,
		Description: description,
		Data:        data,
		Schema: Schema{
			Type: "object",
			Properties: map[string]PropSchema{
				propName: {Type: "string", Enum: enum, OneOf: options},
			},
			Required: []string{propName},
		},
	}
}
