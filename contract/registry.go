// Package contract implements the typed contract registry: a closed,
// versioned set of (kind, version) record shapes that every cross-agent
// artifact must conform to before it is allowed onto the bus. Parsing is
// strict and fail-fast — callers get a typed value or a precise error,
// never a partially-populated struct.
package contract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// ParserFunc turns a validated, schema-conformant map into the kind's typed
// Go representation.
type ParserFunc func(data map[string]any) (any, error)

// SerializerFunc turns a typed Go value back into its canonical map
// representation, ready for schema validation and JSON encoding.
type SerializerFunc func(value any) (map[string]any, error)

// ErrUnknownKind is returned when no schema is registered for a kind.
var ErrUnknownKind = fmt.Errorf("contract: unknown kind")

// ErrUnknownVersion is returned when kind is known but version is not.
var ErrUnknownVersion = fmt.Errorf("contract: unknown version")

// ErrUnauthorizedConsumption is returned by RequireConsumption when consumer
// has no declared right to read kind produced by producer.
var ErrUnauthorizedConsumption = fmt.Errorf("contract: unauthorized consumption")

type registryKey struct {
	kind    string
	version string
}

type entry struct {
	schema      *Schema
	parser      ParserFunc
	serializer  SerializerFunc
	excludeNone bool
}

// Registry is the process-wide map from (kind, version) to schema, parser,
// and serializer, plus the closed consumer/producer authorization table.
// A Registry is safe for concurrent use after construction; Register is
// expected to run during startup wiring, before Parse/Serialize traffic
// begins.
type Registry struct {
	mu          sync.RWMutex
	entries     map[registryKey]*entry
	consumption map[string]map[string]bool // "consumer|producer" -> set of allowed kinds
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		entries:     make(map[registryKey]*entry),
		consumption: make(map[string]map[string]bool),
	}
}

// RegisterOption customizes a Register call.
type RegisterOption func(*entry)

// WithExcludeNone controls whether Serialize drops nil-valued optional
// fields from the canonical JSON output for this kind. Defaults to true.
func WithExcludeNone(exclude bool) RegisterOption {
	return func(e *entry) { e.excludeNone = exclude }
}

// Register binds a (kind, version) pair to its schema, parser, and
// serializer. Registering the same pair twice is a startup-time
// configuration error, reported here rather than panicking so callers can
// decide how to fail.
func (r *Registry) Register(kind, version string, schema *Schema, parser ParserFunc, serializer SerializerFunc, opts ...RegisterOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := registryKey{kind, version}
	if _, exists := r.entries[key]; exists {
		return fmt.Errorf("contract: kind %q version %q already registered", kind, version)
	}

	e := &entry{schema: schema, parser: parser, serializer: serializer, excludeNone: true}
	for _, opt := range opts {
		opt(e)
	}
	r.entries[key] = e
	return nil
}

// MustRegister calls Register and panics on error. NewDefaultRegistry uses
// it to wire in the built-in kinds — a duplicate registration there is a
// programming error, not a runtime condition to recover from.
func (r *Registry) MustRegister(kind, version string, schema *Schema, parser ParserFunc, serializer SerializerFunc, opts ...RegisterOption) {
	if err := r.Register(kind, version, schema, parser, serializer, opts...); err != nil {
		panic(err)
	}
}

// Parse validates raw JSON against the (kind, version) schema and, on
// success, invokes the registered parser to produce a typed value. Any
// schema violation is returned verbatim as a *SchemaViolation so callers
// can report the exact offending path.
func (r *Registry) Parse(kind, version string, raw []byte) (any, error) {
	e, err := r.lookup(kind, version)
	if err != nil {
		return nil, err
	}

	var data map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("contract: decode %s/%s: %w", kind, version, err)
	}
	normalizeNumbers(data)

	if err := Validate(e.schema, data, fmt.Sprintf("%s/%s", kind, version)); err != nil {
		return nil, err
	}

	return e.parser(data)
}

// Serialize converts value back into its canonical map form using the
// registered serializer, applying the kind's exclude_none policy.
func (r *Registry) Serialize(kind, version string, value any) (map[string]any, error) {
	e, err := r.lookup(kind, version)
	if err != nil {
		return nil, err
	}

	data, err := e.serializer(value)
	if err != nil {
		return nil, fmt.Errorf("contract: serialize %s/%s: %w", kind, version, err)
	}
	if e.excludeNone {
		stripNil(data)
	}
	if err := Validate(e.schema, data, fmt.Sprintf("%s/%s", kind, version)); err != nil {
		return nil, fmt.Errorf("contract: serializer produced invalid %s/%s: %w", kind, version, err)
	}
	return data, nil
}

// Schema returns the registered schema for (kind, version), for callers
// that need to render documentation or a JSON-Schema view without parsing
// a concrete value.
func (r *Registry) Schema(kind, version string) (*Schema, error) {
	e, err := r.lookup(kind, version)
	if err != nil {
		return nil, err
	}
	return e.schema, nil
}

func (r *Registry) lookup(kind, version string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	found := false
	for key := range r.entries {
		if key.kind == kind {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	e, exists := r.entries[registryKey{kind, version}]
	if !exists {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownVersion, kind, version)
	}
	return e, nil
}

// AllowConsumption declares that agent consumer may read artifacts of kind
// produced by agent producer. The authorization table is closed: any pair
// not declared here is rejected by RequireConsumption.
func (r *Registry) AllowConsumption(consumer, producer, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := consumer + "|" + producer
	if r.consumption[key] == nil {
		r.consumption[key] = make(map[string]bool)
	}
	r.consumption[key][kind] = true
}

// AllowedConsumptionKinds returns the set of kinds consumer is authorized to
// read from producer.
func (r *Registry) AllowedConsumptionKinds(consumer, producer string) map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]bool)
	for k := range r.consumption[consumer+"|"+producer] {
		out[k] = true
	}
	return out
}

// RequireConsumption returns ErrUnauthorizedConsumption if consumer has no
// declared right to read kind produced by producer.
func (r *Registry) RequireConsumption(consumer, producer, kind string) error {
	if r.AllowedConsumptionKinds(consumer, producer)[kind] {
		return nil
	}
	return fmt.Errorf("%w: %s reading %s from %s", ErrUnauthorizedConsumption, consumer, kind, producer)
}

// RegisteredKinds lists every (kind, version) pair currently registered, in
// deterministic sorted order — used by diagnostics and the schema-document
// HTTP surface.
func (r *Registry) RegisteredKinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for key := range r.entries {
		out = append(out, key.kind+"/"+key.version)
	}
	sort.Strings(out)
	return out
}

func stripNil(m map[string]any) {
	for k, v := range m {
		if v == nil {
			delete(m, k)
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			stripNil(nested)
		}
	}
}

func normalizeNumbers(v any) {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if num, ok := val.(json.Number); ok {
				f, _ := num.Float64()
				t[k] = f
			} else {
				normalizeNumbers(val)
			}
		}
	case []any:
		for i, val := range t {
			if num, ok := val.(json.Number); ok {
				f, _ := num.Float64()
				t[i] = f
			} else {
				normalizeNumbers(val)
			}
		}
	}
}
