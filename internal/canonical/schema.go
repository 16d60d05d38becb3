// Package canonical validates and normalizes listing payloads against a
// versioned schema, and computes the stable content hash that downstream
// components use to detect material change.
package canonical

import "fmt"

// ListingSchema and ListingSchemaVersion identify the one canonical schema this hub
// ships. A process-wide registry keyed by (schema, version) is kept so a
// future schema bump does not require touching every caller.
const (
	ListingSchema        = "canonical.listing"
	ListingSchemaVersion = "1.0"
)

// ValidationError is one structured constraint violation, returned as a
// list so callers can report every failure at once rather than one at a
// time.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ErrSchemaNotSupported is returned when (schema, version) has no
// registered validator.
type ErrSchemaNotSupported struct {
	Schema  string
	Version string
}

func (e ErrSchemaNotSupported) Error() string {
	return fmt.Sprintf("schema_not_supported: %s@%s", e.Schema, e.Version)
}

// Result is the outcome of Validate: a normalized payload and its stable
// content hash, or a structured error list.
type Result struct {
	Normalized  map[string]any
	ContentHash string
	Errors      []ValidationError
}

// OK reports whether the payload validated cleanly.
func (r Result) OK() bool { return len(r.Errors) == 0 }

// Validator validates and normalizes a payload against one schema version.
type Validator interface {
	Schema() string
	Version() string
	Validate(payload map[string]any) Result
}

// Registry resolves (schema, version) to a Validator. It is populated once
// at process start and read-only thereafter — the same global-registry
// pattern used for the Adapter and Connector registries.
type Registry struct {
	validators map[string]Validator
}

func NewRegistry() *Registry {
	return &Registry{validators: make(map[string]Validator)}
}

func (r *Registry) Register(v Validator) {
	r.validators[key(v.Schema(), v.Version())] = v
}

func (r *Registry) Resolve(schema, version string) (Validator, error) {
	v, ok := r.validators[key(schema, version)]
	if !ok {
		return nil, ErrSchemaNotSupported{Schema: schema, Version: version}
	}
	return v, nil
}

func key(schema, version string) string { return schema + "@" + version }
