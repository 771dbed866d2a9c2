/*
fields.go - Schema-driven entities with validated fields

PURPOSE:
  Every row type of the shop (consumer, product, purchase, ...) is an Entity
  bound to a Schema. The schema is the fixed registry of field names the
  entity recognises, each with an ordered validator chain. Set() runs the
  chain on every assignment; a value that fails is never stored.

UNSET VS INVALID:
  Reading a field that was never set yields None, not an error, so callers
  can tell "not provided" apart from "provided but invalid". Reading a name
  the schema does not know fails with ErrUnknownField.

COERCION:
  Request payloads decode numbers as json.Number and dates as strings.
  Before validation, Set() converts integral numbers to int64 for int fields
  and RFC3339 strings to time.Time for time fields. Anything else is left
  as is and rejected by the type validator.

SEE ALSO:
  - validators.go: The validator building blocks
  - entities.go: The concrete schemas
*/
package shop

import (
	"encoding/json"
	"math"
	"sort"
	"time"
)

// =============================================================================
// OPT - explicit "absent" marker
// =============================================================================

// Opt holds either a value or nothing.
type Opt[T any] struct {
	val T
	ok  bool
}

func Some[T any](v T) Opt[T] { return Opt[T]{val: v, ok: true} }
func None[T any]() Opt[T]    { return Opt[T]{} }

func (o Opt[T]) Get() (T, bool) { return o.val, o.ok }
func (o Opt[T]) IsSet() bool    { return o.ok }

// OrElse returns the value or d when absent.
func (o Opt[T]) OrElse(d T) T {
	if o.ok {
		return o.val
	}
	return d
}

// =============================================================================
// SCHEMA
// =============================================================================

// Kind is the storage type of a field.
type Kind int

const (
	KindInt Kind = iota
	KindString
	KindBool
	KindTime
)

func (k Kind) validator() Validator {
	switch k {
	case KindInt:
		return IsInt
	case KindBool:
		return IsBool
	case KindTime:
		return IsTime
	default:
		return IsString
	}
}

func (k Kind) coerce(v any) any {
	switch k {
	case KindInt:
		switch n := v.(type) {
		case int:
			return int64(n)
		case int32:
			return int64(n)
		case json.Number:
			if i, err := n.Int64(); err == nil {
				return i
			}
		case float64:
			if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
				return int64(n)
			}
		}
	case KindTime:
		if s, ok := v.(string); ok {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				return t.UTC()
			}
		}
	}
	return v
}

// FieldSpec declares one field of a schema.
type FieldSpec struct {
	Name       string
	Kind       Kind
	Validators []Validator
}

// Field declares a mandatory-typed field: nil is rejected as a wrong type.
func Field(name string, kind Kind, vs ...Validator) FieldSpec {
	return FieldSpec{Name: name, Kind: kind, Validators: append([]Validator{kind.validator()}, vs...)}
}

// OptionalField declares a field that may be cleared with nil.
func OptionalField(name string, kind Kind, vs ...Validator) FieldSpec {
	chain := append([]Validator{kind.validator()}, vs...)
	return FieldSpec{Name: name, Kind: kind, Validators: []Validator{Optional(chain...)}}
}

// Schema is the registry of recognised fields of one table.
type Schema struct {
	table  string
	order  []string
	fields map[string]FieldSpec
}

func NewSchema(table string, specs ...FieldSpec) *Schema {
	s := &Schema{table: table, fields: make(map[string]FieldSpec, len(specs))}
	for _, spec := range specs {
		s.order = append(s.order, spec.Name)
		s.fields[spec.Name] = spec
	}
	return s
}

func (s *Schema) Table() string { return s.table }

// Has reports whether name is a recognised field.
func (s *Schema) Has(name string) bool {
	_, ok := s.fields[name]
	return ok
}

// Names returns all field names in declaration order.
func (s *Schema) Names() []string {
	return append([]string(nil), s.order...)
}

// =============================================================================
// ENTITY
// =============================================================================

// Record is implemented by every entity kind.
type Record interface {
	Schema() *Schema
	Set(name string, v any) error
	Get(name string) (Opt[any], error)
	Value(name string) any
	IsSet(name string) bool
	Fields() []string
	Int(name string) Opt[int64]
	Fill(m map[string]any) error
	entity() *Entity
}

// Entity is a set of validated field values bound to a schema.
type Entity struct {
	schema *Schema
	values map[string]any
}

func newEntity(s *Schema) Entity {
	return Entity{schema: s, values: make(map[string]any)}
}

func (e *Entity) Schema() *Schema { return e.schema }

func (e *Entity) entity() *Entity { return e }

// Set validates v and stores it. Nil on an optional field clears it.
func (e *Entity) Set(name string, v any) error {
	spec, ok := e.schema.fields[name]
	if !ok {
		return fieldError(ErrUnknownField, name, nil)
	}
	v = spec.Kind.coerce(v)
	for _, validate := range spec.Validators {
		if err := validate(name, v); err != nil {
			return err
		}
	}
	if v == nil {
		delete(e.values, name)
		return nil
	}
	e.values[name] = v
	return nil
}

// Unset removes a field value.
func (e *Entity) Unset(name string) {
	delete(e.values, name)
}

// Get returns the field value or None when it was never set.
func (e *Entity) Get(name string) (Opt[any], error) {
	if !e.schema.Has(name) {
		return None[any](), fieldError(ErrUnknownField, name, nil)
	}
	v, ok := e.values[name]
	if !ok {
		return None[any](), nil
	}
	return Some(v), nil
}

// Value returns the raw value, nil when unset or unknown.
func (e *Entity) Value(name string) any {
	return e.values[name]
}

func (e *Entity) IsSet(name string) bool {
	_, ok := e.values[name]
	return ok
}

// Fields returns the names of all set fields in schema order.
func (e *Entity) Fields() []string {
	var names []string
	for _, name := range e.schema.order {
		if _, ok := e.values[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

func (e *Entity) Int(name string) Opt[int64] {
	if v, ok := e.values[name].(int64); ok {
		return Some(v)
	}
	return None[int64]()
}

func (e *Entity) Str(name string) Opt[string] {
	if v, ok := e.values[name].(string); ok {
		return Some(v)
	}
	return None[string]()
}

func (e *Entity) Bool(name string) Opt[bool] {
	if v, ok := e.values[name].(bool); ok {
		return Some(v)
	}
	return None[bool]()
}

func (e *Entity) Time(name string) Opt[time.Time] {
	if v, ok := e.values[name].(time.Time); ok {
		return Some(v)
	}
	return None[time.Time]()
}

// Fill sets every entry of m. Keys are applied in sorted order so the
// first reported error does not depend on map iteration.
func (e *Entity) Fill(m map[string]any) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := e.Set(k, m[k]); err != nil {
			return err
		}
	}
	return nil
}

// MarshalJSON renders the set fields as an object.
func (e *Entity) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.values)
}
