package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Type is one node of a parsed format hint.
type Type interface {
	// Name renders the type back as a hint. Parse(t.Name()) yields an equal type.
	Name() string
	// Validate checks that value already has this shape.
	Validate(value any) error
	// Coerce converts value to this shape or reports why it cannot.
	Coerce(value any) (any, error)
}

// IntType accepts whole numbers. Coerce yields int64.
type IntType struct{}

func (t *IntType) Name() string { return "int" }

func (t *IntType) Validate(value any) error {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return nil
	case float64:
		// JSON decoding yields float64 for every number.
		if v == math.Trunc(v) {
			return nil
		}
		return fmt.Errorf("expected int, got float (not a whole number)")
	default:
		return fmt.Errorf("expected int, got %T", value)
	}
}

func (t *IntType) Coerce(value any) (any, error) {
	switch v := value.(type) {
	case string:
		s := cleanNumber(v)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("expected int, got %q", v)
		}
		value = f
	case json.Number:
		return t.Coerce(v.String())
	}
	if err := t.Validate(value); err != nil {
		return nil, err
	}
	return toInt64(value), nil
}

// FloatType accepts any number. Coerce yields float64.
type FloatType struct{}

func (t *FloatType) Name() string { return "float" }

func (t *FloatType) Validate(value any) error {
	switch value.(type) {
	case float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return nil
	default:
		return fmt.Errorf("expected float, got %T", value)
	}
}

func (t *FloatType) Coerce(value any) (any, error) {
	switch v := value.(type) {
	case string:
		f, err := strconv.ParseFloat(cleanNumber(v), 64)
		if err != nil {
			return nil, fmt.Errorf("expected float, got %q", v)
		}
		return f, nil
	case json.Number:
		return v.Float64()
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	}
	if err := t.Validate(value); err != nil {
		return nil, err
	}
	return float64(toInt64(value)), nil
}

// StringType accepts text. Coerce formats scalars.
type StringType struct{}

func (t *StringType) Name() string { return "str" }

func (t *StringType) Validate(value any) error {
	if _, ok := value.(string); !ok {
		return fmt.Errorf("expected string, got %T", value)
	}
	return nil
}

func (t *StringType) Coerce(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case nil:
		return nil, fmt.Errorf("expected string, got nil")
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	default:
		return fmt.Sprint(v), nil
	}
}

// BoolType accepts booleans.
type BoolType struct{}

func (t *BoolType) Name() string { return "bool" }

func (t *BoolType) Validate(value any) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("expected bool, got %T", value)
	}
	return nil
}

func (t *BoolType) Coerce(value any) (any, error) {
	if s, ok := value.(string); ok {
		b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(s)))
		if err != nil {
			return nil, fmt.Errorf("expected bool, got %q", s)
		}
		return b, nil
	}
	if err := t.Validate(value); err != nil {
		return nil, err
	}
	return value, nil
}

// ListType accepts sequences whose elements all match one type.
type ListType struct {
	elemType Type
}

func (t *ListType) Name() string {
	return fmt.Sprintf("list[%s]", t.elemType.Name())
}

// Elem returns the element type.
func (t *ListType) Elem() Type { return t.elemType }

func (t *ListType) Validate(value any) error {
	items, ok := value.([]any)
	if !ok {
		return fmt.Errorf("expected list, got %T", value)
	}
	for i, item := range items {
		if err := t.elemType.Validate(item); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

func (t *ListType) Coerce(value any) (any, error) {
	value, err := decodeJSONText(value)
	if err != nil {
		return nil, err
	}
	items, ok := value.([]any)
	if !ok {
		if value == nil {
			return nil, fmt.Errorf("expected list, got nil")
		}
		// A lone element is promoted to a one-element list.
		items = []any{value}
	}
	out := make([]any, len(items))
	for i, item := range items {
		v, err := t.elemType.Coerce(item)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// ObjectType accepts maps with the declared fields, in declaration order.
type ObjectType struct {
	fields []Field
}

// Field is one key of an object hint.
type Field struct {
	Key  string
	Type Type
}

func (t *ObjectType) Name() string {
	parts := make([]string, len(t.fields))
	for i, f := range t.fields {
		parts[i] = f.Key + ":" + f.Type.Name()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Fields returns the declared fields.
func (t *ObjectType) Fields() []Field {
	return append([]Field(nil), t.fields...)
}

func (t *ObjectType) Validate(value any) error {
	m, ok := value.(map[string]any)
	if !ok {
		return fmt.Errorf("expected object, got %T", value)
	}
	return Validate(t.schema(), m)
}

// Coerce keeps only the declared fields. Every declared field must be present.
func (t *ObjectType) Coerce(value any) (any, error) {
	value, err := decodeJSONText(value)
	if err != nil {
		return nil, err
	}
	if items, ok := value.([]any); ok && len(items) == 1 {
		value = items[0]
	}
	m, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected object, got %T", value)
	}

	out := make(map[string]any, len(t.fields))
	var errs []error
	for _, f := range t.fields {
		raw, exists := m[f.Key]
		if !exists {
			errs = append(errs, &ValidationError{Key: f.Key, Reason: "required"})
			continue
		}
		v, err := f.Type.Coerce(raw)
		if err != nil {
			errs = append(errs, &ValidationError{Key: f.Key, Reason: err.Error(), Value: raw})
			continue
		}
		out[f.Key] = v
	}
	if len(errs) > 0 {
		return nil, &AggregateError{Errors: errs}
	}
	return out, nil
}

func (t *ObjectType) schema() Schema {
	s := make(Schema, len(t.fields))
	for _, f := range t.fields {
		s[f.Key] = f.Type
	}
	return s
}

// --- Factory Functions ---

func Int() Type    { return &IntType{} }
func Float() Type  { return &FloatType{} }
func String() Type { return &StringType{} }
func Bool() Type   { return &BoolType{} }

// List creates a list type for elements of the given type.
func List(elemType Type) Type {
	return &ListType{elemType: elemType}
}

// Object creates an object type with the fields in the given order.
func Object(fields ...Field) Type {
	return &ObjectType{fields: fields}
}

func toInt64(value any) int64 {
	switch v := value.(type) {
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case uint:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// cleanNumber strips whitespace, thousands separators, currency and percent signs.
func cleanNumber(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer(",", "", "$", "", "%", "", " ", "").Replace(s)
	return s
}

func decodeJSONText(value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}
	var v any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &v); err != nil {
		return nil, fmt.Errorf("expected JSON text, got %q", s)
	}
	return v, nil
}
