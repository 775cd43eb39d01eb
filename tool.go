package tokentab

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

const tagKey = "tokentab"

// Tool is a named operation the model can invoke with JSON arguments.
// Parameters describes the argument object as JSON Schema.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Call(ctx context.Context, args json.RawMessage) (string, error)
}

// FuncTool adapts a Go function to a Tool. The argument schema is derived
// from A's struct tags at construction time.
type FuncTool[A any] struct {
	name        string
	description string
	meta        *argsMeta
	fn          func(ctx context.Context, args A) (string, error)
}

// NewTool wraps fn as a Tool. A must be a struct; fields tagged
// `tokentab:"<name>"` become schema properties, ",required" marks required
// arguments, and a `desc` tag supplies the property description.
func NewTool[A any](
	name, description string,
	fn func(ctx context.Context, args A) (string, error),
) (*FuncTool[A], error) {
	if name == "" {
		return nil, fmt.Errorf("tokentab: tool name is required")
	}
	meta, err := parseArgs[A]()
	if err != nil {
		return nil, fmt.Errorf("new tool %q: %w", name, err)
	}
	return &FuncTool[A]{
		name:        name,
		description: description,
		meta:        meta,
		fn:          fn,
	}, nil
}

// Name returns the tool name.
func (t *FuncTool[A]) Name() string { return t.name }

// Description returns the tool description.
func (t *FuncTool[A]) Description() string { return t.description }

// Parameters returns the derived JSON Schema of the argument object.
func (t *FuncTool[A]) Parameters() map[string]any { return t.meta.schema() }

// Call decodes the JSON arguments into A and invokes the wrapped function.
func (t *FuncTool[A]) Call(ctx context.Context, args json.RawMessage) (string, error) {
	decoded, err := decodeArgs[A](t.meta, args)
	if err != nil {
		return "", err
	}
	return t.fn(ctx, decoded)
}

// argsMeta holds parsed struct tag metadata, cached per FuncTool.
type argsMeta struct {
	typ    reflect.Type // struct type for reconstruction
	fields []argField
}

type argField struct {
	structIdx int
	name      string
	desc      string
	jsonType  string // "string", "integer", "number", "boolean"
	required  bool
}

// parseArgs reflects on A and extracts tokentab struct tag metadata.
func parseArgs[A any]() (*argsMeta, error) {
	var zero A
	t := reflect.TypeOf(zero)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("tokentab: tool argument type must be a struct, got %v", t)
	}

	meta := &argsMeta{typ: t}
	seen := make(map[string]bool)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get(tagKey)
		if tag == "" || tag == "-" {
			continue
		}
		if !f.IsExported() {
			return nil, fmt.Errorf("tokentab: tagged field %s must be exported", f.Name)
		}
		af, err := parseTag(i, f, tag)
		if err != nil {
			return nil, err
		}
		if seen[af.name] {
			return nil, fmt.Errorf("tokentab: duplicate argument %q on field %s", af.name, f.Name)
		}
		seen[af.name] = true
		meta.fields = append(meta.fields, af)
	}
	if len(meta.fields) == 0 {
		return nil, fmt.Errorf("tokentab: no tokentab-tagged fields in %s", t)
	}
	return meta, nil
}

// parseTag processes a single struct field's tokentab tag.
func parseTag(idx int, f reflect.StructField, tag string) (argField, error) {
	parts := strings.SplitN(tag, ",", 2)
	af := argField{
		structIdx: idx,
		name:      parts[0],
		desc:      f.Tag.Get("desc"),
	}
	if af.name == "" {
		return argField{}, fmt.Errorf("tokentab: empty argument name on field %s", f.Name)
	}
	if len(parts) == 2 {
		switch parts[1] {
		case "required":
			af.required = true
		case "":
		default:
			return argField{}, fmt.Errorf("tokentab: unknown modifier %q on field %s", parts[1], f.Name)
		}
	}

	jt, err := jsonTypeOf(f.Type)
	if err != nil {
		return argField{}, fmt.Errorf("tokentab: field %s: %w", f.Name, err)
	}
	af.jsonType = jt
	return af, nil
}

func jsonTypeOf(t reflect.Type) (string, error) {
	switch t.Kind() {
	case reflect.String:
		return "string", nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer", nil
	case reflect.Float32, reflect.Float64:
		return "number", nil
	case reflect.Bool:
		return "boolean", nil
	default:
		return "", fmt.Errorf("unsupported argument type %s", t.Kind())
	}
}

// schema builds the JSON Schema object sent to the provider.
func (m *argsMeta) schema() map[string]any {
	props := make(map[string]any, len(m.fields))
	var required []string
	for _, f := range m.fields {
		p := map[string]any{"type": f.jsonType}
		if f.desc != "" {
			p["description"] = f.desc
		}
		props[f.name] = p
		if f.required {
			required = append(required, f.name)
		}
	}
	s := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// decodeArgs converts raw JSON arguments to a typed A value using the
// schema metadata. Fields are matched by tag name, not json tags.
func decodeArgs[A any](m *argsMeta, raw json.RawMessage) (A, error) {
	var zero A

	values := make(map[string]any)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &values); err != nil {
			return zero, fmt.Errorf("decode arguments: %w", err)
		}
	}

	v := reflect.New(m.typ).Elem()
	for _, f := range m.fields {
		val, ok := values[f.name]
		if !ok || val == nil {
			if f.required {
				return zero, fmt.Errorf("missing required argument %q", f.name)
			}
			continue
		}
		if err := setArg(v.Field(f.structIdx), f, val); err != nil {
			return zero, err
		}
	}

	out, ok := v.Interface().(A)
	if !ok {
		return zero, fmt.Errorf("decode arguments: type assertion failed")
	}
	return out, nil
}

func setArg(v reflect.Value, f argField, val any) error {
	switch v.Kind() {
	case reflect.String:
		s, ok := val.(string)
		if !ok {
			return fmt.Errorf("argument %q: expected string, got %T", f.name, val)
		}
		v.SetString(s)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := val.(float64)
		if !ok {
			return fmt.Errorf("argument %q: expected number, got %T", f.name, val)
		}
		v.SetInt(int64(n))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, ok := val.(float64)
		if !ok {
			return fmt.Errorf("argument %q: expected number, got %T", f.name, val)
		}
		v.SetUint(uint64(n))
	case reflect.Float32, reflect.Float64:
		n, ok := val.(float64)
		if !ok {
			return fmt.Errorf("argument %q: expected number, got %T", f.name, val)
		}
		v.SetFloat(n)
	case reflect.Bool:
		b, ok := val.(bool)
		if !ok {
			return fmt.Errorf("argument %q: expected boolean, got %T", f.name, val)
		}
		v.SetBool(b)
	}
	return nil
}

// toolAdapter wraps a public Tool to satisfy the internal tool contract.
type toolAdapter struct {
	inner Tool
}

func (a *toolAdapter) Name() string               { return a.inner.Name() }
func (a *toolAdapter) Description() string        { return a.inner.Description() }
func (a *toolAdapter) Parameters() map[string]any { return a.inner.Parameters() }

func (a *toolAdapter) Call(ctx context.Context, args json.RawMessage) (string, error) {
	return a.inner.Call(ctx, args)
}
