package modify

import (
	"fmt"
	"strconv"

	"github.com/fieldgraph/gateway/bind"
	"github.com/fieldgraph/gateway/schema"
)

// ValidateVariables checks every declared variable's runtime value
// against its declared type (spec section 4.5): wrapping is enforced
// recursively through list/non-null layers, missing non-null values
// without a default error, and @oneOf input objects must set exactly
// one field. Scalar/enum literal coercion beyond presence and shape is
// left to the subgraph that ultimately receives the value — the
// gateway's obligation is request-shape validation, not duplicating
// every custom scalar's parse logic.
func ValidateVariables(view *schema.View, defs map[string]*bind.VariableDefinition, raw map[string]interface{}) (Variables, error) {
	out := make(Variables, len(defs))
	for name, def := range defs {
		val, present := raw[name]
		if !present {
			if def.Default != nil {
				out[name] = literalToGo(def.Default)
				continue
			}
			if def.Type.NonNull {
				return nil, &VariableError{Name: name, Detail: "missing required variable"}
			}
			out[name] = nil
			continue
		}
		coerced, err := coerceValue(view, def.Type, val, name)
		if err != nil {
			return nil, err
		}
		out[name] = coerced
	}
	return out, nil
}

func coerceValue(view *schema.View, t *schema.TypeRef, val interface{}, path string) (interface{}, error) {
	if val == nil {
		if t.NonNull {
			return nil, &VariableError{Name: path, Detail: fmt.Sprintf("null for non-null type %s", t.String())}
		}
		return nil, nil
	}

	if t.List != nil {
		arr, ok := val.([]interface{})
		if !ok {
			return nil, &VariableError{Name: path, Detail: "expected a list"}
		}
		out := make([]interface{}, len(arr))
		for i, item := range arr {
			c, err := coerceValue(view, t.List, item, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	}

	def := view.Definition(t.Name)
	if def != nil && def.Kind == schema.KindInputObject {
		obj, ok := val.(map[string]interface{})
		if !ok {
			return nil, &VariableError{Name: path, Detail: fmt.Sprintf("expected an object for input type %s", t.Name)}
		}
		if err := validateInputObject(view, def, obj, path); err != nil {
			return nil, err
		}
	}

	return val, nil
}

func validateInputObject(view *schema.View, def *schema.Definition, obj map[string]interface{}, path string) error {
	set := 0
	for fieldName, fieldType := range def.InputFields {
		v, present := obj[fieldName]
		if !present || v == nil {
			if fieldType.NonNull && !def.OneOf {
				return &VariableError{Name: path, Detail: fmt.Sprintf("missing required field %q of input type %s", fieldName, def.Name)}
			}
			continue
		}
		set++
		if _, err := coerceValue(view, fieldType, v, path+"."+fieldName); err != nil {
			return err
		}
	}
	if def.OneOf && set != 1 {
		return &VariableError{Name: path, Detail: fmt.Sprintf("exactly one field of @oneOf input type %s must be set, got %d", def.Name, set)}
	}
	return nil
}

// literalToGo converts a bind.Value (captured off the AST for default
// values) into a plain Go value, so a default behaves identically to a
// supplied one from this point on.
func literalToGo(v *bind.Value) interface{} {
	if v == nil {
		return nil
	}
	switch v.Kind {
	case bind.ValueNull:
		return nil
	case bind.ValueBoolean:
		return v.Raw == "true"
	case bind.ValueInt, bind.ValueFloat:
		if f, err := strconv.ParseFloat(v.Raw, 64); err == nil {
			return f
		}
		return v.Raw
	case bind.ValueList:
		out := make([]interface{}, len(v.Items))
		for i, item := range v.Items {
			out[i] = literalToGo(item)
		}
		return out
	case bind.ValueObject:
		out := make(map[string]interface{}, len(v.Children))
		for _, c := range v.Children {
			out[c.Name] = literalToGo(c.Value)
		}
		return out
	default:
		return v.Raw
	}
}
