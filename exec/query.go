package exec

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/fieldgraph/gateway/bind"
	"github.com/fieldgraph/gateway/modify"
	"github.com/fieldgraph/gateway/plan"
	"github.com/fieldgraph/gateway/schema"
)

// planOperationName gives each subgraph round trip a stable, traceable
// operation name — useful on the subgraph side for logging/APM without
// the gateway needing to invent anything fancier.
func planOperationName(pl *plan.Plan) string {
	return fmt.Sprintf("Plan%d", pl.ID)
}

// buildRequestQuery renders one plan into GraphQL request text (spec
// section 6's subgraph transport contract). Top-level plans select
// fields directly off the operation's root type; plans that cross an
// entity boundary wrap their shapes in an
// `_entities(representations: $representations)` selection scoped to
// the plan's EntityType.
func buildRequestQuery(pl *plan.Plan, result *plan.Result, view *schema.View, op *bind.BoundOperation, vars modify.Variables, mods *modify.QueryModifications) string {
	name := planOperationName(pl)
	body := renderSelection(nil, pl.Root, result, view, op, vars, mods)

	if pl.ParentPlanID == -1 {
		return result.OperationKind.String() + " " + name + " " + body
	}

	return "query " + name + "($representations: [_Any!]!) { _entities(representations: $representations) { ... on " +
		pl.EntityType + " " + body + " } }"
}

// renderSelection renders one selection set: prefixFields (bare field
// names, used to inject "__typename" at object-returning positions)
// followed by every shape in order. A shape whose subselection crosses
// to a different subgraph (ChildPlanID >= 0) is never itself requested
// here — the owning subgraph has no resolver for it — but the entity's
// own @key (plus any @requires) fields that the handoff needs are
// folded into this same selection set instead, since the boundary
// lives on the enclosing entity, not on the field's own return type.
func renderSelection(prefixFields []string, shapes []*plan.Shape, result *plan.Result, view *schema.View, op *bind.BoundOperation, vars modify.Variables, mods *modify.QueryModifications) string {
	parts := append([]string(nil), prefixFields...)
	var handoffFields *schema.FieldSet
	for _, sh := range shapes {
		if mods.Suppressed(sh.ID) {
			continue
		}
		if sh.ChildPlanID >= 0 {
			if child := result.ByID(sh.ChildPlanID); child != nil {
				keys := view.KeyFieldSet(child.EntityType, child.Subgraph)
				handoffFields = mergeFieldSets(handoffFields, mergeFieldSets(keys, child.Requires))
			}
			continue
		}
		parts = append(parts, renderShapeField(sh, result, view, op, vars, mods))
	}
	if text := renderFieldSet(handoffFields); text != "" {
		parts = append(parts, text)
	}
	return "{ " + strings.Join(parts, " ") + " }"
}

func renderShapeField(sh *plan.Shape, result *plan.Result, view *schema.View, op *bind.BoundOperation, vars modify.Variables, mods *modify.QueryModifications) string {
	var sb strings.Builder
	if sh.ResponseKey != sh.FieldName {
		sb.WriteString(sh.ResponseKey)
		sb.WriteString(": ")
	}
	sb.WriteString(sh.FieldName)
	sb.WriteString(renderArgs(sh.Args, view, op, vars))

	switch {
	case sh.Discriminator != nil:
		typeNames := make([]string, 0, len(sh.Discriminator))
		for t := range sh.Discriminator {
			typeNames = append(typeNames, t)
		}
		sort.Strings(typeNames)
		parts := []string{"__typename"}
		for _, t := range typeNames {
			parts = append(parts, "... on "+t+" "+renderSelection(nil, sh.Discriminator[t], result, view, op, vars, mods))
		}
		sb.WriteString(" { ")
		sb.WriteString(strings.Join(parts, " "))
		sb.WriteString(" }")

	case len(sh.Children) > 0:
		sb.WriteString(" ")
		sb.WriteString(renderSelection([]string{"__typename"}, sh.Children, result, view, op, vars, mods))
	}

	return sb.String()
}

func mergeFieldSets(a, b *schema.FieldSet) *schema.FieldSet {
	if a.Empty() {
		return b
	}
	if b.Empty() {
		return a
	}
	seen := make(map[string]schema.FieldSetEntry, len(a.Fields)+len(b.Fields))
	for _, f := range a.Fields {
		seen[f.Name] = f
	}
	for _, f := range b.Fields {
		if _, ok := seen[f.Name]; !ok {
			seen[f.Name] = f
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	out := &schema.FieldSet{}
	for _, n := range names {
		out.Fields = append(out.Fields, seen[n])
	}
	return out
}

func renderFieldSet(fs *schema.FieldSet) string {
	if fs.Empty() {
		return ""
	}
	parts := make([]string, 0, len(fs.Fields))
	for _, f := range fs.Fields {
		if f.Sub != nil {
			parts = append(parts, f.Name+" { "+renderFieldSet(f.Sub)+" }")
		} else {
			parts = append(parts, f.Name)
		}
	}
	return strings.Join(parts, " ")
}

func renderArgs(args map[string]*bind.Argument, view *schema.View, op *bind.BoundOperation, vars modify.Variables) string {
	if len(args) == 0 {
		return ""
	}
	names := make([]string, 0, len(args))
	for n := range args {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, n := range names {
		parts = append(parts, n+": "+renderArgValue(args[n], view, op, vars))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// renderArgValue inlines an argument's resolved value as a GraphQL
// literal in the subgraph request text, rather than forwarding a
// `$variable` reference plus a parallel variables map — the gateway
// already holds the fully-validated value, so there's no benefit to a
// second round of variable substitution at the subgraph.
func renderArgValue(arg *bind.Argument, view *schema.View, op *bind.BoundOperation, vars modify.Variables) string {
	if arg.Literal != nil {
		return renderLiteral(arg.Literal)
	}

	val, ok := vars[arg.Variable]
	def := op.Variables[arg.Variable]
	if !ok {
		if def != nil && def.Default != nil {
			return renderLiteral(def.Default)
		}
		return "null"
	}
	var declType *schema.TypeRef
	if def != nil {
		declType = def.Type
	}
	return renderGoValue(view, declType, val)
}

func renderLiteral(v *bind.Value) string {
	if v == nil {
		return "null"
	}
	switch v.Kind {
	case bind.ValueNull:
		return "null"
	case bind.ValueInt, bind.ValueFloat, bind.ValueBoolean, bind.ValueEnum:
		return v.Raw
	case bind.ValueString:
		return strconv.Quote(v.Raw)
	case bind.ValueList:
		parts := make([]string, len(v.Items))
		for i, item := range v.Items {
			parts[i] = renderLiteral(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case bind.ValueObject:
		parts := make([]string, len(v.Children))
		for i, f := range v.Children {
			parts[i] = f.Name + ": " + renderLiteral(f.Value)
		}
		return "{ " + strings.Join(parts, ", ") + " }"
	case bind.ValueVariable:
		return "$" + v.Variable
	default:
		return "null"
	}
}

// renderGoValue inlines a plain Go value (already validated by
// modify.ValidateVariables) as a GraphQL literal. The declared type is
// consulted only to tell an enum value (rendered bare) from a string
// scalar (rendered quoted); every other scalar kind is inferred from
// the Go type the value already carries.
func renderGoValue(view *schema.View, t *schema.TypeRef, val interface{}) string {
	if val == nil {
		return "null"
	}
	if t != nil && t.List != nil {
		arr, ok := val.([]interface{})
		if !ok {
			return "null"
		}
		parts := make([]string, len(arr))
		for i, item := range arr {
			parts[i] = renderGoValue(view, t.List, item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}

	switch v := val.(type) {
	case string:
		if t != nil {
			if def := view.Definition(t.InnerName()); def != nil && def.Kind == schema.KindEnum {
				return v
			}
		}
		return strconv.Quote(v)
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case int:
		return strconv.Itoa(v)
	case map[string]interface{}:
		var inputDef *schema.Definition
		if t != nil {
			inputDef = view.Definition(t.InnerName())
		}
		names := make([]string, 0, len(v))
		for n := range v {
			names = append(names, n)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, n := range names {
			var ft *schema.TypeRef
			if inputDef != nil {
				ft = inputDef.InputFields[n]
			}
			parts = append(parts, n+": "+renderGoValue(view, ft, v[n]))
		}
		return "{ " + strings.Join(parts, ", ") + " }"
	default:
		return fmt.Sprintf("%v", v)
	}
}
