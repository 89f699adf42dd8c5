package bind

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/fieldgraph/gateway/schema"
)

// Bind validates a parsed query document against a supergraph view and
// produces a BoundOperation, expanding fragment spreads in place (spec
// section 4.2: "by recording the applicable type condition on each
// contained field, not by duplicating fields").
func Bind(view *schema.View, doc *ast.QueryDocument, operationName string) (*BoundOperation, error) {
	op, err := selectOperation(doc, operationName)
	if err != nil {
		return nil, err
	}

	b := &binder{view: view, fragments: make(map[string]*ast.FragmentDefinition, len(doc.Fragments))}
	for _, f := range doc.Fragments {
		b.fragments[f.Name] = f
	}

	kind := OperationQuery
	switch op.Operation {
	case ast.Mutation:
		kind = OperationMutation
	case ast.Subscription:
		kind = OperationSubscription
	}

	rootDef := view.RootType(kind.String())
	if rootDef == nil {
		return nil, &ValidationError{Kind: UnknownType, Detail: fmt.Sprintf("no root type for operation kind %q", kind)}
	}

	vars := b.bindVariables(op.VariableDefinitions)

	sel, err := b.bindConcreteSelection(op.SelectionSet, rootDef.Name)
	if err != nil {
		return nil, err
	}

	bound := &BoundOperation{
		Kind:      kind,
		Name:      op.Name,
		RootType:  rootDef.Name,
		Selection: sel,
		Variables: vars,
	}

	if err := checkVariableUses(bound); err != nil {
		return nil, err
	}

	bound.Complexity = complexity(bound)
	bound.NormalizedText = normalizedText(bound)

	return bound, nil
}

func selectOperation(doc *ast.QueryDocument, name string) (*ast.OperationDefinition, error) {
	if name != "" {
		for _, op := range doc.Operations {
			if op.Name == name {
				return op, nil
			}
		}
		return nil, &ValidationError{Kind: UnknownOperation, Detail: fmt.Sprintf("unknown operation %q", name)}
	}
	if len(doc.Operations) == 1 {
		return doc.Operations[0], nil
	}
	return nil, &ValidationError{Kind: UnknownOperation, Detail: "operation name required when document defines more than one operation"}
}

// binder carries the read-only state needed while walking one document:
// the schema view fields are validated against, and the fragment
// definitions fragment spreads are expanded from.
type binder struct {
	view      *schema.View
	fragments map[string]*ast.FragmentDefinition
}

func (b *binder) bindVariables(defs ast.VariableDefinitionList) map[string]*VariableDefinition {
	out := make(map[string]*VariableDefinition, len(defs))
	for _, d := range defs {
		out[d.Variable] = &VariableDefinition{
			Name:    d.Variable,
			Type:    schema.TypeRefFromAST(d.Type),
			Default: convertValue(d.DefaultValue),
		}
	}
	return out
}

// fragmentApplies reports whether a fragment/inline-fragment with the
// given type condition contributes its selections when the runtime
// object is of typeName.
func (b *binder) fragmentApplies(typeCondition, typeName string) bool {
	if typeCondition == "" || typeCondition == typeName {
		return true
	}
	return b.view.IsSubtypeOf(typeName, typeCondition)
}

// flattenForType inlines every selection (direct field, inline
// fragment, fragment spread) that applies to typeName, descending
// through nested fragments; a fragment spread from several places is
// flattened at each spread, and the duplicate fields this yields are
// merged afterwards by mergeByAlias (grounded on the teacher's
// flattenFragments/applies pair in federation/normalize.go).
func (b *binder) flattenForType(sels ast.SelectionSet, typeName string, visiting map[string]bool) ([]*ast.Field, error) {
	var out []*ast.Field
	for _, sel := range sels {
		switch s := sel.(type) {
		case *ast.Field:
			out = append(out, s)

		case *ast.InlineFragment:
			if !b.fragmentApplies(s.TypeCondition, typeName) {
				continue
			}
			inner, err := b.flattenForType(s.SelectionSet, typeName, visiting)
			if err != nil {
				return nil, err
			}
			out = append(out, inner...)

		case *ast.FragmentSpread:
			frag, ok := b.fragments[s.Name]
			if !ok {
				return nil, &ValidationError{Kind: UnknownFragment, Location: posLoc(s.Position), Detail: fmt.Sprintf("unknown fragment %q", s.Name)}
			}
			if visiting[s.Name] {
				return nil, &ValidationError{Kind: FragmentCycle, Location: posLoc(s.Position), Detail: fmt.Sprintf("fragment %q forms a cycle", s.Name)}
			}
			if !b.fragmentApplies(frag.TypeCondition, typeName) {
				continue
			}
			visiting[s.Name] = true
			inner, err := b.flattenForType(frag.SelectionSet, typeName, visiting)
			delete(visiting, s.Name)
			if err != nil {
				return nil, err
			}
			out = append(out, inner...)
		}
	}
	return out, nil
}

// mergedField collects every occurrence of one response key across
// flattened fragments before it's bound once (spec section 4.2).
type mergedField struct {
	alias         string
	name          string
	args          ast.ArgumentList
	directives    ast.DirectiveList
	subSelections ast.SelectionSet
	position      *ast.Position
}

func (b *binder) mergeByAlias(fields []*ast.Field) ([]*mergedField, error) {
	order := make([]string, 0, len(fields))
	byAlias := make(map[string]*mergedField, len(fields))
	for _, f := range fields {
		key := f.Alias
		if key == "" {
			key = f.Name
		}
		m, ok := byAlias[key]
		if !ok {
			m = &mergedField{alias: key, name: f.Name, args: f.Arguments, directives: f.Directives, position: f.Position}
			byAlias[key] = m
			order = append(order, key)
		} else if m.name != f.Name {
			return nil, &ValidationError{
				Kind:     TypeMismatch,
				Location: posLoc(f.Position),
				Detail:   fmt.Sprintf("fields %q and %q both alias to response key %q", m.name, f.Name, key),
			}
		}
		m.subSelections = append(m.subSelections, f.SelectionSet...)
	}
	out := make([]*mergedField, 0, len(order))
	for _, key := range order {
		out = append(out, byAlias[key])
	}
	return out, nil
}

// bindSelection binds a selection set against a possibly-abstract
// parent type: for an interface or union, every possible concrete type
// gets its own fully-flattened selection (spec section 3's
// type-discrimination model; see store/shaper.go for the runtime
// counterpart).
func (b *binder) bindSelection(rawSels ast.SelectionSet, typeName string) (*SelectionSet, error) {
	def := b.view.Definition(typeName)
	if def == nil {
		return nil, &ValidationError{Kind: UnknownType, Detail: fmt.Sprintf("unknown type %q", typeName)}
	}

	switch def.Kind {
	case schema.KindUnion, schema.KindInterface:
		out := &SelectionSet{ParentType: typeName, TypeFragments: make(map[string]*SelectionSet)}
		for _, concrete := range b.view.PossibleTypes(typeName) {
			sub, err := b.bindConcreteSelection(rawSels, concrete)
			if err != nil {
				return nil, err
			}
			out.TypeFragments[concrete] = sub
		}
		return out, nil
	default:
		return b.bindConcreteSelection(rawSels, typeName)
	}
}

func (b *binder) bindConcreteSelection(rawSels ast.SelectionSet, typeName string) (*SelectionSet, error) {
	fields, err := b.flattenForType(rawSels, typeName, make(map[string]bool))
	if err != nil {
		return nil, err
	}
	merged, err := b.mergeByAlias(fields)
	if err != nil {
		return nil, err
	}

	out := &SelectionSet{ParentType: typeName, Fields: make([]*BoundField, 0, len(merged))}
	for _, m := range merged {
		bf, err := b.bindField(m, typeName)
		if err != nil {
			return nil, err
		}
		out.Fields = append(out.Fields, bf)
	}
	return out, nil
}

func (b *binder) bindField(m *mergedField, parentType string) (*BoundField, error) {
	loc := posLoc(m.position)

	if m.name == "__typename" {
		return &BoundField{ResponseKey: m.alias, Name: m.name, ParentType: parentType, Location: loc}, nil
	}

	fieldDef := b.view.Field(parentType, m.name)
	if fieldDef == nil {
		return nil, &ValidationError{Kind: UnknownField, Location: loc, Detail: fmt.Sprintf("unknown field %q on type %q", m.name, parentType)}
	}

	args, err := b.bindArgs(m.args, fieldDef)
	if err != nil {
		return nil, err
	}

	var sub *SelectionSet
	innerName := fieldDef.Type.InnerName()
	innerDef := b.view.Definition(innerName)
	isComposite := innerDef != nil && (innerDef.Kind == schema.KindObject || innerDef.Kind == schema.KindInterface || innerDef.Kind == schema.KindUnion)

	if isComposite {
		if len(m.subSelections) == 0 {
			return nil, &ValidationError{Kind: MissingSelectionSet, Location: loc, Detail: fmt.Sprintf("field %q of type %q requires a selection set", m.name, innerName)}
		}
		sub, err = b.bindSelection(m.subSelections, innerName)
		if err != nil {
			return nil, err
		}
	} else if len(m.subSelections) != 0 {
		return nil, &ValidationError{Kind: UnexpectedSelectionSet, Location: loc, Detail: fmt.Sprintf("field %q of scalar/enum type %q cannot have a selection set", m.name, innerName)}
	}

	return &BoundField{
		ResponseKey: m.alias,
		Name:        m.name,
		ParentType:  parentType,
		Def:         fieldDef,
		Args:        args,
		Selection:   sub,
		Directives:  bindDirectives(m.directives),
		Location:    loc,
	}, nil
}

func (b *binder) bindArgs(rawArgs ast.ArgumentList, fieldDef *schema.FieldDefinition) (map[string]*Argument, error) {
	if len(rawArgs) == 0 {
		return nil, nil
	}
	out := make(map[string]*Argument, len(rawArgs))
	for _, a := range rawArgs {
		if _, ok := fieldDef.Args[a.Name]; !ok {
			return nil, &ValidationError{Kind: UnknownArgument, Location: posLoc(a.Position), Detail: fmt.Sprintf("unknown argument %q on field %q", a.Name, fieldDef.Name)}
		}
		val := convertValue(a.Value)
		arg := &Argument{Name: a.Name}
		if val != nil && val.Kind == ValueVariable {
			arg.Variable = val.Variable
		} else {
			arg.Literal = val
		}
		out[a.Name] = arg
	}
	return out, nil
}

func bindDirectives(dirs ast.DirectiveList) []Directive {
	if len(dirs) == 0 {
		return nil
	}
	out := make([]Directive, 0, len(dirs))
	for _, d := range dirs {
		args := make(map[string]*Argument, len(d.Arguments))
		for _, a := range d.Arguments {
			val := convertValue(a.Value)
			arg := &Argument{Name: a.Name}
			if val != nil && val.Kind == ValueVariable {
				arg.Variable = val.Variable
			} else {
				arg.Literal = val
			}
			args[a.Name] = arg
		}
		out = append(out, Directive{Name: d.Name, Args: args})
	}
	return out
}

func convertValue(v *ast.Value) *Value {
	if v == nil {
		return nil
	}
	out := &Value{Raw: v.Raw}
	switch v.Kind {
	case ast.Variable:
		out.Kind = ValueVariable
		out.Variable = v.Raw
	case ast.IntValue:
		out.Kind = ValueInt
	case ast.FloatValue:
		out.Kind = ValueFloat
	case ast.StringValue, ast.BlockValue:
		out.Kind = ValueString
	case ast.BooleanValue:
		out.Kind = ValueBoolean
	case ast.NullValue:
		out.Kind = ValueNull
	case ast.EnumValue:
		out.Kind = ValueEnum
	case ast.ListValue:
		out.Kind = ValueList
		for _, c := range v.Children {
			out.Items = append(out.Items, convertValue(c.Value))
		}
	case ast.ObjectValue:
		out.Kind = ValueObject
		for _, c := range v.Children {
			out.Children = append(out.Children, &ObjectField{Name: c.Name, Value: convertValue(c.Value)})
		}
	}
	return out
}

func posLoc(p *ast.Position) Location {
	if p == nil {
		return Location{}
	}
	return Location{Line: p.Line, Column: p.Column}
}

// checkVariableUses walks the bound tree and reports any variable
// reference (in an argument or a directive argument) that wasn't
// declared on the operation signature.
func checkVariableUses(op *BoundOperation) error {
	var walkSel func(*SelectionSet) error
	walkArgs := func(args map[string]*Argument, loc Location) error {
		for _, a := range args {
			if a.Variable == "" {
				continue
			}
			if _, ok := op.Variables[a.Variable]; !ok {
				return &ValidationError{Kind: VariableMismatch, Location: loc, Detail: fmt.Sprintf("undeclared variable $%s", a.Variable)}
			}
		}
		return nil
	}
	walkSel = func(s *SelectionSet) error {
		if s == nil {
			return nil
		}
		for _, f := range s.Fields {
			if err := walkArgs(f.Args, f.Location); err != nil {
				return err
			}
			for _, d := range f.Directives {
				if err := walkArgs(d.Args, f.Location); err != nil {
					return err
				}
			}
			if err := walkSel(f.Selection); err != nil {
				return err
			}
		}
		for _, tf := range s.TypeFragments {
			if err := walkSel(tf); err != nil {
				return err
			}
		}
		return nil
	}
	return walkSel(op.Selection)
}
