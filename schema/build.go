package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/samsarahq/go/oops"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// Build parses a supergraph SDL document — the output of the (out of
// scope) composition algorithm, carrying join__* directives per
// spec.md section 6 — into an indexed View.
//
// This is the "parsing assumed available" collaborator for schema
// documents: gqlparser/v2 does the lexing/parsing, Build only walks the
// resulting AST.
func Build(supergraphSDL string) (*View, error) {
	doc, err := parser.ParseSchema(&ast.Source{Name: "supergraph.graphql", Input: supergraphSDL})
	if err != nil {
		return nil, oops.Wrapf(err, "parsing supergraph SDL")
	}

	sum := sha256.Sum256([]byte(supergraphSDL))

	v := &View{
		Definitions: make(map[string]*Definition),
		Subgraphs:   make(map[string]*Subgraph),
		Version:     hex.EncodeToString(sum[:]),
	}

	if err := loadSubgraphs(doc, v); err != nil {
		return nil, err
	}

	for _, d := range doc.Definitions {
		if isJoinMachinery(d.Name) {
			continue
		}
		def, err := convertDefinition(d)
		if err != nil {
			return nil, err
		}
		v.Definitions[def.Name] = def
	}

	// Second pass: interfaces know their implementors only once every
	// object has been converted.
	for _, def := range v.Definitions {
		for _, iface := range def.Interfaces {
			if ifaceDef, ok := v.Definitions[iface]; ok {
				ifaceDef.Implementors = append(ifaceDef.Implementors, def.Name)
			}
		}
	}
	for _, def := range v.Definitions {
		sort.Strings(def.Implementors)
	}

	for _, d := range doc.Definitions {
		if isJoinMachinery(d.Name) {
			continue
		}
		if err := attachFieldFederationInfo(d, v); err != nil {
			return nil, err
		}
	}

	if err := detectRootTypes(doc, v); err != nil {
		return nil, err
	}

	if err := validate(v); err != nil {
		return nil, err
	}

	v.SubgraphNames = make([]string, 0, len(v.Subgraphs))
	for name := range v.Subgraphs {
		v.SubgraphNames = append(v.SubgraphNames, name)
	}
	sort.Strings(v.SubgraphNames)

	return v, nil
}

// isJoinMachinery filters out the join-spec's own scaffolding types
// (the join__Graph enum, join__FieldSet scalar, and the directive
// definitions themselves are not Definitions, only types are).
func isJoinMachinery(name string) bool {
	return strings.HasPrefix(name, "join__") || strings.HasPrefix(name, "link__") ||
		name == "_Any" || name == "_Entity" || name == "_Service"
}

func detectRootTypes(doc *ast.SchemaDocument, v *View) error {
	v.QueryType, v.MutationType, v.SubscriptionType = "Query", "Mutation", "Subscription"
	for _, sd := range doc.Schema {
		for _, op := range sd.OperationTypes {
			switch op.Operation {
			case ast.Query:
				v.QueryType = op.Type
			case ast.Mutation:
				v.MutationType = op.Type
			case ast.Subscription:
				v.SubscriptionType = op.Type
			}
		}
	}
	if _, ok := v.Definitions[v.QueryType]; !ok {
		return &BuildError{Directive: "schema", Detail: fmt.Sprintf("root query type %q not found", v.QueryType)}
	}
	return nil
}

func loadSubgraphs(doc *ast.SchemaDocument, v *View) error {
	names := make(map[string]string)
	for _, d := range doc.Definitions {
		if d.Name != "join__Graph" {
			continue
		}
		for _, val := range d.EnumValues {
			dir := val.Directives.ForName("join__graph")
			if dir == nil {
				continue
			}
			sg := &Subgraph{Name: argString(dir, "name")}
			sg.URL = argString(dir, "url")
			v.Subgraphs[sg.Name] = sg
			names[val.Name] = sg.Name
		}
	}

	// The join directives name a subgraph by its join__Graph enum value;
	// rewrite each graph argument to the subgraph's own name.
	for _, d := range doc.Definitions {
		dirs := append(ast.DirectiveList(nil), d.Directives...)
		for _, f := range d.Fields {
			dirs = append(dirs, f.Directives...)
		}
		for _, dir := range dirs {
			if arg := dir.Arguments.ForName("graph"); arg != nil && arg.Value != nil && names[arg.Value.Raw] != "" {
				arg.Value.Raw = names[arg.Value.Raw]
			}
		}
	}
	return nil
}

func argString(dir *ast.Directive, name string) string {
	arg := dir.Arguments.ForName(name)
	if arg == nil || arg.Value == nil {
		return ""
	}
	return arg.Value.Raw
}

func argBool(dir *ast.Directive, name string) bool {
	arg := dir.Arguments.ForName(name)
	if arg == nil || arg.Value == nil {
		return false
	}
	return arg.Value.Raw == "true"
}

func convertDefinition(d *ast.Definition) (*Definition, error) {
	def := &Definition{Name: d.Name}

	switch d.Kind {
	case ast.Object:
		def.Kind = KindObject
	case ast.Interface:
		def.Kind = KindInterface
	case ast.Union:
		def.Kind = KindUnion
	case ast.Enum:
		def.Kind = KindEnum
	case ast.InputObject:
		def.Kind = KindInputObject
	case ast.Scalar:
		def.Kind = KindScalar
	default:
		return nil, &BuildError{Directive: "type", Detail: fmt.Sprintf("unsupported definition kind %q for %s", d.Kind, d.Name)}
	}

	for _, iface := range d.Interfaces {
		def.Interfaces = append(def.Interfaces, iface)
	}
	for _, t := range d.Types {
		def.PossibleTypes = append(def.PossibleTypes, t)
	}
	for _, ev := range d.EnumValues {
		def.EnumValues = append(def.EnumValues, ev.Name)
	}

	if d.Kind == ast.Object || d.Kind == ast.Interface {
		def.Fields = make(map[string]*FieldDefinition)
		for _, f := range d.Fields {
			if strings.HasPrefix(f.Name, "__") {
				continue
			}
			fd := &FieldDefinition{
				Parent:   d.Name,
				Name:     f.Name,
				Type:     convertType(f.Type),
				Services: make(map[string]bool),
			}
			if len(f.Arguments) > 0 {
				fd.Args = make(map[string]*Argument, len(f.Arguments))
				for _, a := range f.Arguments {
					fd.Args[a.Name] = &Argument{Name: a.Name, Type: convertType(a.Type)}
				}
			}
			def.Fields[f.Name] = fd
		}
	}

	if d.Kind == ast.InputObject {
		def.InputFields = make(map[string]*TypeRef, len(d.Fields))
		for _, f := range d.Fields {
			def.InputFields[f.Name] = convertType(f.Type)
		}
		for _, dir := range d.Directives {
			if dir.Name == "oneOf" {
				def.OneOf = true
			}
		}
	}

	return def, nil
}

// TypeRefFromAST converts a parsed gqlparser type reference into a
// schema.TypeRef, exported so bind can resolve variable declarations
// without duplicating the wrapping/non-null logic.
func TypeRefFromAST(t *ast.Type) *TypeRef {
	return convertType(t)
}

func convertType(t *ast.Type) *TypeRef {
	if t == nil {
		return nil
	}
	if t.Elem != nil {
		return &TypeRef{List: convertType(t.Elem), NonNull: t.NonNull}
	}
	return &TypeRef{Name: t.NamedType, NonNull: t.NonNull}
}

// attachFieldFederationInfo reads @join__type on the definition and
// @join__field on each field to populate per-subgraph resolvability,
// @requires, and @provides.
func attachFieldFederationInfo(d *ast.Definition, v *View) error {
	def := v.Definitions[d.Name]
	if def == nil || def.Fields == nil {
		return nil
	}

	var ownerGraphs []string
	for _, dir := range d.Directives {
		if dir.Name != "join__type" {
			continue
		}
		graph := argString(dir, "graph")
		ownerGraphs = append(ownerGraphs, graph)
		if key := argString(dir, "key"); key != "" {
			fs, err := ParseFieldSet(key)
			if err != nil {
				return &BuildError{Directive: "@join__type(key:)", Detail: err.Error()}
			}
			if def.Keys == nil {
				def.Keys = make(map[string]*FieldSet)
			}
			def.Keys[graph] = fs
		}
		def.Directives = append(def.Directives, Directive{Name: "join__type", Args: map[string]interface{}{
			"graph": graph,
			"key":   argString(dir, "key"),
		}})
	}

	for _, f := range d.Fields {
		fd := def.Fields[f.Name]
		if fd == nil {
			continue
		}
		var fieldGraphs []string
		for _, dir := range f.Directives {
			switch dir.Name {
			case "join__field":
				graph := argString(dir, "graph")
				if graph == "" {
					continue
				}
				fieldGraphs = append(fieldGraphs, graph)
				fd.Services[graph] = true
				if req := argString(dir, "requires"); req != "" {
					fs, err := ParseFieldSet(req)
					if err != nil {
						return &BuildError{Directive: "@join__field(requires:)", Detail: err.Error()}
					}
					if fd.Requires == nil {
						fd.Requires = make(map[string]*FieldSet)
					}
					fd.Requires[graph] = fs
				}
				if prov := argString(dir, "provides"); prov != "" {
					fs, err := ParseFieldSet(prov)
					if err != nil {
						return &BuildError{Directive: "@join__field(provides:)", Detail: err.Error()}
					}
					if fd.Provides == nil {
						fd.Provides = make(map[string]*FieldSet)
					}
					fd.Provides[graph] = fs
				}
			case "shareable":
				fd.Shareable = true
			case "inaccessible":
				fd.Inaccessible = true
			}
		}

		if len(fieldGraphs) == 0 {
			// No explicit @join__field: resolvable in every subgraph that
			// owns the parent type (the common case for a field declared
			// once on a type with a single owner).
			for _, g := range ownerGraphs {
				fd.Services[g] = true
			}
		}
	}

	return nil
}

func validate(v *View) error {
	for _, def := range v.Definitions {
		for _, fd := range def.Fields {
			for subgraph, fs := range fd.Requires {
				for _, name := range fs.Names() {
					if v.Field(def.Name, name) == nil {
						return &BuildError{
							Directive: "@join__field(requires:)",
							Detail:    fmt.Sprintf("%s.%s requires unknown field %q on %s (subgraph %s)", def.Name, fd.Name, name, def.Name, subgraph),
						}
					}
				}
			}
		}
		if def.Kind == KindInterface && len(def.Implementors) == 0 {
			// Not an error: an interface may legitimately have no
			// concrete implementors yet in a partial schema, but worth
			// surfacing to callers via a lenient check elsewhere. No-op here.
			continue
		}
	}
	return nil
}
