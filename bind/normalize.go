package bind

import (
	"sort"
	"strings"
)

// assumedListSize is the size multiplier applied to list-typed fields
// when no runtime pagination argument is available to bound it more
// precisely (SPEC_FULL.md section 4, "Operation complexity scoring").
const assumedListSize = 10

// complexity scores an operation with a per-field cost table: a scalar
// leaf costs 1, a list multiplies its subtree cost by assumedListSize,
// and an object field costs 1 plus the sum of its own selection.
func complexity(op *BoundOperation) int {
	return selectionComplexity(op.Selection)
}

func selectionComplexity(s *SelectionSet) int {
	if s == nil {
		return 0
	}
	total := 0
	for _, f := range s.Fields {
		total += fieldComplexity(f)
	}
	for _, tf := range s.TypeFragments {
		total += selectionComplexity(tf)
	}
	return total
}

func fieldComplexity(f *BoundField) int {
	cost := 1 + selectionComplexity(f.Selection)
	if f.Def != nil && f.Def.Type != nil && f.Def.Type.List != nil {
		cost *= assumedListSize
	}
	return cost
}

// normalizedText renders the bound, fragment-free operation back into
// a canonical string with literal argument values masked out, so two
// operations that differ only in field order or literal constants
// render to the same text. The operation cache does not use it: its
// key hashes the raw document (opcache.Key).
func normalizedText(op *BoundOperation) string {
	var b strings.Builder
	b.WriteString(op.Kind.String())
	if op.Name != "" {
		b.WriteByte(' ')
		b.WriteString(op.Name)
	}
	writeSelection(&b, op.Selection)
	return b.String()
}

func writeSelection(b *strings.Builder, s *SelectionSet) {
	if s == nil {
		return
	}
	b.WriteString(" {")

	keys := make([]string, 0, len(s.Fields))
	byKey := make(map[string]*BoundField, len(s.Fields))
	for _, f := range s.Fields {
		keys = append(keys, f.ResponseKey)
		byKey[f.ResponseKey] = f
	}
	sort.Strings(keys)
	for _, k := range keys {
		f := byKey[k]
		b.WriteByte(' ')
		b.WriteString(f.Name)
		if len(f.Args) > 0 {
			b.WriteString("(?)")
		}
		writeSelection(b, f.Selection)
	}

	if len(s.TypeFragments) > 0 {
		types := make([]string, 0, len(s.TypeFragments))
		for t := range s.TypeFragments {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			b.WriteString(" ...on ")
			b.WriteString(t)
			writeSelection(b, s.TypeFragments[t])
		}
	}

	b.WriteString(" }")
}
