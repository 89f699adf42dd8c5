package bind

// Depth, Height, Aliases, and RootFields score a bound operation
// against the four remaining operation_limits knobs (spec section 6);
// Complexity (in normalize.go) covers the fifth. None of these checks
// are specified beyond their name in spec section 6; the definition of
// each is the one documented on its function below.

// Depth is the longest chain of nested selection sets, root fields
// counting as depth 1.
func Depth(op *BoundOperation) int {
	return selectionDepth(op.Selection)
}

func selectionDepth(s *SelectionSet) int {
	if s == nil {
		return 0
	}
	max := 0
	for _, f := range s.Fields {
		if d := selectionDepth(f.Selection); d > max {
			max = d
		}
	}
	for _, tf := range s.TypeFragments {
		if d := selectionDepth(tf); d > max {
			max = d
		}
	}
	return max + 1
}

// Height is the total count of fields selected anywhere in the
// operation (every node of the selection tree, not just leaves).
func Height(op *BoundOperation) int {
	return selectionHeight(op.Selection)
}

func selectionHeight(s *SelectionSet) int {
	if s == nil {
		return 0
	}
	total := 0
	for _, f := range s.Fields {
		total += 1 + selectionHeight(f.Selection)
	}
	for _, tf := range s.TypeFragments {
		total += selectionHeight(tf)
	}
	return total
}

// Aliases counts fields whose response key differs from their
// underlying field name — the classic alias-amplification vector
// (many aliases of one expensive field in a single selection set).
func Aliases(op *BoundOperation) int {
	return selectionAliases(op.Selection)
}

func selectionAliases(s *SelectionSet) int {
	if s == nil {
		return 0
	}
	total := 0
	for _, f := range s.Fields {
		if f.ResponseKey != f.Name {
			total++
		}
		total += selectionAliases(f.Selection)
	}
	for _, tf := range s.TypeFragments {
		total += selectionAliases(tf)
	}
	return total
}

// RootFields counts the fields selected directly on the operation's
// root type.
func RootFields(op *BoundOperation) int {
	if op.Selection == nil {
		return 0
	}
	return len(op.Selection.Fields)
}
