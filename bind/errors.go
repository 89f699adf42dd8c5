package bind

import "fmt"

// ParseError wraps a failure from the upstream query-text parser. The
// binder itself never produces these — opcache.Default wraps a
// gqlparser/v2/parser.ParseQuery failure in one before Bind runs,
// giving it a stable shape callers can switch on alongside
// ValidationError.
type ParseError struct {
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %s", e.Detail)
}

// ValidationErrorKind enumerates the binder's fatal validation
// failures (spec section 4.2).
type ValidationErrorKind int

const (
	UnknownField ValidationErrorKind = iota
	UnknownType
	TypeMismatch
	VariableMismatch
	FragmentCycle
	UnknownFragment
	UnknownOperation
	UnknownArgument
	MissingSelectionSet
	UnexpectedSelectionSet
)

func (k ValidationErrorKind) String() string {
	switch k {
	case UnknownField:
		return "UnknownField"
	case UnknownType:
		return "UnknownType"
	case TypeMismatch:
		return "TypeMismatch"
	case VariableMismatch:
		return "VariableMismatch"
	case FragmentCycle:
		return "FragmentCycle"
	case UnknownFragment:
		return "UnknownFragment"
	case UnknownOperation:
		return "UnknownOperation"
	case UnknownArgument:
		return "UnknownArgument"
	case MissingSelectionSet:
		return "MissingSelectionSet"
	case UnexpectedSelectionSet:
		return "UnexpectedSelectionSet"
	default:
		return "Unknown"
	}
}

// ValidationError is a fatal, located binder failure.
type ValidationError struct {
	Kind     ValidationErrorKind
	Location Location
	Detail   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s at %d:%d: %s", e.Kind, e.Location.Line, e.Location.Column, e.Detail)
}
