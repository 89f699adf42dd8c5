package federation

import (
	"fmt"

	"github.com/fieldgraph/gateway/bind"
	"github.com/fieldgraph/gateway/config"
)

// LimitError reports a bound operation that exceeds one of
// config.OperationLimitsConfig's ceilings (spec section 6's
// `operation_limits`); fatal, checked before any subgraph call.
type LimitError struct {
	Code   string
	Detail string
}

func (e *LimitError) Error() string { return e.Detail }

// checkLimits evaluates every operation_limits knob against a bound
// operation, returning the first ceiling it exceeds. depth and height
// each map to their own Planning error name (spec section 7); aliases
// and root_fields reuse QueryTooBig since the taxonomy names only
// three query-size codes for five checks.
func checkLimits(limits config.OperationLimitsConfig, op *bind.BoundOperation) error {
	if limits.Depth > 0 {
		if d := bind.Depth(op); d > limits.Depth {
			return &LimitError{Code: CodeQueryTooDeep, Detail: fmt.Sprintf("operation depth %d exceeds limit %d", d, limits.Depth)}
		}
	}
	if limits.Height > 0 {
		if h := bind.Height(op); h > limits.Height {
			return &LimitError{Code: CodeQueryTooBig, Detail: fmt.Sprintf("operation height %d exceeds limit %d", h, limits.Height)}
		}
	}
	if limits.Complexity > 0 {
		if op.Complexity > limits.Complexity {
			return &LimitError{Code: CodeQueryTooComplex, Detail: fmt.Sprintf("operation complexity %d exceeds limit %d", op.Complexity, limits.Complexity)}
		}
	}
	if limits.Aliases > 0 {
		if a := bind.Aliases(op); a > limits.Aliases {
			return &LimitError{Code: CodeQueryTooBig, Detail: fmt.Sprintf("operation uses %d aliases, limit %d", a, limits.Aliases)}
		}
	}
	if limits.RootFields > 0 {
		if r := bind.RootFields(op); r > limits.RootFields {
			return &LimitError{Code: CodeQueryTooBig, Detail: fmt.Sprintf("operation selects %d root fields, limit %d", r, limits.RootFields)}
		}
	}
	return nil
}
