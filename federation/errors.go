package federation

import (
	"github.com/fieldgraph/gateway/bind"
	"github.com/fieldgraph/gateway/modify"
	"github.com/fieldgraph/gateway/store"
)

// Error codes mirror the taxonomy of spec section 7, grouped by
// surface: Validation, Authorization, Planning, Subgraph, Internal.
const (
	CodeParseError      = "GRAPHQL_PARSE_FAILED"
	CodeValidationError = "GRAPHQL_VALIDATION_FAILED"
	CodeVariableError   = "BAD_USER_INPUT"

	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeUnauthorized    = "FORBIDDEN"

	CodeQueryTooDeep            = "QUERY_TOO_DEEP"
	CodeQueryTooBig             = "QUERY_TOO_BIG"
	CodeQueryTooComplex         = "QUERY_TOO_COMPLEX"
	CodeTrustedDocumentRequired = "TRUSTED_DOCUMENT_REQUIRED"
	CodeOperationNotFound       = "OPERATION_NOT_FOUND"

	CodeSubgraphRequestError = "SUBGRAPH_REQUEST_ERROR"
	CodeInternalServerError  = "INTERNAL_SERVER_ERROR"
)

// ErrorLocation is a source position on a GraphQL error.
type ErrorLocation struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// GraphQLError is the user-visible error shape spec section 7
// prescribes: a message, an optional path/location, and a stable
// extensions.code.
type GraphQLError struct {
	Message    string                 `json:"message"`
	Locations  []ErrorLocation        `json:"locations,omitempty"`
	Path       []interface{}          `json:"path,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

func newError(code, message string) GraphQLError {
	return GraphQLError{Message: message, Extensions: map[string]interface{}{"code": code}}
}

// classifyError maps a fatal pre-execution error (parse, bind,
// validate-variables, operation-limit) to its taxonomy code — the
// switch spec section 7's "Validation/Planning" surfaces name.
func classifyError(err error) GraphQLError {
	switch e := err.(type) {
	case *bind.ParseError:
		return newError(CodeParseError, e.Error())
	case *bind.ValidationError:
		return newError(CodeValidationError, e.Error())
	case *modify.VariableError:
		return newError(CodeVariableError, e.Error())
	case *LimitError:
		return newError(e.Code, e.Error())
	default:
		return newError(CodeInternalServerError, "internal server error")
	}
}

// storeErrorsToGraphQL converts every store.Error the executor/shaper
// collected into the wire shape, preserving path and extensions.code.
func storeErrorsToGraphQL(errs []store.Error) []GraphQLError {
	out := make([]GraphQLError, 0, len(errs))
	for _, e := range errs {
		ext := make(map[string]interface{}, len(e.Extensions)+1)
		for k, v := range e.Extensions {
			ext[k] = v
		}
		code := e.Code
		if code == "" {
			code = CodeInternalServerError
		}
		ext["code"] = code

		var locs []ErrorLocation
		for _, l := range e.Locations {
			locs = append(locs, ErrorLocation{Line: l.Line, Column: l.Column})
		}

		out = append(out, GraphQLError{
			Message:    e.Message,
			Path:       pathToInterface(e.Path),
			Locations:  locs,
			Extensions: ext,
		})
	}
	return out
}

func pathToInterface(p store.Path) []interface{} {
	if len(p) == 0 {
		return nil
	}
	out := make([]interface{}, len(p))
	for i, seg := range p {
		if seg.IsIndex {
			out[i] = seg.Index
		} else {
			out[i] = seg.Key
		}
	}
	return out
}
