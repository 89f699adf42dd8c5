package federation

import "net/http"

// Request is one GraphQL-over-HTTP request arriving at the gateway's
// ingress (spec section 3's "single HTTP/WebSocket entrypoint"); the
// ingress layer (cmd/gateway) owns decoding the wire envelope and JSON
// variables, Gateway only consumes the result.
type Request struct {
	Document      string
	OperationName string
	Variables     map[string]interface{}
	Auth          AuthContext

	// Headers is the incoming request's headers, consulted per
	// subgraph against its merged header-forwarding rules.
	Headers http.Header
}

// AuthContext carries the caller's identity as established upstream of
// the gateway (spec section 1: authentication itself is an external
// collaborator). It has the same fields as modify.AuthContext, which
// the gateway converts it to, so callers of this package never need to
// import modify directly.
type AuthContext struct {
	Authenticated bool
	Scopes        []string
}

// Response is the GraphQL-over-HTTP response: exactly one of Data or a
// non-empty Errors is meaningful on a fatal failure (spec section 7:
// "Validation/Planning surfaces return no data"), both may be present
// on a partial failure (null-bubbled fields alongside their errors).
type Response struct {
	Data   map[string]interface{} `json:"data,omitempty"`
	Errors []GraphQLError         `json:"errors,omitempty"`
}
