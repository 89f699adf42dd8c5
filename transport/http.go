package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/samsarahq/go/oops"

	"github.com/fieldgraph/gateway/schema"
)

// Request is one subgraph call: a root-field query or an
// `_entities(representations:)` query, per spec section 6's transport
// contract.
type Request struct {
	Subgraph      *schema.Subgraph
	Query         string
	OperationName string
	Variables     map[string]interface{}
	Headers       http.Header
	// Idempotent marks a request safe to retry without risk of a
	// duplicate side effect. Query and entity-resolution requests are
	// always idempotent; mutation requests are not, unless the
	// subgraph's RetryPolicy explicitly opts in (spec section 4.6 step 4).
	Idempotent bool
}

// Response mirrors a GraphQL-over-HTTP response body.
type Response struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

// GraphQLError is one entry of a subgraph response's top-level "errors"
// array.
type GraphQLError struct {
	Message    string                 `json:"message"`
	Path       []interface{}          `json:"path,omitempty"`
	Locations  []GraphQLErrorLocation `json:"locations,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

type GraphQLErrorLocation struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Client sends one subgraph request and returns its decoded response.
type Client interface {
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// HTTPClient is the default Client: a plain POST of {query, variables,
// operationName} (spec section 6), with bounded exponential backoff for
// retryable failures.
type HTTPClient struct {
	http *http.Client
}

func NewHTTPClient(hc *http.Client) *HTTPClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &HTTPClient{http: hc}
}

type requestBody struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName,omitempty"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
}

// retryableError marks a transport failure backoff.Retry should retry;
// anything else is treated as permanent.
type retryableError struct{ err error }

func (r retryableError) Error() string { return r.err.Error() }
func (r retryableError) Unwrap() error { return r.err }

func (c *HTTPClient) Execute(ctx context.Context, req *Request) (*Response, error) {
	body, err := json.Marshal(requestBody{
		Query:         req.Query,
		OperationName: req.OperationName,
		Variables:     req.Variables,
	})
	if err != nil {
		return nil, oops.Wrapf(err, "encoding subgraph request for %s", req.Subgraph.Name)
	}

	policy := req.Subgraph.Retry
	timeout := time.Duration(req.Subgraph.Timeout) * time.Millisecond

	operation := func() (*Response, error) {
		callCtx := ctx
		var cancel context.CancelFunc
		if timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, req.Subgraph.URL, bytes.NewReader(body))
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")
		for k, vs := range req.Headers {
			for _, v := range vs {
				httpReq.Header.Add(k, v)
			}
		}

		resp, err := c.http.Do(httpReq)
		if err != nil {
			if callCtx.Err() != nil && ctx.Err() == nil {
				return nil, backoff.Permanent(fmt.Errorf("subgraph %s request timed out: %w", req.Subgraph.Name, err))
			}
			return nil, retryableError{err}
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return nil, retryableError{fmt.Errorf("subgraph %s returned status %d", req.Subgraph.Name, resp.StatusCode)}
		}
		if resp.StatusCode >= 400 {
			return nil, backoff.Permanent(fmt.Errorf("subgraph %s returned status %d", req.Subgraph.Name, resp.StatusCode))
		}

		var out Response
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, backoff.Permanent(oops.Wrapf(err, "decoding response from %s", req.Subgraph.Name))
		}
		return &out, nil
	}

	maxAttempts := policy.MaxAttempts
	if !req.Idempotent && !policy.RetryMutations {
		maxAttempts = 1
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	b := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		b.InitialInterval = time.Duration(policy.InitialInterval) * time.Millisecond
	}
	if policy.MaxInterval > 0 {
		b.MaxInterval = time.Duration(policy.MaxInterval) * time.Millisecond
	}

	resp, err := backoff.Retry(ctx, operation, backoff.WithBackOff(b), backoff.WithMaxTries(uint(maxAttempts)))
	if err != nil {
		var re retryableError
		if ok := asRetryable(err, &re); ok {
			return nil, oops.Wrapf(re.err, "subgraph %s unreachable after retries", req.Subgraph.Name)
		}
		return nil, err
	}
	return resp, nil
}

func asRetryable(err error, target *retryableError) bool {
	for err != nil {
		if re, ok := err.(retryableError); ok {
			*target = re
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
