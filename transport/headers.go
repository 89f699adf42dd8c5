package transport

import (
	"net/http"
	"regexp"

	"github.com/fieldgraph/gateway/schema"
)

// ApplyHeaderRules evaluates a subgraph's merged header-forwarding
// rules (global rules prepended, per-subgraph rules appended — see
// the wiring in federation.Gateway) against the incoming request's
// headers, in declaration order, last write wins per header name
// (SPEC_FULL.md section 4's supplemented evaluation-order decision;
// spec section 6 names the four actions but not their precedence).
func ApplyHeaderRules(rules []schema.HeaderRule, incoming http.Header) http.Header {
	out := make(http.Header)

	for _, rule := range rules {
		switch rule.Action {
		case schema.HeaderForward:
			if v := incoming.Values(rule.Name); len(v) > 0 {
				out[http.CanonicalHeaderKey(rule.Name)] = append([]string(nil), v...)
			}

		case schema.HeaderInsert:
			out.Set(rule.Name, rule.Value)

		case schema.HeaderRemove:
			re, err := regexp.Compile(rule.Pattern)
			if err != nil {
				continue
			}
			for name := range out {
				if re.MatchString(name) {
					delete(out, name)
				}
			}

		case schema.HeaderRenameDuplicate:
			if v := incoming.Values(rule.Name); len(v) > 0 {
				out[http.CanonicalHeaderKey(rule.Rename)] = append([]string(nil), v...)
			}
		}
	}

	return out
}
