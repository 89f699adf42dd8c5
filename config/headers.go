package config

import (
	"net/http"

	"github.com/fieldgraph/gateway/schema"
	"github.com/fieldgraph/gateway/transport"
)

// ToSchema converts a YAML-decoded HeaderRule into the enum-keyed form
// schema.Subgraph carries, for the one-time merge a Gateway does at
// boot between the global `headers` rules and each subgraph's own.
func (r HeaderRule) ToSchema() schema.HeaderRule {
	var action schema.HeaderRuleAction
	switch r.Action {
	case HeaderInsert:
		action = schema.HeaderInsert
	case HeaderRemove:
		action = schema.HeaderRemove
	case HeaderRenameDuplicate:
		action = schema.HeaderRenameDuplicate
	default:
		action = schema.HeaderForward
	}
	return schema.HeaderRule{
		Action:  action,
		Name:    r.Name,
		Value:   r.Value,
		Pattern: r.Pattern,
		Rename:  r.RenameTo,
	}
}

// ApplyHeaderRules evaluates rules in declaration order against
// incoming, producing the header set to forward upstream. Each rule's
// effect on a header name overwrites any earlier rule's effect on that
// same name (last write wins) — the evaluation order SPEC_FULL.md
// section 4 fixes since spec section 6 leaves it unspecified. The
// actual rule-application logic lives in transport.ApplyHeaderRules,
// which the executor also calls directly against a subgraph's already-
// merged rule list; this delegates rather than duplicating it.
func ApplyHeaderRules(rules []HeaderRule, incoming http.Header) http.Header {
	converted := make([]schema.HeaderRule, len(rules))
	for i, r := range rules {
		converted[i] = r.ToSchema()
	}
	return transport.ApplyHeaderRules(converted, incoming)
}
