package modify

import "github.com/fieldgraph/gateway/plan"

// Evaluate resolves every query-time modifier rule in result against
// vars and auth into a single suppressed-shape bitset (SPEC_FULL.md
// section 4: @skip/@include compose with @authenticated/@requiresScopes
// into the same set, rather than each gating independently).
func Evaluate(result *plan.Result, vars Variables, auth AuthContext) (*QueryModifications, error) {
	mods := &QueryModifications{suppressed: make(map[int]bool)}

	for _, rule := range result.Modifiers {
		if rule.Deferred {
			mods.Deferred = append(mods.Deferred, DeferredCheck{RuleID: rule.ID, ShapeID: rule.ShapeID, PlanID: rule.Plan})
			continue
		}

		suppress, err := evalRule(rule, vars, auth)
		if err != nil {
			return nil, err
		}
		if suppress {
			mods.suppressed[rule.ShapeID] = true
		}
	}

	return mods, nil
}

func evalRule(rule *plan.ModifierRule, vars Variables, auth AuthContext) (bool, error) {
	switch rule.Kind {
	case plan.ModifierSkipInclude:
		cond := rule.Literal
		if rule.Variable != "" {
			raw, ok := vars[rule.Variable]
			if !ok {
				return false, &VariableError{Name: rule.Variable, Detail: "missing variable for @skip/@include"}
			}
			b, ok := raw.(bool)
			if !ok {
				return false, &VariableError{Name: rule.Variable, Detail: "must be Boolean for @skip/@include"}
			}
			cond = b
		}
		if rule.Negate {
			return cond, nil // @skip(if: true) suppresses
		}
		return !cond, nil // @include(if: false) suppresses

	case plan.ModifierAuthenticated:
		return !auth.Authenticated, nil

	case plan.ModifierRequiresScopes:
		return !hasAllScopes(auth.Scopes, rule.RequiredScopes), nil

	case plan.ModifierAuthorized:
		// Query-time @authorized (no parent-context arguments): treat
		// as a bare authentication gate.
		return !auth.Authenticated, nil

	default:
		return false, nil
	}
}

func hasAllScopes(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	set := make(map[string]bool, len(have))
	for _, s := range have {
		set[s] = true
	}
	for _, w := range want {
		if !set[w] {
			return false
		}
	}
	return true
}
