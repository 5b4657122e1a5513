// Package merge implements the three-way merge engine (C6, §4.6): given a
// primary and tributary record map and their lowest common ancestor, and a
// rule tree governing conflict resolution, it produces a fresh merged
// record map. Grounded on _examples/original_source/database.py's
// _compute_merge, reworked around the container package's Value/Delta
// primitives instead of Python's dynamic JSONDict.
package merge

// Rule is one token of the merge rule alphabet (§4.6). The empty string,
// "f", and "r" are inherit rules; "p", "t", "p!", and "t!" are explicit.
type Rule string

const (
	RuleInherit         Rule = ""
	RuleInheritField    Rule = "f"
	RuleInheritRecord   Rule = "r"
	RulePrimary         Rule = "p"
	RuleTributary       Rule = "t"
	RulePrimaryAlways   Rule = "p!"
	RuleTributaryAlways Rule = "t!"
)

// IsExplicit reports whether r is one of the four rules the choice
// function can consume directly.
func (r Rule) IsExplicit() bool {
	switch r {
	case RulePrimary, RuleTributary, RulePrimaryAlways, RuleTributaryAlways:
		return true
	default:
		return false
	}
}

// RecordRules overrides the default rule for one record ID (§4.6).
type RecordRules struct {
	All    Rule            `json:"all,omitempty"`
	Fields map[string]Rule `json:"fields,omitempty"`
}

// DefaultRules is the fallback rule tier consulted when a record has no
// override (§4.6). InheritPriority breaks ties between an explicit
// field_rule and an explicit record_rule that disagree.
type DefaultRules struct {
	All             Rule            `json:"all,omitempty"`
	Fields          map[string]Rule `json:"fields,omitempty"`
	InheritPriority Rule            `json:"inherit_priority,omitempty"`
}

// Rules is the rule container passed to ComputeMerge (§4.6).
type Rules struct {
	Default DefaultRules           `json:"default"`
	Records map[string]RecordRules `json:"records,omitempty"`
}

// generalRule is the rule consulted by the per-record pass: the record's
// own "all" override if set, else the default "all" rule.
func (r Rules) generalRule(id string) Rule {
	if rr, ok := r.Records[id]; ok && rr.All != RuleInherit {
		return rr.All
	}
	return r.Default.All
}

// fieldCandidates computes the four candidate rules the per-field pass
// resolves between (§4.6 per-field pass).
func (r Rules) fieldCandidates(id, field string) (defaultRule, fieldRule, recordRule, recordFieldRule Rule) {
	defaultRule = r.Default.All
	if fr, ok := r.Default.Fields[field]; ok {
		fieldRule = fr
	}
	if rr, ok := r.Records[id]; ok {
		if rr.All != RuleInherit {
			recordRule = rr.All
		}
		if rfr, ok := rr.Fields[field]; ok {
			recordFieldRule = rfr
		}
	}
	return
}

// resolveFieldRule applies the §4.6 per-field precedence to produce a
// single explicit rule, or an error if no tier along the chain resolves
// to one (an invariant violation: default.all must be explicit).
func (r Rules) resolveFieldRule(id, field string) (Rule, error) {
	defaultRule, fieldRule, recordRule, recordFieldRule := r.fieldCandidates(id, field)

	if recordFieldRule.IsExplicit() {
		return recordFieldRule, nil
	}
	if fieldRule.IsExplicit() && recordRule.IsExplicit() && fieldRule != recordRule {
		switch recordFieldRule {
		case RuleInheritField:
			return fieldRule, nil
		case RuleInheritRecord:
			return recordRule, nil
		}
		switch r.Default.InheritPriority {
		case RuleInheritField:
			return fieldRule, nil
		case RuleInheritRecord:
			return recordRule, nil
		}
		return recordRule, nil
	}
	if fieldRule.IsExplicit() {
		return fieldRule, nil
	}
	if recordRule.IsExplicit() {
		return recordRule, nil
	}
	if defaultRule.IsExplicit() {
		return defaultRule, nil
	}
	return "", errRuleNotExplicit(id, field)
}

// choice applies the explicit rule to the pair of edit booleans (§4.6
// choice function). It returns true when the primary side is selected.
func choice(rule Rule, primaryEdited, tributaryEdited bool) bool {
	switch rule {
	case RulePrimaryAlways:
		return true
	case RuleTributaryAlways:
		return false
	case RulePrimary:
		return primaryEdited
	case RuleTributary:
		return !tributaryEdited
	default:
		// Unreachable for a well-formed explicit rule; treat as primary.
		return true
	}
}
