package merge

import (
	"sort"

	"github.com/rpggio/chronicle/internal/container"
)

// ComputeMerge performs a three-way merge of primary and tributary against
// their lowest common ancestor lca, governed by rules, and returns a fresh
// record map (§4.6). primary, tributary, and lca must share a container
// type (same template); the top-level container is expected to be an
// any-keys dict of record ID to record.
func ComputeMerge(primary, tributary, lca *container.Container, rules Rules) (*container.Container, error) {
	if !primary.SameType(tributary) || !primary.SameType(lca) {
		return nil, errTypeMismatch("merge.ComputeMerge", "primary, tributary, and lca must share a container type")
	}

	primaryDelta, err := container.Delta(lca, primary)
	if err != nil {
		return nil, err
	}
	tributaryDelta, err := container.Delta(lca, tributary)
	if err != nil {
		return nil, err
	}

	out := lca.New()
	for _, id := range unionKeys(primary.Keys(), tributary.Keys()) {
		if err := mergeRecord(out, primary, tributary, lca, rules, id, primaryDelta, tributaryDelta); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func mergeRecord(out, primary, tributary, lca *container.Container, rules Rules, id string, primaryDelta, tributaryDelta *container.Container) error {
	primaryHas := primary.Value().Has(id)
	tributaryHas := tributary.Value().Has(id)

	if primaryHas && tributaryHas {
		return mergeFields(out, primary, tributary, lca, rules, id)
	}

	generalRule := rules.generalRule(id)
	if !generalRule.IsExplicit() {
		generalRule = rules.Default.All
		if !generalRule.IsExplicit() {
			return errRuleNotExplicit(id, "<record>")
		}
	}

	primaryEdited := primaryDelta.Value().Has(id)
	tributaryEdited := tributaryDelta.Value().Has(id)

	if choice(generalRule, primaryEdited, tributaryEdited) {
		if primaryHas {
			return out.Set(id, primary.Value().Get(id).Clone())
		}
		return nil // primary chosen but missing: preserve the deletion
	}
	if tributaryHas {
		return out.Set(id, tributary.Value().Get(id).Clone())
	}
	return nil
}

func mergeFields(out, primary, tributary, lca *container.Container, rules Rules, id string) error {
	pr, err := primary.Get(id)
	if err != nil {
		return err
	}
	tr, err := tributary.Get(id)
	if err != nil {
		return err
	}
	lr, err := lca.Get(id)
	if err != nil {
		return err
	}

	prDelta, err := container.Delta(lr, pr)
	if err != nil {
		return err
	}
	trDelta, err := container.Delta(lr, tr)
	if err != nil {
		return err
	}

	result := container.NewDict()
	for _, field := range fieldsOf(pr.Template(), pr.Value(), tr.Value(), lr.Value()) {
		rule, err := rules.resolveFieldRule(id, field)
		if err != nil {
			return err
		}
		primaryEdited := prDelta.Value().Has(field)
		tributaryEdited := trDelta.Value().Has(field)

		var chosen *container.Value
		if choice(rule, primaryEdited, tributaryEdited) {
			chosen = pr.Value().Get(field)
		} else {
			chosen = tr.Value().Get(field)
		}
		if chosen == nil || chosen.IsNull() {
			continue
		}
		result.Set(field, chosen.Clone())
	}
	return out.Set(id, result)
}

// fieldsOf returns the fields to visit for a record: the template's fixed
// field order when it declares one, else the union of keys actually
// present across the three sides (an any-keys-dict record template).
func fieldsOf(tmpl *container.Template, values ...*container.Value) []string {
	if tmpl != nil && len(tmpl.FieldOrder) > 0 {
		return tmpl.FieldOrder
	}
	keys := map[string]bool{}
	for _, v := range values {
		if v == nil {
			continue
		}
		for _, k := range v.Keys() {
			keys[k] = true
		}
	}
	out := make([]string, 0, len(keys))
	for k := range keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func unionKeys(a, b []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(a)+len(b))
	for _, k := range a {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for _, k := range b {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}
