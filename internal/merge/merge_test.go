package merge_test

import (
	"testing"

	"github.com/rpggio/chronicle/internal/container"
	"github.com/rpggio/chronicle/internal/merge"
	"github.com/stretchr/testify/require"
)

func recordTemplate() *container.Template {
	return container.Dict([]string{"a", "b"}, map[string]*container.Template{
		"a": container.Any,
		"b": container.Any,
	})
}

func stateTemplate() *container.Template {
	return container.AnyKeysDict(recordTemplate())
}

func state(t *testing.T, records map[string]map[string]float64) *container.Container {
	t.Helper()
	v := container.NewDict()
	for id, fields := range records {
		rv := container.NewDict()
		for f, n := range fields {
			rv.Set(f, container.Number(n))
		}
		v.Set(id, rv)
	}
	c, err := container.New("state", stateTemplate(), v)
	require.NoError(t, err)
	return c
}

func TestMergeIdentityAllPrimaryAlways(t *testing.T) {
	lca := state(t, map[string]map[string]float64{"k": {"a": 1, "b": 1}})
	primary := state(t, map[string]map[string]float64{"k": {"a": 2, "b": 1}})
	tributary := state(t, map[string]map[string]float64{"k": {"a": 1, "b": 3}})

	rules := merge.Rules{Default: merge.DefaultRules{All: merge.RulePrimaryAlways}}
	got, err := merge.ComputeMerge(primary, tributary, lca, rules)
	require.NoError(t, err)
	require.True(t, got.Equal(primary))
}

func TestMergeIdentityAllTributaryAlways(t *testing.T) {
	lca := state(t, map[string]map[string]float64{"k": {"a": 1, "b": 1}})
	primary := state(t, map[string]map[string]float64{"k": {"a": 2, "b": 1}})
	tributary := state(t, map[string]map[string]float64{"k": {"a": 1, "b": 3}})

	rules := merge.Rules{Default: merge.DefaultRules{All: merge.RuleTributaryAlways}}
	got, err := merge.ComputeMerge(primary, tributary, lca, rules)
	require.NoError(t, err)
	require.True(t, got.Equal(tributary))
}

func TestMergeFieldLevelRule(t *testing.T) {
	// S3: lca {k:{a:1,b:1}}, primary edits a->2, tributary edits b->2,
	// rules {default:{all:"p"}, records:{k:{fields:{b:"t!"}}}}.
	// Expected result {k:{a:2,b:2}}.
	lca := state(t, map[string]map[string]float64{"k": {"a": 1, "b": 1}})
	primary := state(t, map[string]map[string]float64{"k": {"a": 2, "b": 1}})
	tributary := state(t, map[string]map[string]float64{"k": {"a": 1, "b": 2}})

	rules := merge.Rules{
		Default: merge.DefaultRules{All: merge.RulePrimary},
		Records: map[string]merge.RecordRules{
			"k": {Fields: map[string]merge.Rule{"b": merge.RuleTributaryAlways}},
		},
	}
	got, err := merge.ComputeMerge(primary, tributary, lca, rules)
	require.NoError(t, err)
	want := state(t, map[string]map[string]float64{"k": {"a": 2, "b": 2}})
	require.True(t, got.Equal(want))
}

func TestMergeRecordAddedOnOneSideOnly(t *testing.T) {
	lca := state(t, map[string]map[string]float64{})
	primary := state(t, map[string]map[string]float64{"k": {"a": 1}})
	tributary := state(t, map[string]map[string]float64{})

	rules := merge.Rules{Default: merge.DefaultRules{All: merge.RulePrimary}}
	got, err := merge.ComputeMerge(primary, tributary, lca, rules)
	require.NoError(t, err)
	require.True(t, got.Value().Has("k"))
}

func TestMergeRecordDeletedIsPreserved(t *testing.T) {
	lca := state(t, map[string]map[string]float64{"k": {"a": 1}})
	primary := state(t, map[string]map[string]float64{})
	tributary := state(t, map[string]map[string]float64{"k": {"a": 1}})

	rules := merge.Rules{Default: merge.DefaultRules{All: merge.RulePrimaryAlways}}
	got, err := merge.ComputeMerge(primary, tributary, lca, rules)
	require.NoError(t, err)
	require.False(t, got.Value().Has("k"), "primary-always on a record primary deleted must preserve the deletion")
}
