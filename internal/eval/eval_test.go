package eval_test

import (
	"testing"

	"github.com/rpggio/chronicle/internal/chronicleerr"
	"github.com/rpggio/chronicle/internal/container"
	"github.com/rpggio/chronicle/internal/eval"
	"github.com/rpggio/chronicle/internal/graph"
	"github.com/rpggio/chronicle/internal/idgen"
	"github.com/rpggio/chronicle/internal/merge"
	"github.com/stretchr/testify/require"
)

func recordTemplate() *container.Template {
	return container.Dict([]string{"x"}, map[string]*container.Template{"x": container.Any})
}

func stateTemplate() *container.Template {
	return container.AnyKeysDict(recordTemplate())
}

func emptyState(t *testing.T) *container.Container {
	t.Helper()
	c, err := container.New("state", stateTemplate(), container.NewDict())
	require.NoError(t, err)
	return c
}

func withRecord(t *testing.T, base *container.Container, id string, x float64) *container.Container {
	t.Helper()
	out := base.Clone()
	rv := container.NewDict()
	rv.Set("x", container.Number(x))
	require.NoError(t, out.Set(id, rv))
	return out
}

func TestLinearHistoryComputesPatchedState(t *testing.T) {
	store := graph.New(nil)
	require.NoError(t, store.Setup(""))
	trunk := idgen.TrunkBranchID
	empty := emptyState(t)

	want1 := withRecord(t, empty, "k1", 1)
	delta1, err := container.Delta(empty, want1)
	require.NoError(t, err)
	_, err = store.Update(trunk, delta1, nil)
	require.NoError(t, err)
	_, err = store.Commit(trunk)
	require.NoError(t, err)

	want2 := withRecord(t, want1, "k2", 2)
	delta2, err := container.Delta(want1, want2)
	require.NoError(t, err)
	_, err = store.Update(trunk, delta2, nil)
	require.NoError(t, err)
	v2, err := store.Commit(trunk)
	require.NoError(t, err)

	got, err := eval.ComputeState(store, v2, empty)
	require.NoError(t, err)
	require.True(t, got.Equal(want2))
}

func TestCommitIsIdempotentOnEmptyEdits(t *testing.T) {
	store := graph.New(nil)
	require.NoError(t, store.Setup(""))
	id, err := store.Commit(idgen.TrunkBranchID)
	require.NoError(t, err)
	require.Equal(t, idgen.ID(""), id)

	before := store.Versions()
	again, err := store.Commit(idgen.TrunkBranchID)
	require.NoError(t, err)
	require.Equal(t, idgen.ID(""), again)
	require.Len(t, store.Versions(), len(before))
}

func TestBranchAndMergeAllTributaryAlways(t *testing.T) {
	store := graph.New(nil)
	require.NoError(t, store.Setup(""))
	trunk := idgen.TrunkBranchID
	empty := emptyState(t)

	want1 := withRecord(t, empty, "k1", 1)
	delta1, err := container.Delta(empty, want1)
	require.NoError(t, err)
	_, err = store.Update(trunk, delta1, nil)
	require.NoError(t, err)
	_, err = store.Commit(trunk)
	require.NoError(t, err)

	b2, err := store.NewBranch(idgen.RootVersionID, "b2")
	require.NoError(t, err)

	want3 := withRecord(t, empty, "k3", 3)
	delta3, err := container.Delta(empty, want3)
	require.NoError(t, err)
	_, err = store.Update(b2, delta3, nil)
	require.NoError(t, err)
	b2Tip, err := store.Commit(b2)
	require.NoError(t, err)

	rules := merge.Rules{Default: merge.DefaultRules{All: merge.RuleTributaryAlways}}
	m, err := store.Merge(trunk, b2Tip, rules)
	require.NoError(t, err)

	got, err := eval.ComputeState(store, m, empty)
	require.NoError(t, err)
	require.True(t, got.Equal(want3), "all-tributary-always merge must equal the tributary's own state")
}

func TestRevisionCycleRejection(t *testing.T) {
	store := graph.New(nil)
	require.NoError(t, store.Setup(""))
	trunk := idgen.TrunkBranchID
	empty := emptyState(t)

	want1 := withRecord(t, empty, "k1", 1)
	delta1, err := container.Delta(empty, want1)
	require.NoError(t, err)
	_, err = store.Update(trunk, delta1, nil)
	require.NoError(t, err)
	v1, err := store.Commit(trunk)
	require.NoError(t, err)

	want2 := withRecord(t, want1, "k2", 2)
	delta2, err := container.Delta(want1, want2)
	require.NoError(t, err)
	_, err = store.Update(trunk, delta2, nil)
	require.NoError(t, err)
	v2, err := store.Commit(trunk)
	require.NoError(t, err)

	r, err := store.SetupRevision(v1)
	require.NoError(t, err)

	err = store.Revise(r, v2)
	require.ErrorIs(t, err, chronicleerr.ErrWouldCreateCycle)

	err = store.Revise(r, idgen.RootVersionID)
	require.NoError(t, err)

	// v2 is already closed: its lineage was written before the revise, so
	// its computed state is unaffected (§4.4's closed-start asymmetry).
	stillOriginal, err := eval.ComputeState(store, v2, empty)
	require.NoError(t, err)
	require.True(t, stillOriginal.Equal(want2))

	// The still-open tip sees the live revise immediately.
	trunkBranch, err := store.GetBranch(trunk)
	require.NoError(t, err)
	got, err := eval.ComputeState(store, trunkBranch.End, empty)
	require.NoError(t, err)
	want2Revised, err := container.Patch(empty, delta2)
	require.NoError(t, err)
	require.True(t, got.Equal(want2Revised), "revise must substitute the new parent at the revision's location for the open tip")
}
