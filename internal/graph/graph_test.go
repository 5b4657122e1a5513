package graph_test

import (
	"testing"

	"github.com/rpggio/chronicle/internal/chronicleerr"
	"github.com/rpggio/chronicle/internal/container"
	"github.com/rpggio/chronicle/internal/graph"
	"github.com/rpggio/chronicle/internal/idgen"
	"github.com/rpggio/chronicle/internal/merge"
	"github.com/stretchr/testify/require"
)

func testStateTemplate() *container.Template {
	record := container.Dict([]string{"x"}, map[string]*container.Template{"x": container.Any})
	return container.AnyKeysDict(record)
}

func emptyTestState(t *testing.T) *container.Container {
	t.Helper()
	c, err := container.New("state", testStateTemplate(), container.NewDict())
	require.NoError(t, err)
	return c
}

func addRecordDelta(t *testing.T, id string) *container.Container {
	t.Helper()
	empty := emptyTestState(t)
	target := empty.Clone()
	rv := container.NewDict()
	rv.Set("x", container.Number(1))
	require.NoError(t, target.Set(id, rv))
	delta, err := container.Delta(empty, target)
	require.NoError(t, err)
	return delta
}

func TestSetupCreatesRootAndTrunk(t *testing.T) {
	s := graph.New(nil)
	require.NoError(t, s.Setup("u"))

	root, err := s.GetVersion(idgen.RootVersionID)
	require.NoError(t, err)
	require.True(t, root.Root)
	require.NotEmpty(t, root.Next)

	trunk, err := s.GetBranch(idgen.TrunkBranchID)
	require.NoError(t, err)
	require.Equal(t, trunk.Start, trunk.End)

	tip, err := s.GetVersion(trunk.End)
	require.NoError(t, err)
	require.True(t, tip.IsOpen())
	require.Equal(t, idgen.RootVersionID, tip.Previous)
}

func TestAncestryStartsAtSelfEndsAtRootNoDuplicates(t *testing.T) {
	s := graph.New(nil)
	require.NoError(t, s.Setup(""))
	trunk := idgen.TrunkBranchID

	b2, err := s.NewBranch(idgen.RootVersionID, "b2")
	require.NoError(t, err)
	_, err = s.Update(b2, addRecordDelta(t, "k2"), nil)
	require.NoError(t, err)
	_, err = s.Commit(b2)
	require.NoError(t, err)
	b2Tip, err := s.ToVersionID(b2, false)
	require.NoError(t, err)

	m, err := s.Merge(trunk, b2Tip, merge.Rules{Default: merge.DefaultRules{All: merge.RulePrimaryAlways}})
	require.NoError(t, err)

	ancestry, err := s.Ancestry(m)
	require.NoError(t, err)

	require.Equal(t, m, ancestry[0])
	require.Equal(t, idgen.RootVersionID, ancestry[len(ancestry)-1])

	seen := map[idgen.ID]bool{}
	for _, id := range ancestry {
		require.False(t, seen[id], "ancestry must not repeat %q", id)
		seen[id] = true
	}
}

func TestFindLCAIsSharedAncestor(t *testing.T) {
	s := graph.New(nil)
	require.NoError(t, s.Setup(""))
	trunk := idgen.TrunkBranchID

	b2, err := s.NewBranch(idgen.RootVersionID, "b2")
	require.NoError(t, err)
	_, err = s.Update(b2, addRecordDelta(t, "k2"), nil)
	require.NoError(t, err)
	b2Tip, err := s.Commit(b2)
	require.NoError(t, err)

	lca, err := s.FindLCA(trunk, b2Tip)
	require.NoError(t, err)

	aTrunk, err := s.Ancestry(trunk)
	require.NoError(t, err)
	aTip, err := s.Ancestry(b2Tip)
	require.NoError(t, err)

	require.Contains(t, aTrunk, lca)
	require.Contains(t, aTip, lca)
}

func TestNewBranchRequiresClosedSource(t *testing.T) {
	s := graph.New(nil)
	require.NoError(t, s.Setup(""))

	trunk, err := s.GetBranch(idgen.TrunkBranchID)
	require.NoError(t, err)

	_, err = s.NewBranch(trunk.End, "doomed")
	require.ErrorIs(t, err, chronicleerr.ErrClosedRequired)
}

func TestMergeRequiresClosedTributary(t *testing.T) {
	s := graph.New(nil)
	require.NoError(t, s.Setup(""))

	b2, err := s.NewBranch(idgen.RootVersionID, "b2")
	require.NoError(t, err)
	b2Branch, err := s.GetBranch(b2)
	require.NoError(t, err)

	_, err = s.Merge(idgen.TrunkBranchID, b2Branch.End, merge.Rules{Default: merge.DefaultRules{All: merge.RulePrimaryAlways}})
	require.ErrorIs(t, err, chronicleerr.ErrClosedRequired)
}

func TestReviseOntoBranchMigratesOnCommit(t *testing.T) {
	s := graph.New(nil)
	require.NoError(t, s.Setup(""))
	trunk := idgen.TrunkBranchID

	_, err := s.Update(trunk, addRecordDelta(t, "k1"), nil)
	require.NoError(t, err)
	v1, err := s.Commit(trunk)
	require.NoError(t, err)

	b2, err := s.NewBranch(idgen.RootVersionID, "b2")
	require.NoError(t, err)

	r, err := s.SetupRevision(v1)
	require.NoError(t, err)

	v1Version, err := s.GetVersion(v1)
	require.NoError(t, err)
	require.Contains(t, v1Version.RevisionsUsing, r)

	require.NoError(t, s.Revise(r, b2))

	root, err := s.GetVersion(idgen.RootVersionID)
	require.NoError(t, err)
	require.Contains(t, root.RevisionsUsing, r, "revising onto a branch resolves the back-edge to its live closed predecessor")

	v1Version, err = s.GetVersion(v1)
	require.NoError(t, err)
	require.NotContains(t, v1Version.RevisionsUsing, r)

	_, err = s.Update(b2, addRecordDelta(t, "k2"), nil)
	require.NoError(t, err)
	b2Closed, err := s.Commit(b2)
	require.NoError(t, err)

	root, err = s.GetVersion(idgen.RootVersionID)
	require.NoError(t, err)
	require.NotContains(t, root.RevisionsUsing, r, "the back-edge must migrate off its old resolution once the branch commits")

	b2ClosedVersion, err := s.GetVersion(b2Closed)
	require.NoError(t, err)
	require.Contains(t, b2ClosedVersion.RevisionsUsing, r, "the floating back-edge must follow the branch's new closed tip")
}

func withoutID(list []idgen.ID, id idgen.ID) []idgen.ID {
	out := make([]idgen.ID, 0, len(list))
	for _, x := range list {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

// wellFormedStore builds a store exercising every kind (change, merge,
// revision) and returns it alongside the ids CheckWellFormed's test
// cases corrupt: v1 (trunk's first closed change), m (the merge that
// absorbs b2), r (a revision spliced after v1), and v2 (trunk's second
// closed change, downstream of both m and r).
func wellFormedStore(t *testing.T) (s *graph.Store, v1, m, r, v2 idgen.ID) {
	t.Helper()
	s = graph.New(nil)
	require.NoError(t, s.Setup(""))
	trunk := idgen.TrunkBranchID

	_, err := s.Update(trunk, addRecordDelta(t, "k1"), nil)
	require.NoError(t, err)
	v1, err = s.Commit(trunk)
	require.NoError(t, err)

	b2, err := s.NewBranch(idgen.RootVersionID, "b2")
	require.NoError(t, err)
	_, err = s.Update(b2, addRecordDelta(t, "k2"), nil)
	require.NoError(t, err)
	b2Closed, err := s.Commit(b2)
	require.NoError(t, err)

	m, err = s.Merge(trunk, b2Closed, merge.Rules{Default: merge.DefaultRules{All: merge.RulePrimaryAlways}})
	require.NoError(t, err)

	r, err = s.SetupRevision(v1)
	require.NoError(t, err)

	_, err = s.Update(trunk, addRecordDelta(t, "k3"), nil)
	require.NoError(t, err)
	v2, err = s.Commit(trunk)
	require.NoError(t, err)

	return s, v1, m, r, v2
}

func TestCheckWellFormedAcceptsAWellFormedStore(t *testing.T) {
	s, _, _, _, _ := wellFormedStore(t)
	require.NoError(t, s.CheckWellFormed())
}

func TestCheckWellFormedCatchesViolations(t *testing.T) {
	cases := []struct {
		name    string
		corrupt func(t *testing.T, s *graph.Store, v1, m, r, v2 idgen.ID)
		wantErr error
	}{
		{
			name: "version has more than one kind",
			corrupt: func(t *testing.T, s *graph.Store, v1, m, r, v2 idgen.ID) {
				v, err := s.GetVersion(v1)
				require.NoError(t, err)
				v.Root = true
			},
			wantErr: chronicleerr.ErrMultipleKinds,
		},
		{
			name: "branch end is not open",
			corrupt: func(t *testing.T, s *graph.Store, v1, m, r, v2 idgen.ID) {
				b, err := s.GetBranch(idgen.TrunkBranchID)
				require.NoError(t, err)
				b.End = v1
			},
			wantErr: chronicleerr.ErrWrongKind,
		},
		{
			name: "merged_to carries a spurious entry",
			corrupt: func(t *testing.T, s *graph.Store, v1, m, r, v2 idgen.ID) {
				v, err := s.GetVersion(v1)
				require.NoError(t, err)
				v.MergedTo = append(v.MergedTo, m)
			},
			wantErr: chronicleerr.ErrWrongKind,
		},
		{
			name: "revision current is its own descendant",
			corrupt: func(t *testing.T, s *graph.Store, v1, m, r, v2 idgen.ID) {
				v1Version, err := s.GetVersion(v1)
				require.NoError(t, err)
				v1Version.RevisionsUsing = withoutID(v1Version.RevisionsUsing, r)

				mVersion, err := s.GetVersion(m)
				require.NoError(t, err)
				mVersion.RevisionsUsing = append(mVersion.RevisionsUsing, r)

				rv, err := s.GetVersion(r)
				require.NoError(t, err)
				rv.Revision.Current = m
			},
			wantErr: chronicleerr.ErrWouldCreateCycle,
		},
		{
			name: "revision_changes pins a value already inherited",
			corrupt: func(t *testing.T, s *graph.Store, v1, m, r, v2 idgen.ID) {
				inherited, err := s.RevisionState(m)
				require.NoError(t, err)
				v2Version, err := s.GetVersion(v2)
				require.NoError(t, err)
				v2Version.Change.RevisionChanges = map[idgen.ID]idgen.ID{r: inherited[r]}
			},
			wantErr: chronicleerr.ErrWrongKind,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, v1, m, r, v2 := wellFormedStore(t)
			tc.corrupt(t, s, v1, m, r, v2)
			err := s.CheckWellFormed()
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestBackEdgesAreMutual(t *testing.T) {
	s := graph.New(nil)
	require.NoError(t, s.Setup(""))

	b2, err := s.NewBranch(idgen.RootVersionID, "b2")
	require.NoError(t, err)

	root, err := s.GetVersion(idgen.RootVersionID)
	require.NoError(t, err)
	require.Contains(t, root.BranchesOut, idgen.TrunkBranchID)
	require.Contains(t, root.BranchesOut, b2)

	b2Branch, err := s.GetBranch(b2)
	require.NoError(t, err)
	b2Start, err := s.GetVersion(b2Branch.Start)
	require.NoError(t, err)
	require.Equal(t, idgen.RootVersionID, b2Start.Previous)
}
