package graph

import (
	"time"

	"github.com/rpggio/chronicle/internal/container"
	"github.com/rpggio/chronicle/internal/idgen"
	"github.com/rpggio/chronicle/internal/merge"
)

// Setup initializes an empty store's id-info, root version, and trunk
// branch with a single open end successor (§4.5).
func (s *Store) Setup(user string) error {
	defer s.enter("graph.Setup")()

	s.id = IDInfo{User: user}

	open := s.nextID(idgen.TypeVersion)

	root := &Version{ID: idgen.RootVersionID, Root: true, Next: open, BranchesOut: []idgen.ID{idgen.TrunkBranchID}}
	tip := &Version{ID: open, Previous: idgen.RootVersionID, Branch: idgen.TrunkBranchID}
	trunk := &Branch{ID: idgen.TrunkBranchID, Name: "trunk", Start: open, End: open}

	s.versions[root.ID] = root
	s.versions[tip.ID] = tip
	s.branches[trunk.ID] = trunk

	s.notify(Event{Kind: "setup", VersionID: root.ID, BranchID: trunk.ID})
	return nil
}

// Update resolves branchID's open tip and replaces its change deltas
// (and unchecked, if given) wholesale (§4.5). deltas is the container
// holding the branch's new record-delta payload.
func (s *Store) Update(branchID idgen.ID, deltas *container.Container, unchecked map[string][]string) (idgen.ID, error) {
	defer s.enter("graph.Update")()

	b, err := s.getBranchLocked(branchID)
	if err != nil {
		return "", err
	}
	v, err := s.getVersionLocked(b.End)
	if err != nil {
		return "", err
	}
	kind, err := v.Kind()
	if err != nil {
		return "", err
	}
	if kind == KindMerge || kind == KindRevision {
		return "", errWrongKind("graph.Update", v.ID, "change or kindless")
	}
	if v.Change == nil {
		v.Change = &ChangePayload{}
	}
	v.Change.Deltas = deltas
	if unchecked != nil {
		v.Change.Unchecked = unchecked
	}

	s.notify(Event{Kind: "update", VersionID: v.ID, BranchID: branchID})
	return v.ID, nil
}

// Commit closes branch_id's open tip, recording any revision-selection
// drift, and opens a fresh tip (§4.5). Returns "" (null) when there was
// nothing to commit.
func (s *Store) Commit(branchID idgen.ID) (idgen.ID, error) {
	defer s.enter("graph.Commit")()

	b, err := s.getBranchLocked(branchID)
	if err != nil {
		return "", err
	}
	v, err := s.getVersionLocked(b.End)
	if err != nil {
		return "", err
	}
	kind, err := v.Kind()
	if err != nil {
		return "", err
	}
	if kind != KindChange && kind != KindUnset {
		return "", errWrongKind("graph.Commit", v.ID, "change or kindless")
	}
	if kind == KindChange && len(v.Change.Unchecked) > 0 {
		return "", errPendingReview("graph.Commit", v.ID)
	}

	revisions, err := s.traceRevisionsLocked(v.ID)
	if err != nil {
		return "", err
	}
	var previousRevisions map[idgen.ID]idgen.ID
	if v.Previous != "" {
		previousRevisions, err = s.traceRevisionsLocked(v.Previous)
		if err != nil {
			return "", err
		}
	}
	changed := revisionsDiffer(revisions, previousRevisions)

	hasDeltas := v.Change != nil && v.Change.Deltas != nil
	if !hasDeltas && !changed {
		return "", nil
	}
	if kind == KindUnset && changed {
		v.Change = &ChangePayload{}
	}
	if changed {
		diff := map[idgen.ID]idgen.ID{}
		for r, sel := range revisions {
			if prevSel, ok := previousRevisions[r]; !ok || prevSel != sel {
				diff[r] = sel
			}
		}
		if v.Change == nil {
			v.Change = &ChangePayload{}
		}
		v.Change.RevisionChanges = diff
	}

	s.migrateFloatingRevisions(v.Previous, v.ID)

	v.Timestamp = time.Now()
	next := s.nextID(idgen.TypeVersion)
	nextVersion := &Version{ID: next, Previous: v.ID, Branch: branchID}
	v.Next = next
	s.versions[next] = nextVersion
	b.End = next

	s.notify(Event{Kind: "commit", VersionID: v.ID, BranchID: branchID})
	return v.ID, nil
}

// NewBranch forks a new branch rooted just after versionID, which must be
// closed (§4.5).
func (s *Store) NewBranch(versionID idgen.ID, name string) (idgen.ID, error) {
	defer s.enter("graph.NewBranch")()

	source, err := s.getVersionLocked(versionID)
	if err != nil {
		return "", err
	}
	if source.IsOpen() {
		return "", errClosedRequired("graph.NewBranch", versionID)
	}

	branchID := s.nextID(idgen.TypeBranch)
	startID := s.nextID(idgen.TypeVersion)
	start := &Version{ID: startID, Previous: versionID, Branch: branchID}
	branch := &Branch{ID: branchID, Name: name, Start: startID, End: startID}

	s.versions[startID] = start
	s.branches[branchID] = branch
	source.BranchesOut = append(source.BranchesOut, branchID)

	s.notify(Event{Kind: "new_branch", VersionID: startID, BranchID: branchID})
	return branchID, nil
}

// Merge three-way merges tributaryVersionID into primaryBranchID's open
// tip, which must carry no uncommitted changes, under the given rules
// (§4.5, §4.6).
func (s *Store) Merge(primaryBranchID, tributaryVersionID idgen.ID, rules merge.Rules) (idgen.ID, error) {
	defer s.enter("graph.Merge")()

	primary, err := s.getBranchLocked(primaryBranchID)
	if err != nil {
		return "", err
	}
	m, err := s.getVersionLocked(primary.End)
	if err != nil {
		return "", err
	}
	kind, err := m.Kind()
	if err != nil {
		return "", err
	}
	if kind == KindMerge || kind == KindRevision {
		return "", errWrongKind("graph.Merge", m.ID, "change or kindless")
	}
	if kind == KindChange {
		return "", errWrongKind("graph.Merge", m.ID, "kindless (no uncommitted changes on primary)")
	}

	tributary, err := s.getVersionLocked(tributaryVersionID)
	if err != nil {
		return "", err
	}
	if tributary.IsOpen() {
		return "", errClosedRequired("graph.Merge", tributaryVersionID)
	}

	var primarySelections map[idgen.ID]idgen.ID
	if m.Previous != "" {
		primarySelections, err = s.traceRevisionsLocked(m.Previous)
		if err != nil {
			return "", err
		}
	}
	tributarySelections, err := s.traceRevisionsLocked(tributaryVersionID)
	if err != nil {
		return "", err
	}
	revisionChanges := map[idgen.ID]idgen.ID{}
	for r, primarySel := range primarySelections {
		if tribSel, ok := tributarySelections[r]; ok && tribSel != primarySel {
			revisionChanges[r] = primarySel
		}
	}

	m.Merge = &MergePayload{Tributary: tributaryVersionID, Rules: rules}
	if len(revisionChanges) > 0 {
		m.Merge.RevisionChanges = revisionChanges
	}

	s.migrateFloatingRevisions(m.Previous, m.ID)

	m.Timestamp = time.Now()
	tributary.MergedTo = append(tributary.MergedTo, m.ID)

	next := s.nextID(idgen.TypeVersion)
	nextVersion := &Version{ID: next, Previous: m.ID, Branch: primaryBranchID}
	m.Next = next
	s.versions[next] = nextVersion
	primary.End = next

	s.notify(Event{Kind: "merge", VersionID: m.ID, BranchID: primaryBranchID})
	return m.ID, nil
}

// SetupRevision splices a revision node in just after prevVersionID, which
// must be closed, transferring its back-edges (§4.5).
func (s *Store) SetupRevision(prevVersionID idgen.ID) (idgen.ID, error) {
	defer s.enter("graph.SetupRevision")()

	prev, err := s.getVersionLocked(prevVersionID)
	if err != nil {
		return "", err
	}
	if prev.IsOpen() {
		return "", errClosedRequired("graph.SetupRevision", prevVersionID)
	}
	next, err := s.getVersionLocked(prev.Next)
	if err != nil {
		return "", err
	}

	rid := s.nextID(idgen.TypeVersion)
	r := &Version{
		ID:        rid,
		Revision:  &RevisionPayload{Original: prevVersionID, Current: prevVersionID},
		Previous:  prevVersionID,
		Next:      prev.Next,
		Branch:    prev.Branch,
		Timestamp: time.Now(),
	}

	prev.Next = rid
	next.Previous = rid

	for _, branchID := range prev.BranchesOut {
		if b, ok := s.branches[branchID]; ok {
			if startV, ok := s.versions[b.Start]; ok {
				startV.Previous = rid
			}
		}
	}
	for _, mergeID := range prev.MergedTo {
		if mv, ok := s.versions[mergeID]; ok && mv.Merge != nil {
			mv.Merge.Tributary = rid
		}
	}
	for _, usingID := range prev.RevisionsUsing {
		if uv, ok := s.versions[usingID]; ok && uv.Revision != nil {
			uv.Revision.Current = rid
		}
	}
	r.BranchesOut = prev.BranchesOut
	r.MergedTo = prev.MergedTo
	r.RevisionsUsing = prev.RevisionsUsing
	prev.BranchesOut = nil
	prev.MergedTo = nil
	prev.RevisionsUsing = nil

	prev.RevisionsUsing = append(prev.RevisionsUsing, rid)
	s.versions[rid] = r

	s.notify(Event{Kind: "setup_revision", VersionID: rid})
	return rid, nil
}

// Revise retargets revisionID's current selection to newID, which may
// name a branch (tracking its tip) or a concrete closed version (§4.5).
func (s *Store) Revise(revisionID, newID idgen.ID) error {
	defer s.enter("graph.Revise")()

	r, err := s.getVersionLocked(revisionID)
	if err != nil {
		return err
	}
	if r.Revision == nil {
		return errWrongKind("graph.Revise", revisionID, "revision")
	}

	nv, err := s.toVersionIDLocked(newID, false)
	if err != nil {
		return err
	}
	trace, err := s.traceBackLocked(nv, &traceOptions{includeRevisions: true})
	if err != nil {
		return err
	}
	for _, id := range trace.Ancestors {
		if id == revisionID {
			return errWouldCreateCycle("graph.Revise", revisionID)
		}
	}

	// The back-edge always lives on the concrete closed version a
	// selection currently resolves to, never on a branch ID directly:
	// when current (or newID) names a branch, that's nv's resolution
	// (already computed above) for newID, and the live resolution of
	// whatever current held for the old side. migrateFloatingRevisions
	// relies on finding the edge there to carry it forward on commit.
	oldTarget, err := s.resolveLiveSelection(r.Revision.Current)
	if err != nil {
		return err
	}
	if old, ok := s.versions[oldTarget]; ok {
		old.RevisionsUsing = removeID(old.RevisionsUsing, revisionID)
	}
	if nvv, ok := s.versions[nv]; ok {
		nvv.RevisionsUsing = append(nvv.RevisionsUsing, revisionID)
	}
	r.Revision.Current = newID

	s.notify(Event{Kind: "revise", VersionID: revisionID})
	return nil
}

func removeID(list []idgen.ID, id idgen.ID) []idgen.ID {
	out := list[:0]
	for _, x := range list {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

// migrateFloatingRevisions moves every revision in fromID.RevisionsUsing
// whose current names a branch (rather than a concrete version) over to
// toID's list: it now floats on the new tip (§4.5 commit step 6).
func (s *Store) migrateFloatingRevisions(fromID, toID idgen.ID) {
	if fromID == "" {
		return
	}
	from, ok := s.versions[fromID]
	if !ok {
		return
	}
	to, ok := s.versions[toID]
	if !ok {
		return
	}
	remaining := from.RevisionsUsing[:0]
	for _, rid := range from.RevisionsUsing {
		rv, ok := s.versions[rid]
		if !ok || rv.Revision == nil {
			remaining = append(remaining, rid)
			continue
		}
		t, err := idgen.TypeOf(rv.Revision.Current)
		if err == nil && t == idgen.TypeBranch {
			to.RevisionsUsing = append(to.RevisionsUsing, rid)
		} else {
			remaining = append(remaining, rid)
		}
	}
	from.RevisionsUsing = remaining
}

func (s *Store) traceRevisionsLocked(id idgen.ID) (map[idgen.ID]idgen.ID, error) {
	t, err := s.traceBackLocked(id, &traceOptions{})
	if err != nil {
		return nil, err
	}
	return t.Revisions, nil
}

func revisionsDiffer(a, b map[idgen.ID]idgen.ID) bool {
	if len(a) != len(b) {
		return true
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return true
		}
	}
	return false
}
