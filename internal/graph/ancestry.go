package graph

import "github.com/rpggio/chronicle/internal/idgen"

// Trace is the three outputs of trace_back (§4.4).
type Trace struct {
	// Ancestors is ordered breadth-first, except that the root always
	// comes last; for a merge, the primary parent precedes the tributary.
	// Revisions are excluded unless requested.
	Ancestors []idgen.ID
	// Revisions maps every revision ID encountered to the version ID it
	// currently selects.
	Revisions map[idgen.ID]idgen.ID
	// Graph maps each non-revision ancestor to its direct effective
	// parents, with revision slots rewritten to their selected target.
	Graph map[idgen.ID][]idgen.ID
}

// traceOptions controls TraceBack's behavior.
type traceOptions struct {
	includeRevisions bool
}

// TraceOption configures TraceBack.
type TraceOption func(*traceOptions)

// IncludeRevisions makes TraceBack list revision nodes in Ancestors and
// keep them as graph nodes instead of collapsing them into their
// effective selection.
func IncludeRevisions() TraceOption {
	return func(o *traceOptions) { o.includeRevisions = true }
}

// TraceBack walks the effective ancestry of start (§4.4). The start
// version's own open/closed status governs the revision selection rule.
func (s *Store) TraceBack(start idgen.ID, opts ...TraceOption) (*Trace, error) {
	o := &traceOptions{}
	for _, fn := range opts {
		fn(o)
	}
	return s.traceBackLocked(start, o)
}

// traceBackLocked is TraceBack's body, callable from mutating operations
// that are already inside their own critical section (§5's misuse guard
// covers reentrancy; the store otherwise assumes single-writer use, so
// read helpers need no additional locking of their own).
func (s *Store) traceBackLocked(start idgen.ID, o *traceOptions) (*Trace, error) {
	start, err := s.toVersionIDLocked(start, true)
	if err != nil {
		return nil, err
	}
	startVersion, err := s.getVersionLocked(start)
	if err != nil {
		return nil, err
	}
	startOpen := startVersion.IsOpen()

	ancestors := []idgen.ID{}
	revisions := map[idgen.ID]idgen.ID{}
	pinned := map[idgen.ID]bool{}
	rawGraph := map[idgen.ID][]idgen.ID{}

	visited := map[idgen.ID]bool{}
	queue := []idgen.ID{start}
	var rootID idgen.ID

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true

		v, err := s.getVersionLocked(id)
		if err != nil {
			return nil, err
		}
		kind, err := v.Kind()
		if err != nil {
			return nil, err
		}

		switch kind {
		case KindRoot:
			// Appended after the walk, so the root always ends the list.
			rootID = id
			rawGraph[id] = nil

		case KindChange:
			ancestors = append(ancestors, id)
			rawGraph[id] = []idgen.ID{v.Previous}
			s.recordPins(v.Change.RevisionChanges, revisions, pinned)
			if v.Previous != "" {
				queue = append(queue, v.Previous)
			}

		case KindMerge:
			ancestors = append(ancestors, id)
			rawGraph[id] = []idgen.ID{v.Previous, v.Merge.Tributary}
			s.recordPins(v.Merge.RevisionChanges, revisions, pinned)
			if v.Previous != "" {
				queue = append(queue, v.Previous)
			}
			if v.Merge.Tributary != "" {
				queue = append(queue, v.Merge.Tributary)
			}

		case KindRevision:
			if o.includeRevisions {
				ancestors = append(ancestors, id)
			}
			selected, err := s.resolveRevisionSelection(id, v, start, startOpen, revisions, pinned)
			if err != nil {
				return nil, err
			}
			revisions[id] = selected
			rawGraph[id] = []idgen.ID{selected}
			queue = append(queue, selected)

		default:
			// KindUnset (an open tip with no payload yet): treat like an
			// empty change for ancestry purposes.
			ancestors = append(ancestors, id)
			rawGraph[id] = []idgen.ID{v.Previous}
			if v.Previous != "" {
				queue = append(queue, v.Previous)
			}
		}
	}
	if rootID != "" {
		ancestors = append(ancestors, rootID)
	}

	reduced := rawGraph
	if !o.includeRevisions {
		reduced = reduceGraph(rawGraph, revisions)
		filtered := ancestors[:0:0]
		for _, id := range ancestors {
			t, _ := s.getVersionLocked(id)
			if k, _ := t.Kind(); k != KindRevision {
				filtered = append(filtered, id)
			}
		}
		ancestors = filtered
	}

	return &Trace{Ancestors: ancestors, Revisions: revisions, Graph: reduced}, nil
}

// recordPins copies changes' revision_changes entries into revisions/
// pinned, honoring "first pin wins" (a later, further-upstream pin on the
// same revision never overwrites one already recorded closer to start).
func (s *Store) recordPins(changes map[idgen.ID]idgen.ID, revisions map[idgen.ID]idgen.ID, pinned map[idgen.ID]bool) {
	for rid, vid := range changes {
		if pinned[rid] {
			continue
		}
		revisions[rid] = vid
		pinned[rid] = true
	}
}

// resolveRevisionSelection implements the §4.4 selection rule.
func (s *Store) resolveRevisionSelection(id idgen.ID, v *Version, start idgen.ID, startOpen bool, revisions map[idgen.ID]idgen.ID, pinned map[idgen.ID]bool) (idgen.ID, error) {
	if startOpen {
		return s.resolveLiveSelection(v.Revision.Current)
	}
	if pinned[id] {
		return revisions[id], nil
	}
	return v.Revision.Original, nil
}

// resolveLiveSelection follows current to a closed version: if current
// names a branch, or an open version, it follows to the last closed
// version on that chain.
func (s *Store) resolveLiveSelection(current idgen.ID) (idgen.ID, error) {
	vid := current
	if t, err := idgen.TypeOf(current); err == nil && t == idgen.TypeBranch {
		b, ok := s.branches[current]
		if !ok {
			return "", errNotFound("graph.TraceBack", current)
		}
		vid = b.End
	}
	v, ok := s.versions[vid]
	if !ok {
		return "", errNotFound("graph.TraceBack", vid)
	}
	if v.IsOpen() {
		if v.Previous == "" {
			return "", errClosedRequired("graph.TraceBack", vid)
		}
		return v.Previous, nil
	}
	return vid, nil
}

// reduceGraph rewrites every parent slot that names a revision to that
// revision's resolved selection, and drops revision nodes entirely.
func reduceGraph(raw map[idgen.ID][]idgen.ID, revisions map[idgen.ID]idgen.ID) map[idgen.ID][]idgen.ID {
	out := make(map[idgen.ID][]idgen.ID, len(raw))
	for id, parents := range raw {
		if _, isRevision := revisions[id]; isRevision {
			continue
		}
		rewritten := make([]idgen.ID, len(parents))
		for i, p := range parents {
			rewritten[i] = resolveThroughRevisions(p, revisions)
		}
		out[id] = rewritten
	}
	return out
}

func resolveThroughRevisions(id idgen.ID, revisions map[idgen.ID]idgen.ID) idgen.ID {
	for {
		sel, ok := revisions[id]
		if !ok {
			return id
		}
		id = sel
	}
}

// Ancestry is ancestry(v) = trace_back(v).ancestors (§4.4).
func (s *Store) Ancestry(v idgen.ID, opts ...TraceOption) ([]idgen.ID, error) {
	t, err := s.TraceBack(v, opts...)
	if err != nil {
		return nil, err
	}
	return t.Ancestors, nil
}

// RevisionState is revision_state(v) = trace_back(v).revisions (§4.4).
func (s *Store) RevisionState(v idgen.ID) (map[idgen.ID]idgen.ID, error) {
	t, err := s.TraceBack(v)
	if err != nil {
		return nil, err
	}
	return t.Revisions, nil
}

// Graph is graph(v) = trace_back(v).graph (§4.4).
func (s *Store) Graph(v idgen.ID) (map[idgen.ID][]idgen.ID, error) {
	t, err := s.TraceBack(v)
	if err != nil {
		return nil, err
	}
	return t.Graph, nil
}

// FindLCA returns the first element of ancestry(a) that also appears in
// ancestry(b) (§4.4). Invariant 1 guarantees one always exists.
func (s *Store) FindLCA(a, b idgen.ID) (idgen.ID, error) {
	aa, err := s.Ancestry(a)
	if err != nil {
		return "", err
	}
	ab, err := s.Ancestry(b)
	if err != nil {
		return "", err
	}
	inB := make(map[idgen.ID]bool, len(ab))
	for _, id := range ab {
		inB[id] = true
	}
	for _, id := range aa {
		if inB[id] {
			return id, nil
		}
	}
	return "", errNoLCA("graph.FindLCA", a, b)
}
