package graph

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/rpggio/chronicle/internal/idgen"
)

// View is a persisted placeholder entity under the views/ namespace (§6);
// the view/presentation layer itself is out of scope and referenced only
// through Store.Subscribe.
type View struct {
	ID   idgen.ID `json:"id"`
	Name string   `json:"name"`
}

// IDInfo is the per-type monotonic counter block (§3, §6).
type IDInfo struct {
	User        string
	NextVersion idgen.ID
	NextBranch  idgen.ID
	NextView    idgen.ID
}

// Event is delivered to subscribers after a mutating operation commits
// (§5). Kind names the operation; VersionID/BranchID name what changed,
// whichever applies.
type Event struct {
	Kind      string
	VersionID idgen.ID
	BranchID  idgen.ID
}

// Store holds the in-memory version graph: the persistent maps of §4.3
// plus the id-info counters, mutated only by the operations in ops.go.
// It is single-writer and non-reentrant (§5, §9): a second mutating call
// from inside an observer callback panics rather than corrupting state.
type Store struct {
	log *slog.Logger

	mu       sync.Mutex
	busy     bool
	id       IDInfo
	versions map[idgen.ID]*Version
	branches map[idgen.ID]*Branch
	views    map[idgen.ID]*View

	subs map[uuid.UUID]func(Event)
}

// New constructs an empty Store. Call Setup to populate the root version
// and trunk branch, or load one from internal/storage.
func New(log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		log:      log,
		versions: make(map[idgen.ID]*Version),
		branches: make(map[idgen.ID]*Branch),
		views:    make(map[idgen.ID]*View),
		subs:     make(map[uuid.UUID]func(Event)),
	}
}

// IDInfo returns a copy of the current counter block, for persistence.
func (s *Store) IDInfo() IDInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Versions returns a snapshot slice of all versions, for persistence.
func (s *Store) Versions() []*Version {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Version, 0, len(s.versions))
	for _, v := range s.versions {
		out = append(out, v)
	}
	return out
}

// Branches returns a snapshot slice of all branches, for persistence.
func (s *Store) Branches() []*Branch {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Branch, 0, len(s.branches))
	for _, b := range s.branches {
		out = append(out, b)
	}
	return out
}

// LoadVersion inserts a version read from storage directly into the
// store, bypassing the id-allocation and invariant bookkeeping the
// mutating operations perform. Used only by internal/storage on load.
func (s *Store) LoadVersion(v *Version) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions[v.ID] = v
}

// LoadBranch is LoadVersion's counterpart for branches.
func (s *Store) LoadBranch(b *Branch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.branches[b.ID] = b
}

// LoadIDInfo seeds the counter block read from storage.
func (s *Store) LoadIDInfo(id IDInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
}

// GetVersion returns the version at id, or *not-found*.
func (s *Store) GetVersion(id idgen.ID) (*Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getVersionLocked(id)
}

func (s *Store) getVersionLocked(id idgen.ID) (*Version, error) {
	v, ok := s.versions[id]
	if !ok {
		return nil, errNotFound("graph.GetVersion", id)
	}
	return v, nil
}

// GetBranch returns the branch at id, or *not-found*.
func (s *Store) GetBranch(id idgen.ID) (*Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getBranchLocked(id)
}

func (s *Store) getBranchLocked(id idgen.ID) (*Branch, error) {
	b, ok := s.branches[id]
	if !ok {
		return nil, errNotFound("graph.GetBranch", id)
	}
	return b, nil
}

// VersionKind returns v's tagged kind (§4.3).
func (s *Store) VersionKind(id idgen.ID) (Kind, error) {
	v, err := s.GetVersion(id)
	if err != nil {
		return 0, err
	}
	return v.Kind()
}

// IsOpen reports whether the version at id has no successor.
func (s *Store) IsOpen(id idgen.ID) (bool, error) {
	v, err := s.GetVersion(id)
	if err != nil {
		return false, err
	}
	return v.IsOpen(), nil
}

// ToVersionID resolves a branch ID to its end, or a version ID to itself;
// when allowOpen is false, an open tip resolves to its previous version,
// failing with *closed-required* if none exists (§4.3).
func (s *Store) ToVersionID(id idgen.ID, allowOpen bool) (idgen.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toVersionIDLocked(id, allowOpen)
}

func (s *Store) toVersionIDLocked(id idgen.ID, allowOpen bool) (idgen.ID, error) {
	vid := id
	if t, err := idgen.TypeOf(id); err == nil && t == idgen.TypeBranch {
		b, ok := s.branches[id]
		if !ok {
			return "", errNotFound("graph.ToVersionID", id)
		}
		vid = b.End
	}
	if allowOpen {
		return vid, nil
	}
	v, ok := s.versions[vid]
	if !ok {
		return "", errNotFound("graph.ToVersionID", vid)
	}
	if v.IsOpen() {
		if v.Previous == "" {
			return "", errClosedRequired("graph.ToVersionID", vid)
		}
		return v.Previous, nil
	}
	return vid, nil
}

// nextID allocates and advances the counter for t.
func (s *Store) nextID(t idgen.Type) idgen.ID {
	switch t {
	case idgen.TypeVersion:
		if s.id.NextVersion == "" {
			s.id.NextVersion = idgen.Start(idgen.TypeVersion, s.id.User)
		}
		id := s.id.NextVersion
		s.id.NextVersion, _ = idgen.Next(id)
		return id
	case idgen.TypeBranch:
		if s.id.NextBranch == "" {
			s.id.NextBranch = idgen.Start(idgen.TypeBranch, s.id.User)
		}
		id := s.id.NextBranch
		s.id.NextBranch, _ = idgen.Next(id)
		return id
	case idgen.TypeView:
		if s.id.NextView == "" {
			s.id.NextView = idgen.Start(idgen.TypeView, s.id.User)
		}
		id := s.id.NextView
		s.id.NextView, _ = idgen.Next(id)
		return id
	}
	return ""
}

// enter acquires the misuse guard; a mutating operation called re-entrantly
// (e.g. from inside an observer callback) panics rather than deadlocking
// or corrupting state: a single in-process writer is assumed throughout.
func (s *Store) enter(op string) func() {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		panic("graph: " + op + " called re-entrantly")
	}
	s.busy = true
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}
}

// notify delivers ev to every subscriber, synchronously, without holding
// s.mu. It runs before the calling operation returns, so that operation's
// misuse guard is still set and a subscriber that calls a mutating
// operation panics (§5).
func (s *Store) notify(ev Event) {
	s.mu.Lock()
	subs := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// Subscribe registers fn to be called, synchronously, after every
// mutating operation. It returns a handle for Unsubscribe.
func (s *Store) Subscribe(fn func(Event)) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	handle := uuid.New()
	s.subs[handle] = fn
	return handle
}

// Unsubscribe removes the subscriber registered under handle.
func (s *Store) Unsubscribe(handle uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, handle)
}

// CheckWellFormed walks every version and branch and re-validates
// invariants 1-6 from §3, returning the first violation found. This is a
// supplemented diagnostic (not in the distilled operation list) grounded
// on the original's ad-hoc consistency assertions scattered through its
// test suite.
func (s *Store) CheckWellFormed() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.versions[idgen.RootVersionID]; !ok {
		return errNotFound("graph.CheckWellFormed", idgen.RootVersionID)
	}

	// Invariant 3: exactly one kind; non-root has a previous.
	for id, v := range s.versions {
		if _, err := v.Kind(); err != nil {
			return err
		}
		if id != idgen.RootVersionID && v.Previous == "" {
			return errWrongKind("graph.CheckWellFormed", id, "non-root version must have a previous")
		}
	}

	// Invariant 2: each branch's chain from start to end is contiguous,
	// and end is open.
	for id, b := range s.branches {
		v, ok := s.versions[b.Start]
		if !ok {
			return errNotFound("graph.CheckWellFormed", b.Start)
		}
		count := 0
		for {
			count++
			if v.ID == b.End {
				break
			}
			if v.Next == "" {
				return errWrongKind("graph.CheckWellFormed", id, "branch chain does not reach its end")
			}
			next, ok := s.versions[v.Next]
			if !ok {
				return errNotFound("graph.CheckWellFormed", v.Next)
			}
			v = next
			if count > len(s.versions)+1 {
				return errWrongKind("graph.CheckWellFormed", id, "branch chain does not terminate")
			}
		}
		if !v.IsOpen() {
			return errWrongKind("graph.CheckWellFormed", id, "branch end must be open")
		}
	}

	// Invariant 1: the root is an ancestor of every version (itself
	// included, trivially).
	for id := range s.versions {
		if id == idgen.RootVersionID {
			continue
		}
		trace, err := s.traceBackLocked(id, &traceOptions{includeRevisions: true})
		if err != nil {
			return err
		}
		found := false
		for _, aid := range trace.Ancestors {
			if aid == idgen.RootVersionID {
				found = true
				break
			}
		}
		if !found {
			return errWrongKind("graph.CheckWellFormed", id, "does not have the root in its ancestry")
		}
	}

	// Invariant 4: merged_to/revisions_using/branches_out are exactly the
	// back-edges their forward edges imply, maintained mutually.
	expectedMergedTo := map[idgen.ID]map[idgen.ID]bool{}
	expectedRevisionsUsing := map[idgen.ID]map[idgen.ID]bool{}
	expectedBranchesOut := map[idgen.ID]map[idgen.ID]bool{}
	for id, v := range s.versions {
		if v.Merge != nil && v.Merge.Tributary != "" {
			addBackEdge(expectedMergedTo, v.Merge.Tributary, id)
		}
		if v.Revision != nil && v.Revision.Current != "" {
			// The back-edge lives on the concrete closed version a
			// selection currently resolves to, not literally on a
			// branch ID when the revision floats (see graph.Revise).
			resolved, err := s.resolveLiveSelection(v.Revision.Current)
			if err != nil {
				return err
			}
			addBackEdge(expectedRevisionsUsing, resolved, id)
		}
	}
	for bid, b := range s.branches {
		startV, ok := s.versions[b.Start]
		if ok && startV.Previous != "" {
			addBackEdge(expectedBranchesOut, startV.Previous, bid)
		}
	}
	for id, v := range s.versions {
		if !sameIDSet(v.MergedTo, expectedMergedTo[id]) {
			return errWrongKind("graph.CheckWellFormed", id, "merged_to does not match the merges whose tributary is this version")
		}
		if !sameIDSet(v.RevisionsUsing, expectedRevisionsUsing[id]) {
			return errWrongKind("graph.CheckWellFormed", id, "revisions_using does not match the revisions currently selecting this version")
		}
		if !sameIDSet(v.BranchesOut, expectedBranchesOut[id]) {
			return errWrongKind("graph.CheckWellFormed", id, "branches_out does not match the branches rooted here")
		}
	}

	// Invariant 5: a revision's current must not be its own descendant.
	for id, v := range s.versions {
		if v.Revision == nil || v.Revision.Current == "" {
			continue
		}
		resolved, err := s.toVersionIDLocked(v.Revision.Current, true)
		if err != nil {
			return err
		}
		trace, err := s.traceBackLocked(resolved, &traceOptions{includeRevisions: true})
		if err != nil {
			return err
		}
		for _, aid := range trace.Ancestors {
			if aid == id {
				return errWouldCreateCycle("graph.CheckWellFormed", id)
			}
		}
	}

	// Invariant 6: revision_changes entries on a non-revision version
	// only record a selection that differs from what would be inherited
	// absent the pin. A change's only parent is previous, so that's the
	// baseline; a merge's own previous would trivially echo back
	// whatever the merge itself just pinned there (it's computed from
	// it), so tributary — the other side a pin can diverge from — is
	// the baseline instead.
	for id, v := range s.versions {
		var changes map[idgen.ID]idgen.ID
		var baseline idgen.ID
		switch {
		case v.Change != nil:
			changes = v.Change.RevisionChanges
			baseline = v.Previous
		case v.Merge != nil:
			changes = v.Merge.RevisionChanges
			baseline = v.Merge.Tributary
		}
		if len(changes) == 0 {
			continue
		}
		var inherited map[idgen.ID]idgen.ID
		if baseline != "" {
			trace, err := s.traceBackLocked(baseline, &traceOptions{})
			if err != nil {
				return err
			}
			inherited = trace.Revisions
		}
		for rid, sel := range changes {
			if prevSel, ok := inherited[rid]; ok && prevSel == sel {
				return errWrongKind("graph.CheckWellFormed", id, "revision_changes records a pin identical to the inherited selection for "+string(rid))
			}
		}
	}

	return nil
}

// addBackEdge records that target has a back-edge from source under the
// expected-edges accumulator used by CheckWellFormed's invariant 4 check.
func addBackEdge(edges map[idgen.ID]map[idgen.ID]bool, target, source idgen.ID) {
	set, ok := edges[target]
	if !ok {
		set = map[idgen.ID]bool{}
		edges[target] = set
	}
	set[source] = true
}

// sameIDSet reports whether actual holds exactly the IDs in expected,
// duplicates aside.
func sameIDSet(actual []idgen.ID, expected map[idgen.ID]bool) bool {
	if len(actual) != len(expected) {
		return false
	}
	for _, id := range actual {
		if !expected[id] {
			return false
		}
	}
	return true
}
