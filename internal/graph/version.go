// Package graph implements the version graph store (C3), the ancestry
// engine / trace_back (C4), and the graph-mutating operations (C5) from
// §3–§4.5. It is grounded on _examples/original_source/database.py, the
// Python original this system was distilled from, reworked into Go's
// explicit-error, tagged-variant idiom per the design notes in §9.
package graph

import (
	"time"

	"github.com/rpggio/chronicle/internal/container"
	"github.com/rpggio/chronicle/internal/idgen"
	"github.com/rpggio/chronicle/internal/merge"
)

// Kind is the tagged variant a Version discriminates on (§3, §9's "encode
// as a tagged variant with one payload per kind" note).
type Kind int

const (
	// KindUnset is a non-root version with no payload yet: a freshly
	// allocated open tip before its first update/merge/revision.
	KindUnset Kind = iota
	KindRoot
	KindChange
	KindMerge
	KindRevision
)

// ChangePayload is the change-kind payload (§3).
type ChangePayload struct {
	// Deltas is the record-container delta carried by this change. Nil
	// until the version has been given edits via Update.
	Deltas *container.Container
	// Unchecked maps a record key to the list of field names still
	// pending review. Nil means no pending review.
	Unchecked map[string][]string
	// RevisionChanges maps revision ID to the selected version ID, for
	// revisions whose effective selection at this version differs from
	// what would be inherited from Previous (invariant 6).
	RevisionChanges map[idgen.ID]idgen.ID
}

// MergePayload is the merge-kind payload (§3).
type MergePayload struct {
	// Tributary is the second parent.
	Tributary idgen.ID
	// Rules is the merge-rule hierarchy consulted by the merge engine.
	Rules merge.Rules
	// RevisionChanges, as in ChangePayload, but representing revisions
	// whose selection the merge itself newly decided (§4.5 merge step 3).
	RevisionChanges map[idgen.ID]idgen.ID
}

// RevisionPayload is the revision-kind payload (§3).
type RevisionPayload struct {
	// Original is the version this revision selected when created; it
	// never changes.
	Original idgen.ID
	// Current is the presently-selected version; mutated by Revise. May
	// legally be a branch ID, meaning "track this branch's tip" (§9 note
	// (d), §4.5 revise).
	Current idgen.ID
}

// Version is a node in the DAG (§3). Exactly one of Root/Change/Merge/
// Revision is populated for a well-formed version of non-KindUnset kind.
type Version struct {
	ID idgen.ID

	Root     bool
	Change   *ChangePayload
	Merge    *MergePayload
	Revision *RevisionPayload

	// Previous is the parent version (empty only for the root). For a
	// revision, Previous is the version it sits after and Next is the
	// version it feeds into (§3).
	Previous idgen.ID
	Next     idgen.ID
	Branch   idgen.ID

	Timestamp time.Time

	// Back-edges, maintained transactionally with the forward edges that
	// imply them (invariant 4).
	BranchesOut    []idgen.ID
	MergedTo       []idgen.ID
	RevisionsUsing []idgen.ID
}

// Kind returns the version's tagged kind, or an error if more than one
// kind-discriminating field is populated (invariant 3, §4.3).
func (v *Version) Kind() (Kind, error) {
	count := 0
	if v.Root {
		count++
	}
	if v.Change != nil {
		count++
	}
	if v.Merge != nil {
		count++
	}
	if v.Revision != nil {
		count++
	}
	if count > 1 {
		return 0, errMultipleKinds(v.ID)
	}
	switch {
	case v.Root:
		return KindRoot, nil
	case v.Change != nil:
		return KindChange, nil
	case v.Merge != nil:
		return KindMerge, nil
	case v.Revision != nil:
		return KindRevision, nil
	default:
		return KindUnset, nil
	}
}

// IsOpen reports whether v has no Next — the single mutable tip of its
// branch (§3).
func (v *Version) IsOpen() bool {
	return v.Next == ""
}

// Branch is a linear chain of versions with an explicit open tip (§3).
type Branch struct {
	ID    idgen.ID
	Name  string
	Start idgen.ID
	End   idgen.ID
}
