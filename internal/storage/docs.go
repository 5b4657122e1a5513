package storage

import (
	"github.com/rpggio/chronicle/internal/container"
	"github.com/rpggio/chronicle/internal/graph"
	"github.com/rpggio/chronicle/internal/idgen"
	"github.com/rpggio/chronicle/internal/merge"
)

// idInfoDoc mirrors graph.IDInfo with stable, snake_case JSON keys (§6).
type idInfoDoc struct {
	User        string   `json:"user"`
	NextVersion idgen.ID `json:"next_version"`
	NextBranch  idgen.ID `json:"next_branch"`
	NextView    idgen.ID `json:"next_view"`
}

func toIDInfoDoc(id graph.IDInfo) idInfoDoc {
	return idInfoDoc{
		User:        id.User,
		NextVersion: id.NextVersion,
		NextBranch:  id.NextBranch,
		NextView:    id.NextView,
	}
}

func (d idInfoDoc) toIDInfo() graph.IDInfo {
	return graph.IDInfo{
		User:        d.User,
		NextVersion: d.NextVersion,
		NextBranch:  d.NextBranch,
		NextView:    d.NextView,
	}
}

// branchDoc mirrors graph.Branch.
type branchDoc struct {
	ID    idgen.ID `json:"id"`
	Name  string   `json:"name"`
	Start idgen.ID `json:"start"`
	End   idgen.ID `json:"end"`
}

func toBranchDoc(b *graph.Branch) branchDoc {
	return branchDoc{ID: b.ID, Name: b.Name, Start: b.Start, End: b.End}
}

func (d branchDoc) toBranch() *graph.Branch {
	return &graph.Branch{ID: d.ID, Name: d.Name, Start: d.Start, End: d.End}
}

// changeDoc mirrors graph.ChangePayload. Deltas is persisted as the raw
// Value tree (the schema template lives in code, not on disk — see
// Repo.stateTemplate), round-tripped through container.New on load.
type changeDoc struct {
	Deltas          *container.Value      `json:"deltas,omitempty"`
	Unchecked       map[string][]string    `json:"unchecked,omitempty"`
	RevisionChanges map[idgen.ID]idgen.ID  `json:"revision_changes,omitempty"`
}

type mergeDoc struct {
	Tributary       idgen.ID              `json:"tributary"`
	Rules           merge.Rules           `json:"rules"`
	RevisionChanges map[idgen.ID]idgen.ID `json:"revision_changes,omitempty"`
}

type revisionDoc struct {
	Original idgen.ID `json:"original"`
	Current  idgen.ID `json:"current"`
}

// versionDoc mirrors graph.Version.
type versionDoc struct {
	ID idgen.ID `json:"id"`

	Root     bool         `json:"root,omitempty"`
	Change   *changeDoc   `json:"change,omitempty"`
	Merge    *mergeDoc    `json:"merge,omitempty"`
	Revision *revisionDoc `json:"revision,omitempty"`

	Previous idgen.ID `json:"previous,omitempty"`
	Next     idgen.ID `json:"next,omitempty"`
	Branch   idgen.ID `json:"branch,omitempty"`

	Timestamp string `json:"timestamp,omitempty"`

	BranchesOut    []idgen.ID `json:"branches_out,omitempty"`
	MergedTo       []idgen.ID `json:"merged_to,omitempty"`
	RevisionsUsing []idgen.ID `json:"revisions_using,omitempty"`
}

func (r *Repo) toVersionDoc(v *graph.Version) *versionDoc {
	d := &versionDoc{
		ID:             v.ID,
		Root:           v.Root,
		Previous:       v.Previous,
		Next:           v.Next,
		Branch:         v.Branch,
		BranchesOut:    v.BranchesOut,
		MergedTo:       v.MergedTo,
		RevisionsUsing: v.RevisionsUsing,
	}
	if !v.Timestamp.IsZero() {
		d.Timestamp = v.Timestamp.Format(timestampLayout)
	}
	if v.Change != nil {
		cd := &changeDoc{Unchecked: v.Change.Unchecked, RevisionChanges: v.Change.RevisionChanges}
		if v.Change.Deltas != nil {
			cd.Deltas = v.Change.Deltas.Value()
		}
		d.Change = cd
	}
	if v.Merge != nil {
		d.Merge = &mergeDoc{
			Tributary:       v.Merge.Tributary,
			Rules:           v.Merge.Rules,
			RevisionChanges: v.Merge.RevisionChanges,
		}
	}
	if v.Revision != nil {
		d.Revision = &revisionDoc{Original: v.Revision.Original, Current: v.Revision.Current}
	}
	return d
}

func (r *Repo) toVersion(d *versionDoc) (*graph.Version, error) {
	v := &graph.Version{
		ID:             d.ID,
		Root:           d.Root,
		Previous:       d.Previous,
		Next:           d.Next,
		Branch:         d.Branch,
		BranchesOut:    d.BranchesOut,
		MergedTo:       d.MergedTo,
		RevisionsUsing: d.RevisionsUsing,
	}
	if d.Timestamp != "" {
		ts, err := parseTimestamp(d.Timestamp)
		if err != nil {
			return nil, err
		}
		v.Timestamp = ts
	}
	if d.Change != nil {
		cp := &graph.ChangePayload{Unchecked: d.Change.Unchecked, RevisionChanges: d.Change.RevisionChanges}
		if d.Change.Deltas != nil {
			c, err := container.New("state", r.stateTemplate, d.Change.Deltas)
			if err != nil {
				return nil, err
			}
			cp.Deltas = c
		}
		v.Change = cp
	}
	if d.Merge != nil {
		v.Merge = &graph.MergePayload{
			Tributary:       d.Merge.Tributary,
			Rules:           d.Merge.Rules,
			RevisionChanges: d.Merge.RevisionChanges,
		}
	}
	if d.Revision != nil {
		v.Revision = &graph.RevisionPayload{Original: d.Revision.Original, Current: d.Revision.Current}
	}
	return v, nil
}
