// Package eval implements the state evaluator (C7, §4.7): materializing
// the record map at any non-revision version by folding the reduced
// parent graph produced by the ancestry engine, applying patches at
// change nodes and the merge engine at merge nodes. Grounded on
// _examples/original_source/database.py's compute_state (left
// incomplete in the original; completed here from the root-empty-state
// base case and the per-kind fold the rest of database.py implies).
package eval

import (
	"github.com/rpggio/chronicle/internal/chronicleerr"
	"github.com/rpggio/chronicle/internal/container"
	"github.com/rpggio/chronicle/internal/graph"
	"github.com/rpggio/chronicle/internal/idgen"
	"github.com/rpggio/chronicle/internal/merge"
)

// Store is the subset of *graph.Store the evaluator depends on.
type Store interface {
	GetVersion(id idgen.ID) (*graph.Version, error)
	TraceBack(start idgen.ID, opts ...graph.TraceOption) (*graph.Trace, error)
	FindLCA(a, b idgen.ID) (idgen.ID, error)
}

// ComputeState materializes the record map at target by a dependency-
// ordered fold over trace_back(target).graph, starting empty at the root
// and applying a patch at each change node or a merge at each merge node
// (§4.7). empty is a fresh, empty container of the state's type (the
// template the caller's records conform to); target must not itself be a
// revision.
func ComputeState(s Store, target idgen.ID, empty *container.Container) (*container.Container, error) {
	if kind, err := versionKind(s, target); err != nil {
		return nil, err
	} else if kind == graph.KindRevision {
		return nil, chronicleerr.New("eval.ComputeState", chronicleerr.WrongKind,
			errNotRevisable(target))
	}

	trace, err := s.TraceBack(target)
	if err != nil {
		return nil, err
	}

	order, err := topoOrder(trace.Graph)
	if err != nil {
		return nil, err
	}

	states := make(map[idgen.ID]*container.Container, len(order))
	for _, id := range order {
		v, err := s.GetVersion(id)
		if err != nil {
			return nil, err
		}
		kind, err := v.Kind()
		if err != nil {
			return nil, err
		}

		switch kind {
		case graph.KindRoot:
			states[id] = empty.Clone()

		case graph.KindChange, graph.KindUnset:
			parents := trace.Graph[id]
			base := empty.Clone()
			if len(parents) > 0 && parents[0] != "" {
				base = states[parents[0]]
			}
			if v.Change == nil || v.Change.Deltas == nil {
				states[id] = base.Clone()
				continue
			}
			patched, err := container.Patch(base, v.Change.Deltas)
			if err != nil {
				return nil, err
			}
			states[id] = patched

		case graph.KindMerge:
			parents := trace.Graph[id]
			primaryID, tributaryID := parents[0], parents[1]
			primaryState := states[primaryID]
			tributaryState := states[tributaryID]

			lcaID, err := s.FindLCA(primaryID, tributaryID)
			if err != nil {
				return nil, err
			}
			lcaState, ok := states[lcaID]
			if !ok {
				lcaState, err = ComputeState(s, lcaID, empty)
				if err != nil {
					return nil, err
				}
			}

			merged, err := merge.ComputeMerge(primaryState, tributaryState, lcaState, v.Merge.Rules)
			if err != nil {
				return nil, err
			}
			states[id] = merged
		}
	}

	return states[target], nil
}

func versionKind(s Store, id idgen.ID) (graph.Kind, error) {
	v, err := s.GetVersion(id)
	if err != nil {
		return 0, err
	}
	return v.Kind()
}

// topoOrder returns the nodes of g (a DAG: node -> parent IDs) in an order
// where every node's parents precede it, via iterative depth-first
// post-order traversal (no recursion, so arbitrarily deep histories don't
// exhaust the goroutine stack).
func topoOrder(g map[idgen.ID][]idgen.ID) ([]idgen.ID, error) {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[idgen.ID]int, len(g))
	order := make([]idgen.ID, 0, len(g))

	type frame struct {
		id      idgen.ID
		parents []idgen.ID
		next    int
	}

	for start := range g {
		if state[start] == done {
			continue
		}
		stack := []*frame{{id: start, parents: g[start]}}
		state[start] = visiting

		for len(stack) > 0 {
			top := stack[len(stack)-1]
			if top.next < len(top.parents) {
				p := top.parents[top.next]
				top.next++
				if p == "" {
					continue
				}
				switch state[p] {
				case unvisited:
					state[p] = visiting
					stack = append(stack, &frame{id: p, parents: g[p]})
				case visiting:
					return nil, chronicleerr.New("eval.ComputeState", chronicleerr.WouldCreateCycle, errCycle(p))
				}
				continue
			}
			state[top.id] = done
			order = append(order, top.id)
			stack = stack[:len(stack)-1]
		}
	}
	return order, nil
}
