package graph

import (
	"fmt"

	"github.com/rpggio/chronicle/internal/chronicleerr"
	"github.com/rpggio/chronicle/internal/idgen"
)

func errNotFound(op string, id idgen.ID) error {
	return chronicleerr.New(op, chronicleerr.NotFound, fmt.Errorf("no such id %q", id))
}

func errWrongKind(op string, id idgen.ID, want string) error {
	return chronicleerr.New(op, chronicleerr.WrongKind, fmt.Errorf("%q is not a %s", id, want))
}

func errOpenRequired(op string, id idgen.ID) error {
	return chronicleerr.New(op, chronicleerr.OpenRequired, fmt.Errorf("%q is closed", id))
}

func errClosedRequired(op string, id idgen.ID) error {
	return chronicleerr.New(op, chronicleerr.ClosedRequired, fmt.Errorf("%q is open", id))
}

func errPendingReview(op string, id idgen.ID) error {
	return chronicleerr.New(op, chronicleerr.PendingReview, fmt.Errorf("%q has fields pending review", id))
}

func errWouldCreateCycle(op string, id idgen.ID) error {
	return chronicleerr.New(op, chronicleerr.WouldCreateCycle, fmt.Errorf("selecting %q would create a cycle", id))
}

func errMultipleKinds(id idgen.ID) error {
	return chronicleerr.New("graph.Version.Kind", chronicleerr.MultipleKinds, fmt.Errorf("%q has more than one kind payload set", id))
}

func errNoLCA(op string, a, b idgen.ID) error {
	return chronicleerr.New(op, chronicleerr.NoLCA, fmt.Errorf("%q and %q share no common ancestor", a, b))
}
