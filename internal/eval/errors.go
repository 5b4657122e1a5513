package eval

import (
	"fmt"

	"github.com/rpggio/chronicle/internal/idgen"
)

func errNotRevisable(id idgen.ID) error {
	return fmt.Errorf("%q is a revision; compute_state requires a non-revision target", id)
}

func errCycle(id idgen.ID) error {
	return fmt.Errorf("reduced graph is not acyclic at %q", id)
}
