package merge

import (
	"fmt"

	"github.com/rpggio/chronicle/internal/chronicleerr"
)

func errRuleNotExplicit(id, field string) error {
	return chronicleerr.New("merge.ComputeMerge", chronicleerr.TypeError,
		fmt.Errorf("record %q field %q: no rule tier resolved to an explicit rule; default.all must be explicit", id, field))
}

func errTypeMismatch(op string, detail string) error {
	return chronicleerr.New(op, chronicleerr.TypeError, fmt.Errorf("%s", detail))
}
