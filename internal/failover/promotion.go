package failover

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAllMembersUnpromotable is returned by Promote when no member could be activated.
var ErrAllMembersUnpromotable = errors.New("no member could be activated")

// Attempt records one activation try during a degraded episode.
type Attempt struct {
	Index  int
	Member string
	Err    error // nil on success
}

// Promotion is the outcome of one degraded episode.
type Promotion struct {
	Attempts []Attempt
	Promoted string // empty when nobody was promoted
	Index    int    // index of the promoted member, -1 when none
}

// OK reports whether a member was promoted.
func (p Promotion) OK() bool {
	return p.Promoted != ""
}

// Failed returns the ids of the members whose activation failed, in order.
func (p Promotion) Failed() []string {
	var out []string
	for _, a := range p.Attempts {
		if a.Err != nil {
			out = append(out, a.Member)
		}
	}
	return out
}

func (p Promotion) String() string {
	if p.OK() {
		return fmt.Sprintf("promoted %s after %d attempt(s)", p.Promoted, len(p.Attempts))
	}
	return fmt.Sprintf("no promotion, failed: %s", strings.Join(p.Failed(), ","))
}
