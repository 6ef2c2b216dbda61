package strategy

import (
	"strings"

	"github.com/devicelab-dev/selfheal/pkg/snapshot"
)

// Nearby recovers the element through a stable anchor: a sibling or
// ancestor locator that still resolves. Nodes within Radius tree hops
// of the anchor are checked against the remembered tag/class identity.
// Confidence is fixed; proximity to an anchor is circumstantial
// evidence, not an identity match.
type Nearby struct {
	Radius     int
	Confidence float64
}

// NewNearby creates the nearby strategy with defaults.
func NewNearby() *Nearby {
	return &Nearby{
		Radius:     3,
		Confidence: 0.6,
	}
}

// Name implements Strategy.
func (nb *Nearby) Name() string { return "nearby-element" }

// Attempt implements Strategy.
func (nb *Nearby) Attempt(q Query, snap *snapshot.Snapshot) (Match, bool) {
	if q.Hints.Anchor == nil {
		return Match{}, false
	}
	anchor, ok := snap.Resolve(*q.Hints.Anchor)
	if !ok {
		return Match{}, false
	}

	tag := q.Hints.Attributes["tag"]
	classes := strings.Fields(q.Hints.Attributes["class"])
	if tag == "" && len(classes) == 0 {
		return Match{}, false
	}

	var (
		best     *snapshot.Node
		bestDist int
	)
	for _, n := range snap.Nodes {
		if n == anchor {
			continue
		}
		if !nb.matchesIdentity(n, tag, classes) {
			continue
		}
		d := snap.TreeDistance(anchor, n)
		if d < 0 || d > nb.Radius {
			continue
		}
		if best == nil || d < bestDist {
			best = n
			bestDist = d
		}
	}

	if best == nil {
		return Match{}, false
	}
	return Match{
		Node:       best,
		Locator:    snapshot.Describe(best),
		Confidence: nb.Confidence,
	}, true
}

// matchesIdentity checks the tag/class heuristics: the tag must match
// when known, and at least one remembered class token must be present
// when classes are known.
func (nb *Nearby) matchesIdentity(n *snapshot.Node, tag string, classes []string) bool {
	if tag != "" && !strings.EqualFold(n.Tag, tag) {
		return false
	}
	if len(classes) > 0 {
		any := false
		for _, c := range classes {
			if n.HasClass(c) {
				any = true
				break
			}
		}
		if !any {
			return false
		}
	}
	return true
}
