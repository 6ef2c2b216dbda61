package strategy

import (
	"github.com/devicelab-dev/selfheal/pkg/snapshot"
)

// Position picks the candidate whose bounding-box center lies closest
// to the element's last known center, within MaxDistance pixels.
// Confidence decays linearly from MaxConfidence at distance zero to
// MinConfidence at the threshold; beyond the threshold there is no
// match.
type Position struct {
	MaxDistance   float64
	MaxConfidence float64
	MinConfidence float64
}

// NewPosition creates the position strategy with defaults.
func NewPosition() *Position {
	return &Position{
		MaxDistance:   150,
		MaxConfidence: 0.7,
		MinConfidence: 0.3,
	}
}

// Name implements Strategy.
func (p *Position) Name() string { return "position" }

// Attempt implements Strategy.
func (p *Position) Attempt(q Query, snap *snapshot.Snapshot) (Match, bool) {
	if q.Hints.Bounds == nil || q.Hints.Bounds.IsZero() {
		return Match{}, false
	}
	last := *q.Hints.Bounds

	var (
		best     *snapshot.Node
		bestDist float64
	)
	for _, n := range snap.Nodes {
		if n.Bounds.IsZero() {
			continue
		}
		d := n.Bounds.CenterDistance(last)
		if d > p.MaxDistance {
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
		Confidence: p.confidence(bestDist),
	}, true
}

func (p *Position) confidence(distance float64) float64 {
	if p.MaxDistance <= 0 {
		return p.MinConfidence
	}
	return p.MaxConfidence - (p.MaxConfidence-p.MinConfidence)*(distance/p.MaxDistance)
}
