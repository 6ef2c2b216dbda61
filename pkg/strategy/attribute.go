package strategy

import (
	"strings"

	"github.com/devicelab-dev/selfheal/pkg/snapshot"
)

// Attribute scores every candidate node by weighted similarity of its
// identity attributes (id, name, class tokens, tag) against the last
// known attribute set, and returns the best candidate above the
// threshold. Confidence equals the similarity score.
type Attribute struct {
	Threshold float64

	// Facet weights; must sum to 1.
	IDWeight    float64
	NameWeight  float64
	ClassWeight float64
	TagWeight   float64
}

// NewAttribute creates the attribute strategy with default weights.
func NewAttribute() *Attribute {
	return &Attribute{
		Threshold:   0.6,
		IDWeight:    0.40,
		NameWeight:  0.25,
		ClassWeight: 0.25,
		TagWeight:   0.10,
	}
}

// Name implements Strategy.
func (a *Attribute) Name() string { return "attribute-similarity" }

// Attempt implements Strategy.
func (a *Attribute) Attempt(q Query, snap *snapshot.Snapshot) (Match, bool) {
	known := q.Hints.Attributes
	if len(known) == 0 {
		return Match{}, false
	}

	var (
		best      *snapshot.Node
		bestScore float64
	)

	for _, n := range snap.Nodes {
		score := a.score(n, known)
		if score > bestScore {
			best = n
			bestScore = score
		}
	}

	if best == nil || bestScore <= a.Threshold {
		return Match{}, false
	}
	return Match{
		Node:       best,
		Locator:    snapshot.Describe(best),
		Confidence: bestScore,
	}, true
}

// score computes the weighted similarity of a node's identity
// attributes against the remembered set. String facets (id, name, tag)
// contribute their full weight on exact match and a Levenshtein-scaled
// share otherwise; class tokens contribute Jaccard overlap.
func (a *Attribute) score(n *snapshot.Node, known map[string]string) float64 {
	var score, total float64

	if id, ok := known["id"]; ok && id != "" {
		total += a.IDWeight
		score += a.IDWeight * stringSimilarity(n.ID, id)
	}
	if name, ok := known["name"]; ok && name != "" {
		total += a.NameWeight
		score += a.NameWeight * stringSimilarity(n.Attr("name"), name)
	}
	if class, ok := known["class"]; ok && class != "" {
		total += a.ClassWeight
		score += a.ClassWeight * jaccard(n.Classes, strings.Fields(class))
	}
	if tag, ok := known["tag"]; ok && tag != "" {
		total += a.TagWeight
		if strings.EqualFold(n.Tag, tag) {
			score += a.TagWeight
		}
	}

	if total == 0 {
		return 0
	}
	// Normalize by the weight of the facets actually known, so sparse
	// hint sets still score in [0,1].
	return score / total
}

// stringSimilarity maps two strings to [0,1]: 1 for equal, otherwise
// one minus the normalized edit distance.
func stringSimilarity(a, b string) float64 {
	if a == "" && b == "" {
		return 0
	}
	return 1 - normalizedLevenshtein(a, b)
}

// jaccard returns |A∩B| / |A∪B| over two token sets.
func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	var inter, union int
	union = len(set)
	seen := make(map[string]bool, len(b))
	for _, t := range b {
		if seen[t] {
			continue
		}
		seen[t] = true
		if set[t] {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
