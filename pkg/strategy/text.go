package strategy

import (
	"strings"

	"github.com/xrash/smetrics"

	"github.com/devicelab-dev/selfheal/pkg/locator"
	"github.com/devicelab-dev/selfheal/pkg/snapshot"
)

// Text finds the element by its visible text: an exact match of the
// remembered text scores ExactConfidence, a substring match scores
// PartialConfidence. When the engine has no remembered text, a hint is
// derived from the failed locator's id/name value ("submit-button"
// becomes "submit button").
type Text struct {
	ExactConfidence   float64
	PartialConfidence float64
}

// NewText creates the text strategy with default confidences.
func NewText() *Text {
	return &Text{
		ExactConfidence:   0.95,
		PartialConfidence: 0.75,
	}
}

// Name implements Strategy.
func (t *Text) Name() string { return "text-content" }

// Attempt implements Strategy.
func (t *Text) Attempt(q Query, snap *snapshot.Snapshot) (Match, bool) {
	hint := strings.TrimSpace(q.Hints.Text)
	if hint == "" {
		hint = textHintFromLocator(q.Locator)
	}
	if hint == "" {
		return Match{}, false
	}

	type candidate struct {
		node       *snapshot.Node
		confidence float64
		distance   float64 // normalized Levenshtein tie-break
		order      int
	}
	var best *candidate

	for i, n := range snap.Nodes {
		text := strings.TrimSpace(n.Text)
		if text == "" {
			continue
		}

		var confidence float64
		switch {
		case strings.EqualFold(text, hint):
			confidence = t.ExactConfidence
		case containsFold(text, hint):
			confidence = t.PartialConfidence
		default:
			continue
		}

		c := candidate{
			node:       n,
			confidence: confidence,
			distance:   normalizedLevenshtein(identityValue(n), q.Locator.Value),
			order:      i,
		}

		// Higher confidence wins; at equal confidence the candidate
		// whose identity attributes sit closest to the original
		// locator's value wins; document order breaks remaining ties.
		if best == nil ||
			c.confidence > best.confidence ||
			(c.confidence == best.confidence && c.distance < best.distance) {
			best = &c
		}
	}

	if best == nil {
		return Match{}, false
	}
	return Match{
		Node:       best.node,
		Locator:    snapshot.Describe(best.node),
		Confidence: best.confidence,
	}, true
}

// textHintFromLocator derives a human-readable text hint from id/name
// style locator values: "submit-button" -> "submit button".
func textHintFromLocator(loc locator.Locator) string {
	if loc.Kind != locator.ID && loc.Kind != locator.Name {
		return ""
	}
	v := strings.NewReplacer("-", " ", "_", " ", ".", " ").Replace(loc.Value)
	// Strip generic widget suffixes so "submit-button" matches "Submit".
	for _, suffix := range []string{" button", " btn", " link", " input", " field"} {
		v = strings.TrimSuffix(strings.ToLower(v), suffix)
	}
	return strings.TrimSpace(v)
}

// identityValue returns the node's strongest identity attribute for
// tie-breaking against the original locator value.
func identityValue(n *snapshot.Node) string {
	if n.ID != "" {
		return n.ID
	}
	if name := n.Attr("name"); name != "" {
		return name
	}
	return strings.Join(n.Classes, " ")
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// normalizedLevenshtein returns the edit distance between two strings
// scaled to [0,1] by the length of the longer string.
func normalizedLevenshtein(a, b string) float64 {
	if a == b {
		return 0
	}
	max := len(a)
	if len(b) > max {
		max = len(b)
	}
	if max == 0 {
		return 0
	}
	d := smetrics.WagnerFischer(a, b, 1, 1, 1)
	return float64(d) / float64(max)
}
