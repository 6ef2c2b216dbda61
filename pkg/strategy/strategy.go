// Package strategy implements the healing strategies: independent
// algorithms that each attempt to recover a replacement locator for a
// failed one from a snapshot of the page. Strategies are pure with
// respect to their inputs and signal "no match" by returning false,
// never by error.
package strategy

import (
	"image"

	"github.com/devicelab-dev/selfheal/pkg/locator"
	"github.com/devicelab-dev/selfheal/pkg/snapshot"
)

// Hints carry what the engine remembers about an element from prior
// successful resolutions: the raw material strategies match against.
// All fields are optional; a strategy that lacks its required hint
// simply declines.
type Hints struct {
	// Text is the last known visible text of the element.
	Text string

	// Attributes is the last known identity attribute set:
	// "id", "name", "class" (space-separated tokens) and "tag".
	Attributes map[string]string

	// Bounds is the last known bounding box.
	Bounds *snapshot.Bounds

	// Region is the last known screenshot crop of the element.
	Region image.Image

	// Anchor is a stable sibling/ancestor locator known to be
	// positionally associated with the element.
	Anchor *locator.Locator
}

// Query is the input to a healing attempt: the failed locator plus
// remembered hints.
type Query struct {
	Locator locator.Locator
	Hints   Hints
}

// Match is a successful healing result: the node that was found, a
// replayable locator for it, and the strategy's confidence in [0,1].
type Match struct {
	Node       *snapshot.Node
	Locator    locator.Locator
	Confidence float64
}

// Strategy attempts to recover a target element from a snapshot.
// Implementations never mutate the query or the snapshot.
type Strategy interface {
	// Name identifies the strategy in records and reports.
	Name() string

	// Attempt returns a match and true, or the zero Match and false
	// when the strategy cannot find the element. Not finding the
	// element is a normal outcome, not an error.
	Attempt(q Query, snap *snapshot.Snapshot) (Match, bool)
}

// DefaultChain returns the full strategy set with default thresholds,
// in priority order. The order is part of the healing contract: the
// first strategy to produce a match wins, structural strategies before
// positional and visual ones.
func DefaultChain() []Strategy {
	return []Strategy{
		NewText(),
		NewAttribute(),
		NewNearby(),
		NewPosition(),
		NewVisual(nil),
	}
}
