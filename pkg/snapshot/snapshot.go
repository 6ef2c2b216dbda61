// Package snapshot models a captured page/screen state: an ordered list
// of candidate UI nodes against which locators are resolved. Snapshots
// are produced by an external automation driver and never mutated by
// the engine.
package snapshot

import (
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"math"
	"strings"
)

// Bounds represents element position and size.
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the center point of the bounds.
func (b Bounds) Center() (int, int) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Contains checks if a point is within the bounds.
func (b Bounds) Contains(x, y int) bool {
	return x >= b.X && x < b.X+b.Width && y >= b.Y && y < b.Y+b.Height
}

// CenterDistance returns the Euclidean distance between the centers of
// two bounds, in pixels.
func (b Bounds) CenterDistance(other Bounds) float64 {
	ax, ay := b.Center()
	bx, by := other.Center()
	dx := float64(ax - bx)
	dy := float64(ay - by)
	return math.Sqrt(dx*dx + dy*dy)
}

// IsZero returns true for an unset bounds value.
func (b Bounds) IsZero() bool {
	return b == Bounds{}
}

// Node is a single candidate UI element in a snapshot.
type Node struct {
	Tag        string            `json:"tag"`
	ID         string            `json:"id,omitempty"`
	Classes    []string          `json:"classes,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Text       string            `json:"text,omitempty"`
	Bounds     Bounds            `json:"bounds"`

	// Region is an optional screenshot crop of the node, used by the
	// visual similarity strategy. Nil when the driver does not capture
	// per-element images.
	Region image.Image `json:"-"`

	// Depth in the UI hierarchy. Snapshots are flattened in document
	// order; depth preserves enough tree shape for DOM-distance
	// calculations.
	Depth int `json:"depth"`
}

// Attr returns the named attribute, or "" if absent.
func (n *Node) Attr(name string) string {
	if n.Attributes == nil {
		return ""
	}
	return n.Attributes[name]
}

// HasClass reports whether the node carries the given class token.
func (n *Node) HasClass(class string) bool {
	for _, c := range n.Classes {
		if c == class {
			return true
		}
	}
	return false
}

// Describe returns a short human-readable description for logging.
func (n *Node) Describe() string {
	switch {
	case n.ID != "":
		return n.Tag + "#" + n.ID
	case len(n.Classes) > 0:
		return n.Tag + "." + n.Classes[0]
	case n.Text != "":
		return fmt.Sprintf("%s %q", n.Tag, truncate(n.Text, 30))
	default:
		return n.Tag
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

// Snapshot is a point-in-time capture of a page or screen: nodes in
// document order plus page identity metadata.
type Snapshot struct {
	URL   string  `json:"url,omitempty"`
	Title string  `json:"title,omitempty"`
	Nodes []*Node `json:"nodes"`
}

// Fingerprint returns a stable hash of the page's identity: URL, title
// and a structural signature of the node hierarchy. Used to scope cache
// entries so a healed locator from one page is not reused on an
// unrelated page that happens to share the original locator.
func (s *Snapshot) Fingerprint() string {
	h := fnv.New64a()
	h.Write([]byte(s.URL))
	h.Write([]byte{0})
	h.Write([]byte(s.Title))
	for _, n := range s.Nodes {
		h.Write([]byte{0})
		h.Write([]byte(n.Tag))
		h.Write([]byte{'#'})
		h.Write([]byte(n.ID))
		h.Write([]byte{'.'})
		h.Write([]byte(strings.Join(n.Classes, ".")))
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// Index returns the document-order index of the node, or -1 if the
// node is not part of this snapshot.
func (s *Snapshot) Index(target *Node) int {
	for i, n := range s.Nodes {
		if n == target {
			return i
		}
	}
	return -1
}

// parentIndex returns the index of the parent of nodes[i]: the nearest
// preceding node with a smaller depth. Returns -1 for root nodes.
func (s *Snapshot) parentIndex(i int) int {
	depth := s.Nodes[i].Depth
	for j := i - 1; j >= 0; j-- {
		if s.Nodes[j].Depth < depth {
			return j
		}
	}
	return -1
}

// TreeDistance returns the number of parent/child hops between two
// nodes in the flattened hierarchy (siblings are 2 apart, a direct
// child is 1 apart). Returns -1 if either node is not in the snapshot.
func (s *Snapshot) TreeDistance(a, b *Node) int {
	ai := s.Index(a)
	bi := s.Index(b)
	if ai < 0 || bi < 0 {
		return -1
	}
	if ai == bi {
		return 0
	}

	// Walk both nodes up to a common ancestor, counting hops.
	aPath := s.ancestorPath(ai)
	bPath := s.ancestorPath(bi)
	for da, ia := range aPath {
		for db, ib := range bPath {
			if ia == ib {
				return da + db
			}
		}
	}

	// Different roots: distance through the virtual document root.
	return len(aPath) + len(bPath)
}

// ancestorPath returns node indices from the node itself up to its
// root, inclusive.
func (s *Snapshot) ancestorPath(i int) []int {
	path := []int{i}
	for {
		p := s.parentIndex(i)
		if p < 0 {
			return path
		}
		path = append(path, p)
		i = p
	}
}

// Provider supplies fresh snapshots of the live page/screen. It wraps
// whichever automation driver is in use; the engine only ever reads
// from it.
type Provider interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}
