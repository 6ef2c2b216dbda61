package strategy

import (
	"image"
	"image/color"
	"testing"

	"github.com/devicelab-dev/selfheal/pkg/locator"
	"github.com/devicelab-dev/selfheal/pkg/snapshot"
)

func TestText_ExactAndPartial(t *testing.T) {
	snap := &snapshot.Snapshot{Nodes: []*snapshot.Node{
		{Tag: "button", ID: "save-doc", Text: "Save Document"},
		{Tag: "button", ID: "submit-new", Text: "Submit"},
	}}

	tests := []struct {
		name     string
		hint     string
		wantID   string
		wantConf float64
		wantOK   bool
	}{
		{
			name:     "exact text match",
			hint:     "Submit",
			wantID:   "submit-new",
			wantConf: 0.95,
			wantOK:   true,
		},
		{
			name:     "substring match",
			hint:     "Document",
			wantID:   "save-doc",
			wantConf: 0.75,
			wantOK:   true,
		},
		{
			name:   "no match",
			hint:   "Cancel",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Query{
				Locator: locator.New(locator.ID, "old-button-id"),
				Hints:   Hints{Text: tt.hint},
			}
			m, ok := NewText().Attempt(q, snap)
			if ok != tt.wantOK {
				t.Fatalf("got ok=%v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if m.Node.ID != tt.wantID {
				t.Errorf("got node %q, want %q", m.Node.ID, tt.wantID)
			}
			if m.Confidence != tt.wantConf {
				t.Errorf("got confidence %v, want %v", m.Confidence, tt.wantConf)
			}
		})
	}
}

func TestText_HintDerivedFromLocator(t *testing.T) {
	snap := &snapshot.Snapshot{Nodes: []*snapshot.Node{
		{Tag: "button", ID: "login-submit", Text: "Submit"},
	}}

	// No remembered text: the hint comes from the id value itself.
	q := Query{Locator: locator.New(locator.ID, "submit-button")}
	m, ok := NewText().Attempt(q, snap)
	if !ok {
		t.Fatal("expected a match from the derived hint")
	}
	if m.Node.ID != "login-submit" {
		t.Errorf("got node %q, want login-submit", m.Node.ID)
	}
}

func TestText_LevenshteinTieBreak(t *testing.T) {
	// Both nodes carry identical text; the one whose id is closest to
	// the original locator value must win even though it comes second
	// in document order.
	snap := &snapshot.Snapshot{Nodes: []*snapshot.Node{
		{Tag: "button", ID: "totally-different", Text: "Submit"},
		{Tag: "button", ID: "submit-button-v2", Text: "Submit"},
	}}

	q := Query{
		Locator: locator.New(locator.ID, "submit-button"),
		Hints:   Hints{Text: "Submit"},
	}
	m, ok := NewText().Attempt(q, snap)
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Node.ID != "submit-button-v2" {
		t.Errorf("tie-break picked %q, want submit-button-v2", m.Node.ID)
	}
}

func TestText_DocumentOrderFinalTieBreak(t *testing.T) {
	// Identical text and identical identity distance: first in
	// document order wins.
	snap := &snapshot.Snapshot{Nodes: []*snapshot.Node{
		{Tag: "button", ID: "aaaa", Text: "Submit"},
		{Tag: "button", ID: "aaab", Text: "Submit"},
	}}

	q := Query{
		Locator: locator.New(locator.ID, "aaac"),
		Hints:   Hints{Text: "Submit"},
	}
	m, ok := NewText().Attempt(q, snap)
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Node.ID != "aaaa" {
		t.Errorf("got %q, want first candidate aaaa", m.Node.ID)
	}
}

func TestAttribute(t *testing.T) {
	snap := &snapshot.Snapshot{Nodes: []*snapshot.Node{
		{Tag: "button", ID: "submit-btn-2024", Classes: []string{"btn", "btn-primary"},
			Attributes: map[string]string{"name": "submit"}},
		{Tag: "div", ID: "sidebar", Classes: []string{"panel"}},
	}}

	tests := []struct {
		name   string
		hints  map[string]string
		wantID string
		wantOK bool
	}{
		{
			name: "renamed id still similar",
			hints: map[string]string{
				"id":    "submit-btn",
				"name":  "submit",
				"class": "btn btn-primary",
				"tag":   "button",
			},
			wantID: "submit-btn-2024",
			wantOK: true,
		},
		{
			name: "unrelated attributes stay below threshold",
			hints: map[string]string{
				"id":    "checkout-cart",
				"name":  "cart",
				"class": "cart-widget",
				"tag":   "span",
			},
			wantOK: false,
		},
		{
			name:   "no hints declines",
			hints:  nil,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Query{
				Locator: locator.New(locator.ID, "submit-btn"),
				Hints:   Hints{Attributes: tt.hints},
			}
			m, ok := NewAttribute().Attempt(q, snap)
			if ok != tt.wantOK {
				t.Fatalf("got ok=%v, want %v (confidence %v)", ok, tt.wantOK, m.Confidence)
			}
			if !ok {
				return
			}
			if m.Node.ID != tt.wantID {
				t.Errorf("got node %q, want %q", m.Node.ID, tt.wantID)
			}
			if m.Confidence <= NewAttribute().Threshold || m.Confidence > 1 {
				t.Errorf("confidence %v outside (threshold,1]", m.Confidence)
			}
		})
	}
}

func TestNearby(t *testing.T) {
	// form > (label, input) with the input's id changed; the label is
	// the stable anchor.
	snap := &snapshot.Snapshot{Nodes: []*snapshot.Node{
		{Tag: "form", ID: "search-form", Depth: 0},
		{Tag: "label", ID: "search-label", Text: "Search", Depth: 1},
		{Tag: "input", ID: "q-field-new", Classes: []string{"search-input"}, Depth: 1},
		{Tag: "footer", Classes: []string{"search-input"}, Depth: 0},
	}}

	anchor := locator.New(locator.ID, "search-label")
	q := Query{
		Locator: locator.New(locator.ID, "q-field"),
		Hints: Hints{
			Anchor:     &anchor,
			Attributes: map[string]string{"tag": "input", "class": "search-input"},
		},
	}

	m, ok := NewNearby().Attempt(q, snap)
	if !ok {
		t.Fatal("expected a match near the anchor")
	}
	if m.Node.ID != "q-field-new" {
		t.Errorf("got node %q, want q-field-new", m.Node.ID)
	}
	if m.Confidence != 0.6 {
		t.Errorf("got confidence %v, want fixed 0.6", m.Confidence)
	}
}

func TestNearby_Declines(t *testing.T) {
	snap := &snapshot.Snapshot{Nodes: []*snapshot.Node{
		{Tag: "div", ID: "anchor", Depth: 0},
	}}
	anchor := locator.New(locator.ID, "anchor")
	missing := locator.New(locator.ID, "gone")

	tests := []struct {
		name string
		q    Query
	}{
		{
			name: "no anchor hint",
			q:    Query{Hints: Hints{Attributes: map[string]string{"tag": "input"}}},
		},
		{
			name: "anchor does not resolve",
			q:    Query{Hints: Hints{Anchor: &missing, Attributes: map[string]string{"tag": "input"}}},
		},
		{
			name: "no identity hints",
			q:    Query{Hints: Hints{Anchor: &anchor}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := NewNearby().Attempt(tt.q, snap); ok {
				t.Error("expected no match")
			}
		})
	}
}

func TestPosition(t *testing.T) {
	snap := &snapshot.Snapshot{Nodes: []*snapshot.Node{
		{Tag: "button", ID: "near", Bounds: snapshot.Bounds{X: 100, Y: 200, Width: 100, Height: 40}},
		{Tag: "button", ID: "far", Bounds: snapshot.Bounds{X: 800, Y: 900, Width: 100, Height: 40}},
	}}

	last := snapshot.Bounds{X: 110, Y: 210, Width: 100, Height: 40}
	q := Query{Hints: Hints{Bounds: &last}}

	m, ok := NewPosition().Attempt(q, snap)
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Node.ID != "near" {
		t.Errorf("got node %q, want near", m.Node.ID)
	}
	// ~14px off a 150px threshold: confidence close to the maximum.
	if m.Confidence <= 0.6 || m.Confidence > 0.7 {
		t.Errorf("confidence %v outside expected range", m.Confidence)
	}
}

func TestPosition_ConfidenceDecay(t *testing.T) {
	p := NewPosition()

	tests := []struct {
		name     string
		distance float64
		want     float64
	}{
		{name: "zero distance", distance: 0, want: 0.7},
		{name: "half threshold", distance: 75, want: 0.5},
		{name: "at threshold", distance: 150, want: 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.confidence(tt.distance); !almostEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPosition_BeyondThreshold(t *testing.T) {
	snap := &snapshot.Snapshot{Nodes: []*snapshot.Node{
		{Tag: "button", ID: "far", Bounds: snapshot.Bounds{X: 800, Y: 900, Width: 100, Height: 40}},
	}}
	last := snapshot.Bounds{X: 0, Y: 0, Width: 100, Height: 40}
	if _, ok := NewPosition().Attempt(Query{Hints: Hints{Bounds: &last}}, snap); ok {
		t.Error("candidate beyond the distance threshold must not match")
	}
}

// solidImage builds a uniform test image.
func solidImage(c color.Gray, w, h int) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, c)
		}
	}
	return img
}

// gradientImage builds a horizontal gradient starting at base.
func gradientImage(base uint8, w, h int) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: base + uint8(x*150/w)})
		}
	}
	return img
}

func TestNCCComparer(t *testing.T) {
	cmp := NCCComparer{}

	t.Run("identical gradients score 1", func(t *testing.T) {
		a := gradientImage(0, 64, 64)
		b := gradientImage(0, 64, 64)
		if got := cmp.Compare(a, b); !almostEqual(got, 1) {
			t.Errorf("got %v, want 1", got)
		}
	})

	t.Run("brightness shift still correlates", func(t *testing.T) {
		a := gradientImage(0, 64, 64)
		b := gradientImage(50, 64, 64)
		if got := cmp.Compare(a, b); got < 0.99 {
			t.Errorf("got %v, want near 1 (NCC is mean-invariant)", got)
		}
	})

	t.Run("identical flat images score 1", func(t *testing.T) {
		a := solidImage(color.Gray{Y: 128}, 16, 16)
		b := solidImage(color.Gray{Y: 128}, 16, 16)
		if got := cmp.Compare(a, b); got != 1 {
			t.Errorf("got %v, want 1", got)
		}
	})

	t.Run("flat versus gradient scores 0", func(t *testing.T) {
		a := solidImage(color.Gray{Y: 128}, 16, 16)
		b := gradientImage(0, 16, 16)
		if got := cmp.Compare(a, b); got != 0 {
			t.Errorf("got %v, want 0", got)
		}
	})
}

func TestVisual(t *testing.T) {
	region := gradientImage(0, 40, 40)
	snap := &snapshot.Snapshot{Nodes: []*snapshot.Node{
		{Tag: "button", ID: "plain", Region: solidImage(color.Gray{Y: 200}, 40, 40)},
		{Tag: "button", ID: "lookalike", Region: gradientImage(10, 40, 40)},
		{Tag: "span", ID: "no-region"},
	}}

	q := Query{Hints: Hints{Region: region}}
	m, ok := NewVisual(nil).Attempt(q, snap)
	if !ok {
		t.Fatal("expected a visual match")
	}
	if m.Node.ID != "lookalike" {
		t.Errorf("got node %q, want lookalike", m.Node.ID)
	}
	if m.Confidence <= 0.8 {
		t.Errorf("confidence %v should clear the threshold", m.Confidence)
	}
}

func TestVisual_NoRegionHint(t *testing.T) {
	snap := &snapshot.Snapshot{Nodes: []*snapshot.Node{{Tag: "button"}}}
	if _, ok := NewVisual(nil).Attempt(Query{}, snap); ok {
		t.Error("expected no match without a remembered region")
	}
}

func TestDefaultChain_Order(t *testing.T) {
	want := []string{
		"text-content",
		"attribute-similarity",
		"nearby-element",
		"position",
		"visual-similarity",
	}
	chain := DefaultChain()
	if len(chain) != len(want) {
		t.Fatalf("got %d strategies, want %d", len(chain), len(want))
	}
	for i, s := range chain {
		if s.Name() != want[i] {
			t.Errorf("position %d: got %q, want %q", i, s.Name(), want[i])
		}
	}
}

func almostEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}
