package strategy

import (
	"image"
	"image/color"
	"math"

	"github.com/devicelab-dev/selfheal/pkg/snapshot"
)

// Comparer scores perceptual similarity of two images in [0,1].
// It is an injectable collaborator so the engine has no mandatory
// dependency on any particular imaging backend.
type Comparer interface {
	Compare(a, b image.Image) float64
}

// Visual matches the element by comparing its last known screenshot
// crop against each candidate's crop. Last in the priority order: it
// is the most expensive strategy and runs only when every structural
// strategy has failed.
type Visual struct {
	Threshold float64
	Comparer  Comparer
}

// NewVisual creates the visual strategy. A nil comparer selects the
// built-in normalized cross-correlation comparer.
func NewVisual(cmp Comparer) *Visual {
	if cmp == nil {
		cmp = NCCComparer{}
	}
	return &Visual{
		Threshold: 0.8,
		Comparer:  cmp,
	}
}

// Name implements Strategy.
func (v *Visual) Name() string { return "visual-similarity" }

// Attempt implements Strategy.
func (v *Visual) Attempt(q Query, snap *snapshot.Snapshot) (Match, bool) {
	if q.Hints.Region == nil {
		return Match{}, false
	}

	var (
		best      *snapshot.Node
		bestScore float64
	)
	for _, n := range snap.Nodes {
		if n.Region == nil {
			continue
		}
		score := v.Comparer.Compare(q.Hints.Region, n.Region)
		if score > bestScore {
			best = n
			bestScore = score
		}
	}

	if best == nil || bestScore <= v.Threshold {
		return Match{}, false
	}
	return Match{
		Node:       best,
		Locator:    snapshot.Describe(best),
		Confidence: bestScore,
	}, true
}

// nccSize is the side length both images are resampled to before
// correlation. Small enough to keep the strategy cheap, large enough
// to distinguish typical widgets.
const nccSize = 32

// NCCComparer is the default Comparer: normalized cross-correlation
// over grayscale downsamples. Negative correlation clamps to zero, so
// scores stay in [0,1].
type NCCComparer struct{}

// Compare implements Comparer.
func (NCCComparer) Compare(a, b image.Image) float64 {
	ga := resampleGray(a, nccSize)
	gb := resampleGray(b, nccSize)

	var meanA, meanB float64
	n := float64(len(ga))
	for i := range ga {
		meanA += ga[i]
		meanB += gb[i]
	}
	meanA /= n
	meanB /= n

	var num, varA, varB float64
	for i := range ga {
		da := ga[i] - meanA
		db := gb[i] - meanB
		num += da * db
		varA += da * da
		varB += db * db
	}

	if varA == 0 || varB == 0 {
		// Flat images: identical means count as a perfect match.
		if varA == varB && math.Abs(meanA-meanB) < 1e-9 {
			return 1
		}
		return 0
	}

	r := num / math.Sqrt(varA*varB)
	if r < 0 {
		return 0
	}
	return r
}

// resampleGray nearest-neighbor samples an image to size×size
// grayscale intensities.
func resampleGray(img image.Image, size int) []float64 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := make([]float64, size*size)
	if w == 0 || h == 0 {
		return out
	}
	for y := 0; y < size; y++ {
		sy := bounds.Min.Y + y*h/size
		for x := 0; x < size; x++ {
			sx := bounds.Min.X + x*w/size
			g := color.GrayModel.Convert(img.At(sx, sy)).(color.Gray)
			out[y*size+x] = float64(g.Y)
		}
	}
	return out
}
