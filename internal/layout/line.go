// Package layout rebuilds reading-order text lines from positioned fragments.
package layout

import (
	"math"
	"sort"
	"strings"

	"github.com/dgallion1/pdfsearch/internal/document"
)

const (
	// toleranceRatio scales the mean fragment height into the line tolerance.
	toleranceRatio = 0.6
	// minTolerance is the floor for the line tolerance, in points.
	minTolerance = 2.0
)

// LineGroup is a set of fragments judged to lie on the same visual line.
type LineGroup struct {
	// Y is the representative baseline. It moves to the midpoint of its old
	// value and each new member's Y, so it is not a true mean.
	Y         float64
	Fragments []document.TextFragment
}

// Text joins the members left to right with single spaces.
func (g *LineGroup) Text() string {
	frags := make([]document.TextFragment, len(g.Fragments))
	copy(frags, g.Fragments)
	sort.SliceStable(frags, func(i, j int) bool { return frags[i].X < frags[j].X })

	parts := make([]string, 0, len(frags))
	for _, f := range frags {
		parts = append(parts, f.Text)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// Reconstructor groups fragments into lines.
type Reconstructor struct {
	// DefaultHeight replaces non-positive fragment heights (default: 12).
	DefaultHeight float64
}

// NewReconstructor creates a reconstructor with the default fragment height.
func NewReconstructor() *Reconstructor {
	return &Reconstructor{DefaultHeight: document.DefaultFragmentHeight}
}

// Reconstruct is shorthand for NewReconstructor().Reconstruct.
func Reconstruct(fragments []document.TextFragment) (string, []string) {
	return NewReconstructor().Reconstruct(fragments)
}

// Reconstruct orders fragments into lines top to bottom, left to right within
// a line. It returns the newline-joined text and the lines. Both are empty when
// no fragment carries text.
func (r *Reconstructor) Reconstruct(fragments []document.TextFragment) (string, []string) {
	groups := r.Group(fragments)
	if len(groups) == 0 {
		return "", nil
	}

	lines := make([]string, 0, len(groups))
	for i := range groups {
		if line := groups[i].Text(); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return "", nil
	}
	return strings.Join(lines, "\n"), lines
}

// Group clusters the non-empty fragments into line groups ordered by
// descending representative Y.
func (r *Reconstructor) Group(fragments []document.TextFragment) []LineGroup {
	frags := r.prepare(fragments)
	if len(frags) == 0 {
		return nil
	}

	tol := Tolerance(frags)

	sort.SliceStable(frags, func(i, j int) bool { return frags[i].Y > frags[j].Y })

	var groups []LineGroup
	for _, f := range frags {
		idx := -1
		for i := range groups {
			if math.Abs(groups[i].Y-f.Y) <= tol {
				idx = i
				break
			}
		}
		if idx < 0 {
			groups = append(groups, LineGroup{Y: f.Y, Fragments: []document.TextFragment{f}})
			continue
		}
		groups[idx].Fragments = append(groups[idx].Fragments, f)
		groups[idx].Y = (groups[idx].Y + f.Y) / 2
	}

	// Representative Y drifts during assignment, so the creation order is not
	// necessarily the final top-to-bottom order.
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Y > groups[j].Y })
	return groups
}

// Tolerance returns the vertical clustering distance for a page:
// max(mean height * 0.6, 2).
func Tolerance(fragments []document.TextFragment) float64 {
	if len(fragments) == 0 {
		return minTolerance
	}
	var sum float64
	for _, f := range fragments {
		sum += f.Height
	}
	return math.Max(sum/float64(len(fragments))*toleranceRatio, minTolerance)
}

// prepare drops blank fragments and fills in missing heights. The input slice
// is left untouched.
func (r *Reconstructor) prepare(fragments []document.TextFragment) []document.TextFragment {
	def := r.DefaultHeight
	if def <= 0 {
		def = document.DefaultFragmentHeight
	}

	out := make([]document.TextFragment, 0, len(fragments))
	for _, f := range fragments {
		if strings.TrimSpace(f.Text) == "" {
			continue
		}
		if f.Height <= 0 || math.IsNaN(f.Height) {
			f.Height = def
		}
		out = append(out, f)
	}
	return out
}
