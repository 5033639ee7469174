// Package predictor implements the per-branch divergence predictor: a
// table of 2-bit saturating counters hashed by branch PC, used by a warp
// to decide ahead of a BRANCH whether the active lanes are likely to
// split into two paths.
package predictor

// TableSize is the number of counter entries, matching both spec.md §4.4
// and implem.rs's 2^16-entry DivergencePredictor table.
const TableSize = 1 << 16

// Histogram tallies how often a prediction for a given branch PC turned
// out correct or wrong, split by what was predicted: GoodDivergent and
// BadDivergent count "will diverge" predictions, GoodUniform and
// BadUniform count "uniform" predictions.
// Not named in spec.md's field list but called for by its "diagnostic
// dumps" bullet (see SPEC_FULL.md, SUPPLEMENTED FEATURES).
type Histogram struct {
	GoodUniform   int
	GoodDivergent int
	BadUniform    int
	BadDivergent  int
}

// Predictor holds one 2-bit saturating counter and one Histogram per
// hashed PC.
type Predictor struct {
	counters [TableSize]uint8
	hist     [TableSize]Histogram
}

// New returns a Predictor with every counter at the neutral starting
// value of 1, matching implem.rs's DivergencePredictor::new.
func New() *Predictor {
	p := &Predictor{}
	for i := range p.counters {
		p.counters[i] = 1
	}
	return p
}

func index(pc int32) uint32 {
	u := uint32(pc)
	return (u & 0xffff) ^ ((u >> 16) & 0xffff)
}

// Predict reports whether the branch at pc is expected to diverge. A path
// with only one active lane can never diverge regardless of history.
func (p *Predictor) Predict(pc int32, activeLanes int) bool {
	if activeLanes <= 1 {
		return false
	}
	return p.counters[index(pc)] >= 2
}

// Update records the actual outcome of a branch that was predicted via
// Predict, adjusting the saturating counter and the diagnostic histogram.
func (p *Predictor) Update(pc int32, predictedDivergent, actualDivergent bool) {
	idx := index(pc)

	c := p.counters[idx]
	switch {
	case actualDivergent && c < 3:
		c++
	case !actualDivergent && c > 0:
		c--
	}
	p.counters[idx] = c

	h := &p.hist[idx]
	switch {
	case predictedDivergent && actualDivergent:
		h.GoodDivergent++
	case predictedDivergent && !actualDivergent:
		h.BadDivergent++
	case !predictedDivergent && actualDivergent:
		h.BadUniform++
	default:
		h.GoodUniform++
	}
}

// Histogram returns the diagnostic histogram accumulated for pc.
func (p *Predictor) Histogram(pc int32) Histogram {
	return p.hist[index(pc)]
}

// Counter returns the raw saturating counter value for pc, for tests and
// diagnostic dumps.
func (p *Predictor) Counter(pc int32) uint8 {
	return p.counters[index(pc)]
}
