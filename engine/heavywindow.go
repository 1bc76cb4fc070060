package engine

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"

	fet "github.com/glycerine/golang-fisher-exact"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultDensityColumn is the sample attribute phyloseq-style SIP datasets use
// for fraction buoyant density.
const DefaultDensityColumn = "Buoyant_density"

type TestKind int

const (
	// Welch is a one-sided Welch t-test of log2 abundances.
	Welch TestKind = iota

	// Presence is a one-sided Fisher exact test of how often the feature is
	// detected in treatment versus control fractions.
	Presence
)

func ParseTestKind(s string) (TestKind, error) {
	switch s {
	case "", "welch":
		return Welch, nil
	case "presence", "fisher":
		return Presence, nil
	}
	return Welch, fmt.Errorf("unknown test %q; expected welch or presence", s)
}

func (k TestKind) String() string {
	if k == Presence {
		return "presence"
	}
	return "welch"
}

// HeavyWindow compares treatment against control fractions within each
// buoyant density window. For every sparsity threshold it keeps, per feature,
// the window with the largest log2 fold change and then adjusts p values
// across features with Benjamini-Hochberg. Rows for every threshold are
// returned, each tagged with its threshold.
type HeavyWindow struct {
	// L2FCThreshold is the null log2 fold change; features must exceed it.
	L2FCThreshold float64

	// MinReplicates is the fewest control and treatment fractions a window
	// needs to be tested.
	MinReplicates int

	// PseudoCount is added to normalized counts before taking logs.
	PseudoCount float64

	Test TestKind
}

// NewHeavyWindow returns a HeavyWindow with the customary HR-SIP settings.
func NewHeavyWindow() *HeavyWindow {
	return &HeavyWindow{
		L2FCThreshold: 0.25,
		MinReplicates: 2,
		PseudoCount:   0.5,
		Test:          Welch,
	}
}

// windowSides holds the column indices of one window's fractions.
type windowSides struct {
	window    Window
	control   []int
	treatment []int
}

func (h *HeavyWindow) Test(ctx context.Context, req Request) ([]Result, error) {
	if len(req.Windows) == 0 {
		return nil, fmt.Errorf("%s: no density windows were given", req.Label)
	}
	if len(req.SparsityThresholds) == 0 {
		return nil, fmt.Errorf("%s: no sparsity thresholds were given", req.Label)
	}
	for _, s := range req.SparsityThresholds {
		if s < 0 || s > 1 {
			return nil, fmt.Errorf("%s: sparsity threshold %v is outside [0, 1]", req.Label, s)
		}
	}

	minReps := h.MinReplicates
	if minReps < 2 {
		minReps = 2
	}

	sides, err := h.windowSides(req, minReps)
	if err != nil {
		return nil, err
	}

	norm := normalize(req.Data.Counts.M)
	features := req.Data.Counts.Features

	out := make([]Result, 0)
	for _, threshold := range req.SparsityThresholds {
		best := make(map[int]Result)

		for _, ws := range sides {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			for i, feature := range features {
				if !passesSparsity(req.Data.Counts.M, i, ws, threshold) {
					continue
				}

				r := h.testFeature(norm, i, ws)
				r.Label = req.Label
				r.Feature = feature
				r.Sparsity = threshold

				if prev, exists := best[i]; !exists || r.L2FC > prev.L2FC {
					best[i] = r
				}
			}
		}

		// Emit in feature order so output is deterministic
		idx := make([]int, 0, len(best))
		for i := range best {
			idx = append(idx, i)
		}
		sort.Ints(idx)

		pvals := make([]float64, 0, len(idx))
		for _, i := range idx {
			pvals = append(pvals, best[i].P)
		}
		padj := AdjustBH(pvals)

		for k, i := range idx {
			r := best[i]
			r.PAdj = padj[k]
			out = append(out, r)
		}
	}

	return out, nil
}

func (h *HeavyWindow) windowSides(req Request, minReps int) ([]windowSides, error) {
	col := req.DensityColumn
	if col == "" {
		col = DefaultDensityColumn
	}

	densities := make([]float64, len(req.Data.Samples.Samples))
	for j, s := range req.Data.Samples.Samples {
		raw, ok := s.Value(col)
		if !ok {
			return nil, fmt.Errorf("%s: sample %s has no %s", req.Label, s.ID, col)
		}
		d, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: sample %s: %s %q is not a number", req.Label, s.ID, col, raw)
		}
		densities[j] = d
	}

	out := make([]windowSides, 0, len(req.Windows))
	for _, w := range req.Windows {
		ws := windowSides{window: w}
		for j, s := range req.Data.Samples.Samples {
			if !w.Contains(densities[j]) {
				continue
			}
			switch s.Attributes[req.TreatmentAxis] {
			case req.Control:
				ws.control = append(ws.control, j)
			case req.Treatment:
				ws.treatment = append(ws.treatment, j)
			}
		}

		if len(ws.control) < minReps || len(ws.treatment) < minReps {
			log.Printf("%s: skipping window %s with %d control and %d treatment fractions\n", req.Label, w, len(ws.control), len(ws.treatment))
			continue
		}
		out = append(out, ws)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", req.Label, ErrInsufficientReplication)
	}

	return out, nil
}

// normalize scales each sample to the median library size of the group.
func normalize(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	sizes := make([]float64, c)
	nonzero := make([]float64, 0, c)
	for j := 0; j < c; j++ {
		sizes[j] = mat.Sum(m.ColView(j))
		if sizes[j] > 0 {
			nonzero = append(nonzero, sizes[j])
		}
	}

	target := 0.0
	if len(nonzero) > 0 {
		sort.Float64s(nonzero)
		target = stat.Quantile(0.5, stat.Empirical, nonzero, nil)
	}

	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, v float64) float64 {
		if sizes[j] == 0 {
			return 0
		}
		return v * target / sizes[j]
	}, m)

	return out
}

// passesSparsity requires the feature to be detected in at least threshold of
// the window's fractions. Features absent from every fraction never pass.
func passesSparsity(m *mat.Dense, i int, ws windowSides, threshold float64) bool {
	var present, total int
	for _, cols := range [][]int{ws.control, ws.treatment} {
		for _, j := range cols {
			total++
			if m.At(i, j) > 0 {
				present++
			}
		}
	}

	return present > 0 && float64(present)/float64(total) >= threshold
}

func (h *HeavyWindow) testFeature(norm *mat.Dense, i int, ws windowSides) Result {
	logOf := func(cols []int) ([]float64, []float64) {
		raw := make([]float64, 0, len(cols))
		logged := make([]float64, 0, len(cols))
		for _, j := range cols {
			v := norm.At(i, j)
			raw = append(raw, v)
			logged = append(logged, math.Log2(v+h.PseudoCount))
		}
		return raw, logged
	}

	rawC, logC := logOf(ws.control)
	rawT, logT := logOf(ws.treatment)

	meanC, varC := stat.MeanVariance(logC, nil)
	meanT, varT := stat.MeanVariance(logT, nil)

	r := Result{
		Window:   ws.window,
		BaseMean: stat.Mean(append(append([]float64(nil), rawC...), rawT...), nil),
		L2FC:     meanT - meanC,
	}

	switch h.Test {
	case Presence:
		r.P = presenceP(rawT, rawC)
	default:
		r.P = welchP(r.L2FC-h.L2FCThreshold, varT, float64(len(logT)), varC, float64(len(logC)))
	}

	return r
}

// welchP is the one-sided p value for a difference in means greater than
// zero, given the per-group variances and sizes.
func welchP(diff, varT, nT, varC, nC float64) float64 {
	vt, vc := varT/nT, varC/nC
	se := math.Sqrt(vt + vc)
	if se == 0 {
		if diff > 0 {
			return 0
		}
		return 1
	}

	df := (vt + vc) * (vt + vc) / (vt*vt/(nT-1) + vc*vc/(nC-1))
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}

	return t.Survival(diff / se)
}

// presenceP tests whether the feature is detected in treatment fractions more
// often than in control fractions.
func presenceP(treatment, control []float64) float64 {
	count := func(v []float64) (present, absent int) {
		for _, x := range v {
			if x > 0 {
				present++
			} else {
				absent++
			}
		}
		return
	}

	tp, ta := count(treatment)
	cp, ca := count(control)
	_, _, rightp, _ := fet.FisherExactTest(tp, ta, cp, ca)

	return math.Min(1, rightp)
}
