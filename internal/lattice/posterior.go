package lattice

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/denizumutdereli/lvcsr-decoder/internal/logmath"
)

// PosteriorResult holds the per-node forward/backward accumulation and the
// normalization constant Z (spec §4.9).
type PosteriorResult struct {
	Alpha []float64
	Beta  []float64
	Z     float64
}

// ComputePosteriors runs the forward α / backward β pass over l in the log
// semiring (spec §4.9), using lm for logAdd. Returns the trivial posterior
// (Z == LOG_ONE) for a degenerate single-node lattice without edges (spec
// §7: "must not throw for degenerate lattices").
func ComputePosteriors(l *Lattice, lm logmath.LogMath) PosteriorResult {
	n := len(l.Nodes)
	if n == 0 {
		return PosteriorResult{}
	}
	alpha := make([]float64, n)
	beta := make([]float64, n)
	floats.AddConst(logmath.LogZero, alpha)
	floats.AddConst(logmath.LogZero, beta)

	alpha[l.Initial] = logmath.LogOne
	for _, order := range topoOrder(l) {
		if order == l.Initial {
			continue
		}
		node := l.node(order)
		acc := logmath.LogZero
		for _, eid := range node.Entering {
			e := l.edge(eid)
			acc = lm.Add(acc, alpha[e.Source]+e.AcousticScore+e.LanguageScore)
		}
		alpha[order] = acc
	}

	beta[l.Terminal] = logmath.LogOne
	order := topoOrder(l)
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		if id == l.Terminal {
			continue
		}
		node := l.node(id)
		acc := logmath.LogZero
		for _, eid := range node.Leaving {
			e := l.edge(eid)
			acc = lm.Add(acc, beta[e.Dest]+e.AcousticScore+e.LanguageScore)
		}
		beta[id] = acc
	}

	z := alpha[l.Terminal]
	if len(l.Edges) == 0 {
		// Degenerate single-node lattice: posterior of 1.0 for its single
		// word, Z == LOG_ONE (spec §7).
		z = logmath.LogOne
		alpha[l.Initial] = logmath.LogOne
		beta[l.Initial] = logmath.LogOne
	}

	for i, n := range l.Nodes {
		n.Alpha = alpha[i]
		n.Beta = beta[i]
	}

	return PosteriorResult{Alpha: alpha, Beta: beta, Z: z}
}

// Posterior returns n's log posterior capped at LOG_ONE (spec §4.9: "α(n) +
// β(n) − Z, capped at LOG_ONE to handle numeric overshoot").
func (pr PosteriorResult) Posterior(n *Node) float64 {
	return logmath.CapLogOne(pr.Alpha[n.ID] + pr.Beta[n.ID] - pr.Z)
}

// CheckAgreement reports whether α(terminal) and β(initial) agree within
// tolerance (spec §8 property 6: "|α(terminal) − β(initial)| ≤ 1e-4 · |Z|").
func (pr PosteriorResult) CheckAgreement(l *Lattice) bool {
	alphaTerm := pr.Alpha[l.Terminal]
	betaInit := pr.Beta[l.Initial]
	diff := math.Abs(alphaTerm - betaInit)
	tol := 1e-4 * math.Abs(pr.Z)
	if tol == 0 {
		tol = 1e-4
	}
	return diff <= tol
}

// topoOrder returns a topological ordering of l's nodes (spec §8 property
// 4: "the lattice is acyclic"), via Kahn's algorithm over in-degree.
func topoOrder(l *Lattice) []NodeID {
	indeg := make([]int, len(l.Nodes))
	for _, n := range l.Nodes {
		indeg[n.ID] = len(n.Entering)
	}
	queue := make([]NodeID, 0, len(l.Nodes))
	for _, n := range l.Nodes {
		if indeg[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}
	order := make([]NodeID, 0, len(l.Nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, eid := range l.node(id).Leaving {
			e := l.edge(eid)
			indeg[e.Dest]--
			if indeg[e.Dest] == 0 {
				queue = append(queue, e.Dest)
			}
		}
	}
	return order
}
