package activelist

import "gonum.org/v1/gonum/stat"

// ScoreDistribution summarizes the spread of survivor scores for
// diagnostics. Nothing in the search loop or the pruner reads it; it does
// not drive pruning.
type ScoreDistribution struct {
	Mean   float64
	StdDev float64
	N      int
}

// Distribution computes the mean and standard deviation of the current
// survivor scores via gonum/stat, returning the zero value for an empty
// list.
func (l *List) Distribution() ScoreDistribution {
	if len(l.tokens) == 0 {
		return ScoreDistribution{}
	}
	scores := make([]float64, len(l.tokens))
	for i, t := range l.tokens {
		scores[i] = t.Score()
	}
	mean, std := stat.MeanStdDev(scores, nil)
	return ScoreDistribution{Mean: mean, StdDev: std, N: len(scores)}
}
