package lattice

import (
	"sort"

	"github.com/denizumutdereli/lvcsr-decoder/internal/logmath"
	"github.com/denizumutdereli/lvcsr-decoder/internal/result"
)

// path is one candidate word sequence walked through the lattice, with its
// accumulated total score.
type path struct {
	words []result.WordResult
	score float64
}

// NBest extracts up to n highest-scoring word sequences from initial to
// terminal (SPEC_FULL.md supplement: "a natural completion of
// alternate-predecessor records kept during search that the distillation
// never exposes as an output operation"). Scoring uses the edges' raw
// acoustic+language sum; confidence is filled in from a prior
// ComputePosteriors pass if pr is non-nil, else left at zero.
func (l *Lattice) NBest(n int, pr *PosteriorResult, lm logmath.LogMath) [][]result.WordResult {
	if n <= 0 || len(l.Nodes) == 0 {
		return nil
	}

	complete := []path{}
	var walk func(node NodeID, acc path)
	walk = func(node NodeID, acc path) {
		if node == l.Terminal {
			complete = append(complete, acc)
			return
		}
		for _, eid := range l.node(node).Leaving {
			e := l.edge(eid)
			dest := l.node(e.Dest)
			wr := result.WordResult{
				Word:    dest.Word,
				BeginMS: uint64(float64(dest.BeginFrame) * l.FrameDuration * 1000),
				EndMS:   uint64(float64(dest.EndFrame) * l.FrameDuration * 1000),
				Score:   float32(e.AcousticScore + e.LanguageScore),
			}
			if pr != nil {
				// Posterior is computed in lm's configured base (spec §9:
				// LogMath is an explicit, non-singleton parameter, and
				// MathConfig.LogBase is caller-configurable per spec §9).
				// WordResult.LogConfidence is always natural-log, so every
				// producer converts before storing — see Nats's doc comment.
				lc := pr.Posterior(dest)
				wr.LogConfidence = float32(lm.Nats(lc))
			}
			next := path{
				words: append(append([]result.WordResult{}, acc.words...), wr),
				score: acc.score + e.AcousticScore + e.LanguageScore,
			}
			walk(e.Dest, next)
		}
	}
	walk(l.Initial, path{})

	sort.Slice(complete, func(i, j int) bool { return complete[i].score > complete[j].score })
	if len(complete) > n {
		complete = complete[:n]
	}

	out := make([][]result.WordResult, len(complete))
	for i, p := range complete {
		out[i] = p.words
	}
	return out
}
