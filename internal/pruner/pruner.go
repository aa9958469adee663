// Package pruner applies composable beam policies to an ActiveList's
// survivor set at commit time (spec §4.4): absolute beam, relative beam,
// and — for the Word variant — per-word and filler-word quotas (spec
// §4.3). ActiveList variants (Simple, Partitioned, Word) are expressed
// here as which Selector + caps a Config wires up, not as separate types.
package pruner

import (
	"sort"

	"github.com/denizumutdereli/lvcsr-decoder/internal/activelist"
	"github.com/denizumutdereli/lvcsr-decoder/internal/althyp"
	"github.com/denizumutdereli/lvcsr-decoder/internal/token"
)

// Selector extracts the top k tokens (by Token.Less order) from all. Both
// implementations below reorder all in place.
type Selector func(all []*token.Token, k int) []*token.Token

// WordCaps bounds tokens per distinct word and filler words, applied
// after score-order selection (spec §4.3 Word variant: "Applied after
// score sort: walk tokens in score order, drop those exceeding per-word or
// filler quotas").
type WordCaps struct {
	MaxPathsPerWord int // 0 disables the cap
	MaxFillerWords  int
}

// Config composes the Pruner's policies (spec §4.4):
//  1. Absolute beam — AbsoluteBeamWidth, applied via Select.
//  2. Relative beam — RelativeBeamWidth (<=0; 0 disables).
//  3. Strict flag — governs *when* the search loop is allowed to prune
//     (spec §4.4 item 3), not what Commit does; see Strict's doc.
//  4. Word/filler caps — Words, nil for the Simple/Partitioned variants.
type Config struct {
	AbsoluteBeamWidth int
	RelativeBeamWidth float64
	Select            Selector
	Words             *WordCaps

	// Strict governs whether a token may be pruned before its current
	// frame's acoustic score has been computed. When true, pruning must
	// wait until after scoring (spec §4.4 item 3); when false, entry-time
	// pruning against the predecessor's score is allowed. SearchManager
	// consults CanPruneBeforeScoring, not Commit, to honor this.
	Strict bool
}

// SimpleConfig returns the full-sort Simple ActiveList variant's pruning
// configuration.
func SimpleConfig(absoluteBeamWidth int, relativeBeamWidth float64, strict bool) Config {
	return Config{
		AbsoluteBeamWidth: absoluteBeamWidth,
		RelativeBeamWidth: relativeBeamWidth,
		Select:            SelectBySort,
		Strict:            strict,
	}
}

// PartitionedConfig returns the Hoare-partition top-K variant's
// configuration, preferred when AbsoluteBeamWidth is much smaller than
// the candidate count (spec §4.3: "linear-time selection... when K << N").
func PartitionedConfig(absoluteBeamWidth int, relativeBeamWidth float64, strict bool) Config {
	return Config{
		AbsoluteBeamWidth: absoluteBeamWidth,
		RelativeBeamWidth: relativeBeamWidth,
		Select:            SelectByPartition,
		Strict:            strict,
	}
}

// WordConfig returns the Word-constrained variant's configuration,
// layering per-word/filler caps on top of partitioned selection.
func WordConfig(absoluteBeamWidth int, relativeBeamWidth float64, strict bool, caps WordCaps) Config {
	cfg := PartitionedConfig(absoluteBeamWidth, relativeBeamWidth, strict)
	cfg.Words = &caps
	return cfg
}

// CanPruneBeforeScoring reports whether a token may be dropped using its
// predecessor's score before the current frame's acoustic score is known
// (spec §4.4 item 3: "if disabled, entry-time pruning is allowed").
func (c Config) CanPruneBeforeScoring() bool { return !c.Strict }

// Commit applies AbsoluteBeamWidth, then RelativeBeamWidth, then (if
// configured) word/filler caps to src's survivors, and returns a freshly
// built ActiveList containing only what remains (spec §4.3 "commit()").
// alt receives any recombination that occurs while rebuilding (none is
// expected here since src already recombined its own entries, but the
// parameter keeps the call shape uniform with List.Add).
func Commit(src *activelist.List, cfg Config, alt *althyp.Manager) *activelist.List {
	tokens := append([]*token.Token(nil), src.Tokens()...)

	selector := cfg.Select
	if selector == nil {
		selector = SelectBySort
	}
	tokens = selector(tokens, cfg.AbsoluteBeamWidth)

	if cfg.RelativeBeamWidth != 0 {
		threshold := src.BestScore() + cfg.RelativeBeamWidth
		tokens = filterRelative(tokens, threshold)
	}

	if cfg.Words != nil {
		tokens = applyWordCaps(tokens, *cfg.Words)
	}

	out := activelist.New(cfg.AbsoluteBeamWidth)
	for _, t := range tokens {
		out.Add(t, alt)
	}
	return out
}

func filterRelative(tokens []*token.Token, threshold float64) []*token.Token {
	kept := tokens[:0]
	for _, t := range tokens {
		if t.Score() >= threshold {
			kept = append(kept, t)
		}
	}
	return kept
}

// SelectBySort is the Simple variant's selector: a full descending sort,
// then truncate to k (k<=0 means unbounded).
func SelectBySort(all []*token.Token, k int) []*token.Token {
	sort.Slice(all, func(i, j int) bool { return all[i].Less(all[j]) })
	if k > 0 && len(all) > k {
		all = all[:k]
	}
	return all
}

// SelectByPartition is the Partitioned variant's selector: Hoare
// quickselect to place the top k tokens in the front k positions in
// O(n) expected time, followed by a sort of just that front slice so
// downstream consumers (relative beam, word caps) still see descending
// score order.
func SelectByPartition(all []*token.Token, k int) []*token.Token {
	n := len(all)
	if k <= 0 || k >= n {
		return SelectBySort(all, k)
	}
	quickselect(all, 0, n-1, k)
	top := all[:k]
	return SelectBySort(top, 0)
}

// quickselect partitions all[lo:hi+1] in place (Hoare scheme, ordering by
// Token.Less so the k highest-scoring tokens end up in all[:k]) until the
// k-th element is in its sorted position.
func quickselect(all []*token.Token, lo, hi, k int) {
	for lo < hi {
		p := hoarePartition(all, lo, hi)
		if p == k-1 {
			return
		} else if p < k-1 {
			lo = p + 1
		} else {
			hi = p
		}
	}
}

func hoarePartition(all []*token.Token, lo, hi int) int {
	pivot := all[(lo+hi)/2]
	i, j := lo-1, hi+1
	for {
		for {
			i++
			if !all[i].Less(pivot) {
				break
			}
		}
		for {
			j--
			if !pivot.Less(all[j]) {
				break
			}
		}
		if i >= j {
			return j
		}
		all[i], all[j] = all[j], all[i]
	}
}

func applyWordCaps(tokens []*token.Token, caps WordCaps) []*token.Token {
	if caps.MaxPathsPerWord <= 0 && caps.MaxFillerWords <= 0 {
		return tokens
	}
	wordCount := make(map[string]int)
	fillerCount := 0
	kept := tokens[:0]
	for _, t := range tokens {
		w := t.Word()
		if w == nil {
			kept = append(kept, t)
			continue
		}
		if w.Filler {
			if caps.MaxFillerWords > 0 && fillerCount >= caps.MaxFillerWords {
				continue
			}
			fillerCount++
			kept = append(kept, t)
			continue
		}
		if caps.MaxPathsPerWord > 0 && wordCount[w.Text] >= caps.MaxPathsPerWord {
			continue
		}
		wordCount[w.Text]++
		kept = append(kept, t)
	}
	return kept
}
