package result

import (
	"strings"

	"github.com/sentencizer/sentencizer"
)

// segmenter is the slice of sentencizer.NewSegmenter's return value this
// package depends on (pkg/vector/vectorizer.go: "var segmenterEn =
// sentencizer.NewSegmenter(\"en\")" then segmenterEn.Segment(text)).
// Declaring it locally avoids hard-coding the concrete returned type name.
type segmenter interface {
	Segment(text string) []string
}

// SentenceGrouper optionally groups a flat WordResult sequence into
// sentences for get_timed_best_result callers that want sentence-chunked
// output instead of one flat word list. Nil-able pointer field pattern,
// mirroring the teacher's optional sentiment layer attached to a worker
// only when configured (pkg/sentiment.Analyzer).
type SentenceGrouper struct {
	seg segmenter
}

// NewSentenceGrouper constructs a grouper using the default English
// sentence-boundary rules.
func NewSentenceGrouper() *SentenceGrouper {
	return &SentenceGrouper{seg: sentencizer.NewSegmenter("en")}
}

// Group splits words into sentence-bounded sub-slices, reconstructing word
// boundaries from sentencizer's plain-text sentence spans (space-joined
// words is the only text sentencizer ever sees; there is no punctuation to
// recover since WordResult carries bare lexical words). A nil receiver
// (the layer disabled) returns the whole sequence as one sentence,
// mirroring how a nil *sentiment.Analyzer is a no-op in the teacher's
// worker.
func (g *SentenceGrouper) Group(words []WordResult) [][]WordResult {
	if g == nil || len(words) == 0 {
		return [][]WordResult{words}
	}

	text := make([]string, len(words))
	for i, w := range words {
		text[i] = w.Word
	}
	sentences := g.seg.Segment(strings.Join(text, " "))
	if len(sentences) <= 1 {
		return [][]WordResult{words}
	}

	out := make([][]WordResult, 0, len(sentences))
	wordIdx := 0
	for _, sentence := range sentences {
		wordCount := len(strings.Fields(sentence))
		end := wordIdx + wordCount
		if end > len(words) {
			end = len(words)
		}
		if end > wordIdx {
			out = append(out, words[wordIdx:end])
		}
		wordIdx = end
	}
	if wordIdx < len(words) {
		out = append(out, words[wordIdx:])
	}
	return out
}
