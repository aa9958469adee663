// Package lattice builds, optimizes, and scores the word lattice produced
// from a decode's surviving tokens and alternate-hypothesis map (spec
// §3 "Lattice", §4.7–§4.9).
package lattice

import (
	"fmt"

	"github.com/denizumutdereli/lvcsr-decoder/internal/althyp"
	"github.com/denizumutdereli/lvcsr-decoder/internal/result"
	"github.com/denizumutdereli/lvcsr-decoder/internal/token"
)

// NodeID identifies a lattice node within one Lattice.
type NodeID int

// Node is a word boundary: a (word, begin_frame, end_frame) triple (spec
// §4.7). Two tokens that reach the same word at the same frame span
// collapse onto the same Node.
type Node struct {
	ID         NodeID       `msgpack:"id"`
	Word       string       `msgpack:"word"`
	BeginFrame int          `msgpack:"begin_frame"`
	EndFrame   int          `msgpack:"end_frame"`
	Time       float64      `msgpack:"time"` // seconds, EndFrame * frame duration
	Entering   []EdgeID     `msgpack:"entering"`
	Leaving    []EdgeID     `msgpack:"leaving"`
	Alpha      float64      `msgpack:"-"`
	Beta       float64      `msgpack:"-"`
}

// EdgeID identifies a lattice edge within one Lattice.
type EdgeID int

// Edge carries the accumulated acoustic and language scores for one word
// segment (spec §4.7 "Score attribution on edges").
type Edge struct {
	ID            EdgeID  `msgpack:"id"`
	Source        NodeID  `msgpack:"source"`
	Dest          NodeID  `msgpack:"dest"`
	AcousticScore float64 `msgpack:"acoustic_score"`
	LanguageScore float64 `msgpack:"language_score"`
}

// Lattice is a word DAG with a unique initial and terminal node (spec §3).
type Lattice struct {
	Nodes    []*Node `msgpack:"nodes"`
	Edges    []*Edge `msgpack:"edges"`
	Initial  NodeID  `msgpack:"initial"`
	Terminal NodeID  `msgpack:"terminal"`

	FrameDuration float64 `msgpack:"frame_duration"`
}

func (l *Lattice) node(id NodeID) *Node { return l.Nodes[id] }
func (l *Lattice) edge(id EdgeID) *Edge { return l.Edges[id] }

func (l *Lattice) newNode(word string, begin, end int) *Node {
	n := &Node{ID: NodeID(len(l.Nodes)), Word: word, BeginFrame: begin, EndFrame: end, Time: float64(end) * l.FrameDuration}
	l.Nodes = append(l.Nodes, n)
	return n
}

func (l *Lattice) newEdge(src, dst NodeID, acoustic, language float64) *Edge {
	e := &Edge{ID: EdgeID(len(l.Edges)), Source: src, Dest: dst, AcousticScore: acoustic, LanguageScore: language}
	l.Edges = append(l.Edges, e)
	l.Nodes[src].Leaving = append(l.Nodes[src].Leaving, e.ID)
	l.Nodes[dst].Entering = append(l.Nodes[dst].Entering, e.ID)
	return e
}

// wordKey is the (word, begin_frame, end_frame) node-equivalence key (spec
// §3, §4.7).
type wordKey struct {
	word  string
	begin int
	end   int
}

// segment accumulates the acoustic/language deltas walked over one word's
// emitting tokens, used while tracing back-pointers in Build.
type segment struct {
	acoustic float64
	language float64
	begin    int
	end      int
	word     string
}

// Build traces back-pointers from every final token in res (and their
// recorded alternates) to construct a word Lattice (spec §4.7). frameDur is
// the seconds-per-frame used to stamp node Time fields for SLF export.
func Build(res *result.Result, alt *althyp.Manager, frameDur float64) (*Lattice, error) {
	l := &Lattice{FrameDuration: frameDur}
	sentinel := l.newNode("<s>", -1, -1)
	l.Initial = sentinel.ID

	nodes := map[wordKey]*Node{}
	visited := map[*token.Token]*Node{}

	terminal := NodeID(-1)

	finals := res.ActiveTokens()
	if len(finals) == 0 {
		finals = []*token.Token{res.BestToken()}
	}
	for _, f := range finals {
		if f == nil {
			continue
		}
		n, err := traceToNode(l, f, nodes, visited, alt, sentinel)
		if err != nil {
			return nil, err
		}
		if f.IsFinal() {
			terminal = n.ID
		}
	}

	if terminal < 0 {
		// No token reached a final state: EmptyResult (spec §7). Use the
		// best partial path's node as terminal so a lattice still exists.
		best := res.BestToken()
		if best == nil {
			return l, nil
		}
		n, err := traceToNode(l, best, nodes, visited, alt, sentinel)
		if err != nil {
			return nil, err
		}
		terminal = n.ID
	}
	l.Terminal = terminal

	removeHangingNodes(l)
	return l, nil
}

// traceToNode walks t's ancestry back to the nearest word boundaries,
// building/looking-up Nodes and Edges as it goes, and returns the Node
// representing t's own word boundary (creating one at the sentinel if t
// never crosses a word boundary itself).
func traceToNode(l *Lattice, t *token.Token, nodes map[wordKey]*Node, visited map[*token.Token]*Node, alt *althyp.Manager, sentinel *Node) (*Node, error) {
	if n, ok := visited[t]; ok {
		return n, nil
	}

	seg, predWordTok := walkSegment(t)

	var destNode *Node
	if seg.word == "" {
		// No word boundary reached yet on this path; collapse onto the
		// sentinel node.
		destNode = sentinel
	} else {
		key := wordKey{word: seg.word, begin: seg.begin, end: seg.end}
		if existing, ok := nodes[key]; ok {
			destNode = existing
		} else {
			destNode = l.newNode(seg.word, seg.begin, seg.end)
			nodes[key] = destNode
		}
	}
	visited[t] = destNode

	if predWordTok == nil {
		// The first word on the path: link it from the sentence-start
		// sentinel so it lies on an initial-to-terminal path.
		if destNode.ID != sentinel.ID {
			l.newEdge(sentinel.ID, destNode.ID, seg.acoustic, seg.language)
		}
		return destNode, nil
	}

	srcNode, err := traceToNode(l, predWordTok, nodes, visited, alt, sentinel)
	if err != nil {
		return nil, err
	}
	if srcNode.ID != destNode.ID {
		l.newEdge(srcNode.ID, destNode.ID, seg.acoustic, seg.language)
	}

	for _, loser := range alt.GetAlternates(t) {
		if _, err := traceToNode(l, loser, nodes, visited, alt, sentinel); err != nil {
			return nil, err
		}
	}

	return destNode, nil
}

// walkSegment accumulates acoustic/language deltas from t back to (but not
// including) the nearest word-boundary ancestor, returning that ancestor
// token (nil if the root is reached with no further word boundary).
// word_begin_frame is the frame of the earliest emitting token walked
// while still inside t's own word segment (spec §4.5: "word_begin_frame is
// inherited from the word's first emitting token").
func walkSegment(t *token.Token) (segment, *token.Token) {
	seg := segment{end: t.Frame(), begin: t.Frame()}
	cur := t
	first := true
	for cur != nil {
		if !first && cur.IsWord() {
			return seg, cur
		}
		seg.acoustic += cur.AcousticScore()
		seg.language += cur.LanguageScore()
		if cur.IsEmitting() {
			seg.begin = cur.Frame()
		}
		if first && cur.IsWord() {
			w := cur.Word()
			seg.word = w.Text
		}
		first = false
		cur = cur.Predecessor()
	}
	return seg, nil
}

// removeHangingNodes repeatedly deletes any node (other than initial and
// terminal) whose entering or leaving edge set is empty, until fixpoint
// (spec §4.7).
func removeHangingNodes(l *Lattice) {
	for {
		changed := false
		keep := make([]bool, len(l.Nodes))
		for i := range l.Nodes {
			keep[i] = true
		}
		for _, n := range l.Nodes {
			if n.ID == l.Initial || n.ID == l.Terminal {
				continue
			}
			if len(n.Entering) == 0 || len(n.Leaving) == 0 {
				keep[n.ID] = false
				changed = true
			}
		}
		if !changed {
			return
		}
		removeNodes(l, keep)
	}
}

// removeNodes drops every node whose keep flag is false, along with any
// edge touching it and any edge no longer listed in its source's Leaving
// set (such as one collapsed into a parallel edge by the optimizer),
// renumbering the survivors.
func removeNodes(l *Lattice, keep []bool) {
	linked := make(map[EdgeID]bool, len(l.Edges))
	for _, n := range l.Nodes {
		for _, id := range n.Leaving {
			linked[id] = true
		}
	}
	remap := make(map[NodeID]NodeID, len(l.Nodes))
	newNodes := make([]*Node, 0, len(l.Nodes))
	for _, n := range l.Nodes {
		if !keep[n.ID] {
			continue
		}
		remap[n.ID] = NodeID(len(newNodes))
		n.Entering = nil
		n.Leaving = nil
		newNodes = append(newNodes, n)
	}

	newEdges := make([]*Edge, 0, len(l.Edges))
	for _, e := range l.Edges {
		if !linked[e.ID] || !keep[e.Source] || !keep[e.Dest] {
			continue
		}
		e.ID = EdgeID(len(newEdges))
		e.Source = remap[e.Source]
		e.Dest = remap[e.Dest]
		newEdges = append(newEdges, e)
		newNodes[e.Source].Leaving = append(newNodes[e.Source].Leaving, e.ID)
		newNodes[e.Dest].Entering = append(newNodes[e.Dest].Entering, e.ID)
	}

	for i, n := range newNodes {
		n.ID = NodeID(i)
	}

	l.Initial = remap[l.Initial]
	l.Terminal = remap[l.Terminal]
	l.Nodes = newNodes
	l.Edges = newEdges
}

// String renders a compact human-readable summary, useful in tests and
// debug logging.
func (l *Lattice) String() string {
	return fmt.Sprintf("lattice{nodes=%d edges=%d initial=%d terminal=%d}", len(l.Nodes), len(l.Edges), l.Initial, l.Terminal)
}
