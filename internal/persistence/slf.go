// Package persistence implements the decoder's two persisted forms: an
// HTK-SLF-compatible plain-text lattice export/import (spec §6 "Persisted
// state") and a msgpack binary codec for whole Lattice/Result snapshots,
// grounded on this codebase's pkg/persistence/codec.go header+checksum
// framing.
package persistence

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/denizumutdereli/lvcsr-decoder/internal/lattice"
)

// WriteSLF serializes l to w in the HTK-SLF-compatible format spec §6
// names exactly: a header with node/edge counts, node lines `I=id t=time
// W=word`, edge lines `J=id S=src E=dst a=acoustic l=lm`. Exact bytes are
// compatibility-critical, so field order and formatting are fixed here,
// not left to fmt's default verbs.
func WriteSLF(w io.Writer, l *lattice.Lattice) error {
	bw := bufio.NewWriter(w)

	if _, err := fmt.Fprintf(bw, "N=%d L=%d S=%d T=%d\n", len(l.Nodes), countEdges(l), l.Initial, l.Terminal); err != nil {
		return err
	}
	for _, n := range l.Nodes {
		word := n.Word
		if word == "" {
			word = "!NULL"
		}
		if _, err := fmt.Fprintf(bw, "I=%d t=%s W=%s\n", n.ID, formatSeconds(n.Time), word); err != nil {
			return err
		}
	}
	for _, n := range l.Nodes {
		for _, eid := range n.Leaving {
			e := l.Edges[eid]
			if _, err := fmt.Fprintf(bw, "J=%d S=%d E=%d a=%s l=%s\n",
				e.ID, e.Source, e.Dest, formatScore(e.AcousticScore), formatScore(e.LanguageScore)); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// countEdges counts only edges reachable from a node's Leaving set, since
// optimization can leave orphaned entries in l.Edges that were redirected
// away during a merge (internal/lattice/optimizer.go).
func countEdges(l *lattice.Lattice) int {
	n := 0
	for _, node := range l.Nodes {
		n += len(node.Leaving)
	}
	return n
}

func formatSeconds(t float64) string {
	return strconv.FormatFloat(t, 'f', 3, 64) // millisecond precision (spec §6)
}

func formatScore(s float64) string {
	return strconv.FormatFloat(s, 'f', 6, 64)
}

// ReadSLF parses the format WriteSLF emits back into a Lattice.
func ReadSLF(r io.Reader) (*lattice.Lattice, error) {
	sc := bufio.NewScanner(r)
	l := &lattice.Lattice{}

	if !sc.Scan() {
		return nil, fmt.Errorf("persistence: empty SLF input")
	}
	header, err := parseFields(sc.Text())
	if err != nil {
		return nil, err
	}
	nNodes, err := strconv.Atoi(header["N"])
	if err != nil {
		return nil, fmt.Errorf("persistence: invalid N field: %w", err)
	}
	nEdges, err := strconv.Atoi(header["L"])
	if err != nil {
		return nil, fmt.Errorf("persistence: invalid L field: %w", err)
	}
	initialOrdinal, err := strconv.Atoi(header["S"])
	if err != nil {
		return nil, fmt.Errorf("persistence: invalid S field: %w", err)
	}
	terminalOrdinal, err := strconv.Atoi(header["T"])
	if err != nil {
		return nil, fmt.Errorf("persistence: invalid T field: %w", err)
	}

	nodesByOrdinal := make([]*lattice.Node, 0, nNodes)
	for i := 0; i < nNodes; i++ {
		if !sc.Scan() {
			return nil, fmt.Errorf("persistence: expected %d node lines, got %d", nNodes, i)
		}
		fields, err := parseFields(sc.Text())
		if err != nil {
			return nil, err
		}
		id, err := strconv.Atoi(fields["I"])
		if err != nil {
			return nil, fmt.Errorf("persistence: invalid node id: %w", err)
		}
		t, err := strconv.ParseFloat(fields["t"], 64)
		if err != nil {
			return nil, fmt.Errorf("persistence: invalid node time: %w", err)
		}
		word := fields["W"]
		if word == "!NULL" {
			word = ""
		}
		n := &lattice.Node{ID: lattice.NodeID(id), Word: word, Time: t}
		l.Nodes = append(l.Nodes, n)
		nodesByOrdinal = append(nodesByOrdinal, n)
	}

	for i := 0; i < nEdges; i++ {
		if !sc.Scan() {
			return nil, fmt.Errorf("persistence: expected %d edge lines, got %d", nEdges, i)
		}
		fields, err := parseFields(sc.Text())
		if err != nil {
			return nil, err
		}
		id, _ := strconv.Atoi(fields["J"])
		src, _ := strconv.Atoi(fields["S"])
		dst, _ := strconv.Atoi(fields["E"])
		a, err := strconv.ParseFloat(fields["a"], 64)
		if err != nil {
			return nil, fmt.Errorf("persistence: invalid edge acoustic score: %w", err)
		}
		lm, err := strconv.ParseFloat(fields["l"], 64)
		if err != nil {
			return nil, fmt.Errorf("persistence: invalid edge lm score: %w", err)
		}
		e := &lattice.Edge{ID: lattice.EdgeID(id), Source: lattice.NodeID(src), Dest: lattice.NodeID(dst), AcousticScore: a, LanguageScore: lm}
		l.Edges = append(l.Edges, e)
		nodesByOrdinal[src].Leaving = append(nodesByOrdinal[src].Leaving, e.ID)
		nodesByOrdinal[dst].Entering = append(nodesByOrdinal[dst].Entering, e.ID)
	}

	if err := sc.Err(); err != nil {
		return nil, err
	}
	l.Initial = lattice.NodeID(initialOrdinal)
	l.Terminal = lattice.NodeID(terminalOrdinal)
	return l, nil
}

// parseFields splits a "K=v K2=v2 ..." SLF line into a map.
func parseFields(line string) (map[string]string, error) {
	out := map[string]string{}
	for _, tok := range strings.Fields(line) {
		kv := strings.SplitN(tok, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("persistence: malformed SLF field %q", tok)
		}
		out[kv[0]] = kv[1]
	}
	return out, nil
}
