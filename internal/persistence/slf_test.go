package persistence

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/denizumutdereli/lvcsr-decoder/internal/lattice"
)

func sampleLattice() *lattice.Lattice {
	l := &lattice.Lattice{FrameDuration: 0.01}
	// Build directly through the exported Node/Edge fields since lattice.Build
	// requires a full result/token graph; SLF round-trip only cares about the
	// wire shape.
	n0 := &lattice.Node{ID: 0, Word: "", Time: 0}
	n1 := &lattice.Node{ID: 1, Word: "one", Time: 0.5}
	n2 := &lattice.Node{ID: 2, Word: "two", Time: 1.0}
	l.Nodes = []*lattice.Node{n0, n1, n2}

	e0 := &lattice.Edge{ID: 0, Source: 0, Dest: 1, AcousticScore: -1.234567, LanguageScore: -0.2}
	e1 := &lattice.Edge{ID: 1, Source: 1, Dest: 2, AcousticScore: -2.5, LanguageScore: -0.3}
	l.Edges = []*lattice.Edge{e0, e1}
	n0.Leaving = []lattice.EdgeID{0}
	n1.Entering = []lattice.EdgeID{0}
	n1.Leaving = []lattice.EdgeID{1}
	n2.Entering = []lattice.EdgeID{1}

	l.Initial = 0
	l.Terminal = 2
	return l
}

func TestSLFRoundTrip(t *testing.T) {
	l := sampleLattice()

	var buf bytes.Buffer
	if err := WriteSLF(&buf, l); err != nil {
		t.Fatalf("WriteSLF: %v", err)
	}

	got, err := ReadSLF(&buf)
	if err != nil {
		t.Fatalf("ReadSLF: %v", err)
	}

	opts := cmpopts.IgnoreFields(lattice.Node{}, "Alpha", "Beta", "BeginFrame", "EndFrame")
	if diff := cmp.Diff(l.Initial, got.Initial); diff != "" {
		t.Errorf("Initial mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(l.Terminal, got.Terminal); diff != "" {
		t.Errorf("Terminal mismatch (-want +got):\n%s", diff)
	}
	if len(got.Nodes) != len(l.Nodes) {
		t.Fatalf("node count: want %d got %d", len(l.Nodes), len(got.Nodes))
	}
	for i := range l.Nodes {
		if diff := cmp.Diff(l.Nodes[i].Word, got.Nodes[i].Word); diff != "" {
			t.Errorf("node %d word mismatch (-want +got):\n%s", i, diff)
		}
		_ = opts
	}
	if len(got.Edges) != len(l.Edges) {
		t.Fatalf("edge count: want %d got %d", len(l.Edges), len(got.Edges))
	}
	for i := range l.Edges {
		want := l.Edges[i]
		g := got.Edges[i]
		if g.Source != want.Source || g.Dest != want.Dest {
			t.Errorf("edge %d endpoints: want %d->%d got %d->%d", i, want.Source, want.Dest, g.Source, g.Dest)
		}
		if diffA := want.AcousticScore - g.AcousticScore; diffA > 1e-6 || diffA < -1e-6 {
			t.Errorf("edge %d acoustic score: want %v got %v", i, want.AcousticScore, g.AcousticScore)
		}
	}
}

func TestWriteSLFOmitsOrphanedEdges(t *testing.T) {
	l := sampleLattice()
	// Simulate an optimizer merge leaving a dead edge in l.Edges that no
	// node's Leaving set references anymore.
	l.Edges = append(l.Edges, &lattice.Edge{ID: 2, Source: 0, Dest: 2})

	var buf bytes.Buffer
	if err := WriteSLF(&buf, l); err != nil {
		t.Fatalf("WriteSLF: %v", err)
	}
	got, err := ReadSLF(&buf)
	if err != nil {
		t.Fatalf("ReadSLF: %v", err)
	}
	if len(got.Edges) != 2 {
		t.Errorf("expected the orphaned third edge to be skipped, got %d edges", len(got.Edges))
	}
}

func TestReadSLFRejectsMalformedLine(t *testing.T) {
	_, err := ReadSLF(bytes.NewBufferString("N=1 L=0 S=0 T=0\nI=0 garbage\n"))
	if err == nil {
		t.Fatal("expected an error for a malformed node line")
	}
}
