package graph

import "testing"

func TestLinearGraphChainsWordsInOrder(t *testing.T) {
	g := LinearGraph([]string{"one", "two"})
	init := g.InitialState()
	if init.IsWord() || init.IsFinal() {
		t.Fatal("initial state must not itself be a word or final state")
	}
	if len(init.Arcs()) != 1 {
		t.Fatalf("initial state must have exactly one outgoing arc, got %d", len(init.Arcs()))
	}

	emit1 := init.Arcs()[0].Dest
	if !emit1.IsEmitting() {
		t.Fatal("expected an emitting state after the initial state")
	}
	if len(emit1.Arcs()) != 1 {
		t.Fatalf("emitting state must have exactly one outgoing arc, got %d", len(emit1.Arcs()))
	}

	word1 := emit1.Arcs()[0].Dest
	if !word1.IsWord() || word1.Word().Text != "one" {
		t.Fatalf("expected word boundary state for %q, got IsWord=%v Word=%v", "one", word1.IsWord(), word1.Word())
	}
	if word1.IsFinal() {
		t.Error("the first of two words must not be final")
	}

	emit2 := word1.Arcs()[0].Dest
	word2 := emit2.Arcs()[0].Dest
	if !word2.IsWord() || word2.Word().Text != "two" {
		t.Fatalf("expected word boundary state for %q, got %v", "two", word2.Word())
	}
	if !word2.IsFinal() {
		t.Error("the last word's boundary state must be final")
	}
}

func TestLinearGraphEmptyWordsFallsBackToSentenceStart(t *testing.T) {
	g := LinearGraph(nil)
	init := g.InitialState()
	if len(init.Arcs()) != 1 {
		t.Fatalf("expected the <s>-only fallback to still have one arc, got %d", len(init.Arcs()))
	}
}

func TestHashSignatureIsStableAndContentSensitive(t *testing.T) {
	a1 := HashSignature("triphone:a:0")
	a2 := HashSignature("triphone:a:0")
	b := HashSignature("triphone:b:0")

	if a1 != a2 {
		t.Error("HashSignature must be deterministic for identical content")
	}
	if a1 == b {
		t.Error("HashSignature must differ for different content")
	}
}
