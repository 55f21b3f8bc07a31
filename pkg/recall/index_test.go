package recall

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx := NewIndex(filepath.Join(t.TempDir(), "recall.db"), "")
	if !idx.Available() {
		t.Fatalf("index should be available on a fresh temp dir")
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestAddAndQueryRanksBySimilarity(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	idx.Add(ctx, "Master's favorite food is spicy ramen", nil)
	idx.Add(ctx, "The wallpaper rotation runs every morning", nil)
	idx.Add(ctx, "Master dislikes early meetings", nil)

	got := idx.Query(ctx, "what food does master like", 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].Text != "Master's favorite food is spicy ramen" {
		t.Errorf("expected the food fragment first, got %q (score %.3f)", got[0].Text, got[0].Score)
	}
	if got[0].Score < got[1].Score {
		t.Errorf("results not sorted by score: %.3f < %.3f", got[0].Score, got[1].Score)
	}
}

func TestAddIgnoresEmptyText(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	idx.Add(ctx, "", nil)
	idx.Add(ctx, "   \n\t ", nil)
	if n := idx.Count(ctx); n != 0 {
		t.Errorf("expected 0 fragments after empty adds, got %d", n)
	}
}

func TestUnavailableIndexDegradesQuietly(t *testing.T) {
	// A file where the parent dir should be makes MkdirAll fail.
	base := t.TempDir()
	blocker := filepath.Join(base, "blocked")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}

	idx := NewIndex(filepath.Join(blocker, "sub", "recall.db"), "")
	if idx.Available() {
		t.Fatalf("index should be unavailable")
	}

	ctx := context.Background()
	idx.Add(ctx, "some text", nil)
	if got := idx.Query(ctx, "some text", 3); got != nil {
		t.Errorf("unavailable query should return nil, got %d results", len(got))
	}
	if n := idx.Count(ctx); n != 0 {
		t.Errorf("unavailable count should be 0, got %d", n)
	}
	if _, err := idx.Ingest(ctx, "whatever.txt"); err == nil {
		t.Errorf("unavailable ingest should error")
	}
}

func TestIngestTextFile(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	doc := filepath.Join(t.TempDir(), "notes.txt")
	content := "First paragraph about project deadlines.\n\nSecond paragraph about the weekend trip plans.\n\nok\n"
	if err := os.WriteFile(doc, []byte(content), 0o600); err != nil {
		t.Fatalf("write doc: %v", err)
	}

	n, err := idx.Ingest(ctx, doc)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	// The short trailing "ok" chunk is merged into the previous one.
	if n != 2 {
		t.Fatalf("expected 2 fragments, got %d", n)
	}

	got := idx.Query(ctx, "weekend trip", 1)
	if len(got) != 1 || got[0].Metadata["source"] != "notes.txt" {
		t.Fatalf("expected sourced fragment, got %#v", got)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recall.db")
	ctx := context.Background()

	idx := NewIndex(path, "")
	idx.Add(ctx, "remember the garden project", nil)
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	idx2 := NewIndex(path, "")
	defer idx2.Close()
	if n := idx2.Count(ctx); n != 1 {
		t.Fatalf("expected 1 fragment after reopen, got %d", n)
	}
	if got := idx2.Query(ctx, "garden project", 1); len(got) != 1 {
		t.Fatalf("expected persisted fragment to be retrievable")
	}
}

func TestEmbedderDeterministicAndNormalized(t *testing.T) {
	e := NewEmbedder("")
	a := e.Embed("hello world")
	b := e.Embed("hello world")
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding not deterministic at dim %d", i)
		}
	}
	if sim := cosineSimilarity(a, b); math.Abs(sim-1.0) > 1e-5 {
		t.Errorf("self-similarity = %.6f, want 1.0", sim)
	}
	if zero := e.Embed("   "); cosineSimilarity(zero, a) != 0 {
		t.Errorf("blank text should embed to the zero vector")
	}
}
