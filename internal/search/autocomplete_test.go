package search

import (
	"context"
	"testing"
)

// Indexing ["Dune", "Dune Messiah", "Duma Key"]: prefix "du" returns all
// three, prefix "dun" narrows to the Dune titles, and ordering is popularity
// descending with lexicographic ascending tie-break.
func TestSuggestTitlesDeterministicOrdering(t *testing.T) {
	st := newMemStore()
	ctx := context.Background()

	for _, title := range []string{"Dune", "Dune Messiah", "Duma Key"} {
		if err := indexTitleCompletion(ctx, st, title); err != nil {
			t.Fatalf("index %q: %v", title, err)
		}
	}

	suggestions, err := suggestTitles(ctx, st, "du", 10)
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if len(suggestions) != 3 {
		t.Fatalf("got %d suggestions, want 3", len(suggestions))
	}
	// All scores zero: pure lexicographic order.
	want := []string{"Duma Key", "Dune", "Dune Messiah"}
	for i, title := range want {
		if suggestions[i].Title != title {
			t.Fatalf("suggestions[%d] = %q, want %q", i, suggestions[i].Title, title)
		}
	}

	narrowed, err := suggestTitles(ctx, st, "dun", 10)
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if len(narrowed) != 2 || narrowed[0].Title != "Dune" || narrowed[1].Title != "Dune Messiah" {
		t.Fatalf("narrowed = %+v", narrowed)
	}
}

func TestSuggestTitlesPopularityBeatsLexicographic(t *testing.T) {
	st := newMemStore()
	ctx := context.Background()

	for _, title := range []string{"Dune", "Dune Messiah", "Duma Key"} {
		if err := indexTitleCompletion(ctx, st, title); err != nil {
			t.Fatalf("index %q: %v", title, err)
		}
	}
	for i := 0; i < 3; i++ {
		if err := recordTitleHit(ctx, st, "Dune Messiah"); err != nil {
			t.Fatalf("hit: %v", err)
		}
	}
	if err := recordTitleHit(ctx, st, "Duma Key"); err != nil {
		t.Fatalf("hit: %v", err)
	}

	suggestions, err := suggestTitles(ctx, st, "du", 10)
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	want := []string{"Dune Messiah", "Duma Key", "Dune"}
	for i, title := range want {
		if suggestions[i].Title != title {
			t.Fatalf("suggestions[%d] = %q, want %q (got %+v)", i, suggestions[i].Title, title, suggestions)
		}
	}
}

func TestSuggestTitlesRespectsLimit(t *testing.T) {
	st := newMemStore()
	ctx := context.Background()

	for _, title := range []string{"Dune", "Dune Messiah", "Duma Key"} {
		if err := indexTitleCompletion(ctx, st, title); err != nil {
			t.Fatalf("index %q: %v", title, err)
		}
	}

	suggestions, err := suggestTitles(ctx, st, "du", 2)
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if len(suggestions) != 2 {
		t.Fatalf("got %d suggestions, want 2", len(suggestions))
	}
}

func TestReindexingKeepsPopularity(t *testing.T) {
	st := newMemStore()
	ctx := context.Background()

	if err := indexTitleCompletion(ctx, st, "Dune"); err != nil {
		t.Fatalf("index: %v", err)
	}
	if err := recordTitleHit(ctx, st, "Dune"); err != nil {
		t.Fatalf("hit: %v", err)
	}
	// A BookUpdated replay re-indexes the same title.
	if err := indexTitleCompletion(ctx, st, "Dune"); err != nil {
		t.Fatalf("reindex: %v", err)
	}

	suggestions, err := suggestTitles(ctx, st, "du", 10)
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if len(suggestions) != 1 || suggestions[0].Score != 1 {
		t.Fatalf("suggestions = %+v, want score 1 preserved", suggestions)
	}
}
