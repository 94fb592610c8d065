package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Suggestion is one autocomplete candidate with its popularity score.
type Suggestion struct {
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// indexTitleCompletion registers the title under every prefix of length >= 2.
// ZADD NX keeps accumulated popularity when a title is re-indexed.
func indexTitleCompletion(ctx context.Context, st store, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}
	for _, prefix := range Prefixes(title) {
		if err := st.ZAddNX(ctx, autocompleteKey(prefix), 0, title); err != nil {
			return fmt.Errorf("index prefix %q: %w", prefix, err)
		}
	}
	return nil
}

func removeTitleCompletion(ctx context.Context, st store, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}
	for _, prefix := range Prefixes(title) {
		if err := st.ZRem(ctx, autocompleteKey(prefix), title); err != nil {
			return fmt.Errorf("drop prefix %q: %w", prefix, err)
		}
	}
	return nil
}

// recordTitleHit bumps the title's popularity under each of its prefixes.
func recordTitleHit(ctx context.Context, st store, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}
	for _, prefix := range Prefixes(title) {
		if err := st.ZIncrBy(ctx, autocompleteKey(prefix), 1, title); err != nil {
			return fmt.Errorf("bump prefix %q: %w", prefix, err)
		}
	}
	return nil
}

// suggestTitles returns up to limit titles for the prefix, ordered by
// popularity descending with lexicographic ascending tie-break.
func suggestTitles(ctx context.Context, st store, prefix string, limit int) ([]Suggestion, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	members, err := st.ZRange(ctx, autocompleteKey(prefix), 0, -1, false)
	if err != nil {
		return nil, fmt.Errorf("read prefix %q: %w", prefix, err)
	}
	sort.SliceStable(members, func(i, j int) bool {
		if members[i].Score != members[j].Score {
			return members[i].Score > members[j].Score
		}
		return members[i].Member < members[j].Member
	})
	if limit > 0 && len(members) > limit {
		members = members[:limit]
	}
	suggestions := make([]Suggestion, 0, len(members))
	for _, member := range members {
		suggestions = append(suggestions, Suggestion{Title: member.Member, Score: member.Score})
	}
	return suggestions, nil
}
