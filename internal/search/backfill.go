package search

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/mkrogh/bookmarket-backend/pkg/logger"
)

// NameSource resolves a seller's display name, typically from the user
// profile store.
type NameSource interface {
	GetDisplayName(ctx context.Context, sellerID string) (string, error)
}

// Backfill fills in missing seller names across the per-ISBN seller lists.
// Events normally write names through; the backfill repairs entries indexed
// before the seller's profile was known.
type Backfill struct {
	indexer *Indexer
	names   NameSource
	workers int
	logg    *logger.Logger
}

// NewBackfill builds the seller-name backfill job.
func NewBackfill(indexer *Indexer, names NameSource, workers int, logg *logger.Logger) (*Backfill, error) {
	if indexer == nil {
		return nil, fmt.Errorf("indexer required")
	}
	if names == nil {
		return nil, fmt.Errorf("name source required")
	}
	if workers < 1 {
		return nil, fmt.Errorf("at least one worker required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Backfill{indexer: indexer, names: names, workers: workers, logg: logg}, nil
}

// Run scans the indexed books for offers with a missing seller name, resolves
// the names with bounded concurrency and writes them through. It returns the
// number of sellers repaired; resolution failures are aggregated and do not
// stop the remaining lookups.
func (b *Backfill) Run(ctx context.Context) (int, error) {
	missing, err := b.missingSellerIDs(ctx)
	if err != nil {
		return 0, err
	}
	if len(missing) == 0 {
		return 0, nil
	}

	var mu sync.Mutex
	resolved := make(map[string]string, len(missing))
	var lookupErrs error

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(b.workers)
	for _, sellerID := range missing {
		id := sellerID
		group.Go(func() error {
			name, err := b.names.GetDisplayName(groupCtx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				lookupErrs = multierr.Append(lookupErrs, fmt.Errorf("seller %s: %w", id, err))
				return nil
			}
			if name != "" {
				resolved[id] = name
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return 0, err
	}

	repaired := 0
	for sellerID, name := range resolved {
		if err := b.indexer.SetSellerName(ctx, sellerID, name); err != nil {
			lookupErrs = multierr.Append(lookupErrs, fmt.Errorf("write seller %s: %w", sellerID, err))
			continue
		}
		repaired++
	}

	b.logg.Info(b.logg.WithFields(ctx, map[string]any{
		"missing":  len(missing),
		"repaired": repaired,
	}), "seller name backfill finished")
	return repaired, lookupErrs
}

// missingSellerIDs walks every indexed ISBN's seller list and collects the
// sellers without a display name, deduplicated in first appearance order.
func (b *Backfill) missingSellerIDs(ctx context.Context) ([]string, error) {
	isbns, err := b.indexer.store.SMembers(ctx, allBooksKey())
	if err != nil {
		return nil, fmt.Errorf("list indexed books: %w", err)
	}

	seen := make(map[string]struct{})
	var missing []string
	for _, isbn := range isbns {
		offers, err := b.indexer.loadSellers(ctx, isbn)
		if err != nil {
			return nil, err
		}
		for _, offer := range offers {
			if offer.SellerName != "" || offer.SellerID == "" {
				continue
			}
			if _, ok := seen[offer.SellerID]; ok {
				continue
			}
			seen[offer.SellerID] = struct{}{}
			missing = append(missing, offer.SellerID)
		}
	}
	return missing, nil
}
