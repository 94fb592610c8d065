package search

import (
	"context"
	"fmt"

	"github.com/mkrogh/bookmarket-backend/internal/cart"
	"github.com/mkrogh/bookmarket-backend/pkg/enums"
	pkgredis "github.com/mkrogh/bookmarket-backend/pkg/redis"
)

// Catalog resolves live offers from the search projection. It backs the cart
// with frozen-at-read prices: whatever the projection holds when the item is
// added is the price the cart carries.
type Catalog struct {
	store store
}

// NewCatalog builds the offer catalog over the shared Redis client.
func NewCatalog(client *pkgredis.Client) (*Catalog, error) {
	st, err := newStore(client)
	if err != nil {
		return nil, err
	}
	return &Catalog{store: st}, nil
}

func newCatalog(st store) *Catalog {
	return &Catalog{store: st}
}

// GetOffer implements cart.OfferLoader.
func (c *Catalog) GetOffer(ctx context.Context, isbn, sellerID string) (*cart.Offer, error) {
	normalized, err := normalizeISBN(isbn)
	if err != nil {
		return nil, cart.ErrOfferNotFound
	}

	raw, found, err := c.store.Get(ctx, sellersKey(normalized))
	if err != nil {
		return nil, fmt.Errorf("load sellers: %w", err)
	}
	if !found {
		return nil, cart.ErrOfferNotFound
	}

	offers, err := decodeSellerOffers(raw)
	if err != nil {
		return nil, err
	}
	for _, offer := range offers {
		if offer.SellerID != sellerID {
			continue
		}
		return &cart.Offer{
			ISBN:     normalized,
			SellerID: offer.SellerID,
			Price:    offer.Price,
			Currency: enums.DefaultCurrency,
			Stock:    offer.Stock,
		}, nil
	}
	return nil, cart.ErrOfferNotFound
}
