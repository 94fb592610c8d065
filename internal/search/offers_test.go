package search

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mkrogh/bookmarket-backend/internal/cart"
	"github.com/mkrogh/bookmarket-backend/pkg/enums"
	"github.com/mkrogh/bookmarket-backend/pkg/outbox/payloads"
)

func TestCatalogResolvesOffer(t *testing.T) {
	ix, st := newTestIndexer()
	ctx := context.Background()

	if err := ix.MergeStock(ctx, payloads.BookStockUpdatedEvent{
		ISBN:             "9780441013593",
		TotalStock:       3,
		AvailableSellers: 1,
		MinPrice:         decimal.RequireFromString("12.50"),
		Sellers:          []payloads.SellerOffer{{SellerID: "s1", Price: decimal.RequireFromString("12.50"), Stock: 3}},
	}); err != nil {
		t.Fatalf("stock: %v", err)
	}

	catalog := newCatalog(st)
	offer, err := catalog.GetOffer(ctx, "9780441013593", "s1")
	if err != nil {
		t.Fatalf("get offer: %v", err)
	}
	if !offer.Price.Equal(decimal.RequireFromString("12.50")) || offer.Stock != 3 {
		t.Fatalf("offer = %+v", offer)
	}
	if offer.Currency != enums.DefaultCurrency {
		t.Fatalf("currency = %s", offer.Currency)
	}
}

func TestCatalogUnknownSeller(t *testing.T) {
	ix, st := newTestIndexer()
	ctx := context.Background()

	if err := ix.MergeStock(ctx, payloads.BookStockUpdatedEvent{
		ISBN:             "9780441013593",
		TotalStock:       3,
		AvailableSellers: 1,
		MinPrice:         decimal.RequireFromString("12.50"),
		Sellers:          []payloads.SellerOffer{{SellerID: "s1", Price: decimal.RequireFromString("12.50"), Stock: 3}},
	}); err != nil {
		t.Fatalf("stock: %v", err)
	}

	catalog := newCatalog(st)
	if _, err := catalog.GetOffer(ctx, "9780441013593", "s9"); !errors.Is(err, cart.ErrOfferNotFound) {
		t.Fatalf("got %v, want ErrOfferNotFound", err)
	}
}

func TestCatalogUnknownBook(t *testing.T) {
	_, st := newTestIndexer()

	catalog := newCatalog(st)
	if _, err := catalog.GetOffer(context.Background(), "9780000000002", "s1"); !errors.Is(err, cart.ErrOfferNotFound) {
		t.Fatalf("got %v, want ErrOfferNotFound", err)
	}
}

func TestCatalogRejectsMalformedISBN(t *testing.T) {
	_, st := newTestIndexer()

	catalog := newCatalog(st)
	if _, err := catalog.GetOffer(context.Background(), "not-an-isbn", "s1"); !errors.Is(err, cart.ErrOfferNotFound) {
		t.Fatalf("got %v, want ErrOfferNotFound", err)
	}
}
