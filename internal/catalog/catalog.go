package catalog

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"gozon/internal/domain"
	"gozon/internal/repository"
)

type Reader interface {
	ProductPrice(ctx context.Context, id int64) (decimal.Decimal, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// Lookup is the read-only view of the product catalog.
type Lookup struct {
	r Reader
}

func NewLookup(r Reader) *Lookup {
	return &Lookup{r: r}
}

// Within returns a Lookup reading through r, typically an open transaction.
func (l *Lookup) Within(r Reader) *Lookup {
	return &Lookup{r: r}
}

func (l *Lookup) PriceOf(ctx context.Context, productID int64) (decimal.Decimal, error) {
	price, err := l.r.ProductPrice(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return decimal.Zero, domain.NotFound("product %d not found", productID)
		}
		return decimal.Zero, domain.Internal("failed to read product price", err)
	}
	return price, nil
}

func (l *Lookup) List(ctx context.Context) ([]domain.Product, error) {
	products, err := l.r.ListProducts(ctx)
	if err != nil {
		return nil, domain.Internal("failed to list products", err)
	}
	return products, nil
}
