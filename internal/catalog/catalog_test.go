package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gozon/internal/domain"
	"gozon/internal/repository"
)

func TestPriceOf(t *testing.T) {
	store := repository.NewInMemoryStore()
	p := store.AddProduct(domain.Product{Name: "Backup", Price: decimal.RequireFromString("4.20")})
	lookup := NewLookup(store)

	price, err := lookup.PriceOf(context.Background(), p.ID)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("4.20")))

	_, err = lookup.PriceOf(context.Background(), p.ID+100)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))

	store.FailOn("ProductPrice", errors.New("connection reset"))
	_, err = lookup.PriceOf(context.Background(), p.ID)
	assert.True(t, domain.IsKind(err, domain.KindInternal))
}

func TestList(t *testing.T) {
	store := repository.NewInMemoryStore()
	store.AddProduct(domain.Product{Name: "A", Price: decimal.NewFromInt(1)})
	store.AddProduct(domain.Product{Name: "B", Price: decimal.NewFromInt(2)})

	products, err := NewLookup(store).List(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "A", products[0].Name)
}
