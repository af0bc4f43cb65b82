package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/tirebot/internal/catalog"
	"github.com/mmeshcher/tirebot/internal/model"
)

type stubLookup struct {
	products map[string]model.Product
	err      error
}

func (s *stubLookup) FindByID(ctx context.Context, id string) (*model.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return &p, nil
}

func priced(id, price string) model.Product {
	return model.Product{ID: id, Brand: "Michelin", Model: id, PriceRetail: decimal.RequireFromString(price)}
}

func TestAdd_MergesByProduct(t *testing.T) {
	c := New(nil)
	c.Add("p1", 2)
	c.Add("p1", 3)
	c.Add("p2", 1)

	items := c.Items()
	require.Len(t, items, 2)
	assert.Equal(t, model.CartItem{ProductID: "p1", Quantity: 5}, items[0])
	assert.Equal(t, model.CartItem{ProductID: "p2", Quantity: 1}, items[1])
	assert.Equal(t, 6, c.ItemCount())
}

func TestAdd_NoUpperCap(t *testing.T) {
	c := New(nil)
	c.Add("p1", 20)
	c.Add("p1", 20)

	assert.Equal(t, 40, c.ItemCount())
}

func TestNew_MergesDuplicateSessionLines(t *testing.T) {
	c := New([]model.CartItem{{ProductID: "p1", Quantity: 1}, {ProductID: "p1", Quantity: 2}})

	require.Len(t, c.Items(), 1)
	assert.Equal(t, 3, c.ItemCount())
}

func TestSetQuantityAndRemove(t *testing.T) {
	c := New(nil)
	c.Add("p1", 2)
	c.Add("p2", 2)

	c.SetQuantity("p1", 7)
	assert.Equal(t, 9, c.ItemCount())

	c.SetQuantity("p2", 0)
	require.Len(t, c.Items(), 1)
	assert.Equal(t, "p1", c.Items()[0].ProductID)

	c.Remove("p1")
	assert.True(t, c.IsEmpty())
}

func TestTotal_UsesLivePrices(t *testing.T) {
	lookup := &stubLookup{products: map[string]model.Product{
		"a": priced("a", "50.00"),
		"b": priced("b", "30.00"),
	}}
	c := New(nil)
	c.Add("a", 2)
	c.Add("b", 1)

	total, err := c.Total(context.Background(), lookup)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("130.00")), "total = %s", total)

	lookup.products["a"] = priced("a", "55.00")
	total, err = c.Total(context.Background(), lookup)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("140.00")), "total = %s", total)
}

func TestTotal_SkipsMissingProducts(t *testing.T) {
	lookup := &stubLookup{products: map[string]model.Product{"a": priced("a", "10.00")}}
	c := New(nil)
	c.Add("a", 1)
	c.Add("gone", 4)

	lines, err := c.Lines(context.Background(), lookup)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, Sum(lines).Equal(decimal.RequireFromString("10")))
}

func TestTotal_PropagatesLookupError(t *testing.T) {
	c := New(nil)
	c.Add("a", 1)

	_, err := c.Total(context.Background(), &stubLookup{err: errors.New("db down")})
	assert.Error(t, err)
}

func TestClear_ZeroTotal(t *testing.T) {
	c := New(nil)
	c.Add("a", 3)
	c.Clear()

	total, err := c.Total(context.Background(), &stubLookup{})
	require.NoError(t, err)
	assert.True(t, total.IsZero())
	assert.Equal(t, 0, c.ItemCount())
	assert.Nil(t, c.Items())
}
