package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProduct(stock int, status ProductStatus) *Product {
	p := &Product{
		BaseModel: BaseModel{ID: "prod-1"},
		AccountID: "acc-1",
		UserID:    "user-1",
		Code:      "ST123456A",
		Name:      "iPhone 13 Pro",
		Price:     8500,
		Condition: ConditionUsedExcellent,
	}
	p.RestoreStock(stock, status)
	return p
}

// ============================================
// ReserveStock
// ============================================

func TestProduct_ReserveStock_Success(t *testing.T) {
	p := newTestProduct(10, ProductStatusActive)

	ok := p.ReserveStock(3)

	require.True(t, ok)
	assert.Equal(t, 7, p.StockQuantity())
	assert.Equal(t, ProductStatusActive, p.Status())
}

func TestProduct_ReserveStock_DrainsToOutOfStock(t *testing.T) {
	p := newTestProduct(3, ProductStatusActive)

	ok := p.ReserveStock(3)

	require.True(t, ok)
	assert.Equal(t, 0, p.StockQuantity())
	assert.Equal(t, ProductStatusOutOfStock, p.Status())
}

func TestProduct_ReserveStock_Insufficient(t *testing.T) {
	p := newTestProduct(2, ProductStatusActive)

	ok := p.ReserveStock(5)

	require.False(t, ok)
	assert.Equal(t, 2, p.StockQuantity(), "failed reserve must not mutate")
	assert.Equal(t, ProductStatusActive, p.Status())
}

func TestProduct_ReserveStock_ExactQuantities(t *testing.T) {
	for q := 0; q <= 5; q++ {
		p := newTestProduct(5, ProductStatusActive)

		ok := p.ReserveStock(q)

		require.True(t, ok, "q=%d", q)
		assert.Equal(t, 5-q, p.StockQuantity())
		if q == 5 {
			assert.Equal(t, ProductStatusOutOfStock, p.Status())
		} else {
			assert.Equal(t, ProductStatusActive, p.Status())
		}
	}
}

// ============================================
// ReleaseStock
// ============================================

func TestProduct_ReleaseStock_RestoresActive(t *testing.T) {
	p := newTestProduct(0, ProductStatusOutOfStock)

	p.ReleaseStock(2)

	assert.Equal(t, 2, p.StockQuantity())
	assert.Equal(t, ProductStatusActive, p.Status())
}

func TestProduct_ReleaseStock_KeepsOtherStatus(t *testing.T) {
	p := newTestProduct(1, ProductStatusInactive)

	p.ReleaseStock(1)

	assert.Equal(t, 2, p.StockQuantity())
	assert.Equal(t, ProductStatusInactive, p.Status())
}

func TestProduct_ReserveRelease_RoundTrip(t *testing.T) {
	cases := []struct {
		name   string
		stock  int
		status ProductStatus
		q      int
	}{
		{"active partial", 10, ProductStatusActive, 4},
		{"active full drain", 5, ProductStatusActive, 5},
		{"single unit", 1, ProductStatusActive, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestProduct(tc.stock, tc.status)

			require.True(t, p.ReserveStock(tc.q))
			p.ReleaseStock(tc.q)

			assert.Equal(t, tc.stock, p.StockQuantity())
			assert.Equal(t, tc.status, p.Status())
		})
	}
}

// ============================================
// UpdateStock
// ============================================

func TestProduct_UpdateStock_Set(t *testing.T) {
	p := newTestProduct(5, ProductStatusActive)

	p.UpdateStock(12, StockSet)
	assert.Equal(t, 12, p.StockQuantity())

	p.UpdateStock(-3, StockSet)
	assert.Equal(t, 0, p.StockQuantity(), "set clamps at zero")
}

func TestProduct_UpdateStock_Add(t *testing.T) {
	p := newTestProduct(5, ProductStatusActive)

	p.UpdateStock(7, StockAdd)

	assert.Equal(t, 12, p.StockQuantity())
}

func TestProduct_UpdateStock_SubtractNeverNegative(t *testing.T) {
	for start := 0; start <= 4; start++ {
		for n := 0; n <= 8; n++ {
			p := newTestProduct(start, ProductStatusActive)

			p.UpdateStock(n, StockSubtract)

			assert.GreaterOrEqual(t, p.StockQuantity(), 0, "start=%d n=%d", start, n)
		}
	}
}

func TestProduct_UpdateStock_DoesNotTouchStatus(t *testing.T) {
	p := newTestProduct(5, ProductStatusActive)

	p.UpdateStock(5, StockSubtract)

	// Only ReserveStock couples quantity and status.
	assert.Equal(t, 0, p.StockQuantity())
	assert.Equal(t, ProductStatusActive, p.Status())
}

// ============================================
// Derived helpers
// ============================================

func TestProduct_StockFlags(t *testing.T) {
	p := newTestProduct(3, ProductStatusActive)
	p.MinStockAlert = 5

	assert.True(t, p.IsInStock())
	assert.True(t, p.IsLowStock())

	p.UpdateStock(20, StockSet)
	assert.False(t, p.IsLowStock())
}

func TestProduct_Discount(t *testing.T) {
	p := newTestProduct(1, ProductStatusActive)
	assert.False(t, p.IsOnSale())
	assert.Zero(t, p.DiscountPercentage())

	orig := 10000.0
	p.OriginalPrice = &orig
	require.True(t, p.IsOnSale())
	assert.InDelta(t, 15.0, p.DiscountPercentage(), 0.001)
}

func TestProduct_PrimaryImage(t *testing.T) {
	p := newTestProduct(1, ProductStatusActive)
	assert.Empty(t, p.PrimaryImageURL())
	assert.Empty(t, p.ThumbnailURL())

	p.Images = []ProductImage{
		{URL: "/uploads/a.jpg", Order: 1},
		{URL: "/uploads/b.jpg", Thumbnail: "/uploads/thumb_b.jpg", IsPrimary: true, Order: 2},
	}

	assert.Equal(t, "/uploads/b.jpg", p.PrimaryImageURL())
	assert.Equal(t, "/uploads/thumb_b.jpg", p.ThumbnailURL())
}

func TestProduct_FavoriteCounterFloor(t *testing.T) {
	p := newTestProduct(1, ProductStatusActive)

	p.RemoveFromFavorites()
	assert.Equal(t, 0, p.FavoriteCount)

	p.AddToFavorites()
	p.AddToFavorites()
	p.RemoveFromFavorites()
	assert.Equal(t, 1, p.FavoriteCount)
}

func TestProduct_JSONCarriesLedgerFields(t *testing.T) {
	p := newTestProduct(7, ProductStatusActive)

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"stock_quantity":7`)

	var decoded Product
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 7, decoded.StockQuantity())
	assert.Equal(t, ProductStatusActive, decoded.Status())
}
