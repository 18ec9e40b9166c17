package model

import "encoding/json"

type ProductStatus string

const (
	ProductStatusDraft      ProductStatus = "draft"        // not published yet
	ProductStatusActive     ProductStatus = "active"       // visible in the catalog
	ProductStatusInactive   ProductStatus = "inactive"     // hidden from the catalog
	ProductStatusOutOfStock ProductStatus = "out_of_stock" // no stock available
	ProductStatusReserved   ProductStatus = "reserved"     // held for a buyer
)

type ProductCondition string

const (
	ConditionNew           ProductCondition = "new"
	ConditionUsedExcellent ProductCondition = "used_excellent"
	ConditionUsedGood      ProductCondition = "used_good"
	ConditionUsedFair      ProductCondition = "used_fair"
	ConditionRefurbished   ProductCondition = "refurbished"
)

type StockOperation string

const (
	StockSet      StockOperation = "set"
	StockAdd      StockOperation = "add"
	StockSubtract StockOperation = "subtract"
)

// ProductImage is one entry of the ordered image list.
type ProductImage struct {
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Alt       string `json:"alt,omitempty"`
	IsPrimary bool   `json:"is_primary"`
	Order     int    `json:"order"`
}

// Product is a marketplace listing. AccountID and UserID reference the
// account service and carry no local FK. stockQuantity and status are
// unexported: the only mutation paths are UpdateStock, ReserveStock,
// ReleaseStock and SetStatus, which keeps the quantity/status coupling
// from being bypassed by a stray field write.
type Product struct {
	BaseModel
	AccountID string `json:"account_id"`
	UserID    string `json:"user_id"`

	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Description *string `json:"description"`

	CategoryID *string `json:"category_id"`
	BrandID    *string `json:"brand_id"`

	Price         float64  `json:"price"`
	OriginalPrice *float64 `json:"original_price"`
	CostPrice     *float64 `json:"cost_price"`

	stockQuantity int
	MinStockAlert int `json:"min_stock_alert"`

	Condition ProductCondition `json:"condition"`
	status    ProductStatus

	Specifications map[string]string `json:"specifications"`
	Images         []ProductImage    `json:"images"`

	Slug       *string `json:"slug"`
	Keywords   *string `json:"keywords"`
	IsFeatured bool    `json:"is_featured"`

	WeightKg         *float64 `json:"weight_kg"`
	Dimensions       *string  `json:"dimensions"`
	ShippingRequired bool     `json:"shipping_required"`

	AllowsNegotiation   bool     `json:"allows_negotiation"`
	MinNegotiationPrice *float64 `json:"min_negotiation_price"`

	ViewCount     int `json:"view_count"`
	ContactCount  int `json:"contact_count"`
	FavoriteCount int `json:"favorite_count"`

	IsImported    bool    `json:"is_imported"`
	ImportBatchID *string `json:"import_batch_id"`
}

// The ledger fields are unexported, so encoding carries them explicitly.
// Without this a cache round-trip would zero the stock.
func (p Product) MarshalJSON() ([]byte, error) {
	type alias Product
	return json.Marshal(struct {
		alias
		StockQuantity int           `json:"stock_quantity"`
		Status        ProductStatus `json:"status"`
	}{alias(p), p.stockQuantity, p.status})
}

func (p *Product) UnmarshalJSON(data []byte) error {
	type alias Product
	aux := struct {
		*alias
		StockQuantity int           `json:"stock_quantity"`
		Status        ProductStatus `json:"status"`
	}{alias: (*alias)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.stockQuantity = aux.StockQuantity
	p.status = aux.Status
	return nil
}

// RestoreStock rehydrates the ledger-owned fields from a persisted row.
// Only repositories should call this; it applies no ledger rules.
func (p *Product) RestoreStock(quantity int, status ProductStatus) {
	p.stockQuantity = quantity
	p.status = status
}

func (p *Product) StockQuantity() int {
	return p.stockQuantity
}

func (p *Product) Status() ProductStatus {
	return p.status
}

// SetStatus changes visibility without touching stock. Status changes that
// depend on stock levels must go through ReserveStock/ReleaseStock.
func (p *Product) SetStatus(status ProductStatus) {
	p.status = status
}

// UpdateStock applies a set/add/subtract operation. Set and subtract clamp
// at zero, so a negative quantity is impossible by construction.
func (p *Product) UpdateStock(quantity int, op StockOperation) {
	switch op {
	case StockSet:
		p.stockQuantity = max(0, quantity)
	case StockAdd:
		p.stockQuantity += quantity
	case StockSubtract:
		p.stockQuantity = max(0, p.stockQuantity-quantity)
	}
}

// ReserveStock takes quantity units for a transaction. It succeeds only when
// enough stock is on hand; draining the last unit flips the product to
// out_of_stock. On failure nothing is mutated.
func (p *Product) ReserveStock(quantity int) bool {
	if p.stockQuantity < quantity {
		return false
	}
	p.stockQuantity -= quantity
	if p.stockQuantity == 0 {
		p.status = ProductStatusOutOfStock
	}
	return true
}

// ReleaseStock returns previously reserved units. A product that went
// out_of_stock comes back as active, regardless of what its status was
// before the stock ran out.
func (p *Product) ReleaseStock(quantity int) {
	p.stockQuantity += quantity
	if p.status == ProductStatusOutOfStock && p.stockQuantity > 0 {
		p.status = ProductStatusActive
	}
}

func (p *Product) IsInStock() bool {
	return p.stockQuantity > 0
}

func (p *Product) IsLowStock() bool {
	return p.stockQuantity <= p.MinStockAlert
}

func (p *Product) IsOnSale() bool {
	return p.OriginalPrice != nil && *p.OriginalPrice > p.Price
}

func (p *Product) DiscountPercentage() float64 {
	if !p.IsOnSale() {
		return 0
	}
	return (*p.OriginalPrice - p.Price) / *p.OriginalPrice * 100
}

// PrimaryImageURL returns the primary image, falling back to the first one.
func (p *Product) PrimaryImageURL() string {
	for _, img := range p.Images {
		if img.IsPrimary {
			return img.URL
		}
	}
	if len(p.Images) > 0 {
		return p.Images[0].URL
	}
	return ""
}

func (p *Product) ThumbnailURL() string {
	pick := func(img ProductImage) string {
		if img.Thumbnail != "" {
			return img.Thumbnail
		}
		return img.URL
	}
	for _, img := range p.Images {
		if img.IsPrimary {
			return pick(img)
		}
	}
	if len(p.Images) > 0 {
		return pick(p.Images[0])
	}
	return ""
}

func (p *Product) IncrementViewCount() {
	p.ViewCount++
}

func (p *Product) IncrementContactCount() {
	p.ContactCount++
}

func (p *Product) AddToFavorites() {
	p.FavoriteCount++
}

func (p *Product) RemoveFromFavorites() {
	if p.FavoriteCount > 0 {
		p.FavoriteCount--
	}
}
