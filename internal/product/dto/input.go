package dto

import "github.com/stocktech/marketplace-service/internal/model"

type CreateProductInput struct {
	AccountID string
	UserID    string

	Name        string
	Description string
	CategoryID  string
	BrandID     string

	Price         float64
	OriginalPrice float64
	CostPrice     float64

	StockQuantity int
	MinStockAlert int

	Condition      model.ProductCondition
	Specifications map[string]string
	Images         []model.ProductImage

	Keywords          string
	AllowsNegotiation bool

	Publish bool // create as active instead of draft
}

type UpdateProductInput struct {
	ID        string
	AccountID string

	Name        string
	Description string
	CategoryID  string
	BrandID     string

	Price         float64
	OriginalPrice float64
	CostPrice     float64
	MinStockAlert int

	Condition      model.ProductCondition
	Status         model.ProductStatus
	Specifications map[string]string
	Images         []model.ProductImage

	Keywords          string
	IsFeatured        bool
	AllowsNegotiation bool
}

type ProductFilters struct {
	AccountID   string
	CategoryID  string
	BrandID     string
	Status      string
	Condition   string
	SearchQuery string
	MinPrice    float64
	MaxPrice    float64
	OnlyInStock bool
	SortBy      string
	SortOrder   string
	Page        int
	PageSize    int
}
