package product

import (
	"context"
	"errors"

	"github.com/stocktech/marketplace-service/internal/model"
	"github.com/stocktech/marketplace-service/internal/product/dto"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrQuotaExceeded     = errors.New("account reached its product limit")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrStockLockBusy     = errors.New("stock is being modified, try again")
)

type UseCase interface {
	CreateProduct(ctx context.Context, input *dto.CreateProductInput) (*model.Product, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	ListProducts(ctx context.Context, filters *dto.ProductFilters) ([]model.Product, int, error)
	UpdateProduct(ctx context.Context, input *dto.UpdateProductInput) (*model.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	// Stock ledger operations. All of them serialize writers per product
	// through a distributed lock before mutating the entity.
	UpdateStock(ctx context.Context, productID string, quantity int, op model.StockOperation) (*model.Product, error)
	ReserveStock(ctx context.Context, productID string, quantity int) (*model.Product, error)
	ReleaseStock(ctx context.Context, productID string, quantity int) (*model.Product, error)

	RecordView(ctx context.Context, productID string) error
	RecordContact(ctx context.Context, productID string) error
	RecordFavorite(ctx context.Context, productID string) error
	RemoveFavorite(ctx context.Context, productID string) error
}
