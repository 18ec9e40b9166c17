package category

import (
	"context"
	"errors"

	"github.com/stocktech/marketplace-service/internal/category/dto"
	"github.com/stocktech/marketplace-service/internal/model"
)

var (
	ErrCategoryNotFound = errors.New("category not found")
	ErrBrandNotFound    = errors.New("brand not found")
	ErrParentNotFound   = errors.New("parent category not found")
)

type UseCase interface {
	CreateCategory(ctx context.Context, input *dto.CreateCategoryInput) (*model.Category, error)
	GetCategory(ctx context.Context, id string) (*model.Category, error)
	ListCategories(ctx context.Context, filters *dto.CategoryFilters) ([]model.Category, int, error)
	// CategoryTree returns active categories nested under their parents.
	CategoryTree(ctx context.Context) ([]model.Category, error)
	UpdateCategory(ctx context.Context, input *dto.UpdateCategoryInput) (*model.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	CreateBrand(ctx context.Context, input *dto.CreateBrandInput) (*model.Brand, error)
	ListBrands(ctx context.Context, activeOnly bool) ([]model.Brand, error)
}
