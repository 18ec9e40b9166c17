package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stocktech/marketplace-service/internal/category"
	"github.com/stocktech/marketplace-service/internal/category/dto"
	"github.com/stocktech/marketplace-service/internal/model"
	"github.com/stocktech/marketplace-service/pkg/logger"
)

type categoryUseCase struct {
	repo   category.Repository
	logger logger.ZapLogger
}

func NewCategoryUseCase(repo category.Repository, log logger.ZapLogger) category.UseCase {
	return &categoryUseCase{
		repo:   repo,
		logger: log,
	}
}

func (uc *categoryUseCase) CreateCategory(ctx context.Context, input *dto.CreateCategoryInput) (*model.Category, error) {
	if input.ParentID != nil && *input.ParentID != "" {
		parent, err := uc.repo.FindByID(ctx, *input.ParentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, category.ErrParentNotFound
		}
	}

	now := time.Now().UTC()
	cat := &model.Category{
		BaseModel: model.BaseModel{
			ID:        uuid.New().String(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		ParentID:  input.ParentID,
		Name:      input.Name,
		SortOrder: input.SortOrder,
		IsActive:  true,
	}
	if input.Description != "" {
		cat.Description = &input.Description
	}
	if input.ImageURL != "" {
		cat.ImageURL = &input.ImageURL
	}

	if err := uc.repo.Create(ctx, cat); err != nil {
		return nil, err
	}
	return cat, nil
}

func (uc *categoryUseCase) GetCategory(ctx context.Context, id string) (*model.Category, error) {
	cat, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cat == nil {
		return nil, category.ErrCategoryNotFound
	}
	return cat, nil
}

func (uc *categoryUseCase) ListCategories(ctx context.Context, filters *dto.CategoryFilters) ([]model.Category, int, error) {
	return uc.repo.FindAll(ctx, filters)
}

// CategoryTree loads all active categories flat and nests them in memory.
// The catalog is small enough that one query beats recursive SQL.
func (uc *categoryUseCase) CategoryTree(ctx context.Context) ([]model.Category, error) {
	active := true
	all, _, err := uc.repo.FindAll(ctx, &dto.CategoryFilters{IsActive: &active})
	if err != nil {
		return nil, err
	}

	byParent := map[string][]model.Category{}
	roots := []model.Category{}
	for _, cat := range all {
		if cat.ParentID == nil || *cat.ParentID == "" {
			roots = append(roots, cat)
			continue
		}
		byParent[*cat.ParentID] = append(byParent[*cat.ParentID], cat)
	}

	var attach func(cat *model.Category)
	attach = func(cat *model.Category) {
		cat.Children = byParent[cat.ID]
		for i := range cat.Children {
			attach(&cat.Children[i])
		}
	}
	for i := range roots {
		attach(&roots[i])
	}

	return roots, nil
}

func (uc *categoryUseCase) UpdateCategory(ctx context.Context, input *dto.UpdateCategoryInput) (*model.Category, error) {
	cat, err := uc.GetCategory(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	if input.ParentID != nil && *input.ParentID == input.ID {
		return nil, category.ErrParentNotFound
	}

	cat.Name = input.Name
	cat.SortOrder = input.SortOrder
	cat.IsActive = input.IsActive
	cat.ParentID = input.ParentID
	cat.Description = nil
	if input.Description != "" {
		cat.Description = &input.Description
	}
	cat.ImageURL = nil
	if input.ImageURL != "" {
		cat.ImageURL = &input.ImageURL
	}
	cat.UpdatedAt = time.Now().UTC()

	if err := uc.repo.Update(ctx, cat); err != nil {
		return nil, err
	}
	return cat, nil
}

func (uc *categoryUseCase) DeleteCategory(ctx context.Context, id string) error {
	return uc.repo.Delete(ctx, id)
}

func (uc *categoryUseCase) CreateBrand(ctx context.Context, input *dto.CreateBrandInput) (*model.Brand, error) {
	now := time.Now().UTC()
	brand := &model.Brand{
		BaseModel: model.BaseModel{
			ID:        uuid.New().String(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Name:     input.Name,
		IsActive: true,
	}
	if input.LogoURL != "" {
		brand.LogoURL = &input.LogoURL
	}

	if err := uc.repo.CreateBrand(ctx, brand); err != nil {
		return nil, err
	}
	return brand, nil
}

func (uc *categoryUseCase) ListBrands(ctx context.Context, activeOnly bool) ([]model.Brand, error) {
	return uc.repo.FindBrands(ctx, activeOnly)
}
