package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/stocktech/marketplace-service/internal/category"
	"github.com/stocktech/marketplace-service/internal/category/dto"
	"github.com/stocktech/marketplace-service/pkg/logger"
)

type CategoryHandler struct {
	uc     category.UseCase
	logger logger.ZapLogger
}

func NewCategoryHandler(uc category.UseCase, log logger.ZapLogger) *CategoryHandler {
	return &CategoryHandler{uc: uc, logger: log}
}

func (h *CategoryHandler) RegisterRoutes(r fiber.Router) {
	r.Post("/categories", h.Create)
	r.Get("/categories", h.List)
	r.Get("/categories/tree", h.Tree)
	r.Get("/categories/:id", h.Get)
	r.Put("/categories/:id", h.Update)
	r.Delete("/categories/:id", h.Delete)

	r.Post("/brands", h.CreateBrand)
	r.Get("/brands", h.ListBrands)
}

type categoryRequest struct {
	ParentID    *string `json:"parent_id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	ImageURL    string  `json:"image_url"`
	SortOrder   int     `json:"sort_order"`
	IsActive    bool    `json:"is_active"`
}

func (h *CategoryHandler) Create(c *fiber.Ctx) error {
	var req categoryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
	}

	cat, err := h.uc.CreateCategory(c.Context(), &dto.CreateCategoryInput{
		ParentID:    req.ParentID,
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		SortOrder:   req.SortOrder,
	})
	if err != nil {
		if errors.Is(err, category.ErrParentNotFound) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		h.logger.Error("failed to create category", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	return c.Status(fiber.StatusCreated).JSON(cat)
}

func (h *CategoryHandler) Get(c *fiber.Ctx) error {
	cat, err := h.uc.GetCategory(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, category.ErrCategoryNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "category not found"})
		}
		h.logger.Error("failed to get category", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
	return c.JSON(cat)
}

func (h *CategoryHandler) List(c *fiber.Ctx) error {
	filters := &dto.CategoryFilters{
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", 50),
	}
	if c.Request().URI().QueryArgs().Has("parent_id") {
		parent := c.Query("parent_id")
		filters.ParentID = &parent
	}
	if c.Query("active") != "" {
		active := c.QueryBool("active")
		filters.IsActive = &active
	}

	categories, count, err := h.uc.ListCategories(c.Context(), filters)
	if err != nil {
		h.logger.Error("failed to list categories", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	return c.JSON(fiber.Map{
		"categories": categories,
		"total":      count,
		"page":       filters.Page,
	})
}

func (h *CategoryHandler) Tree(c *fiber.Ctx) error {
	tree, err := h.uc.CategoryTree(c.Context())
	if err != nil {
		h.logger.Error("failed to build category tree", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
	return c.JSON(fiber.Map{"categories": tree})
}

func (h *CategoryHandler) Update(c *fiber.Ctx) error {
	var req categoryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	cat, err := h.uc.UpdateCategory(c.Context(), &dto.UpdateCategoryInput{
		ID:          c.Params("id"),
		ParentID:    req.ParentID,
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		SortOrder:   req.SortOrder,
		IsActive:    req.IsActive,
	})
	if err != nil {
		switch {
		case errors.Is(err, category.ErrCategoryNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "category not found"})
		case errors.Is(err, category.ErrParentNotFound):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		default:
			h.logger.Error("failed to update category", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
		}
	}

	return c.JSON(cat)
}

func (h *CategoryHandler) Delete(c *fiber.Ctx) error {
	if err := h.uc.DeleteCategory(c.Context(), c.Params("id")); err != nil {
		h.logger.Error("failed to delete category", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type brandRequest struct {
	Name    string `json:"name"`
	LogoURL string `json:"logo_url"`
}

func (h *CategoryHandler) CreateBrand(c *fiber.Ctx) error {
	var req brandRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
	}

	brand, err := h.uc.CreateBrand(c.Context(), &dto.CreateBrandInput{
		Name:    req.Name,
		LogoURL: req.LogoURL,
	})
	if err != nil {
		h.logger.Error("failed to create brand", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	return c.Status(fiber.StatusCreated).JSON(brand)
}

func (h *CategoryHandler) ListBrands(c *fiber.Ctx) error {
	brands, err := h.uc.ListBrands(c.Context(), c.QueryBool("active", true))
	if err != nil {
		h.logger.Error("failed to list brands", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
	return c.JSON(fiber.Map{"brands": brands})
}
