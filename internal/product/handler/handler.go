package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/stocktech/marketplace-service/internal/auth"
	"github.com/stocktech/marketplace-service/internal/model"
	"github.com/stocktech/marketplace-service/internal/product"
	"github.com/stocktech/marketplace-service/internal/product/dto"
	"github.com/stocktech/marketplace-service/pkg/logger"
)

type ProductHandler struct {
	uc     product.UseCase
	logger logger.ZapLogger
}

func NewProductHandler(uc product.UseCase, log logger.ZapLogger) *ProductHandler {
	return &ProductHandler{uc: uc, logger: log}
}

func (h *ProductHandler) RegisterRoutes(r fiber.Router) {
	r.Post("/products", h.Create)
	r.Get("/products", h.List)
	r.Get("/products/:id", h.Get)
	r.Put("/products/:id", h.Update)
	r.Delete("/products/:id", h.Delete)

	r.Post("/products/:id/stock", h.UpdateStock)
	r.Post("/products/:id/reserve", h.ReserveStock)
	r.Post("/products/:id/release", h.ReleaseStock)
	r.Post("/products/:id/view", h.RecordView)
	r.Post("/products/:id/contact", h.RecordContact)
	r.Post("/products/:id/favorite", h.RecordFavorite)
	r.Delete("/products/:id/favorite", h.RemoveFavorite)
}

type createProductRequest struct {
	Name              string                 `json:"name"`
	Description       string                 `json:"description"`
	CategoryID        string                 `json:"category_id"`
	BrandID           string                 `json:"brand_id"`
	Price             float64                `json:"price"`
	OriginalPrice     float64                `json:"original_price"`
	CostPrice         float64                `json:"cost_price"`
	StockQuantity     int                    `json:"stock_quantity"`
	MinStockAlert     int                    `json:"min_stock_alert"`
	Condition         string                 `json:"condition"`
	Specifications    map[string]string      `json:"specifications"`
	Images            []model.ProductImage   `json:"images"`
	Keywords          string                 `json:"keywords"`
	AllowsNegotiation bool                   `json:"allows_negotiation"`
	Publish           bool                   `json:"publish"`
}

func (h *ProductHandler) Create(c *fiber.Ctx) error {
	accountID := auth.GetAccountID(c)
	userID := auth.GetUserID(c)
	if accountID == "" || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing identity context"})
	}

	var req createProductRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Name == "" || req.Price <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name and a positive price are required"})
	}

	condition := model.ProductCondition(req.Condition)
	if req.Condition == "" {
		condition = model.ConditionNew
	}

	p, err := h.uc.CreateProduct(c.Context(), &dto.CreateProductInput{
		AccountID:         accountID,
		UserID:            userID,
		Name:              req.Name,
		Description:       req.Description,
		CategoryID:        req.CategoryID,
		BrandID:           req.BrandID,
		Price:             req.Price,
		OriginalPrice:     req.OriginalPrice,
		CostPrice:         req.CostPrice,
		StockQuantity:     req.StockQuantity,
		MinStockAlert:     req.MinStockAlert,
		Condition:         condition,
		Specifications:    req.Specifications,
		Images:            req.Images,
		Keywords:          req.Keywords,
		AllowsNegotiation: req.AllowsNegotiation,
		Publish:           req.Publish,
	})
	if err != nil {
		if errors.Is(err, product.ErrQuotaExceeded) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
		}
		h.logger.Error("failed to create product", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	return c.Status(fiber.StatusCreated).JSON(productResponse(p))
}

func (h *ProductHandler) Get(c *fiber.Ctx) error {
	p, err := h.uc.GetProduct(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, product.ErrProductNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product not found"})
		}
		h.logger.Error("failed to get product", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
	return c.JSON(productResponse(p))
}

func (h *ProductHandler) List(c *fiber.Ctx) error {
	filters := &dto.ProductFilters{
		AccountID:   c.Query("account_id", auth.GetAccountID(c)),
		CategoryID:  c.Query("category_id"),
		BrandID:     c.Query("brand_id"),
		Status:      c.Query("status"),
		Condition:   c.Query("condition"),
		SearchQuery: c.Query("q"),
		MinPrice:    c.QueryFloat("min_price"),
		MaxPrice:    c.QueryFloat("max_price"),
		OnlyInStock: c.QueryBool("in_stock"),
		SortBy:      c.Query("sort_by"),
		SortOrder:   c.Query("sort_order"),
		Page:        c.QueryInt("page", 1),
		PageSize:    c.QueryInt("page_size", 20),
	}
	if filters.PageSize > 100 {
		filters.PageSize = 100
	}

	products, count, err := h.uc.ListProducts(c.Context(), filters)
	if err != nil {
		h.logger.Error("failed to list products", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	items := make([]fiber.Map, 0, len(products))
	for i := range products {
		items = append(items, productResponse(&products[i]))
	}

	return c.JSON(fiber.Map{
		"products": items,
		"total":    count,
		"page":     filters.Page,
	})
}

type updateProductRequest struct {
	Name              string               `json:"name"`
	Description       string               `json:"description"`
	CategoryID        string               `json:"category_id"`
	BrandID           string               `json:"brand_id"`
	Price             float64              `json:"price"`
	OriginalPrice     float64              `json:"original_price"`
	CostPrice         float64              `json:"cost_price"`
	MinStockAlert     int                  `json:"min_stock_alert"`
	Condition         string               `json:"condition"`
	Status            string               `json:"status"`
	Specifications    map[string]string    `json:"specifications"`
	Images            []model.ProductImage `json:"images"`
	Keywords          string               `json:"keywords"`
	IsFeatured        bool                 `json:"is_featured"`
	AllowsNegotiation bool                 `json:"allows_negotiation"`
}

func (h *ProductHandler) Update(c *fiber.Ctx) error {
	var req updateProductRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	p, err := h.uc.UpdateProduct(c.Context(), &dto.UpdateProductInput{
		ID:                c.Params("id"),
		AccountID:         auth.GetAccountID(c),
		Name:              req.Name,
		Description:       req.Description,
		CategoryID:        req.CategoryID,
		BrandID:           req.BrandID,
		Price:             req.Price,
		OriginalPrice:     req.OriginalPrice,
		CostPrice:         req.CostPrice,
		MinStockAlert:     req.MinStockAlert,
		Condition:         model.ProductCondition(req.Condition),
		Status:            model.ProductStatus(req.Status),
		Specifications:    req.Specifications,
		Images:            req.Images,
		Keywords:          req.Keywords,
		IsFeatured:        req.IsFeatured,
		AllowsNegotiation: req.AllowsNegotiation,
	})
	if err != nil {
		if errors.Is(err, product.ErrProductNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product not found"})
		}
		h.logger.Error("failed to update product", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	return c.JSON(productResponse(p))
}

func (h *ProductHandler) Delete(c *fiber.Ctx) error {
	if err := h.uc.DeleteProduct(c.Context(), c.Params("id")); err != nil {
		h.logger.Error("failed to delete product", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type stockRequest struct {
	Quantity  int    `json:"quantity"`
	Operation string `json:"operation"`
}

func (h *ProductHandler) UpdateStock(c *fiber.Ctx) error {
	var req stockRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	op := model.StockOperation(req.Operation)
	switch op {
	case model.StockSet, model.StockAdd, model.StockSubtract:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "operation must be set, add or subtract"})
	}

	p, err := h.uc.UpdateStock(c.Context(), c.Params("id"), req.Quantity, op)
	if err != nil {
		return h.stockError(c, err)
	}
	return c.JSON(productResponse(p))
}

func (h *ProductHandler) ReserveStock(c *fiber.Ctx) error {
	var req stockRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Quantity < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "quantity must be positive"})
	}

	p, err := h.uc.ReserveStock(c.Context(), c.Params("id"), req.Quantity)
	if err != nil {
		return h.stockError(c, err)
	}
	return c.JSON(productResponse(p))
}

func (h *ProductHandler) ReleaseStock(c *fiber.Ctx) error {
	var req stockRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Quantity < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "quantity must be positive"})
	}

	p, err := h.uc.ReleaseStock(c.Context(), c.Params("id"), req.Quantity)
	if err != nil {
		return h.stockError(c, err)
	}
	return c.JSON(productResponse(p))
}

func (h *ProductHandler) stockError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, product.ErrProductNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product not found"})
	case errors.Is(err, product.ErrInsufficientStock):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "insufficient stock"})
	case errors.Is(err, product.ErrStockLockBusy):
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "stock busy, retry"})
	default:
		h.logger.Error("stock operation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}

func (h *ProductHandler) RecordView(c *fiber.Ctx) error {
	return h.counterOp(c, h.uc.RecordView, "failed to record view")
}

func (h *ProductHandler) RecordContact(c *fiber.Ctx) error {
	return h.counterOp(c, h.uc.RecordContact, "failed to record contact")
}

func (h *ProductHandler) RecordFavorite(c *fiber.Ctx) error {
	return h.counterOp(c, h.uc.RecordFavorite, "failed to record favorite")
}

func (h *ProductHandler) RemoveFavorite(c *fiber.Ctx) error {
	return h.counterOp(c, h.uc.RemoveFavorite, "failed to remove favorite")
}

func (h *ProductHandler) counterOp(c *fiber.Ctx, op func(context.Context, string) error, logMsg string) error {
	if err := op(c.Context(), c.Params("id")); err != nil {
		if errors.Is(err, product.ErrProductNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product not found"})
		}
		h.logger.Error(logMsg, zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// productResponse flattens the model for API consumers, exposing the
// ledger-owned fields through their accessors.
func productResponse(p *model.Product) fiber.Map {
	return fiber.Map{
		"id":                 p.ID,
		"account_id":         p.AccountID,
		"user_id":            p.UserID,
		"code":               p.Code,
		"name":               p.Name,
		"description":        p.Description,
		"category_id":        p.CategoryID,
		"brand_id":           p.BrandID,
		"price":              p.Price,
		"original_price":     p.OriginalPrice,
		"is_on_sale":         p.IsOnSale(),
		"discount_percent":   p.DiscountPercentage(),
		"stock_quantity":     p.StockQuantity(),
		"min_stock_alert":    p.MinStockAlert,
		"is_in_stock":        p.IsInStock(),
		"is_low_stock":       p.IsLowStock(),
		"status":             p.Status(),
		"condition":          p.Condition,
		"specifications":     p.Specifications,
		"images":             p.Images,
		"primary_image":      p.PrimaryImageURL(),
		"thumbnail":          p.ThumbnailURL(),
		"keywords":           p.Keywords,
		"is_featured":        p.IsFeatured,
		"allows_negotiation": p.AllowsNegotiation,
		"view_count":         p.ViewCount,
		"contact_count":      p.ContactCount,
		"favorite_count":     p.FavoriteCount,
		"created_at":         p.CreatedAt,
		"updated_at":         p.UpdatedAt,
	}
}
