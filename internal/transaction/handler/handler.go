package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/stocktech/marketplace-service/internal/auth"
	"github.com/stocktech/marketplace-service/internal/model"
	"github.com/stocktech/marketplace-service/internal/product"
	"github.com/stocktech/marketplace-service/internal/transaction"
	"github.com/stocktech/marketplace-service/internal/transaction/dto"
	"github.com/stocktech/marketplace-service/pkg/logger"
)

type TransactionHandler struct {
	uc     transaction.UseCase
	logger logger.ZapLogger
}

func NewTransactionHandler(uc transaction.UseCase, log logger.ZapLogger) *TransactionHandler {
	return &TransactionHandler{uc: uc, logger: log}
}

func (h *TransactionHandler) RegisterRoutes(r fiber.Router) {
	r.Post("/transactions", h.Create)
	r.Get("/transactions", h.List)
	r.Get("/transactions/:id", h.Get)
	r.Patch("/transactions/:id/status", h.UpdateStatus)
	r.Post("/transactions/:id/cancel", h.Cancel)
	r.Post("/transactions/:id/rating", h.AddRating)
	r.Post("/transactions/:id/negotiation", h.RecordNegotiation)
}

type createTransactionRequest struct {
	ProductID        string            `json:"product_id"`
	Type             string            `json:"type"`
	Quantity         int               `json:"quantity"`
	UnitPrice        float64           `json:"unit_price"`
	RequiresShipping bool              `json:"requires_shipping"`
	ShippingAddress  string            `json:"shipping_address"`
	ShippingCost     float64           `json:"shipping_cost"`
	Source           string            `json:"source"`
	ExtraData        map[string]string `json:"extra_data"`
}

func (h *TransactionHandler) Create(c *fiber.Ctx) error {
	accountID := auth.GetAccountID(c)
	userID := auth.GetUserID(c)
	if accountID == "" || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing identity context"})
	}

	var req createTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.ProductID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "product_id is required"})
	}

	t, err := h.uc.CreateTransaction(c.Context(), &dto.CreateTransactionInput{
		BuyerID:          userID,
		BuyerAccountID:   accountID,
		ProductID:        req.ProductID,
		Type:             model.TransactionType(req.Type),
		Quantity:         req.Quantity,
		UnitPrice:        req.UnitPrice,
		RequiresShipping: req.RequiresShipping,
		ShippingAddress:  req.ShippingAddress,
		ShippingCost:     req.ShippingCost,
		Source:           req.Source,
		ExtraData:        req.ExtraData,
	})
	if err != nil {
		switch {
		case errors.Is(err, transaction.ErrQuotaExceeded):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, product.ErrProductNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product not found"})
		case errors.Is(err, product.ErrInsufficientStock):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "insufficient stock"})
		case errors.Is(err, product.ErrStockLockBusy):
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "stock busy, retry"})
		default:
			h.logger.Error("failed to create transaction", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(t)
}

func (h *TransactionHandler) Get(c *fiber.Ctx) error {
	t, err := h.uc.GetTransaction(c.Context(), c.Params("id"))
	if err != nil {
		return h.txError(c, err, "failed to get transaction")
	}
	return c.JSON(t)
}

func (h *TransactionHandler) List(c *fiber.Ctx) error {
	filters := &dto.TransactionFilters{
		BuyerAccountID:  c.Query("buyer_account_id"),
		SellerAccountID: c.Query("seller_account_id"),
		ProductID:       c.Query("product_id"),
		Status:          c.Query("status"),
		Type:            c.Query("type"),
		Page:            c.QueryInt("page", 1),
		PageSize:        c.QueryInt("page_size", 20),
	}
	if filters.BuyerAccountID == "" && filters.SellerAccountID == "" {
		// default to the caller's own transactions as buyer
		filters.BuyerAccountID = auth.GetAccountID(c)
	}
	if filters.PageSize > 100 {
		filters.PageSize = 100
	}

	txs, count, err := h.uc.ListTransactions(c.Context(), filters)
	if err != nil {
		h.logger.Error("failed to list transactions", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	return c.JSON(fiber.Map{
		"transactions": txs,
		"total":        count,
		"page":         filters.Page,
	})
}

type updateStatusRequest struct {
	Status           string     `json:"status"`
	At               *time.Time `json:"at"`
	PaymentMethod    string     `json:"payment_method"`
	PaymentReference string     `json:"payment_reference"`
	TrackingCode     string     `json:"tracking_code"`
}

func (h *TransactionHandler) UpdateStatus(c *fiber.Ctx) error {
	var req updateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Status == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "status is required"})
	}

	t, err := h.uc.UpdateStatus(c.Context(), &dto.UpdateStatusInput{
		ID:               c.Params("id"),
		Status:           model.TransactionStatus(req.Status),
		At:               req.At,
		PaymentMethod:    req.PaymentMethod,
		PaymentReference: req.PaymentReference,
		TrackingCode:     req.TrackingCode,
	})
	if err != nil {
		return h.txError(c, err, "failed to update transaction status")
	}
	return c.JSON(t)
}

type cancelRequest struct {
	Reason string `json:"reason"`
	By     string `json:"by"`
}

func (h *TransactionHandler) Cancel(c *fiber.Ctx) error {
	var req cancelRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	by := model.CancelActor(req.By)
	if by != model.CancelledByBuyer && by != model.CancelledBySeller {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "by must be buyer or seller"})
	}

	t, err := h.uc.Cancel(c.Context(), &dto.CancelInput{
		ID:     c.Params("id"),
		Reason: req.Reason,
		By:     by,
	})
	if err != nil {
		return h.txError(c, err, "failed to cancel transaction")
	}
	return c.JSON(t)
}

type ratingRequest struct {
	Rating int    `json:"rating"`
	Review string `json:"review"`
	By     string `json:"by"`
}

func (h *TransactionHandler) AddRating(c *fiber.Ctx) error {
	var req ratingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Rating < 1 || req.Rating > 5 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "rating must be between 1 and 5"})
	}

	by := model.RatingSide(req.By)
	if by != model.RatingByBuyer && by != model.RatingBySeller {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "by must be buyer or seller"})
	}

	t, err := h.uc.AddRating(c.Context(), &dto.RatingInput{
		ID:     c.Params("id"),
		Rating: req.Rating,
		Review: req.Review,
		By:     by,
	})
	if err != nil {
		return h.txError(c, err, "failed to add rating")
	}
	return c.JSON(t)
}

type negotiationRequest struct {
	BuyerOffer         float64 `json:"buyer_offer"`
	SellerCounterOffer float64 `json:"seller_counter_offer"`
	Notes              string  `json:"notes"`
}

func (h *TransactionHandler) RecordNegotiation(c *fiber.Ctx) error {
	var req negotiationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	t, err := h.uc.RecordNegotiation(c.Context(), &dto.NegotiationInput{
		ID:                 c.Params("id"),
		BuyerOffer:         req.BuyerOffer,
		SellerCounterOffer: req.SellerCounterOffer,
		Notes:              req.Notes,
	})
	if err != nil {
		return h.txError(c, err, "failed to record negotiation")
	}
	return c.JSON(t)
}

func (h *TransactionHandler) txError(c *fiber.Ctx, err error, logMsg string) error {
	switch {
	case errors.Is(err, transaction.ErrTransactionNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "transaction not found"})
	case errors.Is(err, transaction.ErrTransactionClosed):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	default:
		h.logger.Error(logMsg, zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}
