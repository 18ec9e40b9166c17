package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stocktech/marketplace-service/internal/avadmin"
	"github.com/stocktech/marketplace-service/internal/model"
	"github.com/stocktech/marketplace-service/internal/product"
	"github.com/stocktech/marketplace-service/internal/transaction"
	"github.com/stocktech/marketplace-service/internal/transaction/dto"
	"github.com/stocktech/marketplace-service/pkg/logger"
)

// EventPublisher is satisfied by broker.KafkaProducer.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// TransactionEvent is the message published after every lifecycle change.
type TransactionEvent struct {
	Event         string    `json:"event"`
	TransactionID string    `json:"transaction_id"`
	ProductID     string    `json:"product_id"`
	Status        string    `json:"status"`
	Quantity      int       `json:"quantity"`
	OccurredAt    time.Time `json:"occurred_at"`
}

const (
	EventCreated       = "transaction.created"
	EventStatusChanged = "transaction.status_changed"
	EventCancelled     = "transaction.cancelled"
)

type transactionUseCase struct {
	repo     transaction.Repository
	products product.UseCase
	gateway  *avadmin.Gateway
	producer EventPublisher
	logger   logger.ZapLogger
}

func NewTransactionUseCase(repo transaction.Repository, products product.UseCase, gateway *avadmin.Gateway, producer EventPublisher, log logger.ZapLogger) transaction.UseCase {
	return &transactionUseCase{
		repo:     repo,
		products: products,
		gateway:  gateway,
		producer: producer,
		logger:   log,
	}
}

func (uc *transactionUseCase) CreateTransaction(ctx context.Context, input *dto.CreateTransactionInput) (*model.Transaction, error) {
	// Advisory quota pre-check against the account service; fail-closed.
	if !uc.gateway.CanCreateTransaction(ctx, input.BuyerAccountID) {
		return nil, transaction.ErrQuotaExceeded
	}

	quantity := input.Quantity
	if quantity < 1 {
		quantity = 1
	}

	// Reserving stock up front keeps the listed quantity honest while the
	// transaction is open; a cancellation releases it back.
	p, err := uc.products.ReserveStock(ctx, input.ProductID, quantity)
	if err != nil {
		return nil, err
	}

	unitPrice := p.Price
	if input.UnitPrice > 0 {
		unitPrice = input.UnitPrice
	}

	txType := input.Type
	if txType == "" {
		txType = model.TypeSale
	}

	source := input.Source
	if source == "" {
		source = "marketplace"
	}

	now := time.Now().UTC()
	t := &model.Transaction{
		BaseModel:        model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
		BuyerID:          input.BuyerID,
		BuyerAccountID:   input.BuyerAccountID,
		SellerID:         p.UserID,
		SellerAccountID:  p.AccountID,
		ProductID:        p.ID,
		Type:             txType,
		Status:           model.TransactionPending,
		Quantity:         quantity,
		UnitPrice:        unitPrice,
		OriginalPrice:    p.Price,
		RequiresShipping: input.RequiresShipping,
		ShippingCost:     input.ShippingCost,
		Source:           source,
		ExtraData:        input.ExtraData,
	}
	if input.ShippingAddress != "" {
		t.ShippingAddress = &input.ShippingAddress
	}
	// total_amount stays unit_price × quantity; shipping is its own column.
	t.CalculateTotal()
	t.AddConversionStep("transaction_created")

	if err := uc.repo.Create(ctx, t); err != nil {
		// The reservation must not leak when persistence fails.
		if _, relErr := uc.products.ReleaseStock(ctx, p.ID, quantity); relErr != nil {
			uc.logger.Error("failed to release stock after create failure",
				zap.String("product_id", p.ID), zap.Error(relErr))
		}
		return nil, err
	}

	go uc.incrementUsage(input.BuyerAccountID)
	go uc.publishEvent(EventCreated, t)

	return t, nil
}

func (uc *transactionUseCase) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	t, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, transaction.ErrTransactionNotFound
	}
	return t, nil
}

func (uc *transactionUseCase) ListTransactions(ctx context.Context, filters *dto.TransactionFilters) ([]model.Transaction, int, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = 20
	}
	return uc.repo.FindAll(ctx, filters)
}

func (uc *transactionUseCase) UpdateStatus(ctx context.Context, input *dto.UpdateStatusInput) (*model.Transaction, error) {
	t, err := uc.GetTransaction(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if !t.IsActive() {
		return nil, transaction.ErrTransactionClosed
	}

	t.UpdateStatus(input.Status, input.At)
	if input.PaymentMethod != "" {
		t.PaymentMethod = &input.PaymentMethod
	}
	if input.PaymentReference != "" {
		t.PaymentReference = &input.PaymentReference
	}
	if input.TrackingCode != "" {
		t.TrackingCode = &input.TrackingCode
	}
	t.AddConversionStep("status_" + string(input.Status))
	t.UpdatedAt = time.Now().UTC()

	if err := uc.repo.Update(ctx, t); err != nil {
		return nil, err
	}

	go uc.publishEvent(EventStatusChanged, t)

	return t, nil
}

func (uc *transactionUseCase) Cancel(ctx context.Context, input *dto.CancelInput) (*model.Transaction, error) {
	t, err := uc.GetTransaction(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if !t.IsActive() {
		return nil, transaction.ErrTransactionClosed
	}

	t.Cancel(input.Reason, input.By)
	t.AddConversionStep("transaction_cancelled")
	t.UpdatedAt = time.Now().UTC()

	if err := uc.repo.Update(ctx, t); err != nil {
		return nil, err
	}

	// The stock release rides on the cancelled event; the listener picks
	// it up so a crashed publisher can be replayed from the topic.
	go uc.publishEvent(EventCancelled, t)

	return t, nil
}

func (uc *transactionUseCase) AddRating(ctx context.Context, input *dto.RatingInput) (*model.Transaction, error) {
	t, err := uc.GetTransaction(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	t.AddRating(input.Rating, input.Review, input.By)
	t.UpdatedAt = time.Now().UTC()

	if err := uc.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (uc *transactionUseCase) RecordNegotiation(ctx context.Context, input *dto.NegotiationInput) (*model.Transaction, error) {
	t, err := uc.GetTransaction(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if !t.IsActive() {
		return nil, transaction.ErrTransactionClosed
	}

	if input.BuyerOffer > 0 {
		t.BuyerOffer = &input.BuyerOffer
	}
	if input.SellerCounterOffer > 0 {
		t.SellerCounterOffer = &input.SellerCounterOffer
	}
	if input.Notes != "" {
		t.NegotiationNotes = &input.Notes
	}
	if t.Status == model.TransactionPending {
		t.UpdateStatus(model.TransactionNegotiating, nil)
	}
	t.AddConversionStep("negotiation")
	t.UpdatedAt = time.Now().UTC()

	if err := uc.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (uc *transactionUseCase) incrementUsage(accountID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if !uc.gateway.IncrementUsageCounter(ctx, accountID, "transactions") {
		uc.logger.Warn("failed to increment transaction usage counter",
			zap.String("account_id", accountID))
	}
}

func (uc *transactionUseCase) publishEvent(event string, t *model.Transaction) {
	if uc.producer == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := uc.producer.Publish(ctx, t.ID, TransactionEvent{
		Event:         event,
		TransactionID: t.ID,
		ProductID:     t.ProductID,
		Status:        string(t.Status),
		Quantity:      t.Quantity,
		OccurredAt:    time.Now().UTC(),
	})
	if err != nil {
		uc.logger.Error("failed to publish transaction event",
			zap.String("event", event), zap.String("transaction_id", t.ID), zap.Error(err))
	}
}
