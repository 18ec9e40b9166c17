package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stocktech/marketplace-service/config"
	"github.com/stocktech/marketplace-service/internal/avadmin"
	"github.com/stocktech/marketplace-service/internal/model"
	"github.com/stocktech/marketplace-service/internal/product"
	prodDTO "github.com/stocktech/marketplace-service/internal/product/dto"
	"github.com/stocktech/marketplace-service/internal/transaction"
	"github.com/stocktech/marketplace-service/internal/transaction/dto"
	"github.com/stocktech/marketplace-service/pkg/logger"
)

// ---------------------------------------------------------------------------
// fakes
// ---------------------------------------------------------------------------

type fakeRepo struct {
	byID      map[string]*model.Transaction
	createErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: map[string]*model.Transaction{}}
}

func (r *fakeRepo) Create(_ context.Context, t *model.Transaction) error {
	if r.createErr != nil {
		return r.createErr
	}
	cp := *t
	r.byID[t.ID] = &cp
	return nil
}

func (r *fakeRepo) FindByID(_ context.Context, id string) (*model.Transaction, error) {
	t, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *fakeRepo) FindAll(_ context.Context, _ *dto.TransactionFilters) ([]model.Transaction, int, error) {
	out := make([]model.Transaction, 0, len(r.byID))
	for _, t := range r.byID {
		out = append(out, *t)
	}
	return out, len(out), nil
}

func (r *fakeRepo) Update(_ context.Context, t *model.Transaction) error {
	cp := *t
	r.byID[t.ID] = &cp
	return nil
}

// fakeProducts only implements the stock paths the transaction flow touches.
type fakeProducts struct {
	product        *model.Product
	reserveErr     error
	reservedQty    int
	releasedQty    int
	releaseCalled  int
	releaseProduct string
}

func (f *fakeProducts) ReserveStock(_ context.Context, productID string, quantity int) (*model.Product, error) {
	if f.reserveErr != nil {
		return nil, f.reserveErr
	}
	if f.product == nil || f.product.ID != productID {
		return nil, product.ErrProductNotFound
	}
	f.reservedQty += quantity
	return f.product, nil
}

func (f *fakeProducts) ReleaseStock(_ context.Context, productID string, quantity int) (*model.Product, error) {
	f.releaseCalled++
	f.releasedQty += quantity
	f.releaseProduct = productID
	return f.product, nil
}

func (f *fakeProducts) CreateProduct(context.Context, *prodDTO.CreateProductInput) (*model.Product, error) {
	panic("not used")
}
func (f *fakeProducts) GetProduct(context.Context, string) (*model.Product, error) {
	panic("not used")
}
func (f *fakeProducts) ListProducts(context.Context, *prodDTO.ProductFilters) ([]model.Product, int, error) {
	panic("not used")
}
func (f *fakeProducts) UpdateProduct(context.Context, *prodDTO.UpdateProductInput) (*model.Product, error) {
	panic("not used")
}
func (f *fakeProducts) DeleteProduct(context.Context, string) error { panic("not used") }
func (f *fakeProducts) UpdateStock(context.Context, string, int, model.StockOperation) (*model.Product, error) {
	panic("not used")
}
func (f *fakeProducts) RecordView(context.Context, string) error     { panic("not used") }
func (f *fakeProducts) RecordContact(context.Context, string) error  { panic("not used") }
func (f *fakeProducts) RecordFavorite(context.Context, string) error { panic("not used") }
func (f *fakeProducts) RemoveFavorite(context.Context, string) error { panic("not used") }

// fakeProducer is mutex-guarded: the usecase publishes from goroutines.
type fakeProducer struct {
	mu     sync.Mutex
	events []TransactionEvent
}

func (p *fakeProducer) Publish(_ context.Context, _ string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event.(TransactionEvent))
	return nil
}

func (p *fakeProducer) published() []TransactionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]TransactionEvent, len(p.events))
	copy(out, p.events)
	return out
}

func (p *fakeProducer) waitFor(t *testing.T, n int) []TransactionEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for len(p.published()) < n && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	events := p.published()
	require.GreaterOrEqual(t, len(events), n)
	return events
}

// accountServer serves one account with the given limits.
func accountServer(t *testing.T, limits avadmin.AccountLimits) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/internal/accounts/acc-1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(avadmin.AccountData{ID: "acc-1", Status: "active", Limits: limits})
	})
	mux.HandleFunc("POST /api/internal/accounts/acc-1/usage", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})
	})
	return httptest.NewServer(mux)
}

func newGateway(t *testing.T, baseURL string) *avadmin.Gateway {
	t.Helper()
	return avadmin.NewGateway(&config.AvAdminConfig{
		BaseURL:    baseURL,
		Timeout:    time.Second,
		MaxRetries: 1,
		Module:     "StockTech",
	}, logger.NewNop())
}

func testProduct() *model.Product {
	p := &model.Product{
		BaseModel: model.BaseModel{ID: "p1"},
		AccountID: "acc-seller",
		UserID:    "u-seller",
		Name:      "Pressure Gauge",
		Price:     150,
	}
	p.RestoreStock(10, model.ProductStatusActive)
	return p
}

// ---------------------------------------------------------------------------
// tests
// ---------------------------------------------------------------------------

func TestCreateTransaction_ReservesStockAndPublishes(t *testing.T) {
	srv := accountServer(t, avadmin.AccountLimits{MaxTransactions: 100, CurrentTransactions: 2})
	defer srv.Close()

	repo := newFakeRepo()
	products := &fakeProducts{product: testProduct()}
	producer := &fakeProducer{}
	uc := NewTransactionUseCase(repo, products, newGateway(t, srv.URL), producer, logger.NewNop())

	tx, err := uc.CreateTransaction(context.Background(), &dto.CreateTransactionInput{
		BuyerID:        "u-buyer",
		BuyerAccountID: "acc-1",
		ProductID:      "p1",
		Quantity:       3,
		ShippingCost:   30,
	})
	require.NoError(t, err)

	assert.Equal(t, model.TransactionPending, tx.Status)
	assert.Equal(t, "u-seller", tx.SellerID)
	assert.Equal(t, "acc-seller", tx.SellerAccountID)
	assert.Equal(t, 3, products.reservedQty)
	// shipping never leaks into the derived total
	assert.Equal(t, float64(450), tx.TotalAmount)
	assert.Equal(t, float64(30), tx.ShippingCost)
	assert.Equal(t, model.TypeSale, tx.Type)
	assert.Contains(t, tx.ConversionFunnel, "transaction_created")

	events := producer.waitFor(t, 1)
	assert.Equal(t, EventCreated, events[0].Event)
	assert.Equal(t, tx.ID, events[0].TransactionID)
}

func TestCreateTransaction_QuotaExceeded(t *testing.T) {
	srv := accountServer(t, avadmin.AccountLimits{MaxTransactions: 5, CurrentTransactions: 5})
	defer srv.Close()

	products := &fakeProducts{product: testProduct()}
	uc := NewTransactionUseCase(newFakeRepo(), products, newGateway(t, srv.URL), &fakeProducer{}, logger.NewNop())

	_, err := uc.CreateTransaction(context.Background(), &dto.CreateTransactionInput{
		BuyerAccountID: "acc-1",
		ProductID:      "p1",
	})
	require.ErrorIs(t, err, transaction.ErrQuotaExceeded)
	assert.Zero(t, products.reservedQty)
}

func TestCreateTransaction_AccountServiceDownIsQuotaDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	uc := NewTransactionUseCase(newFakeRepo(), &fakeProducts{product: testProduct()}, newGateway(t, srv.URL), &fakeProducer{}, logger.NewNop())

	_, err := uc.CreateTransaction(context.Background(), &dto.CreateTransactionInput{
		BuyerAccountID: "acc-1",
		ProductID:      "p1",
	})
	require.ErrorIs(t, err, transaction.ErrQuotaExceeded)
}

func TestCreateTransaction_InsufficientStockPropagates(t *testing.T) {
	srv := accountServer(t, avadmin.AccountLimits{MaxTransactions: 10})
	defer srv.Close()

	products := &fakeProducts{reserveErr: product.ErrInsufficientStock}
	uc := NewTransactionUseCase(newFakeRepo(), products, newGateway(t, srv.URL), &fakeProducer{}, logger.NewNop())

	_, err := uc.CreateTransaction(context.Background(), &dto.CreateTransactionInput{
		BuyerAccountID: "acc-1",
		ProductID:      "p1",
		Quantity:       99,
	})
	require.ErrorIs(t, err, product.ErrInsufficientStock)
}

func TestCreateTransaction_PersistFailureReleasesReservation(t *testing.T) {
	srv := accountServer(t, avadmin.AccountLimits{MaxTransactions: 10})
	defer srv.Close()

	repo := newFakeRepo()
	repo.createErr = errors.New("insert failed")
	products := &fakeProducts{product: testProduct()}
	uc := NewTransactionUseCase(repo, products, newGateway(t, srv.URL), &fakeProducer{}, logger.NewNop())

	_, err := uc.CreateTransaction(context.Background(), &dto.CreateTransactionInput{
		BuyerAccountID: "acc-1",
		ProductID:      "p1",
		Quantity:       2,
	})
	require.Error(t, err)
	assert.Equal(t, 1, products.releaseCalled)
	assert.Equal(t, 2, products.releasedQty)
}

func TestCreateTransaction_UnitPriceOverride(t *testing.T) {
	srv := accountServer(t, avadmin.AccountLimits{MaxTransactions: 10})
	defer srv.Close()

	uc := NewTransactionUseCase(newFakeRepo(), &fakeProducts{product: testProduct()}, newGateway(t, srv.URL), &fakeProducer{}, logger.NewNop())

	tx, err := uc.CreateTransaction(context.Background(), &dto.CreateTransactionInput{
		BuyerAccountID: "acc-1",
		ProductID:      "p1",
		Quantity:       2,
		UnitPrice:      120,
		ShippingCost:   25,
	})
	require.NoError(t, err)

	assert.Equal(t, float64(120), tx.UnitPrice)
	assert.Equal(t, float64(150), tx.OriginalPrice)
	assert.Equal(t, float64(240), tx.TotalAmount)
	assert.Equal(t, float64(25), tx.ShippingCost)
}

func seedTransaction(t *testing.T, repo *fakeRepo, status model.TransactionStatus) *model.Transaction {
	t.Helper()
	tx := &model.Transaction{
		BaseModel:      model.BaseModel{ID: "t1", CreatedAt: time.Now().UTC()},
		BuyerAccountID: "acc-1",
		ProductID:      "p1",
		Status:         status,
		Quantity:       2,
		UnitPrice:      100,
		TotalAmount:    200,
	}
	require.NoError(t, repo.Create(context.Background(), tx))
	return tx
}

func TestUpdateStatus_StampsAndPublishes(t *testing.T) {
	srv := accountServer(t, avadmin.AccountLimits{})
	defer srv.Close()

	repo := newFakeRepo()
	seedTransaction(t, repo, model.TransactionAgreed)
	producer := &fakeProducer{}
	uc := NewTransactionUseCase(repo, &fakeProducts{}, newGateway(t, srv.URL), producer, logger.NewNop())

	tx, err := uc.UpdateStatus(context.Background(), &dto.UpdateStatusInput{
		ID:            "t1",
		Status:        model.TransactionPaid,
		PaymentMethod: "pix",
	})
	require.NoError(t, err)

	assert.Equal(t, model.TransactionPaid, tx.Status)
	require.NotNil(t, tx.PaidAt)
	require.NotNil(t, tx.PaymentMethod)
	assert.Equal(t, "pix", *tx.PaymentMethod)
	assert.Contains(t, tx.ConversionFunnel, "status_paid")

	events := producer.waitFor(t, 1)
	assert.Equal(t, EventStatusChanged, events[0].Event)
}

func TestUpdateStatus_ClosedTransactionRejected(t *testing.T) {
	srv := accountServer(t, avadmin.AccountLimits{})
	defer srv.Close()

	repo := newFakeRepo()
	seedTransaction(t, repo, model.TransactionCompleted)
	uc := NewTransactionUseCase(repo, &fakeProducts{}, newGateway(t, srv.URL), &fakeProducer{}, logger.NewNop())

	_, err := uc.UpdateStatus(context.Background(), &dto.UpdateStatusInput{
		ID:     "t1",
		Status: model.TransactionShipped,
	})
	require.ErrorIs(t, err, transaction.ErrTransactionClosed)
}

func TestUpdateStatus_NotFound(t *testing.T) {
	srv := accountServer(t, avadmin.AccountLimits{})
	defer srv.Close()

	uc := NewTransactionUseCase(newFakeRepo(), &fakeProducts{}, newGateway(t, srv.URL), &fakeProducer{}, logger.NewNop())

	_, err := uc.UpdateStatus(context.Background(), &dto.UpdateStatusInput{
		ID:     "missing",
		Status: model.TransactionPaid,
	})
	require.ErrorIs(t, err, transaction.ErrTransactionNotFound)
}

func TestCancel_PublishesCancelledEvent(t *testing.T) {
	srv := accountServer(t, avadmin.AccountLimits{})
	defer srv.Close()

	repo := newFakeRepo()
	seedTransaction(t, repo, model.TransactionNegotiating)
	producer := &fakeProducer{}
	uc := NewTransactionUseCase(repo, &fakeProducts{}, newGateway(t, srv.URL), producer, logger.NewNop())

	tx, err := uc.Cancel(context.Background(), &dto.CancelInput{
		ID:     "t1",
		Reason: "buyer gave up",
		By:     model.CancelledByBuyer,
	})
	require.NoError(t, err)

	assert.Equal(t, model.TransactionCancelled, tx.Status)
	require.NotNil(t, tx.CancellationReason)
	assert.Equal(t, "buyer gave up", *tx.CancellationReason)

	events := producer.waitFor(t, 1)
	assert.Equal(t, EventCancelled, events[0].Event)
	assert.Equal(t, 2, events[0].Quantity)
}

func TestCancel_AlreadyCancelledRejected(t *testing.T) {
	srv := accountServer(t, avadmin.AccountLimits{})
	defer srv.Close()

	repo := newFakeRepo()
	seedTransaction(t, repo, model.TransactionCancelled)
	uc := NewTransactionUseCase(repo, &fakeProducts{}, newGateway(t, srv.URL), &fakeProducer{}, logger.NewNop())

	_, err := uc.Cancel(context.Background(), &dto.CancelInput{
		ID: "t1",
		By: model.CancelledBySeller,
	})
	require.ErrorIs(t, err, transaction.ErrTransactionClosed)
}

func TestAddRating_AllowedAfterCompletion(t *testing.T) {
	srv := accountServer(t, avadmin.AccountLimits{})
	defer srv.Close()

	repo := newFakeRepo()
	seedTransaction(t, repo, model.TransactionCompleted)
	uc := NewTransactionUseCase(repo, &fakeProducts{}, newGateway(t, srv.URL), &fakeProducer{}, logger.NewNop())

	tx, err := uc.AddRating(context.Background(), &dto.RatingInput{
		ID:     "t1",
		Rating: 4,
		Review: "solid seller",
		By:     model.RatingByBuyer,
	})
	require.NoError(t, err)

	require.NotNil(t, tx.BuyerRating)
	assert.Equal(t, 4, *tx.BuyerRating)
	require.NotNil(t, tx.BuyerReview)
	assert.Equal(t, "solid seller", *tx.BuyerReview)
}

func TestRecordNegotiation_MovesPendingToNegotiating(t *testing.T) {
	srv := accountServer(t, avadmin.AccountLimits{})
	defer srv.Close()

	repo := newFakeRepo()
	seedTransaction(t, repo, model.TransactionPending)
	uc := NewTransactionUseCase(repo, &fakeProducts{}, newGateway(t, srv.URL), &fakeProducer{}, logger.NewNop())

	tx, err := uc.RecordNegotiation(context.Background(), &dto.NegotiationInput{
		ID:         "t1",
		BuyerOffer: 90,
		Notes:      "bulk discount",
	})
	require.NoError(t, err)

	assert.Equal(t, model.TransactionNegotiating, tx.Status)
	require.NotNil(t, tx.BuyerOffer)
	assert.Equal(t, float64(90), *tx.BuyerOffer)
	assert.Contains(t, tx.ConversionFunnel, "negotiation")
}
