package transaction

import (
	"context"
	"errors"

	"github.com/stocktech/marketplace-service/internal/model"
	"github.com/stocktech/marketplace-service/internal/transaction/dto"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrTransactionClosed   = errors.New("transaction is already completed or cancelled")
	ErrQuotaExceeded       = errors.New("account reached its transaction limit")
)

type UseCase interface {
	CreateTransaction(ctx context.Context, input *dto.CreateTransactionInput) (*model.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
	ListTransactions(ctx context.Context, filters *dto.TransactionFilters) ([]model.Transaction, int, error)

	UpdateStatus(ctx context.Context, input *dto.UpdateStatusInput) (*model.Transaction, error)
	Cancel(ctx context.Context, input *dto.CancelInput) (*model.Transaction, error)
	AddRating(ctx context.Context, input *dto.RatingInput) (*model.Transaction, error)
	RecordNegotiation(ctx context.Context, input *dto.NegotiationInput) (*model.Transaction, error)
}
