package listener

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/stocktech/marketplace-service/internal/product"
	txusecase "github.com/stocktech/marketplace-service/internal/transaction/usecase"
	"github.com/stocktech/marketplace-service/pkg/broker"
	"github.com/stocktech/marketplace-service/pkg/logger"
)

// TransactionListener consumes transaction lifecycle events and releases
// reserved stock when a transaction is cancelled. Releasing through the topic
// instead of in the cancel request path means a replay of the topic converges
// the ledger after a crash.
type TransactionListener struct {
	consumer *broker.KafkaConsumer
	products product.UseCase
	logger   logger.ZapLogger
}

func NewTransactionListener(consumer *broker.KafkaConsumer, products product.UseCase, log logger.ZapLogger) *TransactionListener {
	return &TransactionListener{
		consumer: consumer,
		products: products,
		logger:   log,
	}
}

func (l *TransactionListener) Start(ctx context.Context) {
	l.logger.Info("Starting Transaction Kafka Listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping Transaction Kafka Listener")
			return
		default:
			msg, err := l.consumer.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("Failed to read kafka message", zap.Error(err))
				time.Sleep(1 * time.Second)
				continue
			}
			l.processMessage(ctx, msg.Value)
		}
	}
}

func (l *TransactionListener) processMessage(ctx context.Context, value []byte) {
	var event txusecase.TransactionEvent
	if err := json.Unmarshal(value, &event); err != nil {
		l.logger.Error("Failed to unmarshal transaction event", zap.Error(err))
		return
	}

	if event.Event != txusecase.EventCancelled {
		return
	}

	l.logger.Info("Releasing stock for cancelled transaction",
		zap.String("transaction_id", event.TransactionID),
		zap.String("product_id", event.ProductID),
		zap.Int("quantity", event.Quantity),
	)

	_, err := l.products.ReleaseStock(ctx, event.ProductID, event.Quantity)
	if err != nil {
		if errors.Is(err, product.ErrProductNotFound) {
			// product deleted while the event was in flight
			return
		}
		l.logger.Error("Failed to release stock for cancelled transaction",
			zap.String("transaction_id", event.TransactionID),
			zap.String("product_id", event.ProductID),
			zap.Error(err),
		)
	}
}
