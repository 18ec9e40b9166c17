package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/stocktech/marketplace-service/internal/model"
	"github.com/stocktech/marketplace-service/internal/transaction/dto"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

// funnelJSON and extraJSON map the JSONB columns.
type funnelJSON []string

func (f funnelJSON) Value() (driver.Value, error) {
	if f == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(f)
}

func (f *funnelJSON) Scan(src any) error {
	return scanJSON(src, f)
}

type extraJSON map[string]string

func (e extraJSON) Value() (driver.Value, error) {
	if e == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(e)
}

func (e *extraJSON) Scan(src any) error {
	return scanJSON(src, e)
}

func scanJSON(src, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
}

// transactionRow mirrors the transactions table.
type transactionRow struct {
	model.BaseModel
	BuyerID         string `db:"buyer_id"`
	SellerID        string `db:"seller_id"`
	BuyerAccountID  string `db:"buyer_account_id"`
	SellerAccountID string `db:"seller_account_id"`

	ProductID string `db:"product_id"`

	Type   string `db:"type"`
	Status string `db:"status"`

	Quantity      int     `db:"quantity"`
	UnitPrice     float64 `db:"unit_price"`
	OriginalPrice float64 `db:"original_price"`
	TotalAmount   float64 `db:"total_amount"`

	BuyerOffer         *float64 `db:"buyer_offer"`
	SellerCounterOffer *float64 `db:"seller_counter_offer"`
	NegotiationNotes   *string  `db:"negotiation_notes"`

	PaymentMethod    *string `db:"payment_method"`
	PaymentReference *string `db:"payment_reference"`

	RequiresShipping bool    `db:"requires_shipping"`
	ShippingAddress  *string `db:"shipping_address"`
	ShippingCost     float64 `db:"shipping_cost"`
	TrackingCode     *string `db:"tracking_code"`

	AgreedAt    *time.Time `db:"agreed_at"`
	PaidAt      *time.Time `db:"paid_at"`
	ShippedAt   *time.Time `db:"shipped_at"`
	DeliveredAt *time.Time `db:"delivered_at"`
	CompletedAt *time.Time `db:"completed_at"`
	CancelledAt *time.Time `db:"cancelled_at"`

	CancellationReason *string `db:"cancellation_reason"`
	CancelledBy        *string `db:"cancelled_by"`
	DisputeReason      *string `db:"dispute_reason"`

	BuyerRating  *int    `db:"buyer_rating"`
	SellerRating *int    `db:"seller_rating"`
	BuyerReview  *string `db:"buyer_review"`
	SellerReview *string `db:"seller_review"`

	Source           string     `db:"source"`
	ConversionFunnel funnelJSON `db:"conversion_funnel"`
	ExtraData        extraJSON  `db:"extra_data"`
}

func toRow(t *model.Transaction) *transactionRow {
	row := &transactionRow{
		BaseModel:          t.BaseModel,
		BuyerID:            t.BuyerID,
		SellerID:           t.SellerID,
		BuyerAccountID:     t.BuyerAccountID,
		SellerAccountID:    t.SellerAccountID,
		ProductID:          t.ProductID,
		Type:               string(t.Type),
		Status:             string(t.Status),
		Quantity:           t.Quantity,
		UnitPrice:          t.UnitPrice,
		OriginalPrice:      t.OriginalPrice,
		TotalAmount:        t.TotalAmount,
		BuyerOffer:         t.BuyerOffer,
		SellerCounterOffer: t.SellerCounterOffer,
		NegotiationNotes:   t.NegotiationNotes,
		PaymentMethod:      t.PaymentMethod,
		PaymentReference:   t.PaymentReference,
		RequiresShipping:   t.RequiresShipping,
		ShippingAddress:    t.ShippingAddress,
		ShippingCost:       t.ShippingCost,
		TrackingCode:       t.TrackingCode,
		AgreedAt:           t.AgreedAt,
		PaidAt:             t.PaidAt,
		ShippedAt:          t.ShippedAt,
		DeliveredAt:        t.DeliveredAt,
		CompletedAt:        t.CompletedAt,
		CancelledAt:        t.CancelledAt,
		CancellationReason: t.CancellationReason,
		DisputeReason:      t.DisputeReason,
		BuyerRating:        t.BuyerRating,
		SellerRating:       t.SellerRating,
		BuyerReview:        t.BuyerReview,
		SellerReview:       t.SellerReview,
		Source:             t.Source,
		ConversionFunnel:   t.ConversionFunnel,
		ExtraData:          t.ExtraData,
	}
	if t.CancelledBy != nil {
		by := string(*t.CancelledBy)
		row.CancelledBy = &by
	}
	return row
}

func (r *transactionRow) toModel() *model.Transaction {
	t := &model.Transaction{
		BaseModel:          r.BaseModel,
		BuyerID:            r.BuyerID,
		SellerID:           r.SellerID,
		BuyerAccountID:     r.BuyerAccountID,
		SellerAccountID:    r.SellerAccountID,
		ProductID:          r.ProductID,
		Type:               model.TransactionType(r.Type),
		Status:             model.TransactionStatus(r.Status),
		Quantity:           r.Quantity,
		UnitPrice:          r.UnitPrice,
		OriginalPrice:      r.OriginalPrice,
		TotalAmount:        r.TotalAmount,
		BuyerOffer:         r.BuyerOffer,
		SellerCounterOffer: r.SellerCounterOffer,
		NegotiationNotes:   r.NegotiationNotes,
		PaymentMethod:      r.PaymentMethod,
		PaymentReference:   r.PaymentReference,
		RequiresShipping:   r.RequiresShipping,
		ShippingAddress:    r.ShippingAddress,
		ShippingCost:       r.ShippingCost,
		TrackingCode:       r.TrackingCode,
		AgreedAt:           r.AgreedAt,
		PaidAt:             r.PaidAt,
		ShippedAt:          r.ShippedAt,
		DeliveredAt:        r.DeliveredAt,
		CompletedAt:        r.CompletedAt,
		CancelledAt:        r.CancelledAt,
		CancellationReason: r.CancellationReason,
		DisputeReason:      r.DisputeReason,
		BuyerRating:        r.BuyerRating,
		SellerRating:       r.SellerRating,
		BuyerReview:        r.BuyerReview,
		SellerReview:       r.SellerReview,
		Source:             r.Source,
		ConversionFunnel:   r.ConversionFunnel,
		ExtraData:          r.ExtraData,
	}
	if r.CancelledBy != nil {
		by := model.CancelActor(*r.CancelledBy)
		t.CancelledBy = &by
	}
	return t
}

func (r *PGRepository) Create(ctx context.Context, t *model.Transaction) error {
	query := `
        INSERT INTO transactions (
            id, buyer_id, seller_id, buyer_account_id, seller_account_id,
            product_id, type, status,
            quantity, unit_price, original_price, total_amount,
            buyer_offer, seller_counter_offer, negotiation_notes,
            payment_method, payment_reference,
            requires_shipping, shipping_address, shipping_cost, tracking_code,
            agreed_at, paid_at, shipped_at, delivered_at, completed_at, cancelled_at,
            cancellation_reason, cancelled_by, dispute_reason,
            buyer_rating, seller_rating, buyer_review, seller_review,
            source, conversion_funnel, extra_data, created_at, updated_at
        )
        VALUES (
            :id, :buyer_id, :seller_id, :buyer_account_id, :seller_account_id,
            :product_id, :type, :status,
            :quantity, :unit_price, :original_price, :total_amount,
            :buyer_offer, :seller_counter_offer, :negotiation_notes,
            :payment_method, :payment_reference,
            :requires_shipping, :shipping_address, :shipping_cost, :tracking_code,
            :agreed_at, :paid_at, :shipped_at, :delivered_at, :completed_at, :cancelled_at,
            :cancellation_reason, :cancelled_by, :dispute_reason,
            :buyer_rating, :seller_rating, :buyer_review, :seller_review,
            :source, :conversion_funnel, :extra_data, :created_at, :updated_at
        )
    `
	_, err := r.DB.NamedExecContext(ctx, query, toRow(t))
	return err
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.Transaction, error) {
	var row transactionRow
	query := `SELECT * FROM transactions WHERE id = $1 LIMIT 1`
	err := r.DB.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.toModel(), nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.TransactionFilters) ([]model.Transaction, int, error) {
	conditions := []string{}
	args := map[string]interface{}{}

	if f.BuyerAccountID != "" {
		conditions = append(conditions, "buyer_account_id = :buyer_account_id")
		args["buyer_account_id"] = f.BuyerAccountID
	}
	if f.SellerAccountID != "" {
		conditions = append(conditions, "seller_account_id = :seller_account_id")
		args["seller_account_id"] = f.SellerAccountID
	}
	if f.ProductID != "" {
		conditions = append(conditions, "product_id = :product_id")
		args["product_id"] = f.ProductID
	}
	if f.Status != "" {
		conditions = append(conditions, "status = :status")
		args["status"] = f.Status
	}
	if f.Type != "" {
		conditions = append(conditions, "type = :type")
		args["type"] = f.Type
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	var count int
	countQuery := "SELECT count(*) FROM transactions" + whereClause
	rows, err := r.DB.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return nil, 0, err
		}
	}

	query := "SELECT * FROM transactions" + whereClause + " ORDER BY created_at DESC"
	if f.PageSize > 0 {
		offset := (f.Page - 1) * f.PageSize
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, offset)
	}

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer nstmt.Close()

	var txRows []transactionRow
	if err := nstmt.SelectContext(ctx, &txRows, args); err != nil {
		return nil, 0, err
	}

	txs := make([]model.Transaction, 0, len(txRows))
	for i := range txRows {
		txs = append(txs, *txRows[i].toModel())
	}
	return txs, count, nil
}

func (r *PGRepository) Update(ctx context.Context, t *model.Transaction) error {
	query := `
        UPDATE transactions SET
            status = :status,
            quantity = :quantity,
            unit_price = :unit_price,
            total_amount = :total_amount,
            buyer_offer = :buyer_offer,
            seller_counter_offer = :seller_counter_offer,
            negotiation_notes = :negotiation_notes,
            payment_method = :payment_method,
            payment_reference = :payment_reference,
            shipping_address = :shipping_address,
            shipping_cost = :shipping_cost,
            tracking_code = :tracking_code,
            agreed_at = :agreed_at,
            paid_at = :paid_at,
            shipped_at = :shipped_at,
            delivered_at = :delivered_at,
            completed_at = :completed_at,
            cancelled_at = :cancelled_at,
            cancellation_reason = :cancellation_reason,
            cancelled_by = :cancelled_by,
            dispute_reason = :dispute_reason,
            buyer_rating = :buyer_rating,
            seller_rating = :seller_rating,
            buyer_review = :buyer_review,
            seller_review = :seller_review,
            conversion_funnel = :conversion_funnel,
            extra_data = :extra_data,
            updated_at = :updated_at
        WHERE id = :id
    `
	result, err := r.DB.NamedExecContext(ctx, query, toRow(t))
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
