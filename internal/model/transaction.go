package model

import (
	"slices"
	"time"
)

type TransactionStatus string

const (
	TransactionPending        TransactionStatus = "pending"         // initial interest shown
	TransactionNegotiating    TransactionStatus = "negotiating"     // active negotiation
	TransactionAgreed         TransactionStatus = "agreed"          // price and terms agreed
	TransactionPaymentPending TransactionStatus = "payment_pending" // waiting for payment
	TransactionPaid           TransactionStatus = "paid"
	TransactionShipped        TransactionStatus = "shipped"
	TransactionDelivered      TransactionStatus = "delivered"
	TransactionCompleted      TransactionStatus = "completed"
	TransactionCancelled      TransactionStatus = "cancelled"
	TransactionDisputed       TransactionStatus = "disputed"
)

type TransactionType string

const (
	TypeSale        TransactionType = "sale"
	TypeNegotiation TransactionType = "negotiation"
	TypeTrade       TransactionType = "trade"
	TypeQuote       TransactionType = "quote"
)

// CancelActor identifies which side cancelled a transaction.
type CancelActor string

const (
	CancelledByBuyer  CancelActor = "buyer"
	CancelledBySeller CancelActor = "seller"
)

type RatingSide string

const (
	RatingByBuyer  RatingSide = "buyer"
	RatingBySeller RatingSide = "seller"
)

// Transaction tracks one buyer/seller interaction over a product. Buyer and
// seller ids are opaque references to the account service; only ProductID is
// a local foreign key (rows cascade with the product).
type Transaction struct {
	BaseModel
	BuyerID         string `json:"buyer_id"`
	SellerID        string `json:"seller_id"`
	BuyerAccountID  string `json:"buyer_account_id"`
	SellerAccountID string `json:"seller_account_id"`

	ProductID string `json:"product_id"`

	Type   TransactionType   `json:"type"`
	Status TransactionStatus `json:"status"`

	Quantity      int     `json:"quantity"`
	UnitPrice     float64 `json:"unit_price"`
	OriginalPrice float64 `json:"original_price"`
	TotalAmount   float64 `json:"total_amount"`

	BuyerOffer         *float64 `json:"buyer_offer"`
	SellerCounterOffer *float64 `json:"seller_counter_offer"`
	NegotiationNotes   *string  `json:"negotiation_notes"`

	PaymentMethod    *string `json:"payment_method"`
	PaymentReference *string `json:"payment_reference"`

	RequiresShipping bool    `json:"requires_shipping"`
	ShippingAddress  *string `json:"shipping_address"`
	ShippingCost     float64 `json:"shipping_cost"`
	TrackingCode     *string `json:"tracking_code"`

	AgreedAt    *time.Time `json:"agreed_at"`
	PaidAt      *time.Time `json:"paid_at"`
	ShippedAt   *time.Time `json:"shipped_at"`
	DeliveredAt *time.Time `json:"delivered_at"`
	CompletedAt *time.Time `json:"completed_at"`
	CancelledAt *time.Time `json:"cancelled_at"`

	CancellationReason *string      `json:"cancellation_reason"`
	CancelledBy        *CancelActor `json:"cancelled_by"`
	DisputeReason      *string      `json:"dispute_reason"`

	BuyerRating  *int    `json:"buyer_rating"`
	SellerRating *int    `json:"seller_rating"`
	BuyerReview  *string `json:"buyer_review"`
	SellerReview *string `json:"seller_review"`

	Source           string            `json:"source"`
	ConversionFunnel []string          `json:"conversion_funnel"`
	ExtraData        map[string]string `json:"extra_data"`
}

func (t *Transaction) IsCompleted() bool {
	return t.Status == TransactionCompleted
}

func (t *Transaction) IsCancelled() bool {
	return t.Status == TransactionCancelled
}

// IsActive reports whether the transaction can still advance.
func (t *Transaction) IsActive() bool {
	return t.Status != TransactionCompleted && t.Status != TransactionCancelled
}

func (t *Transaction) DiscountAmount() float64 {
	return (t.OriginalPrice - t.UnitPrice) * float64(t.Quantity)
}

func (t *Transaction) DiscountPercentage() float64 {
	if t.OriginalPrice == 0 {
		return 0
	}
	return (t.OriginalPrice - t.UnitPrice) / t.OriginalPrice * 100
}

// DurationDays returns the whole days between creation and completion, or
// nil while the transaction is still open.
func (t *Transaction) DurationDays() *int {
	if t.CompletedAt == nil {
		return nil
	}
	days := int(t.CompletedAt.Sub(t.CreatedAt).Hours() / 24)
	return &days
}

// CalculateTotal recomputes total amount from unit price and quantity. It is
// not called automatically; callers must invoke it after changing either.
func (t *Transaction) CalculateTotal() {
	t.TotalAmount = t.UnitPrice * float64(t.Quantity)
}

// AddConversionStep appends a funnel step unless it was already recorded,
// preserving first-occurrence order.
func (t *Transaction) AddConversionStep(step string) {
	if slices.Contains(t.ConversionFunnel, step) {
		return
	}
	t.ConversionFunnel = append(t.ConversionFunnel, step)
}

// UpdateStatus moves the transaction to newStatus and stamps the matching
// timestamp field. Transitions are deliberately unvalidated; ordering
// discipline belongs to the caller.
func (t *Transaction) UpdateStatus(newStatus TransactionStatus, at *time.Time) {
	t.Status = newStatus

	now := time.Now().UTC()
	if at != nil {
		now = *at
	}

	switch newStatus {
	case TransactionAgreed:
		t.AgreedAt = &now
	case TransactionPaid:
		t.PaidAt = &now
	case TransactionShipped:
		t.ShippedAt = &now
	case TransactionDelivered:
		t.DeliveredAt = &now
	case TransactionCompleted:
		t.CompletedAt = &now
	case TransactionCancelled:
		t.CancelledAt = &now
	}
}

// Cancel marks the transaction cancelled and records who and why. Calling it
// again overwrites reason, actor and timestamp.
func (t *Transaction) Cancel(reason string, by CancelActor) {
	t.UpdateStatus(TransactionCancelled, nil)
	t.CancellationReason = &reason
	t.CancelledBy = &by
}

// AddRating attaches a 1-5 rating with an optional review to one side of the
// transaction. Out-of-range ratings are ignored.
func (t *Transaction) AddRating(rating int, review string, by RatingSide) {
	if rating < 1 || rating > 5 {
		return
	}

	switch by {
	case RatingByBuyer:
		t.BuyerRating = &rating
		if review != "" {
			t.BuyerReview = &review
		}
	case RatingBySeller:
		t.SellerRating = &rating
		if review != "" {
			t.SellerReview = &review
		}
	}
}
