package dto

import (
	"time"

	"github.com/stocktech/marketplace-service/internal/model"
)

type CreateTransactionInput struct {
	BuyerID        string
	BuyerAccountID string

	ProductID string
	Type      model.TransactionType
	Quantity  int

	// UnitPrice overrides the product price when positive; zero means
	// "use the current listing price".
	UnitPrice float64

	RequiresShipping bool
	ShippingAddress  string
	ShippingCost     float64

	Source    string
	ExtraData map[string]string
}

type UpdateStatusInput struct {
	ID     string
	Status model.TransactionStatus

	// At overrides the stamped timestamp when non-nil.
	At *time.Time

	PaymentMethod    string
	PaymentReference string
	TrackingCode     string
}

type CancelInput struct {
	ID     string
	Reason string
	By     model.CancelActor
}

type RatingInput struct {
	ID     string
	Rating int
	Review string
	By     model.RatingSide
}

type NegotiationInput struct {
	ID string

	BuyerOffer         float64
	SellerCounterOffer float64
	Notes              string
}

type TransactionFilters struct {
	BuyerAccountID  string
	SellerAccountID string
	ProductID       string
	Status          string
	Type            string
	Page            int
	PageSize        int
}
