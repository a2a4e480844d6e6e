package domain

import "time"

// PaymentCompletedEvent is the validated form of a checkout-completed
// notification from the payment provider.
type PaymentCompletedEvent struct {
	EventID       string          `json:"eventId" validate:"required"`
	SessionID     string          `json:"sessionId"`
	OwnerID       string          `json:"ownerId" validate:"required"`
	AmountTotal   int64           `json:"amountTotal" validate:"gte=0"`
	Currency      string          `json:"currency"`
	CustomerEmail string          `json:"customerEmail" validate:"omitempty,email"`
	Shipping      ShippingDetails `json:"shippingDetails"`
}

type OrderCreatedEvent struct {
	OrderID       string          `json:"orderId"`
	OwnerID       string          `json:"ownerId"`
	CustomerEmail string          `json:"customerEmail,omitempty"`
	Lines         []EnrichedLine  `json:"lines"`
	TotalAmount   int64           `json:"totalAmount"`
	Currency      string          `json:"currency"`
	Shipping      ShippingDetails `json:"shippingDetails"`
	Timestamp     time.Time       `json:"timestamp"`
}

type ReconcileReason string

const (
	ReconcileStockShortfall  ReconcileReason = "stock_shortfall"
	ReconcileDecrementFailed ReconcileReason = "decrement_failed"
	ReconcileCartClearFailed ReconcileReason = "cart_clear_failed"
	ReconcileReplayedEvent   ReconcileReason = "replayed_event"
)

// ReconcileEvent describes an order whose side effects did not all complete
// and that needs out-of-band follow-up.
type ReconcileEvent struct {
	OrderID   string          `json:"orderId"`
	OwnerID   string          `json:"ownerId"`
	Reason    ReconcileReason `json:"reason"`
	ProductID string          `json:"productId,omitempty"`
	Quantity  int             `json:"quantity,omitempty"`
	Detail    string          `json:"detail,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
