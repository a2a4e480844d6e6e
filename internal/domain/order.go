package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusFulfilled OrderStatus = "fulfilled"
	OrderStatusFailed    OrderStatus = "failed"
)

// CanTransitionTo reports whether next is reachable from s. Only pending
// orders move, and only to a terminal status.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return s == OrderStatusPending && (next == OrderStatusFulfilled || next == OrderStatusFailed)
}

type ShippingDetails struct {
	Name       string `json:"name" dynamodbav:"name"`
	Line1      string `json:"line1" dynamodbav:"line1"`
	Line2      string `json:"line2,omitempty" dynamodbav:"line2,omitempty"`
	City       string `json:"city" dynamodbav:"city"`
	State      string `json:"state,omitempty" dynamodbav:"state,omitempty"`
	PostalCode string `json:"postalCode" dynamodbav:"postalCode"`
	Country    string `json:"country" dynamodbav:"country"`
}

type Order struct {
	OrderID        string          `json:"orderId" dynamodbav:"orderId"`
	OwnerID        string          `json:"ownerId" dynamodbav:"ownerId"`
	Status         OrderStatus     `json:"status" dynamodbav:"status"`
	TotalAmount    int64           `json:"totalAmount" dynamodbav:"totalAmount"`
	Currency       string          `json:"currency" dynamodbav:"currency"`
	CustomerEmail  string          `json:"customerEmail,omitempty" dynamodbav:"customerEmail,omitempty"`
	Lines          []EnrichedLine  `json:"lines" dynamodbav:"lines"`
	Shipping       ShippingDetails `json:"shippingDetails" dynamodbav:"shippingDetails"`
	IdempotencyKey string          `json:"-" dynamodbav:"idempotencyKey"`
	CreatedAt      time.Time       `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt" dynamodbav:"updatedAt"`
}
