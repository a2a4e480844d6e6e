package orders

import (
	"encoding/json"
	"strings"

	"github.com/joao-fontenele/cellarflow/internal/domain"
	"github.com/joao-fontenele/cellarflow/internal/validation"
)

const checkoutCompleted = "checkout.session.completed"

// stripeEvent is the subset of a checkout-session event the order pipeline
// reads. EventBridge delivers it as the event detail; Kafka as the message
// value.
type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID          string `json:"id"`
			AmountTotal int64  `json:"amount_total"`
			Currency    string `json:"currency"`
			Metadata    struct {
				UserID string `json:"userId"`
			} `json:"metadata"`
			CustomerDetails struct {
				Email string `json:"email"`
			} `json:"customer_details"`
			ShippingDetails struct {
				Name    string `json:"name"`
				Address struct {
					Line1      string `json:"line1"`
					Line2      string `json:"line2"`
					City       string `json:"city"`
					State      string `json:"state"`
					PostalCode string `json:"postal_code"`
					Country    string `json:"country"`
				} `json:"address"`
			} `json:"shipping_details"`
		} `json:"object"`
	} `json:"data"`
}

// DecodePaymentEvent parses and validates a checkout-completed payload.
func DecodePaymentEvent(detail []byte) (domain.PaymentCompletedEvent, error) {
	var raw stripeEvent
	if err := json.Unmarshal(detail, &raw); err != nil {
		return domain.PaymentCompletedEvent{}, domain.InvalidInput("malformed payment event: %v", err)
	}
	if raw.Type != "" && raw.Type != checkoutCompleted {
		return domain.PaymentCompletedEvent{}, domain.InvalidInput("unsupported payment event type %q", raw.Type)
	}

	obj := raw.Data.Object
	addr := obj.ShippingDetails.Address
	event := domain.PaymentCompletedEvent{
		EventID:       raw.ID,
		SessionID:     obj.ID,
		OwnerID:       obj.Metadata.UserID,
		AmountTotal:   obj.AmountTotal,
		Currency:      strings.ToUpper(obj.Currency),
		CustomerEmail: obj.CustomerDetails.Email,
		Shipping: domain.ShippingDetails{
			Name:       obj.ShippingDetails.Name,
			Line1:      addr.Line1,
			Line2:      addr.Line2,
			City:       addr.City,
			State:      addr.State,
			PostalCode: addr.PostalCode,
			Country:    addr.Country,
		},
	}
	if err := validation.Struct(event); err != nil {
		return domain.PaymentCompletedEvent{}, err
	}
	return event, nil
}
