package orders

import (
	"errors"
	"testing"

	"github.com/joao-fontenele/cellarflow/internal/domain"
)

const checkoutEvent = `{
	"id": "evt_1PqA",
	"type": "checkout.session.completed",
	"data": {
		"object": {
			"id": "cs_test_123",
			"amount_total": 7250,
			"currency": "eur",
			"metadata": {"userId": "u1"},
			"customer_details": {"email": "ana@example.com"},
			"shipping_details": {
				"name": "Ana Silva",
				"address": {
					"line1": "Rua das Flores 10",
					"city": "Porto",
					"postal_code": "4050-262",
					"country": "PT"
				}
			}
		}
	}
}`

func TestDecodePaymentEvent(t *testing.T) {
	t.Run("maps checkout session fields", func(t *testing.T) {
		event, err := DecodePaymentEvent([]byte(checkoutEvent))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if event.EventID != "evt_1PqA" || event.SessionID != "cs_test_123" || event.OwnerID != "u1" {
			t.Errorf("unexpected identifiers: %+v", event)
		}
		if event.AmountTotal != 7250 || event.Currency != "EUR" {
			t.Errorf("unexpected amount: %d %s", event.AmountTotal, event.Currency)
		}
		if event.Shipping.Name != "Ana Silva" || event.Shipping.PostalCode != "4050-262" {
			t.Errorf("unexpected shipping: %+v", event.Shipping)
		}
	})

	t.Run("missing owner is rejected", func(t *testing.T) {
		_, err := DecodePaymentEvent([]byte(`{"id":"evt_2","type":"checkout.session.completed","data":{"object":{"amount_total":100}}}`))
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("other event types are rejected", func(t *testing.T) {
		_, err := DecodePaymentEvent([]byte(`{"id":"evt_3","type":"charge.refunded"}`))
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("malformed json is rejected", func(t *testing.T) {
		if _, err := DecodePaymentEvent([]byte(`{`)); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}
