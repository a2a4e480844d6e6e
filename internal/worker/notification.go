package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/cellarflow/internal/domain"
	"github.com/joao-fontenele/cellarflow/internal/email"
)

type NotificationHandler struct {
	emailServiceURL string
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewNotificationHandler(emailServiceURL string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: emailServiceURL,
		httpClient:      client,
		logger:          logger,
	}
}

// Handle sends the order confirmation for an order.created message.
func (h *NotificationHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderCreatedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return domain.InvalidInput("unmarshal order created event: %v", err)
	}

	if event.CustomerEmail == "" {
		h.logger.Info("order has no customer email, skipping confirmation", "order_id", event.OrderID)
		return nil
	}

	if err := h.sendEmail(ctx, confirmationEmail(event)); err != nil {
		h.logger.Error("failed to send confirmation email", "error", err, "order_id", event.OrderID)
		return err
	}

	h.logger.Info("order confirmation sent", "order_id", event.OrderID)
	return nil
}

// FormatAmount renders minor currency units as a fixed two-decimal amount.
func FormatAmount(minor int64, currency string) string {
	return decimal.New(minor, -2).StringFixed(2) + " " + currency
}

func confirmationEmail(event domain.OrderCreatedEvent) email.SendRequest {
	var b strings.Builder
	fmt.Fprintf(&b, "Thank you for your order %s.\n\n", event.OrderID)
	for _, line := range event.Lines {
		fmt.Fprintf(&b, "%d x %s @ %s = %s\n", line.Quantity, line.Name,
			FormatAmount(line.UnitPrice, event.Currency), FormatAmount(line.Subtotal(), event.Currency))
	}
	fmt.Fprintf(&b, "\nTotal paid: %s\n", FormatAmount(event.TotalAmount, event.Currency))

	ship := event.Shipping
	if ship.Name != "" {
		fmt.Fprintf(&b, "\nShipping to:\n%s\n%s\n", ship.Name, ship.Line1)
		if ship.Line2 != "" {
			fmt.Fprintf(&b, "%s\n", ship.Line2)
		}
		fmt.Fprintf(&b, "%s %s\n%s\n", ship.PostalCode, ship.City, ship.Country)
	}

	return email.SendRequest{
		To:      event.CustomerEmail,
		Subject: "Order Confirmation: " + event.OrderID,
		Body:    b.String(),
	}
}

func (h *NotificationHandler) sendEmail(ctx context.Context, msg email.SendRequest) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: email service: %w", domain.ErrTransient, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: email service returned status %d", domain.ErrTransient, resp.StatusCode)
	default:
		return fmt.Errorf("email service rejected message with status %d", resp.StatusCode)
	}
}
