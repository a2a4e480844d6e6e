package domain

import (
	"fmt"
	"time"
)

// MaxLineQuantity bounds a single cart line and a single stock movement.
const MaxLineQuantity = 10000

type LineMode string

const (
	ModeAdd    LineMode = "add"
	ModeRemove LineMode = "remove"
	ModeClear  LineMode = "clearCart"
)

func ParseLineMode(s string) (LineMode, error) {
	switch s {
	case "add":
		return ModeAdd, nil
	case "remove":
		return ModeRemove, nil
	case "clearCart", "clear":
		return ModeClear, nil
	}
	return "", InvalidInput("invalid action %q", s)
}

func (m LineMode) Valid() bool {
	return m == ModeAdd || m == ModeRemove || m == ModeClear
}

type CartLine struct {
	ProductID string    `json:"productId" dynamodbav:"productId"`
	Quantity  int       `json:"quantity" dynamodbav:"quantity"`
	AddedAt   time.Time `json:"addedAt" dynamodbav:"addedAt"`
}

type Cart struct {
	OwnerID   string     `json:"ownerId"`
	CartID    string     `json:"cartId"`
	Lines     []CartLine `json:"lines"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	ExpiresAt int64      `json:"expiresAt"`
	// Version is zero for carts that were never persisted.
	Version int64 `json:"-"`
}

func (c *Cart) Persisted() bool {
	return c.Version > 0
}

func (c *Cart) Empty() bool {
	return len(c.Lines) == 0
}

func (c *Cart) Expired(now time.Time) bool {
	return c.ExpiresAt <= now.Unix()
}

// ApplyLineChange merges a single line change into the cart's line set.
// Lines never end up with a non-positive quantity.
func (c *Cart) ApplyLineChange(productID string, delta int, mode LineMode, now time.Time) error {
	if !mode.Valid() {
		return InvalidInput("invalid action %q", mode)
	}
	if mode == ModeClear {
		c.Lines = nil
		return nil
	}
	if productID == "" {
		return InvalidInput("productId is required for action %s", mode)
	}
	if delta <= 0 {
		return InvalidInput("quantity must be positive, got %d", delta)
	}
	if delta > MaxLineQuantity {
		return InvalidInput("quantity must be at most %d, got %d", MaxLineQuantity, delta)
	}

	idx := c.lineIndex(productID)
	switch mode {
	case ModeAdd:
		if idx < 0 {
			c.Lines = append(c.Lines, CartLine{ProductID: productID, Quantity: delta, AddedAt: now})
			return nil
		}
		if c.Lines[idx].Quantity > MaxLineQuantity-delta {
			return InvalidInput("quantity of %s would exceed %d", productID, MaxLineQuantity)
		}
		c.Lines[idx].Quantity += delta
	case ModeRemove:
		if idx < 0 {
			return nil
		}
		c.Lines[idx].Quantity -= delta
		if c.Lines[idx].Quantity <= 0 {
			c.Lines = append(c.Lines[:idx], c.Lines[idx+1:]...)
		}
	}
	return nil
}

func (c *Cart) lineIndex(productID string) int {
	for i, line := range c.Lines {
		if line.ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) TotalQuantity() int {
	total := 0
	for _, line := range c.Lines {
		total += line.Quantity
	}
	return total
}

type EnrichedLine struct {
	ProductID string    `json:"productId" dynamodbav:"productId"`
	Quantity  int       `json:"quantity" dynamodbav:"quantity"`
	AddedAt   time.Time `json:"addedAt" dynamodbav:"addedAt"`
	Name      string    `json:"name" dynamodbav:"name"`
	UnitPrice int64     `json:"unitPrice" dynamodbav:"unitPrice"`
	ImageRef  string    `json:"imageRef" dynamodbav:"imageRef"`
}

func (l EnrichedLine) Subtotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

func (l EnrichedLine) String() string {
	return fmt.Sprintf("%dx %s", l.Quantity, l.ProductID)
}

func LinesTotal(lines []EnrichedLine) int64 {
	var total int64
	for _, line := range lines {
		total += line.Subtotal()
	}
	return total
}
