package domain

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestCart_ApplyLineChange(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("add merges into existing line", func(t *testing.T) {
		cart := &Cart{Lines: []CartLine{{ProductID: "W1", Quantity: 2}}}

		if err := cart.ApplyLineChange("W1", 3, ModeAdd, now); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(cart.Lines) != 1 {
			t.Fatalf("expected 1 line, got %d", len(cart.Lines))
		}
		if cart.Lines[0].Quantity != 5 {
			t.Errorf("expected quantity 5, got %d", cart.Lines[0].Quantity)
		}
	})

	t.Run("add appends new line", func(t *testing.T) {
		cart := &Cart{Lines: []CartLine{{ProductID: "W1", Quantity: 2}}}

		if err := cart.ApplyLineChange("W2", 1, ModeAdd, now); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(cart.Lines) != 2 {
			t.Fatalf("expected 2 lines, got %d", len(cart.Lines))
		}
		if cart.Lines[1].ProductID != "W2" || !cart.Lines[1].AddedAt.Equal(now) {
			t.Errorf("unexpected appended line: %+v", cart.Lines[1])
		}
	})

	t.Run("remove to zero deletes the line", func(t *testing.T) {
		cart := &Cart{Lines: []CartLine{{ProductID: "W1", Quantity: 5}}}

		if err := cart.ApplyLineChange("W1", 5, ModeRemove, now); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !cart.Empty() {
			t.Errorf("expected empty cart, got %+v", cart.Lines)
		}
	})

	t.Run("remove below zero deletes the line", func(t *testing.T) {
		cart := &Cart{Lines: []CartLine{{ProductID: "W1", Quantity: 1}, {ProductID: "W2", Quantity: 4}}}

		if err := cart.ApplyLineChange("W1", 3, ModeRemove, now); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(cart.Lines) != 1 || cart.Lines[0].ProductID != "W2" {
			t.Errorf("expected only W2 to remain, got %+v", cart.Lines)
		}
	})

	t.Run("remove of absent line is a no-op", func(t *testing.T) {
		cart := &Cart{Lines: []CartLine{{ProductID: "W1", Quantity: 1}}}

		if err := cart.ApplyLineChange("W9", 1, ModeRemove, now); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(cart.Lines) != 1 || cart.Lines[0].Quantity != 1 {
			t.Errorf("expected cart unchanged, got %+v", cart.Lines)
		}
	})

	t.Run("clear empties every line", func(t *testing.T) {
		cart := &Cart{Lines: []CartLine{{ProductID: "W1", Quantity: 1}, {ProductID: "W2", Quantity: 4}}}

		if err := cart.ApplyLineChange("", 0, ModeClear, now); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !cart.Empty() {
			t.Errorf("expected empty cart, got %+v", cart.Lines)
		}
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		cart := &Cart{}

		err := cart.ApplyLineChange("W1", 0, ModeAdd, now)
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("add rejects a merge past the line limit", func(t *testing.T) {
		cart := &Cart{}
		if err := cart.ApplyLineChange("W1", 2, ModeAdd, now); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		err := cart.ApplyLineChange("W1", MaxLineQuantity, ModeAdd, now)
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if cart.Lines[0].Quantity != 2 {
			t.Errorf("expected quantity 2 to be kept, got %d", cart.Lines[0].Quantity)
		}
	})

	t.Run("rejects quantities that would overflow", func(t *testing.T) {
		cart := &Cart{Lines: []CartLine{{ProductID: "W1", Quantity: 2}}}

		err := cart.ApplyLineChange("W1", math.MaxInt, ModeAdd, now)
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if cart.Lines[0].Quantity != 2 {
			t.Errorf("expected quantity 2 to be kept, got %d", cart.Lines[0].Quantity)
		}
	})

	t.Run("rejects unknown mode", func(t *testing.T) {
		cart := &Cart{}

		err := cart.ApplyLineChange("W1", 1, LineMode("swap"), now)
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestParseLineMode(t *testing.T) {
	for _, raw := range []string{"add", "remove", "clearCart", "clear"} {
		if _, err := ParseLineMode(raw); err != nil {
			t.Errorf("expected %q to parse, got %v", raw, err)
		}
	}

	if _, err := ParseLineMode("delete"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	if !OrderStatusPending.CanTransitionTo(OrderStatusFulfilled) {
		t.Error("expected pending -> fulfilled to be allowed")
	}
	if !OrderStatusPending.CanTransitionTo(OrderStatusFailed) {
		t.Error("expected pending -> failed to be allowed")
	}
	if OrderStatusFulfilled.CanTransitionTo(OrderStatusFailed) {
		t.Error("expected fulfilled -> failed to be rejected")
	}
	if OrderStatusFailed.CanTransitionTo(OrderStatusPending) {
		t.Error("expected failed -> pending to be rejected")
	}
}

func TestProductPatch_Apply(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	name := "Barolo 2019"
	stock := 0
	product := &Product{ProductID: "W1", Name: "Barolo", UnitPrice: 4500, StockQuantity: 3, InStock: true}

	ProductPatch{Name: &name, StockQuantity: &stock}.Apply(product, now)

	if product.Name != name {
		t.Errorf("expected name %q, got %q", name, product.Name)
	}
	if product.UnitPrice != 4500 {
		t.Errorf("expected price untouched, got %d", product.UnitPrice)
	}
	if product.InStock {
		t.Error("expected inStock to follow stock quantity")
	}
	if !product.UpdatedAt.Equal(now) {
		t.Errorf("expected updatedAt %v, got %v", now, product.UpdatedAt)
	}
}
