package cart

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/cellarflow/internal/domain"
	"github.com/joao-fontenele/cellarflow/internal/telemetry"
)

const MsgCartDeleted = "Cart deleted successfully"

var storeMeter = otel.Meter("cart/store")

// Repository persists carts. Implementations keep at most one live cart per
// owner and reject stale writes with domain.ErrConflict.
type Repository interface {
	// FindByOwner returns the owner's unexpired cart, or nil when there is none.
	FindByOwner(ctx context.Context, ownerID string, now time.Time) (*domain.Cart, error)
	// Save creates the cart if it was never persisted and otherwise replaces
	// it when the stored version still matches. It advances cart.Version.
	Save(ctx context.Context, cart *domain.Cart, now time.Time) error
	Delete(ctx context.Context, cart *domain.Cart) error
}

type Store struct {
	repo      Repository
	ttl       time.Duration
	now       func() time.Time
	logger    *slog.Logger
	mutations metric.Int64Counter
}

func NewStore(repo Repository, ttl time.Duration, logger *slog.Logger) *Store {
	return &Store{
		repo:      repo,
		ttl:       ttl,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
		mutations: telemetry.Counter(storeMeter, "cart.mutations", "Cart line changes by action"),
	}
}

// GetOrCreate returns the owner's cart. A missing cart is returned as a new,
// unsaved cart; it is persisted by the first line change.
func (s *Store) GetOrCreate(ctx context.Context, ownerID string) (*domain.Cart, error) {
	now := s.now()
	cart, err := s.repo.FindByOwner(ctx, ownerID, now)
	if err != nil {
		return nil, fmt.Errorf("find cart for %s: %w", ownerID, err)
	}
	if cart != nil {
		return cart, nil
	}

	return &domain.Cart{
		OwnerID:   ownerID,
		CartID:    uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.ttl).Unix(),
	}, nil
}

func (s *Store) Get(ctx context.Context, ownerID string) (*domain.Cart, error) {
	cart, err := s.repo.FindByOwner(ctx, ownerID, s.now())
	if err != nil {
		return nil, fmt.Errorf("find cart for %s: %w", ownerID, err)
	}
	if cart == nil {
		return nil, domain.NotFound("cart for owner %s", ownerID)
	}
	return cart, nil
}

type Outcome struct {
	Cart    *domain.Cart
	Deleted bool
	Message string
}

// ApplyLineChange applies one change and writes the result back. A cart
// left without lines is deleted instead of stored.
func (s *Store) ApplyLineChange(ctx context.Context, cart *domain.Cart, productID string, delta int, mode domain.LineMode) (Outcome, error) {
	if !mode.Valid() {
		return Outcome{}, domain.InvalidInput("invalid action %q", mode)
	}

	now := s.now()
	if err := cart.ApplyLineChange(productID, delta, mode, now); err != nil {
		return Outcome{}, err
	}
	s.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("action", string(mode))))

	if cart.Empty() {
		if err := s.Delete(ctx, cart); err != nil {
			return Outcome{}, err
		}
		return Outcome{Cart: cart, Deleted: true, Message: MsgCartDeleted}, nil
	}

	cart.UpdatedAt = now
	cart.ExpiresAt = now.Add(s.ttl).Unix()
	if err := s.repo.Save(ctx, cart, now); err != nil {
		return Outcome{}, fmt.Errorf("save cart %s: %w", cart.CartID, err)
	}

	return Outcome{
		Cart:    cart,
		Message: fmt.Sprintf("Cart updated successfully with %d items and action %s", delta, mode),
	}, nil
}

// Delete removes the cart. Carts that were never saved, or are already
// gone, are not an error.
func (s *Store) Delete(ctx context.Context, cart *domain.Cart) error {
	if !cart.Persisted() {
		return nil
	}
	if err := s.repo.Delete(ctx, cart); err != nil {
		return fmt.Errorf("delete cart %s: %w", cart.CartID, err)
	}
	s.logger.Info("cart deleted", "owner_id", cart.OwnerID, "cart_id", cart.CartID)
	return nil
}

func (s *Store) DeleteByOwner(ctx context.Context, ownerID string) error {
	cart, err := s.repo.FindByOwner(ctx, ownerID, s.now())
	if err != nil {
		return fmt.Errorf("find cart for %s: %w", ownerID, err)
	}
	if cart == nil {
		return nil
	}
	return s.Delete(ctx, cart)
}

type Mutation struct {
	OwnerID   string `json:"ownerId" validate:"required"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity" validate:"gte=0,max=10000"`
	Action    string `json:"action" validate:"required"`
}

// Mutate applies a batch of changes in order and returns one message per
// change. Every action is checked before the first store access, so an
// invalid action rejects the whole batch.
func (s *Store) Mutate(ctx context.Context, mutations []Mutation) ([]string, error) {
	modes := make([]domain.LineMode, len(mutations))
	for i, m := range mutations {
		mode, err := domain.ParseLineMode(m.Action)
		if err != nil {
			return nil, err
		}
		if mode != domain.ModeClear && (m.ProductID == "" || m.Quantity <= 0) {
			return nil, domain.InvalidInput("productId and a positive quantity are required for action %s", mode)
		}
		if m.Quantity > domain.MaxLineQuantity {
			return nil, domain.InvalidInput("quantity must be at most %d, got %d", domain.MaxLineQuantity, m.Quantity)
		}
		modes[i] = mode
	}

	messages := make([]string, 0, len(mutations))
	for i, m := range mutations {
		cart, err := s.GetOrCreate(ctx, m.OwnerID)
		if err != nil {
			return messages, err
		}

		outcome, err := s.ApplyLineChange(ctx, cart, m.ProductID, m.Quantity, modes[i])
		if err != nil {
			return messages, err
		}

		s.logger.Info("cart mutated", "owner_id", m.OwnerID, "action", modes[i], "product_id", m.ProductID, "deleted", outcome.Deleted)
		messages = append(messages, outcome.Message)
	}

	return messages, nil
}
