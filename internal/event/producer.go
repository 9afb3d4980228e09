// Package event publishes storefront activity to Kafka.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Pinash124/bike-hub-sub000/internal/domain"
	pkgkafka "github.com/Pinash124/bike-hub-sub000/pkg/kafka"
	"github.com/Pinash124/bike-hub-sub000/pkg/logger"
)

// Event types.
const (
	TypeCartUpdated    = "cart.updated"
	TypeCartCleared    = "cart.cleared"
	TypeCartCheckedOut = "cart.checked_out"
	TypeLoggedIn       = "session.logged_in"
	TypeLoggedOut      = "session.logged_out"
)

// Aggregate types.
const (
	AggregateTypeCart    = "cart"
	AggregateTypeSession = "session"
)

// SourceStorefront identifies events originating from the storefront.
const SourceStorefront = "storefront"

// Topics.
var (
	TopicCartUpdated    = pkgkafka.Topic("cart", "updated")
	TopicCartCleared    = pkgkafka.Topic("cart", "cleared")
	TopicCartCheckedOut = pkgkafka.Topic("cart", "checked_out")
	TopicLoggedIn       = pkgkafka.Topic("session", "logged_in")
	TopicLoggedOut      = pkgkafka.Topic("session", "logged_out")
)

// CartUpdatedData is the payload for a cart.updated event.
type CartUpdatedData struct {
	OwnerID    string         `json:"owner_id"`
	Items      []CartItemData `json:"items"`
	ItemCount  int            `json:"item_count"`
	TotalPrice int64          `json:"total_price"`
}

// CartItemData is the item payload within cart events.
type CartItemData struct {
	ProductID string `json:"product_id"`
	SellerID  string `json:"seller_id,omitempty"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
}

// CartClearedData is the payload for a cart.cleared event.
type CartClearedData struct {
	OwnerID string `json:"owner_id"`
}

// CartCheckedOutData is the payload for a cart.checked_out event.
type CartCheckedOutData struct {
	OwnerID    string         `json:"owner_id"`
	Items      []CartItemData `json:"items"`
	Count      int            `json:"count"`
	TotalPrice int64          `json:"total_price"`
}

// SessionData is the payload for session events.
type SessionData struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
}

// Publisher sends an event to a topic. *pkgkafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes storefront events. A Producer without a Publisher drops
// every event, which is how the storefront runs without brokers.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer. kafka may be nil.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// Enabled reports whether events leave the process.
func (p *Producer) Enabled() bool {
	return p != nil && p.kafka != nil
}

func (p *Producer) publish(ctx context.Context, topic, eventType, aggregateID, aggregateType string, data any) error {
	if !p.Enabled() {
		return nil
	}

	ev, err := pkgkafka.NewEvent(eventType, aggregateID, aggregateType, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		ev.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, ev); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("event_type", eventType),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}

func itemData(items domain.Items) []CartItemData {
	out := make([]CartItemData, len(items))
	for i, item := range items {
		out[i] = CartItemData{
			ProductID: item.ProductID,
			SellerID:  item.SellerID,
			Price:     item.Price,
			Quantity:  item.Quantity,
		}
	}
	return out
}

// PublishCartUpdated publishes a cart.updated event.
func (p *Producer) PublishCartUpdated(ctx context.Context, ownerID string, items domain.Items) error {
	return p.publish(ctx, TopicCartUpdated, TypeCartUpdated, ownerID, AggregateTypeCart, CartUpdatedData{
		OwnerID:    ownerID,
		Items:      itemData(items),
		ItemCount:  items.TotalItems(),
		TotalPrice: items.TotalPrice(),
	})
}

// PublishCartCleared publishes a cart.cleared event.
func (p *Producer) PublishCartCleared(ctx context.Context, ownerID string) error {
	return p.publish(ctx, TopicCartCleared, TypeCartCleared, ownerID, AggregateTypeCart, CartClearedData{
		OwnerID: ownerID,
	})
}

// PublishCartCheckedOut publishes a cart.checked_out event.
func (p *Producer) PublishCartCheckedOut(ctx context.Context, ownerID string, receipt domain.Receipt) error {
	return p.publish(ctx, TopicCartCheckedOut, TypeCartCheckedOut, ownerID, AggregateTypeCart, CartCheckedOutData{
		OwnerID:    ownerID,
		Items:      itemData(receipt.Items),
		Count:      receipt.Count,
		TotalPrice: receipt.TotalPrice,
	})
}

// PublishLoggedIn publishes a session.logged_in event.
func (p *Producer) PublishLoggedIn(ctx context.Context, u *domain.User) error {
	return p.publish(ctx, TopicLoggedIn, TypeLoggedIn, u.ID, AggregateTypeSession, SessionData{
		UserID: u.ID,
		Role:   string(domain.RoleOf(u)),
	})
}

// PublishLoggedOut publishes a session.logged_out event.
func (p *Producer) PublishLoggedOut(ctx context.Context, userID string) error {
	return p.publish(ctx, TopicLoggedOut, TypeLoggedOut, userID, AggregateTypeSession, SessionData{
		UserID: userID,
	})
}
