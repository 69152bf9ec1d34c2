package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Topics handled by the storefront.
const (
	TopicOrdersCreate          = "orders/create"
	TopicInventoryLevelsUpdate = "inventory_levels/update"
)

// Event is a verified webhook delivery.
type Event struct {
	Topic      string
	ShopDomain string
	WebhookID  string
	Payload    json.RawMessage
}

// HandlerFunc processes one event.
type HandlerFunc func(ctx context.Context, ev Event) error

// Dispatcher routes events to handlers by topic.
// Topics without a handler are acknowledged and ignored.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	logger   *slog.Logger
}

func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{handlers: make(map[string]HandlerFunc), logger: logger}
}

// Handle registers fn for topic, replacing any previous handler.
func (d *Dispatcher) Handle(topic string, fn HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[topic] = fn
}

// Dispatch runs the handler for ev.Topic. It reports whether one was registered.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) (bool, error) {
	d.mu.RLock()
	fn, ok := d.handlers[ev.Topic]
	d.mu.RUnlock()
	if !ok {
		d.logger.Debug("webhook topic ignored", "topic", ev.Topic)
		return false, nil
	}
	return true, fn(ctx, ev)
}

// NewDefaultDispatcher registers logging handlers for order creation and
// inventory updates. Neither has side effects beyond the log line. A
// payload that does not fit the topic's shape is returned as an error.
func NewDefaultDispatcher(logger *slog.Logger) *Dispatcher {
	d := NewDispatcher(logger)
	d.Handle(TopicOrdersCreate, func(ctx context.Context, ev Event) error {
		var order struct {
			ID       int64  `json:"id"`
			Name     string `json:"name"`
			Currency string `json:"currency"`
			Total    string `json:"total_price"`
		}
		if err := json.Unmarshal(ev.Payload, &order); err != nil {
			return fmt.Errorf("decode %s payload: %w", ev.Topic, err)
		}
		d.logger.Info("order created",
			"shop", ev.ShopDomain,
			"order_id", order.ID,
			"order_name", order.Name,
			"total", order.Total,
			"currency", order.Currency,
		)
		return nil
	})
	d.Handle(TopicInventoryLevelsUpdate, func(ctx context.Context, ev Event) error {
		var level struct {
			InventoryItemID int64 `json:"inventory_item_id"`
			LocationID      int64 `json:"location_id"`
			Available       *int  `json:"available"`
		}
		if err := json.Unmarshal(ev.Payload, &level); err != nil {
			return fmt.Errorf("decode %s payload: %w", ev.Topic, err)
		}
		attrs := []any{"shop", ev.ShopDomain, "inventory_item_id", level.InventoryItemID, "location_id", level.LocationID}
		if level.Available != nil {
			attrs = append(attrs, "available", *level.Available)
		}
		d.logger.Info("inventory level updated", attrs...)
		return nil
	})
	return d
}
