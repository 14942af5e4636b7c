package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// Cart события
	EventTypeCartLineAdded   EventType = "cart.line_added"
	EventTypeCartLineUpdated EventType = "cart.line_updated"
	EventTypeCartLineRemoved EventType = "cart.line_removed"
	EventTypeCartCleared     EventType = "cart.cleared"
	EventTypeCartMerged      EventType = "cart.merged"

	// Stock события
	EventTypeStockReserved EventType = "stock.reserved"
	EventTypeStockReleased EventType = "stock.released"
)

// Типы агрегатов в outbox-сообщениях
const (
	AggregateTypeCart  = "cart"
	AggregateTypeStock = "stock"
)

// Topics для Kafka
const (
	TopicCartEvents      = "vendaro.cart.events"
	TopicStockEvents     = "vendaro.stock.events"
	TopicDeadLetterQueue = "vendaro.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// CartEvent представляет событие жизненного цикла корзины
type CartEvent struct {
	EventType EventType `json:"event_type"`
	StoreID   string    `json:"store_id"`
	CartID    string    `json:"cart_id"`
	ProductID string    `json:"product_id,omitempty"`
	VariantID string    `json:"variant_id,omitempty"`
	Quantity  int64     `json:"quantity,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StockEvent представляет движение остатка
type StockEvent struct {
	EventType EventType `json:"event_type"`
	StoreID   string    `json:"store_id"`
	ProductID string    `json:"product_id"`
	VariantID string    `json:"variant_id,omitempty"`
	Delta     int64     `json:"delta"`
	Timestamp time.Time `json:"timestamp"`
}

// NewCartEvent создает новое событие корзины
func NewCartEvent(eventType EventType, storeID, cartID, productID, variantID string, quantity int64) *CartEvent {
	return &CartEvent{
		EventType: eventType,
		StoreID:   storeID,
		CartID:    cartID,
		ProductID: productID,
		VariantID: variantID,
		Quantity:  quantity,
		Timestamp: time.Now(),
	}
}

// NewStockEvent создает новое событие остатка
func NewStockEvent(eventType EventType, storeID, productID, variantID string, delta int64) *StockEvent {
	return &StockEvent{
		EventType: eventType,
		StoreID:   storeID,
		ProductID: productID,
		VariantID: variantID,
		Delta:     delta,
		Timestamp: time.Now(),
	}
}
