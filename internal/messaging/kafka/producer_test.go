package kafka

import (
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
)

func TestProducer_PublishEvent(t *testing.T) {
	// Создаем mock producer
	mockProducer := mocks.NewSyncProducer(t, nil)

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}

	// Настраиваем ожидания
	mockProducer.ExpectSendMessageAndSucceed()

	event := NewCartEvent(
		EventTypeCartLineAdded,
		"store-1",
		"cart-123",
		"product-1",
		"variant-1",
		2,
	)

	// Публикуем событие
	err := producer.PublishEvent(TopicCartEvents, "cart-123", event)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Проверяем, что все ожидания выполнены
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_Error(t *testing.T) {
	// Создаем mock producer с ошибкой
	mockProducer := mocks.NewSyncProducer(t, nil)

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}

	// Настраиваем ожидание ошибки
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	event := NewCartEvent(
		EventTypeCartLineAdded,
		"store-1",
		"cart-123",
		"product-1",
		"",
		1,
	)

	// Публикуем событие
	err := producer.PublishEvent(TopicCartEvents, "cart-123", event)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNewCartEvent(t *testing.T) {
	event := NewCartEvent(EventTypeCartLineAdded, "store-1", "cart-123", "product-1", "variant-1", 3)

	if event.EventType != EventTypeCartLineAdded {
		t.Errorf("expected event type %s, got %s", EventTypeCartLineAdded, event.EventType)
	}
	if event.StoreID != "store-1" || event.CartID != "cart-123" {
		t.Errorf("identifiers not set correctly: %+v", event)
	}
	if event.ProductID != "product-1" || event.VariantID != "variant-1" || event.Quantity != 3 {
		t.Errorf("line fields not set correctly: %+v", event)
	}

	// Проверяем, что timestamp установлен
	if event.Timestamp.IsZero() {
		t.Error("timestamp should not be zero")
	}

	// Проверяем, что timestamp близок к текущему времени
	if time.Since(event.Timestamp) > time.Second {
		t.Error("timestamp should be close to current time")
	}
}

func TestNewStockEvent(t *testing.T) {
	event := NewStockEvent(EventTypeStockReserved, "store-1", "product-1", "variant-1", -2)

	if event.EventType != EventTypeStockReserved {
		t.Errorf("expected event type %s, got %s", EventTypeStockReserved, event.EventType)
	}
	if event.ProductID != "product-1" || event.VariantID != "variant-1" {
		t.Errorf("identifiers not set correctly: %+v", event)
	}
	if event.Delta != -2 {
		t.Errorf("expected delta -2, got %d", event.Delta)
	}
	if event.Timestamp.IsZero() {
		t.Error("timestamp should not be zero")
	}
}
