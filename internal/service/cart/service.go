package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vendaro/commerce-engine/internal/domain"
	"github.com/vendaro/commerce-engine/internal/messaging/kafka"
	"github.com/vendaro/commerce-engine/internal/metrics"
	"github.com/vendaro/commerce-engine/internal/service/stock"
)

const (
	// maxConflictAttempts — прозрачные повторы при конфликте записи остатка.
	maxConflictAttempts = 3
	conflictRetryDelay  = 25 * time.Millisecond
)

// AddItemInput — параметры добавления позиции в корзину.
type AddItemInput struct {
	ProductID string
	VariantID string
	Quantity  int64
	Class     domain.PricingClass
}

// Service — операции над корзиной одного магазина. Все мутации атомарны:
// отказ по любой причине не оставляет частичных изменений ни в корзине,
// ни в остатках.
type Service interface {
	// Render возвращает текущее содержимое корзины владельца.
	Render(store domain.Store, owner domain.CartOwner) (View, error)
	// AddItem добавляет позицию, резервируя остаток; цена за единицу
	// фиксируется в момент записи. Изменённая строка отмечается
	// в View.AffectedLineID.
	AddItem(store domain.Store, owner domain.CartOwner, in AddItemInput) (View, error)
	// UpdateItemQuantity перезаписывает количество строки; неположительное
	// количество эквивалентно удалению. Изменённая строка отмечается
	// в View.AffectedLineID.
	UpdateItemQuantity(store domain.Store, owner domain.CartOwner, lineID string, qty int64) (View, error)
	// RemoveItem удаляет строку, возвращая её резерв. Идемпотентна.
	RemoveItem(store domain.Store, owner domain.CartOwner, lineID string) (View, error)
	// Clear опустошает корзину одним шагом. Идемпотентна.
	Clear(store domain.Store, owner domain.CartOwner) (View, error)
	// Merge переносит анонимную корзину сессии в корзину покупателя.
	Merge(store domain.Store, sessionKey, buyerID string) (View, error)
}

type service struct {
	carts   domain.CartRepository
	catalog domain.CatalogRepository
	ledger  stock.Ledger
	outbox  domain.OutboxRepository // nil = события не публикуются
	logger  *log.Entry
	metrics *metrics.CartMetrics
}

// NewService создаёт рабочий экземпляр сервиса корзин.
func NewService(
	carts domain.CartRepository,
	catalog domain.CatalogRepository,
	ledger stock.Ledger,
	outbox domain.OutboxRepository,
	logger *log.Entry,
) Service {
	if logger == nil {
		logger = log.New().WithField("component", "cart")
	}
	return &service{
		carts:   carts,
		catalog: catalog,
		ledger:  ledger,
		outbox:  outbox,
		logger:  logger,
		metrics: metrics.NewCartMetrics(),
	}
}

// NewServiceWithoutMetrics создаёт сервис без метрик (для тестов).
func NewServiceWithoutMetrics(
	carts domain.CartRepository,
	catalog domain.CatalogRepository,
	ledger stock.Ledger,
	outbox domain.OutboxRepository,
	logger *log.Entry,
) Service {
	if logger == nil {
		logger = log.New().WithField("component", "cart")
	}
	return &service{
		carts:   carts,
		catalog: catalog,
		ledger:  ledger,
		outbox:  outbox,
		logger:  logger,
	}
}

func (s *service) Render(store domain.Store, owner domain.CartOwner) (View, error) {
	cart, err := s.carts.GetOrCreate(store.ID, owner)
	if err != nil {
		return View{}, err
	}
	return s.render(store, cart)
}

func (s *service) AddItem(store domain.Store, owner domain.CartOwner, in AddItemInput) (View, error) {
	started := time.Now()
	view, err := s.addItem(store, owner, in)
	s.observe("add_item", started, err)
	return view, err
}

func (s *service) addItem(store domain.Store, owner domain.CartOwner, in AddItemInput) (View, error) {
	if in.Quantity <= 0 {
		return View{}, domain.ErrInvalidQuantity
	}
	class := in.Class
	if class == "" {
		class = domain.PricingClassRetail
	}
	if !class.Valid() {
		return View{}, domain.ErrPricingClassInvalid
	}

	cart, err := s.carts.GetOrCreate(store.ID, owner)
	if err != nil {
		return View{}, err
	}

	product, variant, err := s.resolveTarget(store.ID, in.ProductID, in.VariantID)
	if err != nil {
		return View{}, err
	}

	line := domain.CartLine{
		CartID:         cart.ID,
		ProductID:      product.ID,
		VariantID:      in.VariantID,
		Quantity:       in.Quantity,
		UnitPriceMinor: domain.PriceFor(store, product, variant, class),
		Class:          class,
	}

	err = s.withConflictRetry("add_item", func() error {
		return s.carts.InsertLineReserving(line)
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			// Отказ несёт доступное количество: для вставки это сырой остаток.
			return View{}, s.insufficient(product, in.VariantID, 0)
		}
		return View{}, err
	}

	s.emitCartEvent(kafka.EventTypeCartLineAdded, store.ID, cart.ID, product.ID, in.VariantID, in.Quantity)
	s.emitStockEvent(kafka.EventTypeStockReserved, store.ID, product.ID, in.VariantID, -in.Quantity)

	view, err := s.render(store, cart)
	if err != nil {
		return View{}, err
	}
	// Совпавший ключ складывается в существующую строку, поэтому затронутую
	// строку ищем по ключу, а не по идентификатору вставки.
	if affected, ferr := s.carts.FindLine(line.Key()); ferr == nil {
		view.AffectedLineID = affected.ID
	}
	return view, nil
}

func (s *service) UpdateItemQuantity(store domain.Store, owner domain.CartOwner, lineID string, qty int64) (View, error) {
	started := time.Now()
	view, err := s.updateItemQuantity(store, owner, lineID, qty)
	s.observe("update_item", started, err)
	return view, err
}

func (s *service) updateItemQuantity(store domain.Store, owner domain.CartOwner, lineID string, qty int64) (View, error) {
	// Обнуление — это удаление: строка с нулевым количеством не существует.
	if qty <= 0 {
		return s.removeItem(store, owner, lineID)
	}

	cart, err := s.carts.GetOrCreate(store.ID, owner)
	if err != nil {
		return View{}, err
	}
	line, err := s.carts.GetLine(cart.ID, lineID)
	if err != nil {
		return View{}, err
	}

	err = s.withConflictRetry("update_item", func() error {
		_, uerr := s.carts.UpdateLineQuantityReserving(line, qty)
		return uerr
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			// Для перезаписи доступное — это остаток плюс уже удержанный резерв строки.
			product, perr := s.catalog.GetProduct(store.ID, line.ProductID)
			if perr != nil {
				return View{}, &domain.InsufficientStockError{Available: line.Quantity}
			}
			return View{}, s.insufficient(product, line.VariantID, line.Quantity)
		}
		return View{}, err
	}

	delta := qty - line.Quantity
	s.emitCartEvent(kafka.EventTypeCartLineUpdated, store.ID, cart.ID, line.ProductID, line.VariantID, qty)
	if delta > 0 {
		s.emitStockEvent(kafka.EventTypeStockReserved, store.ID, line.ProductID, line.VariantID, -delta)
	} else if delta < 0 {
		s.emitStockEvent(kafka.EventTypeStockReleased, store.ID, line.ProductID, line.VariantID, -delta)
	}

	view, err := s.render(store, cart)
	if err != nil {
		return View{}, err
	}
	view.AffectedLineID = line.ID
	return view, nil
}

func (s *service) RemoveItem(store domain.Store, owner domain.CartOwner, lineID string) (View, error) {
	started := time.Now()
	view, err := s.removeItem(store, owner, lineID)
	s.observe("remove_item", started, err)
	return view, err
}

func (s *service) removeItem(store domain.Store, owner domain.CartOwner, lineID string) (View, error) {
	cart, err := s.carts.GetOrCreate(store.ID, owner)
	if err != nil {
		return View{}, err
	}

	line, err := s.carts.GetLine(cart.ID, lineID)
	if err != nil {
		if errors.Is(err, domain.ErrCartLineNotFound) {
			// Повторное удаление — не ошибка.
			return s.render(store, cart)
		}
		return View{}, err
	}

	err = s.withConflictRetry("remove_item", func() error {
		return s.carts.DeleteLineReleasing(cart.ID, lineID)
	})
	if err != nil {
		return View{}, err
	}

	s.emitCartEvent(kafka.EventTypeCartLineRemoved, store.ID, cart.ID, line.ProductID, line.VariantID, line.Quantity)
	s.emitStockEvent(kafka.EventTypeStockReleased, store.ID, line.ProductID, line.VariantID, line.Quantity)
	return s.render(store, cart)
}

func (s *service) Clear(store domain.Store, owner domain.CartOwner) (View, error) {
	started := time.Now()
	view, err := s.clear(store, owner)
	s.observe("clear", started, err)
	return view, err
}

func (s *service) clear(store domain.Store, owner domain.CartOwner) (View, error) {
	cart, err := s.carts.GetOrCreate(store.ID, owner)
	if err != nil {
		return View{}, err
	}

	lines, err := s.carts.ListLines(cart.ID)
	if err != nil {
		return View{}, err
	}

	err = s.withConflictRetry("clear", func() error {
		return s.carts.ClearCartReleasing(cart.ID)
	})
	if err != nil {
		return View{}, err
	}

	for _, line := range lines {
		s.emitStockEvent(kafka.EventTypeStockReleased, store.ID, line.ProductID, line.VariantID, line.Quantity)
	}
	s.emitCartEvent(kafka.EventTypeCartCleared, store.ID, cart.ID, "", "", 0)
	return s.render(store, cart)
}

func (s *service) Merge(store domain.Store, sessionKey, buyerID string) (View, error) {
	started := time.Now()
	view, err := s.merge(store, sessionKey, buyerID)
	s.observe("merge", started, err)
	return view, err
}

func (s *service) merge(store domain.Store, sessionKey, buyerID string) (View, error) {
	source, err := s.carts.GetOrCreate(store.ID, domain.CartOwner{SessionKey: sessionKey})
	if err != nil {
		return View{}, err
	}
	dest, err := s.carts.GetOrCreate(store.ID, domain.CartOwner{BuyerID: buyerID})
	if err != nil {
		return View{}, err
	}

	// Резервы обеих корзин уже удержаны, остатки слияние не трогает.
	if err := s.carts.MergeCarts(dest.ID, source.ID); err != nil {
		return View{}, err
	}

	s.emitCartEvent(kafka.EventTypeCartMerged, store.ID, dest.ID, "", "", 0)
	return s.render(store, dest)
}

// resolveTarget проходит лестницу проверок товара и варианта.
func (s *service) resolveTarget(storeID, productID, variantID string) (domain.Product, *domain.Variant, error) {
	product, err := s.catalog.GetProduct(storeID, productID)
	if err != nil {
		return domain.Product{}, nil, err
	}
	// Скрытый товар неотличим от несуществующего.
	if !product.Available {
		return domain.Product{}, nil, domain.ErrProductNotFound
	}

	if product.HasVariants && variantID == domain.NoVariant {
		return domain.Product{}, nil, domain.ErrVariantRequired
	}
	if !product.HasVariants && variantID != domain.NoVariant {
		return domain.Product{}, nil, domain.ErrVariantNotAllowed
	}
	if variantID == domain.NoVariant {
		return product, nil, nil
	}

	variant, err := s.catalog.GetVariant(product.ID, variantID)
	if err != nil {
		return domain.Product{}, nil, err
	}
	if !variant.Active {
		return domain.Product{}, nil, domain.ErrVariantInactive
	}
	return product, &variant, nil
}

// insufficient строит отказ с доступным количеством: сырой остаток плюс
// уже удержанный вызывающей строкой резерв (0 для вставки).
func (s *service) insufficient(product domain.Product, variantID string, held int64) error {
	var available int64
	var err error
	if variantID != domain.NoVariant {
		available, err = s.ledger.AvailableStockVariant(product, variantID)
	} else {
		available, err = s.freshFlatStock(product)
	}
	if err != nil {
		available = 0
	}
	if s.metrics != nil {
		s.metrics.RecordRejection("insufficient_stock")
	}
	return &domain.InsufficientStockError{Available: available + held}
}

func (s *service) freshFlatStock(product domain.Product) (int64, error) {
	fresh, err := s.catalog.GetProduct(product.StoreID, product.ID)
	if err != nil {
		return 0, err
	}
	return fresh.StockSource().Flat, nil
}

// withConflictRetry повторяет операцию при конфликте записи остатка.
// Любая другая ошибка возвращается сразу.
func (s *service) withConflictRetry(operation string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxConflictAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !domain.IsStockConflict(err) {
			return err
		}

		lastErr = err
		if s.metrics != nil {
			s.metrics.RecordStockConflict()
		}
		if attempt < maxConflictAttempts {
			if s.metrics != nil {
				s.metrics.RecordStockRetry()
			}
			s.logger.WithFields(log.Fields{
				"operation": operation,
				"attempt":   attempt,
			}).Warn("stock write conflict, retrying")
			time.Sleep(conflictRetryDelay)
		}
	}
	return fmt.Errorf("%s: %w", operation, lastErr)
}

func (s *service) observe(operation string, started time.Time, err error) {
	if s.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.metrics.RecordOperation(operation, result)
	s.metrics.RecordOperationDuration(operation, time.Since(started))
}

func (s *service) emitCartEvent(eventType kafka.EventType, storeID, cartID, productID, variantID string, qty int64) {
	if s.outbox == nil {
		return
	}
	event := kafka.NewCartEvent(eventType, storeID, cartID, productID, variantID, qty)
	s.enqueue(kafka.AggregateTypeCart, cartID, string(eventType), event)
}

func (s *service) emitStockEvent(eventType kafka.EventType, storeID, productID, variantID string, delta int64) {
	if s.outbox == nil {
		return
	}
	event := kafka.NewStockEvent(eventType, storeID, productID, variantID, delta)
	s.enqueue(kafka.AggregateTypeStock, productID, string(eventType), event)
}

func (s *service) enqueue(aggregateType, aggregateID, eventType string, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.WithField("event_type", eventType).WithError(err).Error("marshal event payload")
		return
	}
	_, err = s.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       body,
	})
	if err != nil {
		// Публикация событий не должна ронять мутацию корзины.
		s.logger.WithField("event_type", eventType).WithError(err).Error("enqueue outbox event")
		return
	}
	if s.metrics != nil {
		s.metrics.RecordOutboxEvent()
	}
}

var _ Service = (*service)(nil)
