package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoTenantAvailable — нет ни одного активного магазина; это ошибка конфигурации, а не запроса.
	ErrNoTenantAvailable = errors.New("no active store available")
	// ErrStoreNotFound возвращается, если магазин не найден в репозитории.
	ErrStoreNotFound = errors.New("store not found")
	// ErrProductNotFound возвращается, если товар не найден в рамках магазина.
	ErrProductNotFound = errors.New("product not found")
	// ErrSizeNotFound возвращается, если размер не найден в справочнике.
	ErrSizeNotFound = errors.New("size not found")
	// ErrVariantRequired — товар с вариантами требует явного выбора варианта.
	ErrVariantRequired = errors.New("variant is required for a product with variants")
	// ErrVariantNotAllowed — товару без вариантов вариант передавать нельзя.
	ErrVariantNotAllowed = errors.New("variant is not allowed for a product without variants")
	// ErrVariantNotFound возвращается, если вариант не существует или не принадлежит товару.
	ErrVariantNotFound = errors.New("variant not found")
	// ErrVariantInactive — вариант отключён и невидим для цен, остатков и корзины.
	ErrVariantInactive = errors.New("variant is inactive")
	// ErrInvalidQuantity — количество должно быть положительным целым.
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
	// ErrInsufficientStock — бизнес-отказ: запрошено больше, чем доступно.
	// Конкретный доступный остаток несёт InsufficientStockError.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrCartNotFound возвращается, если корзина не найдена в рамках магазина.
	ErrCartNotFound = errors.New("cart not found")
	// ErrCartLineNotFound возвращается, если строка корзины не найдена.
	ErrCartLineNotFound = errors.New("cart line not found")
	// ErrCartOwnerInvalid — владелец корзины задан некорректно (нужен ровно один из buyer/session).
	ErrCartOwnerInvalid = errors.New("cart owner must be exactly one of buyer or session")
	// ErrFlatStockForbidden — плоский счётчик не является источником истины для товара с вариантами.
	ErrFlatStockForbidden = errors.New("flat stock is not writable for a product with variants")
	// ErrStockConflict — конфликт конкурентной записи по строке остатка; допускает ограниченный retry.
	ErrStockConflict = errors.New("stock write conflict")
	// ErrPricingClassInvalid — неизвестный ценовой класс покупателя.
	ErrPricingClassInvalid = errors.New("pricing class must be retail or wholesale")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// ErrIdempotencyKeyRequired — пустой idempotency-key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired — пустой request hash.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyNotFound — записи по ключу нет.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
	// ErrIdempotencyKeyAlreadyExists — ключ уже занят другим запросом в обработке.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch — тот же ключ пришёл с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with a different request")
)

// InsufficientStockError несёт доступный остаток, чтобы вызывающая сторона
// могла подсказать пользователю корректное количество вместо голого отказа.
type InsufficientStockError struct {
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: %d available", e.Available)
}

// Is делает errors.Is(err, ErrInsufficientStock) истинным для типизированной ошибки.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// AvailableFromError извлекает доступный остаток из ошибки InsufficientStock.
func AvailableFromError(err error) (int64, bool) {
	var short *InsufficientStockError
	if errors.As(err, &short) {
		return short.Available, true
	}
	return 0, false
}

// IsStockConflict проверяет, является ли ошибка конфликтом записи остатка.
func IsStockConflict(err error) bool {
	return errors.Is(err, ErrStockConflict)
}
