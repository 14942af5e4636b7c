package domain

// StockRef адресует одну строку остатка: плоский счётчик товара
// (VariantID == NoVariant) или счётчик конкретного варианта.
type StockRef struct {
	ProductID string
	VariantID string
}

// StoreRepository описывает доступ к магазинам. Данные read-only для ядра:
// магазины создаёт и правит администрирование арендаторов.
type StoreRepository interface {
	// Get возвращает магазин по идентификатору или ErrStoreNotFound.
	Get(id string) (Store, error)
	// GetByHost возвращает активный магазин, за которым зарегистрирован
	// нормализованный хост, или ErrStoreNotFound.
	GetByHost(host string) (Store, error)
	// FirstActive возвращает самый ранний по времени создания активный
	// магазин (назначенный fallback) или ErrStoreNotFound.
	FirstActive() (Store, error)
}

// CatalogRepository описывает доступ к товарам, вариантам и размерам.
// Все чтения товаров ограничены магазином: чужой товар неотличим
// от несуществующего.
type CatalogRepository interface {
	// GetProduct возвращает товар магазина или ErrProductNotFound.
	GetProduct(storeID, productID string) (Product, error)
	// GetVariant возвращает вариант товара или ErrVariantNotFound,
	// в том числе когда вариант существует, но принадлежит другому товару.
	GetVariant(productID, variantID string) (Variant, error)
	// ListActiveVariants возвращает активные варианты товара.
	ListActiveVariants(productID string) ([]Variant, error)
	// ListSizes возвращает размеры по идентификаторам; отсутствующие
	// молча пропускаются.
	ListSizes(ids []string) ([]Size, error)
	// AdjustStock атомарно прибавляет delta к строке остатка при условии,
	// что результат неотрицателен; иначе ErrInsufficientStock без эффекта.
	// Плоский счётчик товара с вариантами не записывается никогда —
	// ErrFlatStockForbidden.
	AdjustStock(ref StockRef, delta int64) error
}

// CartRepository описывает хранилище корзин. Методы *Reserving/*Releasing
// выполняют проверку остатка и запись строки одним атомарным шагом:
// с точки зрения конкурентного писателя промежуточное состояние ненаблюдаемо.
type CartRepository interface {
	// GetOrCreate возвращает корзину владельца в магазине, лениво создавая её.
	GetOrCreate(storeID string, owner CartOwner) (Cart, error)
	// Get возвращает корзину магазина или ErrCartNotFound.
	Get(storeID, cartID string) (Cart, error)
	// ListLines возвращает строки корзины в порядке создания.
	ListLines(cartID string) ([]CartLine, error)
	// FindLine ищет строку по составному ключу; ErrCartLineNotFound, если её нет.
	FindLine(key LineKey) (CartLine, error)
	// GetLine возвращает строку корзины или ErrCartLineNotFound.
	GetLine(cartID, lineID string) (CartLine, error)
	// InsertLineReserving резервирует line.Quantity остатка и создаёт строку.
	// При нехватке — ErrInsufficientStock, строка не создаётся.
	InsertLineReserving(line CartLine) error
	// UpdateLineQuantityReserving корректирует остаток на разницу количеств
	// и перезаписывает количество строки. При нехватке — ErrInsufficientStock,
	// строка не меняется.
	UpdateLineQuantityReserving(line CartLine, newQty int64) (CartLine, error)
	// DeleteLineReleasing возвращает остаток строки и удаляет её.
	// Идемпотентна: отсутствие строки не ошибка.
	DeleteLineReleasing(cartID, lineID string) error
	// ClearCartReleasing возвращает остатки всех строк и удаляет их одним
	// шагом. Идемпотентна.
	ClearCartReleasing(cartID string) error
	// MergeCarts переносит строки source в dest, суммируя совпадающие ключи.
	// Остатки не трогаются: обе корзины уже удерживают свои резервы.
	MergeCarts(destCartID, sourceCartID string) error
}
