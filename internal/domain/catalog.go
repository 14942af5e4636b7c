package domain

import "time"

// Product — товар каталога. Принадлежит ровно одному магазину.
// Опциональные цены хранятся как 0 = "не задана": валидная цена всегда >= 1
// минорной единицы.
type Product struct {
	ID      string
	StoreID string
	Name    string
	// RetailMinor — базовая розничная цена в минорных единицах валюты магазина.
	RetailMinor int64
	// WholesaleMinor — явная оптовая цена; 0 = не задана.
	WholesaleMinor int64
	// DiscountMinor — акционная цена; 0 = не задана.
	DiscountMinor int64
	// CompareAtMinor — зачёркнутая «старая» цена для витрины; 0 = не задана.
	CompareAtMinor int64
	// Stock — плоский счётчик остатка. Источник истины только при
	// HasVariants == false; см. StockSource.
	Stock int64
	// HasVariants — остаток и закупаемость определяются вариантами,
	// плоский счётчик при этом не авторитетен и не записывается.
	HasVariants bool
	// Available — товар виден покупателям и допускается в корзину.
	Available bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Size — независимое от магазинов справочное значение размера.
type Size struct {
	ID string
	// Type — группа размеров: clothing, footwear, range и т.п.
	Type string
	// Value — отображаемое значение ("M", "42", "40-41").
	Value string
	// SortOrder — ключ сортировки для витрины, по возрастанию.
	SortOrder int64
}

// Variant — закупаемый размер товара со своим остатком и необязательными
// переопределениями цен. Пара (ProductID, SizeID) уникальна.
type Variant struct {
	ID        string
	ProductID string
	SizeID    string
	Stock     int64
	// RetailOverrideMinor — розничная цена именно этого варианта; 0 = наследует товар.
	RetailOverrideMinor int64
	// WholesaleOverrideMinor — оптовая цена именно этого варианта; 0 = наследует товар.
	WholesaleOverrideMinor int64
	// Active — неактивный вариант невидим для цен, остатков и корзины,
	// даже если исторически на него ссылаются строки корзин.
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StockSourceKind различает два взаимоисключающих источника истины об остатке.
type StockSourceKind int

const (
	// StockSourceFlat — авторитетен плоский счётчик товара.
	StockSourceFlat StockSourceKind = iota
	// StockSourceDerived — остаток выводится суммой по активным вариантам.
	StockSourceDerived
)

// StockSource — теговое представление источника остатка, чтобы вызывающая
// сторона не могла случайно прочитать или записать не тот счётчик.
type StockSource struct {
	Kind StockSourceKind
	// Flat заполнен только для StockSourceFlat.
	Flat int64
}

// StockSource возвращает источник истины об остатке товара.
func (p *Product) StockSource() StockSource {
	if p.HasVariants {
		return StockSource{Kind: StockSourceDerived}
	}
	return StockSource{Kind: StockSourceFlat, Flat: p.Stock}
}

// BelongsTo проверяет принадлежность товара магазину.
func (p *Product) BelongsTo(storeID string) bool {
	return p.StoreID == storeID
}

// BelongsTo проверяет принадлежность варианта товару.
func (v *Variant) BelongsTo(productID string) bool {
	return v.ProductID == productID
}
