package domain

import "time"

// NoVariant — явный сентинел «строка без варианта» в ключе уникальности.
// Пустая строка, а не nil, чтобы равенство и хеширование ключа были
// определены без указателей.
const NoVariant = ""

// CartOwner — владелец корзины: либо аутентифицированный покупатель, либо
// анонимная сессия. Заполнено ровно одно из полей.
type CartOwner struct {
	BuyerID    string
	SessionKey string
}

// Valid проверяет, что задан ровно один владелец.
func (o CartOwner) Valid() bool {
	return (o.BuyerID == "") != (o.SessionKey == "")
}

// Anonymous сообщает, принадлежит ли корзина анонимной сессии.
func (o CartOwner) Anonymous() bool {
	return o.BuyerID == "" && o.SessionKey != ""
}

// Cart — корзина одного владельца в рамках одного магазина. Создаётся лениво
// при первой мутации и никогда не удаляется неявно.
type Cart struct {
	ID        string
	StoreID   string
	Owner     CartOwner
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LineKey — составной ключ уникальности строки: один товар без варианта
// встречается в корзине не более одного раза, один товар с разными
// вариантами — отдельными строками.
type LineKey struct {
	CartID    string
	ProductID string
	// VariantID == NoVariant для товара без вариантов.
	VariantID string
}

// CartLine — одна закупаемая строка корзины. Цена за единицу фиксируется
// в момент записи и дальше не пересчитывается (актуализация — забота
// оформления заказа).
type CartLine struct {
	ID        string
	CartID    string
	ProductID string
	// VariantID == NoVariant, если строка не ссылается на вариант.
	VariantID string
	Quantity  int64
	// UnitPriceMinor — зафиксированная цена за единицу в минорных единицах.
	UnitPriceMinor int64
	// Class — ценовой класс, по которому цена была зафиксирована.
	Class     PricingClass
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key возвращает составной ключ уникальности строки.
func (l *CartLine) Key() LineKey {
	return LineKey{CartID: l.CartID, ProductID: l.ProductID, VariantID: l.VariantID}
}

// SubtotalMinor — стоимость строки: количество на зафиксированную цену.
func (l *CartLine) SubtotalMinor() int64 {
	return l.Quantity * l.UnitPriceMinor
}

// HasVariant сообщает, ссылается ли строка на вариант.
func (l *CartLine) HasVariant() bool {
	return l.VariantID != NoVariant
}
