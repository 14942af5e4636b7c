package domain

// PricingClass — класс цен покупателя, вычисляется по входящей идентичности
// на каждый запрос и нигде не хранится.
type PricingClass string

const (
	// PricingClassRetail — обычный покупатель (B2C).
	PricingClassRetail PricingClass = "retail"
	// PricingClassWholesale — оптовый покупатель (B2B).
	PricingClassWholesale PricingClass = "wholesale"
)

// Valid проверяет, что класс относится к поддерживаемым значениям.
func (c PricingClass) Valid() bool {
	switch c {
	case PricingClassRetail, PricingClassWholesale:
		return true
	default:
		return false
	}
}

// bpDenominator — знаменатель базисных пунктов: 10000 бп = 100%.
const bpDenominator = 10000

// PriceFor вычисляет эффективную цену за единицу в минорных единицах.
// Порядок разрешения: переопределение варианта для класса → явная цена товара
// для класса → для опта без явной цены работает скидка магазина от
// эффективной розницы. Функция чистая: одинаковые входы дают одинаковую цену
// в рамках одного согласованного чтения. Округление half-up применяется
// один раз в конце вычисления.
func PriceFor(store Store, product Product, variant *Variant, class PricingClass) int64 {
	if class == PricingClassWholesale {
		return wholesaleMinor(store, product, variant)
	}
	return retailMinor(product, variant)
}

func retailMinor(product Product, variant *Variant) int64 {
	if variant != nil && variant.RetailOverrideMinor > 0 {
		return variant.RetailOverrideMinor
	}
	if product.DiscountMinor > 0 {
		return product.DiscountMinor
	}
	return product.RetailMinor
}

func wholesaleMinor(store Store, product Product, variant *Variant) int64 {
	if !store.WholesaleEnabled {
		return retailMinor(product, variant)
	}
	if variant != nil && variant.WholesaleOverrideMinor > 0 {
		return variant.WholesaleOverrideMinor
	}
	if product.WholesaleMinor > 0 {
		return product.WholesaleMinor
	}
	base := retailMinor(product, variant)
	if store.WholesaleDiscountBP <= 0 {
		return base
	}
	return roundHalfUp(base*(bpDenominator-store.WholesaleDiscountBP), bpDenominator)
}

// roundHalfUp делит num на den, округляя к ближайшему, половину — вверх.
func roundHalfUp(num, den int64) int64 {
	return (num + den/2) / den
}
