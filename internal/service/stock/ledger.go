package stock

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vendaro/commerce-engine/internal/domain"
)

// Ledger — единая точка чтения и резервирования остатков. Скрывает различие
// между плоским счётчиком товара и остатками по вариантам.
type Ledger interface {
	// AvailableStock возвращает доступный остаток товара: плоский счётчик
	// либо сумму по активным вариантам.
	AvailableStock(product domain.Product) (int64, error)
	// AvailableStockVariant возвращает остаток конкретного варианта.
	// Неактивный или чужой вариант даёт ноль.
	AvailableStockVariant(product domain.Product, variantID string) (int64, error)
	// Reserve атомарно уменьшает остаток на qty; при нехватке возвращает
	// InsufficientStockError с доступным количеством, остаток не меняется.
	Reserve(product domain.Product, variantID string, qty int64) error
	// Release возвращает qty остатка обратно.
	Release(product domain.Product, variantID string, qty int64) error
}

type ledger struct {
	catalog domain.CatalogRepository
	logger  *log.Entry
}

// NewLedger создаёт рабочий экземпляр стокового регистра.
func NewLedger(catalog domain.CatalogRepository, logger *log.Entry) Ledger {
	if logger == nil {
		logger = log.New().WithField("component", "stock")
	}
	return &ledger{catalog: catalog, logger: logger}
}

func (l *ledger) AvailableStock(product domain.Product) (int64, error) {
	source := product.StockSource()
	if source.Kind == domain.StockSourceFlat {
		return source.Flat, nil
	}

	variants, err := l.catalog.ListActiveVariants(product.ID)
	if err != nil {
		return 0, fmt.Errorf("list active variants: %w", err)
	}
	var total int64
	for _, variant := range variants {
		total += variant.Stock
	}
	return total, nil
}

func (l *ledger) AvailableStockVariant(product domain.Product, variantID string) (int64, error) {
	variant, err := l.catalog.GetVariant(product.ID, variantID)
	if err != nil {
		if err == domain.ErrVariantNotFound {
			return 0, nil
		}
		return 0, fmt.Errorf("get variant: %w", err)
	}
	if !variant.Active {
		return 0, nil
	}
	return variant.Stock, nil
}

func (l *ledger) Reserve(product domain.Product, variantID string, qty int64) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}

	ref := domain.StockRef{ProductID: product.ID, VariantID: variantID}
	err := l.catalog.AdjustStock(ref, -qty)
	if err == nil {
		return nil
	}
	if err != domain.ErrInsufficientStock {
		return err
	}

	// Отказ обязан нести доступное количество; читаем его после отказа —
	// это информационное значение, не участник решения.
	available, availErr := l.availableForRef(product, variantID)
	if availErr != nil {
		return &domain.InsufficientStockError{Available: 0}
	}
	return &domain.InsufficientStockError{Available: available}
}

func (l *ledger) Release(product domain.Product, variantID string, qty int64) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}
	ref := domain.StockRef{ProductID: product.ID, VariantID: variantID}
	return l.catalog.AdjustStock(ref, qty)
}

func (l *ledger) availableForRef(product domain.Product, variantID string) (int64, error) {
	if variantID != domain.NoVariant {
		return l.AvailableStockVariant(product, variantID)
	}
	// Плоский счётчик мог измениться после отказа, перечитываем товар.
	fresh, err := l.catalog.GetProduct(product.StoreID, product.ID)
	if err != nil {
		return 0, err
	}
	return fresh.StockSource().Flat, nil
}

var _ Ledger = (*ledger)(nil)
