package memory

import (
	"sync"
	"time"

	"github.com/vendaro/commerce-engine/internal/domain"
)

// catalogRepositoryInMemory — in-memory реализация CatalogRepository.
// Один RWMutex накрывает товары и варианты, поэтому проверка остатка и
// запись внутри AdjustStock атомарны относительно других писателей.
type catalogRepositoryInMemory struct {
	mu       sync.RWMutex
	products map[string]domain.Product
	variants map[string]domain.Variant
	sizes    map[string]domain.Size
}

// NewCatalogRepository возвращает пустой in-memory каталог.
func NewCatalogRepository() *catalogRepositoryInMemory {
	return &catalogRepositoryInMemory{
		products: make(map[string]domain.Product),
		variants: make(map[string]domain.Variant),
		sizes:    make(map[string]domain.Size),
	}
}

// PutProduct сохраняет или перезаписывает товар (seed-операция).
func (r *catalogRepositoryInMemory) PutProduct(product domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.products[product.ID] = product
}

// PutVariant сохраняет или перезаписывает вариант (seed-операция).
func (r *catalogRepositoryInMemory) PutVariant(variant domain.Variant) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.variants[variant.ID] = variant
}

// PutSize сохраняет или перезаписывает размер (seed-операция).
func (r *catalogRepositoryInMemory) PutSize(size domain.Size) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sizes[size.ID] = size
}

// GetProduct возвращает товар магазина. Чужой товар неотличим от несуществующего.
func (r *catalogRepositoryInMemory) GetProduct(storeID, productID string) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[productID]
	if !ok || !product.BelongsTo(storeID) {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

// GetVariant возвращает вариант товара; вариант другого товара неотличим от несуществующего.
func (r *catalogRepositoryInMemory) GetVariant(productID, variantID string) (domain.Variant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	variant, ok := r.variants[variantID]
	if !ok || !variant.BelongsTo(productID) {
		return domain.Variant{}, domain.ErrVariantNotFound
	}
	return variant, nil
}

// ListActiveVariants возвращает активные варианты товара.
func (r *catalogRepositoryInMemory) ListActiveVariants(productID string) ([]domain.Variant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Variant, 0)
	for _, variant := range r.variants {
		if variant.ProductID == productID && variant.Active {
			result = append(result, variant)
		}
	}
	return result, nil
}

// ListSizes возвращает размеры в порядке запрошенных идентификаторов.
func (r *catalogRepositoryInMemory) ListSizes(ids []string) ([]domain.Size, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Size, 0, len(ids))
	for _, id := range ids {
		if size, ok := r.sizes[id]; ok {
			result = append(result, size)
		}
	}
	return result, nil
}

// AdjustStock атомарно прибавляет delta к строке остатка.
func (r *catalogRepositoryInMemory) AdjustStock(ref domain.StockRef, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.adjustStockLocked(ref, delta)
}

// adjustStockLocked выполняет условную запись остатка; вызывающий держит r.mu.
func (r *catalogRepositoryInMemory) adjustStockLocked(ref domain.StockRef, delta int64) error {
	now := time.Now().UTC()

	if ref.VariantID != domain.NoVariant {
		variant, ok := r.variants[ref.VariantID]
		if !ok || !variant.BelongsTo(ref.ProductID) {
			return domain.ErrVariantNotFound
		}
		if variant.Stock+delta < 0 {
			return domain.ErrInsufficientStock
		}
		variant.Stock += delta
		variant.UpdatedAt = now
		r.variants[ref.VariantID] = variant
		return nil
	}

	product, ok := r.products[ref.ProductID]
	if !ok {
		return domain.ErrProductNotFound
	}
	if product.HasVariants {
		return domain.ErrFlatStockForbidden
	}
	if product.Stock+delta < 0 {
		return domain.ErrInsufficientStock
	}
	product.Stock += delta
	product.UpdatedAt = now
	r.products[ref.ProductID] = product
	return nil
}

var _ domain.CatalogRepository = (*catalogRepositoryInMemory)(nil)
