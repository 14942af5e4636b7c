package availability

import (
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/vendaro/commerce-engine/internal/domain"
	"github.com/vendaro/commerce-engine/internal/service/stock"
)

// SizeOption — закупаемый размер товара для витрины.
type SizeOption struct {
	VariantID string
	SizeID    string
	SizeValue string
	SizeType  string
	Stock     int64
}

// View — сводка закупаемости товара на момент чтения. Чисто информационная:
// решение о резервировании принимает только условная запись остатка.
type View struct {
	InStock    bool
	TotalStock int64
	// AvailableSizes — активные варианты с положительным остатком,
	// по возрастанию ключа сортировки размера.
	AvailableSizes []SizeOption
}

// Evaluator вычисляет витринную сводку закупаемости.
type Evaluator interface {
	View(product domain.Product) (View, error)
}

type evaluator struct {
	catalog domain.CatalogRepository
	ledger  stock.Ledger
	logger  *log.Entry
}

// NewEvaluator создаёт рабочий экземпляр.
func NewEvaluator(catalog domain.CatalogRepository, ledger stock.Ledger, logger *log.Entry) Evaluator {
	if logger == nil {
		logger = log.New().WithField("component", "availability")
	}
	return &evaluator{catalog: catalog, ledger: ledger, logger: logger}
}

func (e *evaluator) View(product domain.Product) (View, error) {
	if !product.Available {
		return View{AvailableSizes: []SizeOption{}}, nil
	}

	total, err := e.ledger.AvailableStock(product)
	if err != nil {
		return View{}, fmt.Errorf("total stock: %w", err)
	}

	view := View{
		InStock:        total > 0,
		TotalStock:     total,
		AvailableSizes: []SizeOption{},
	}
	if product.StockSource().Kind == domain.StockSourceFlat {
		return view, nil
	}

	variants, err := e.catalog.ListActiveVariants(product.ID)
	if err != nil {
		return View{}, fmt.Errorf("list active variants: %w", err)
	}

	sizeIDs := make([]string, 0, len(variants))
	byID := make(map[string]domain.Variant, len(variants))
	for _, variant := range variants {
		if variant.Stock <= 0 {
			continue
		}
		sizeIDs = append(sizeIDs, variant.SizeID)
		byID[variant.SizeID] = variant
	}

	sizes, err := e.catalog.ListSizes(sizeIDs)
	if err != nil {
		return View{}, fmt.Errorf("list sizes: %w", err)
	}
	sort.SliceStable(sizes, func(i, j int) bool {
		return sizes[i].SortOrder < sizes[j].SortOrder
	})

	for _, size := range sizes {
		variant, ok := byID[size.ID]
		if !ok {
			continue
		}
		view.AvailableSizes = append(view.AvailableSizes, SizeOption{
			VariantID: variant.ID,
			SizeID:    size.ID,
			SizeValue: size.Value,
			SizeType:  size.Type,
			Stock:     variant.Stock,
		})
	}
	return view, nil
}

var _ Evaluator = (*evaluator)(nil)
