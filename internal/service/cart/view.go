package cart

import (
	"errors"
	"fmt"

	"github.com/vendaro/commerce-engine/internal/domain"
)

// LineView — строка корзины для выдачи наружу. Закупаемость и остаток
// пересчитываются на момент рендера и носят информационный характер:
// решение о резервировании принимает только условная запись.
type LineView struct {
	LineID         string
	ProductID      string
	ProductName    string
	VariantID      string
	Quantity       int64
	UnitPriceMinor int64
	SubtotalMinor  int64
	Class          domain.PricingClass
	// IsAvailable — строка всё ещё закупаема: товар виден, вариант активен.
	// Свободный остаток с количеством строки не сравнивается: резерв уже
	// удержан при записи, и собственное количество строка обеспечивает сама.
	IsAvailable bool
	// AvailableStock — текущий свободный остаток сверх удержанного резерва.
	AvailableStock int64
}

// View — корзина целиком на момент чтения.
type View struct {
	CartID        string
	StoreID       string
	Currency      string
	Lines         []LineView
	SubtotalMinor int64
	// AffectedLineID — строка, которую изменила мутация (пусто для чтений
	// и операций над корзиной целиком).
	AffectedLineID string
}

// AffectedLine возвращает изменённую мутацией строку, если она ещё в корзине.
func (v View) AffectedLine() (LineView, bool) {
	if v.AffectedLineID == "" {
		return LineView{}, false
	}
	for _, line := range v.Lines {
		if line.LineID == v.AffectedLineID {
			return line, true
		}
	}
	return LineView{}, false
}

// render собирает выдачу корзины. Строки с исчезнувшим из каталога товаром
// не отбрасываются: они видимы как незакупаемые, удаление — выбор покупателя.
func (s *service) render(store domain.Store, cart domain.Cart) (View, error) {
	lines, err := s.carts.ListLines(cart.ID)
	if err != nil {
		return View{}, fmt.Errorf("list cart lines: %w", err)
	}

	view := View{
		CartID:   cart.ID,
		StoreID:  store.ID,
		Currency: store.Currency,
		Lines:    make([]LineView, 0, len(lines)),
	}
	for _, line := range lines {
		lv := LineView{
			LineID:         line.ID,
			ProductID:      line.ProductID,
			VariantID:      line.VariantID,
			Quantity:       line.Quantity,
			UnitPriceMinor: line.UnitPriceMinor,
			SubtotalMinor:  line.SubtotalMinor(),
			Class:          line.Class,
		}
		s.annotateAvailability(store, line, &lv)
		view.SubtotalMinor += lv.SubtotalMinor
		view.Lines = append(view.Lines, lv)
	}
	return view, nil
}

func (s *service) annotateAvailability(store domain.Store, line domain.CartLine, lv *LineView) {
	product, err := s.catalog.GetProduct(store.ID, line.ProductID)
	if err != nil {
		if !errors.Is(err, domain.ErrProductNotFound) {
			s.logger.WithField("product_id", line.ProductID).WithError(err).Warn("render availability lookup failed")
		}
		return
	}
	lv.ProductName = product.Name
	if !product.Available {
		return
	}

	if line.HasVariant() {
		available, err := s.ledger.AvailableStockVariant(product, line.VariantID)
		if err != nil {
			return
		}
		variant, verr := s.catalog.GetVariant(product.ID, line.VariantID)
		if verr != nil || !variant.Active {
			return
		}
		lv.IsAvailable = true
		lv.AvailableStock = available
		return
	}

	available, err := s.ledger.AvailableStock(product)
	if err != nil {
		return
	}
	lv.IsAvailable = true
	lv.AvailableStock = available
}
