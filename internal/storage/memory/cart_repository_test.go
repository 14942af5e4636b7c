package memory_test

import (
	"errors"
	"testing"

	"github.com/vendaro/commerce-engine/internal/domain"
	"github.com/vendaro/commerce-engine/internal/storage/memory"
)

// seedCatalog — каталог вместе с seed-операциями in-memory реализации.
type seedCatalog interface {
	domain.CatalogRepository
	PutProduct(domain.Product)
	PutVariant(domain.Variant)
}

type cartFixture struct {
	catalog seedCatalog
	carts   domain.CartRepository
}

func newCartFixture() *cartFixture {
	catalog := memory.NewCatalogRepository()
	return &cartFixture{
		catalog: catalog,
		carts:   memory.NewCartRepository(catalog),
	}
}

func (f *cartFixture) seedFlatProduct(id string, stock int64) {
	f.catalog.PutProduct(domain.Product{
		ID:          id,
		StoreID:     "store-1",
		RetailMinor: 1000,
		Stock:       stock,
		Available:   true,
	})
}

func (f *cartFixture) mustCart(t *testing.T, owner domain.CartOwner) domain.Cart {
	t.Helper()
	cart, err := f.carts.GetOrCreate("store-1", owner)
	if err != nil {
		t.Fatalf("get or create failed: %v", err)
	}
	return cart
}

func (f *cartFixture) flatStock(t *testing.T, productID string) int64 {
	t.Helper()
	product, err := f.catalog.GetProduct("store-1", productID)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	return product.Stock
}

func newLine(cartID, productID string, qty int64) domain.CartLine {
	return domain.CartLine{
		CartID:         cartID,
		ProductID:      productID,
		VariantID:      domain.NoVariant,
		Quantity:       qty,
		UnitPriceMinor: 1000,
		Class:          domain.PricingClassRetail,
	}
}

func TestCartRepository_GetOrCreate(t *testing.T) {
	f := newCartFixture()
	owner := domain.CartOwner{BuyerID: "buyer-1"}

	first := f.mustCart(t, owner)
	second := f.mustCart(t, owner)
	if first.ID != second.ID {
		t.Fatalf("expected same cart for same owner, got %s and %s", first.ID, second.ID)
	}

	other := f.mustCart(t, domain.CartOwner{SessionKey: "session-1"})
	if other.ID == first.ID {
		t.Fatalf("expected distinct cart for distinct owner")
	}

	if _, err := f.carts.GetOrCreate("store-1", domain.CartOwner{}); !errors.Is(err, domain.ErrCartOwnerInvalid) {
		t.Fatalf("expected ErrCartOwnerInvalid, got %v", err)
	}
}

func TestCartRepository_Get_StoreScoped(t *testing.T) {
	f := newCartFixture()
	cart := f.mustCart(t, domain.CartOwner{BuyerID: "buyer-1"})

	if _, err := f.carts.Get("store-1", cart.ID); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if _, err := f.carts.Get("store-2", cart.ID); !errors.Is(err, domain.ErrCartNotFound) {
		t.Fatalf("expected ErrCartNotFound for foreign store, got %v", err)
	}
}

func TestCartRepository_InsertLineReserving(t *testing.T) {
	f := newCartFixture()
	f.seedFlatProduct("product-1", 5)
	cart := f.mustCart(t, domain.CartOwner{BuyerID: "buyer-1"})

	if err := f.carts.InsertLineReserving(newLine(cart.ID, "product-1", 3)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if got := f.flatStock(t, "product-1"); got != 2 {
		t.Fatalf("expected stock 2 after reserve, got %d", got)
	}

	if err := f.carts.InsertLineReserving(newLine(cart.ID, "product-1", 3)); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if got := f.flatStock(t, "product-1"); got != 2 {
		t.Fatalf("failed insert must not move stock, got %d", got)
	}
}

func TestCartRepository_InsertLineReserving_FoldsIntoExisting(t *testing.T) {
	f := newCartFixture()
	f.seedFlatProduct("product-1", 10)
	cart := f.mustCart(t, domain.CartOwner{BuyerID: "buyer-1"})

	if err := f.carts.InsertLineReserving(newLine(cart.ID, "product-1", 2)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := f.carts.InsertLineReserving(newLine(cart.ID, "product-1", 3)); err != nil {
		t.Fatalf("second insert failed: %v", err)
	}

	lines, err := f.carts.ListLines(cart.ID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(lines) != 1 || lines[0].Quantity != 5 {
		t.Fatalf("expected one folded line with qty 5, got %+v", lines)
	}
	if got := f.flatStock(t, "product-1"); got != 5 {
		t.Fatalf("expected stock 5, got %d", got)
	}
}

func TestCartRepository_UpdateLineQuantityReserving(t *testing.T) {
	f := newCartFixture()
	f.seedFlatProduct("product-1", 10)
	cart := f.mustCart(t, domain.CartOwner{BuyerID: "buyer-1"})
	if err := f.carts.InsertLineReserving(newLine(cart.ID, "product-1", 4)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	line, err := f.carts.FindLine(domain.LineKey{CartID: cart.ID, ProductID: "product-1", VariantID: domain.NoVariant})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}

	// Увеличение резервирует только разницу.
	updated, err := f.carts.UpdateLineQuantityReserving(line, 7)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Quantity != 7 {
		t.Fatalf("expected qty 7, got %d", updated.Quantity)
	}
	if got := f.flatStock(t, "product-1"); got != 3 {
		t.Fatalf("expected stock 3, got %d", got)
	}

	// Уменьшение возвращает разницу.
	if _, err := f.carts.UpdateLineQuantityReserving(updated, 2); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if got := f.flatStock(t, "product-1"); got != 8 {
		t.Fatalf("expected stock 8, got %d", got)
	}

	// Чрезмерное увеличение не меняет ни строку, ни остаток.
	if _, err := f.carts.UpdateLineQuantityReserving(line, 100); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	current, err := f.carts.GetLine(cart.ID, line.ID)
	if err != nil {
		t.Fatalf("get line failed: %v", err)
	}
	if current.Quantity != 2 {
		t.Fatalf("failed update must not change quantity, got %d", current.Quantity)
	}
}

func TestCartRepository_DeleteLineReleasing(t *testing.T) {
	f := newCartFixture()
	f.seedFlatProduct("product-1", 5)
	cart := f.mustCart(t, domain.CartOwner{BuyerID: "buyer-1"})
	if err := f.carts.InsertLineReserving(newLine(cart.ID, "product-1", 3)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	line, err := f.carts.FindLine(domain.LineKey{CartID: cart.ID, ProductID: "product-1", VariantID: domain.NoVariant})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}

	if err := f.carts.DeleteLineReleasing(cart.ID, line.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if got := f.flatStock(t, "product-1"); got != 5 {
		t.Fatalf("expected stock restored to 5, got %d", got)
	}

	// Повторное удаление идемпотентно.
	if err := f.carts.DeleteLineReleasing(cart.ID, line.ID); err != nil {
		t.Fatalf("repeated delete failed: %v", err)
	}
	if got := f.flatStock(t, "product-1"); got != 5 {
		t.Fatalf("repeated delete must not move stock, got %d", got)
	}
}

func TestCartRepository_ClearCartReleasing(t *testing.T) {
	f := newCartFixture()
	f.seedFlatProduct("product-1", 5)
	f.seedFlatProduct("product-2", 5)
	cart := f.mustCart(t, domain.CartOwner{BuyerID: "buyer-1"})
	if err := f.carts.InsertLineReserving(newLine(cart.ID, "product-1", 2)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := f.carts.InsertLineReserving(newLine(cart.ID, "product-2", 3)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	if err := f.carts.ClearCartReleasing(cart.ID); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	lines, err := f.carts.ListLines(cart.ID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("expected empty cart, got %+v", lines)
	}
	if got := f.flatStock(t, "product-1"); got != 5 {
		t.Fatalf("expected stock restored, got %d", got)
	}

	if err := f.carts.ClearCartReleasing(cart.ID); err != nil {
		t.Fatalf("repeated clear failed: %v", err)
	}
}

func TestCartRepository_MergeCarts(t *testing.T) {
	f := newCartFixture()
	f.seedFlatProduct("product-1", 10)
	f.seedFlatProduct("product-2", 10)
	dest := f.mustCart(t, domain.CartOwner{BuyerID: "buyer-1"})
	source := f.mustCart(t, domain.CartOwner{SessionKey: "session-1"})

	if err := f.carts.InsertLineReserving(newLine(dest.ID, "product-1", 2)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := f.carts.InsertLineReserving(newLine(source.ID, "product-1", 3)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := f.carts.InsertLineReserving(newLine(source.ID, "product-2", 1)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	stockBefore := f.flatStock(t, "product-1")

	if err := f.carts.MergeCarts(dest.ID, source.ID); err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	destLines, err := f.carts.ListLines(dest.ID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(destLines) != 2 {
		t.Fatalf("expected 2 lines after merge, got %d", len(destLines))
	}
	for _, line := range destLines {
		if line.ProductID == "product-1" && line.Quantity != 5 {
			t.Fatalf("expected merged qty 5, got %d", line.Quantity)
		}
	}

	sourceLines, err := f.carts.ListLines(source.ID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(sourceLines) != 0 {
		t.Fatalf("expected empty source cart, got %+v", sourceLines)
	}

	// Слияние не двигает остатки: резервы уже удержаны обеими корзинами.
	if got := f.flatStock(t, "product-1"); got != stockBefore {
		t.Fatalf("merge must not move stock: had %d, got %d", stockBefore, got)
	}
}
