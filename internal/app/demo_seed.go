package app

import (
	"time"

	"github.com/vendaro/commerce-engine/internal/domain"
)

// Seed-поверхность in-memory репозиториев: вне доменного контракта,
// доступна только конкретным memory-типам.
type demoStoreSeeder interface {
	Put(store domain.Store)
}

type demoCatalogSeeder interface {
	PutProduct(product domain.Product)
	PutVariant(variant domain.Variant)
	PutSize(size domain.Size)
}

// seedDemoCatalog наполняет пустое in-memory хранилище рабочим демо-магазином:
// без него свежий локальный экземпляр отвечал бы no_tenant_available на любой
// запрос. Идентификаторы фиксированные, чтобы примеры запросов воспроизводились.
func seedDemoCatalog(stores demoStoreSeeder, catalog demoCatalogSeeder) {
	now := time.Now().UTC()

	stores.Put(domain.Store{
		ID:                  "demo-store",
		Name:                "Demo Store",
		Hosts:               []string{"localhost", "demo.localhost"},
		Active:              true,
		WholesaleEnabled:    true,
		WholesaleDiscountBP: 1500,
		Currency:            "RUB",
		CreatedAt:           now,
		UpdatedAt:           now,
	})

	catalog.PutProduct(domain.Product{
		ID:          "demo-mug",
		StoreID:     "demo-store",
		Name:        "Кружка с логотипом",
		RetailMinor: 59000,
		Stock:       25,
		Available:   true,
		CreatedAt:   now,
		UpdatedAt:   now,
	})

	catalog.PutProduct(domain.Product{
		ID:          "demo-hoodie",
		StoreID:     "demo-store",
		Name:        "Худи",
		RetailMinor: 349000,
		HasVariants: true,
		Available:   true,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	catalog.PutSize(domain.Size{ID: "demo-size-m", Type: "clothing", Value: "M", SortOrder: 2})
	catalog.PutSize(domain.Size{ID: "demo-size-l", Type: "clothing", Value: "L", SortOrder: 3})
	catalog.PutVariant(domain.Variant{
		ID:        "demo-hoodie-m",
		ProductID: "demo-hoodie",
		SizeID:    "demo-size-m",
		Stock:     10,
		Active:    true,
	})
	catalog.PutVariant(domain.Variant{
		ID:        "demo-hoodie-l",
		ProductID: "demo-hoodie",
		SizeID:    "demo-size-l",
		Stock:     4,
		Active:    true,
	})
}
