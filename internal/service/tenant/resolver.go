package tenant

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vendaro/commerce-engine/internal/domain"
)

// Resolver описывает разрешение арендатора по входящему запросу.
type Resolver interface {
	// Resolve возвращает активный магазин для хоста запроса.
	// Незнакомый или пустой хост сводится к назначенному fallback-магазину;
	// если активных магазинов нет вовсе — ErrNoTenantAvailable.
	Resolve(host string) (domain.Store, error)
}

type resolver struct {
	stores domain.StoreRepository
	logger *log.Entry
}

// NewResolver создаёт рабочий экземпляр резолвера арендаторов.
func NewResolver(stores domain.StoreRepository, logger *log.Entry) Resolver {
	if logger == nil {
		logger = log.New().WithField("component", "tenant")
	}
	return &resolver{stores: stores, logger: logger}
}

// Resolve сопоставляет хост магазину. Один запрос — ровно один магазин.
func (r *resolver) Resolve(host string) (domain.Store, error) {
	normalized := domain.NormalizeHost(host)
	if normalized != "" {
		store, err := r.stores.GetByHost(normalized)
		if err == nil {
			return store, nil
		}
		if err != domain.ErrStoreNotFound {
			return domain.Store{}, fmt.Errorf("resolve tenant by host: %w", err)
		}
	}

	// Хост не зарегистрирован: витрина не должна падать, отдаём fallback.
	store, err := r.stores.FirstActive()
	if err != nil {
		if err == domain.ErrStoreNotFound {
			return domain.Store{}, domain.ErrNoTenantAvailable
		}
		return domain.Store{}, fmt.Errorf("resolve fallback tenant: %w", err)
	}

	if normalized != "" {
		r.logger.WithField("host", normalized).
			WithField("store_id", store.ID).
			Debug("host is not registered, falling back to default store")
	}
	return store, nil
}

var _ Resolver = (*resolver)(nil)
