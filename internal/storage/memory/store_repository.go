package memory

import (
	"sync"

	"github.com/vendaro/commerce-engine/internal/domain"
)

// storeRepositoryInMemory — in-memory реализация StoreRepository для
// локальной разработки и тестов. Магазины загружаются через Put.
type storeRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Store
}

// NewStoreRepository возвращает пустой in-memory репозиторий магазинов.
func NewStoreRepository() *storeRepositoryInMemory {
	return &storeRepositoryInMemory{items: make(map[string]domain.Store)}
}

// Put сохраняет или перезаписывает магазин (seed-операция, вне доменного контракта).
func (r *storeRepositoryInMemory) Put(store domain.Store) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[store.ID] = store
}

// Get возвращает магазин или ErrStoreNotFound.
func (r *storeRepositoryInMemory) Get(id string) (domain.Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	store, ok := r.items[id]
	if !ok {
		return domain.Store{}, domain.ErrStoreNotFound
	}
	return store, nil
}

// GetByHost возвращает активный магазин, за которым зарегистрирован хост.
func (r *storeRepositoryInMemory) GetByHost(host string) (domain.Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, store := range r.items {
		if store.Active && store.MatchesHost(host) {
			return store, nil
		}
	}
	return domain.Store{}, domain.ErrStoreNotFound
}

// FirstActive возвращает самый ранний активный магазин — назначенный fallback.
func (r *storeRepositoryInMemory) FirstActive() (domain.Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		found  bool
		result domain.Store
	)
	for _, store := range r.items {
		if !store.Active {
			continue
		}
		if !found {
			result = store
			found = true
			continue
		}
		// Tie-break по ID, чтобы выбор был детерминированным.
		if store.CreatedAt.Before(result.CreatedAt) ||
			(store.CreatedAt.Equal(result.CreatedAt) && store.ID < result.ID) {
			result = store
		}
	}
	if !found {
		return domain.Store{}, domain.ErrStoreNotFound
	}
	return result, nil
}

var _ domain.StoreRepository = (*storeRepositoryInMemory)(nil)
