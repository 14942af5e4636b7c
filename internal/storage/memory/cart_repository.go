package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vendaro/commerce-engine/internal/domain"
)

type cartOwnerKey struct {
	storeID    string
	buyerID    string
	sessionKey string
}

// cartRepositoryInMemory — in-memory реализация CartRepository.
// Стоковые операции делегируются каталогу: его условная запись и есть
// атомарная единица проверки и резервирования.
type cartRepositoryInMemory struct {
	mu      sync.Mutex
	catalog *catalogRepositoryInMemory
	carts   map[string]domain.Cart
	byOwner map[cartOwnerKey]string
	lines   map[string]domain.CartLine
	byKey   map[domain.LineKey]string
}

// NewCartRepository создаёт in-memory корзины поверх общего каталога.
func NewCartRepository(catalog *catalogRepositoryInMemory) *cartRepositoryInMemory {
	return &cartRepositoryInMemory{
		catalog: catalog,
		carts:   make(map[string]domain.Cart),
		byOwner: make(map[cartOwnerKey]string),
		lines:   make(map[string]domain.CartLine),
		byKey:   make(map[domain.LineKey]string),
	}
}

// GetOrCreate возвращает корзину владельца, лениво создавая её.
func (r *cartRepositoryInMemory) GetOrCreate(storeID string, owner domain.CartOwner) (domain.Cart, error) {
	if !owner.Valid() {
		return domain.Cart{}, domain.ErrCartOwnerInvalid
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := cartOwnerKey{storeID: storeID, buyerID: owner.BuyerID, sessionKey: owner.SessionKey}
	if id, ok := r.byOwner[key]; ok {
		return r.carts[id], nil
	}

	now := time.Now().UTC()
	cart := domain.Cart{
		ID:        uuid.NewString(),
		StoreID:   storeID,
		Owner:     owner,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.carts[cart.ID] = cart
	r.byOwner[key] = cart.ID
	return cart, nil
}

// Get возвращает корзину магазина или ErrCartNotFound.
func (r *cartRepositoryInMemory) Get(storeID, cartID string) (domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cart, ok := r.carts[cartID]
	if !ok || cart.StoreID != storeID {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	return cart, nil
}

// ListLines возвращает строки корзины в порядке создания.
func (r *cartRepositoryInMemory) ListLines(cartID string) ([]domain.CartLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]domain.CartLine, 0)
	for _, line := range r.lines {
		if line.CartID == cartID {
			result = append(result, line)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// FindLine ищет строку по составному ключу.
func (r *cartRepositoryInMemory) FindLine(key domain.LineKey) (domain.CartLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byKey[key]
	if !ok {
		return domain.CartLine{}, domain.ErrCartLineNotFound
	}
	return r.lines[id], nil
}

// GetLine возвращает строку корзины по идентификатору.
func (r *cartRepositoryInMemory) GetLine(cartID, lineID string) (domain.CartLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	line, ok := r.lines[lineID]
	if !ok || line.CartID != cartID {
		return domain.CartLine{}, domain.ErrCartLineNotFound
	}
	return line, nil
}

// InsertLineReserving резервирует остаток под строку и создаёт её.
// Конкурентная вставка по занятому ключу складывается в существующую строку:
// резерв под дельту уже удержан, пропадать он не должен.
func (r *cartRepositoryInMemory) InsertLineReserving(line domain.CartLine) error {
	if line.Quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ref := domain.StockRef{ProductID: line.ProductID, VariantID: line.VariantID}
	if err := r.catalog.AdjustStock(ref, -line.Quantity); err != nil {
		return err
	}

	now := time.Now().UTC()
	if existingID, ok := r.byKey[line.Key()]; ok {
		existing := r.lines[existingID]
		existing.Quantity += line.Quantity
		existing.UpdatedAt = now
		r.lines[existingID] = existing
		return nil
	}

	if line.ID == "" {
		line.ID = uuid.NewString()
	}
	line.CreatedAt = now
	line.UpdatedAt = now
	r.lines[line.ID] = line
	r.byKey[line.Key()] = line.ID
	return nil
}

// UpdateLineQuantityReserving корректирует остаток на разницу и перезаписывает количество.
func (r *cartRepositoryInMemory) UpdateLineQuantityReserving(line domain.CartLine, newQty int64) (domain.CartLine, error) {
	if newQty <= 0 {
		return domain.CartLine{}, domain.ErrInvalidQuantity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.lines[line.ID]
	if !ok {
		return domain.CartLine{}, domain.ErrCartLineNotFound
	}

	delta := newQty - current.Quantity
	if delta != 0 {
		ref := domain.StockRef{ProductID: current.ProductID, VariantID: current.VariantID}
		if err := r.catalog.AdjustStock(ref, -delta); err != nil {
			return domain.CartLine{}, err
		}
	}

	current.Quantity = newQty
	current.UpdatedAt = time.Now().UTC()
	r.lines[current.ID] = current
	return current, nil
}

// DeleteLineReleasing возвращает остаток строки и удаляет её. Идемпотентна.
func (r *cartRepositoryInMemory) DeleteLineReleasing(cartID, lineID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	line, ok := r.lines[lineID]
	if !ok || line.CartID != cartID {
		return nil
	}

	ref := domain.StockRef{ProductID: line.ProductID, VariantID: line.VariantID}
	if err := r.catalog.AdjustStock(ref, line.Quantity); err != nil {
		return err
	}

	delete(r.lines, lineID)
	delete(r.byKey, line.Key())
	return nil
}

// ClearCartReleasing возвращает остатки всех строк и удаляет их. Идемпотентна.
func (r *cartRepositoryInMemory) ClearCartReleasing(cartID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, line := range r.lines {
		if line.CartID != cartID {
			continue
		}
		ref := domain.StockRef{ProductID: line.ProductID, VariantID: line.VariantID}
		if err := r.catalog.AdjustStock(ref, line.Quantity); err != nil {
			return err
		}
		delete(r.lines, id)
		delete(r.byKey, line.Key())
	}
	return nil
}

// MergeCarts переносит строки source в dest, суммируя совпадающие ключи.
// Остатки не меняются: обе корзины уже удерживают свои резервы.
func (r *cartRepositoryInMemory) MergeCarts(destCartID, sourceCartID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.carts[destCartID]; !ok {
		return domain.ErrCartNotFound
	}

	now := time.Now().UTC()
	for id, line := range r.lines {
		if line.CartID != sourceCartID {
			continue
		}

		moved := line
		moved.CartID = destCartID

		if destID, ok := r.byKey[moved.Key()]; ok {
			dest := r.lines[destID]
			dest.Quantity += line.Quantity
			dest.UpdatedAt = now
			r.lines[destID] = dest
			delete(r.lines, id)
			delete(r.byKey, line.Key())
			continue
		}

		moved.UpdatedAt = now
		r.lines[id] = moved
		delete(r.byKey, line.Key())
		r.byKey[moved.Key()] = id
	}
	return nil
}

var _ domain.CartRepository = (*cartRepositoryInMemory)(nil)
