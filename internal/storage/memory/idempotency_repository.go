package memory

import (
	"sync"
	"time"

	"github.com/vendaro/commerce-engine/internal/domain"
)

// idempotencyRepositoryInMemory хранит записи idempotency-key в памяти.
type idempotencyRepositoryInMemory struct {
	mu      sync.RWMutex
	records map[string]domain.IdempotencyRecord
}

// NewIdempotencyRepository создаёт in-memory реализацию IdempotencyRepository.
func NewIdempotencyRepository() *idempotencyRepositoryInMemory {
	return &idempotencyRepositoryInMemory{records: make(map[string]domain.IdempotencyRecord)}
}

// CreateProcessing создаёт запись со статусом processing.
// Если ключ уже существует — возвращает существующую запись и ErrIdempotencyKeyAlreadyExists.
func (r *idempotencyRepositoryInMemory) CreateProcessing(key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}
	if requestHash == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyRequestHashRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.records[key]; ok {
		return existing, domain.ErrIdempotencyKeyAlreadyExists
	}

	now := time.Now().UTC()
	record := domain.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Status:      domain.IdempotencyStatusProcessing,
		TTLAt:       ttlAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.records[key] = record
	return record, nil
}

// Get возвращает запись по ключу.
func (r *idempotencyRepositoryInMemory) Get(key string) (domain.IdempotencyRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[key]
	if !ok {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
	}
	return record, nil
}

// MarkDone сохраняет успешный ответ для ключа.
func (r *idempotencyRepositoryInMemory) MarkDone(key string, responseBody []byte, httpStatus int) error {
	return r.markStatus(key, domain.IdempotencyStatusDone, responseBody, httpStatus)
}

// MarkFailed сохраняет ответ с ошибкой для ключа.
func (r *idempotencyRepositoryInMemory) MarkFailed(key string, responseBody []byte, httpStatus int) error {
	return r.markStatus(key, domain.IdempotencyStatusFailed, responseBody, httpStatus)
}

func (r *idempotencyRepositoryInMemory) markStatus(key string, status domain.IdempotencyStatus, responseBody []byte, httpStatus int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[key]
	if !ok {
		return domain.ErrIdempotencyKeyNotFound
	}
	record.Status = status
	record.ResponseBody = responseBody
	record.HTTPStatus = httpStatus
	record.UpdatedAt = time.Now().UTC()
	r.records[key] = record
	return nil
}

// DeleteExpired удаляет до limit записей с истёкшим TTL и возвращает их количество.
func (r *idempotencyRepositoryInMemory) DeleteExpired(before time.Time, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}

	deleted := 0
	for key, record := range r.records {
		if deleted >= limit {
			break
		}
		if record.Expired(before) {
			delete(r.records, key)
			deleted++
		}
	}
	return deleted, nil
}

var _ domain.IdempotencyRepository = (*idempotencyRepositoryInMemory)(nil)
