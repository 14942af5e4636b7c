package httpapi

import (
	"context"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vendaro/commerce-engine/internal/domain"
	"github.com/vendaro/commerce-engine/internal/service/availability"
	"github.com/vendaro/commerce-engine/internal/service/cart"
	"github.com/vendaro/commerce-engine/internal/service/tenant"
)

// Заголовки, через которые внешний периметр передаёт покупателя.
// Аутентификация — забота периметра, движок доверяет этим значениям.
const (
	headerBuyerID    = "X-Buyer-ID"
	headerSessionKey = "X-Session-Key"
	headerBuyerClass = "X-Buyer-Class"
	headerIdemKey    = "Idempotency-Key"
)

// Server — тонкая JSON-обёртка над сервисами движка. Каждый запрос
// разрешается ровно в один магазин по хосту до вызова обработчика.
type Server struct {
	tenants      tenant.Resolver
	carts        cart.Service
	catalog      domain.CatalogRepository
	availability availability.Evaluator
	idempotency  domain.IdempotencyRepository
	logger       *log.Entry
}

// NewServer создаёт HTTP-фасад. idempotency может быть nil: тогда
// заголовок Idempotency-Key игнорируется.
func NewServer(
	tenants tenant.Resolver,
	carts cart.Service,
	catalog domain.CatalogRepository,
	evaluator availability.Evaluator,
	idempotency domain.IdempotencyRepository,
	logger *log.Entry,
) *Server {
	if logger == nil {
		logger = log.New().WithField("component", "httpapi")
	}
	return &Server{
		tenants:      tenants,
		carts:        carts,
		catalog:      catalog,
		availability: evaluator,
		idempotency:  idempotency,
		logger:       logger,
	}
}

// Handler собирает маршруты API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/products/{id}", s.withStore(s.handleGetProduct))
	mux.HandleFunc("GET /api/cart", s.withStore(s.handleGetCart))
	mux.HandleFunc("POST /api/cart/items", s.withStore(s.idempotent(s.handleAddItem)))
	mux.HandleFunc("PATCH /api/cart/items/{id}", s.withStore(s.idempotent(s.handleUpdateItem)))
	mux.HandleFunc("DELETE /api/cart/items/{id}", s.withStore(s.idempotent(s.handleRemoveItem)))
	mux.HandleFunc("POST /api/cart/clear", s.withStore(s.idempotent(s.handleClearCart)))
	mux.HandleFunc("POST /api/cart/merge", s.withStore(s.idempotent(s.handleMergeCart)))

	return mux
}

type storeContextKey struct{}

// withStore разрешает магазин по хосту запроса и кладёт его в контекст.
func (s *Server) withStore(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := s.tenants.Resolve(r.Host)
		if err != nil {
			s.writeError(w, err)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), storeContextKey{}, store)))
	}
}

func storeFrom(r *http.Request) domain.Store {
	store, _ := r.Context().Value(storeContextKey{}).(domain.Store)
	return store
}

// ownerFrom извлекает владельца корзины из заголовков запроса.
// Ровно один из X-Buyer-ID / X-Session-Key должен быть задан.
func ownerFrom(r *http.Request) (domain.CartOwner, error) {
	owner := domain.CartOwner{
		BuyerID:    r.Header.Get(headerBuyerID),
		SessionKey: r.Header.Get(headerSessionKey),
	}
	if !owner.Valid() {
		return domain.CartOwner{}, domain.ErrCartOwnerInvalid
	}
	return owner, nil
}

func classFrom(r *http.Request) domain.PricingClass {
	class := domain.PricingClass(r.Header.Get(headerBuyerClass))
	if class == "" {
		return domain.PricingClassRetail
	}
	return class
}
