package httpapi

import (
	"net/http"

	"github.com/vendaro/commerce-engine/internal/domain"
	"github.com/vendaro/commerce-engine/internal/service/cart"
)

type cartLineResponse struct {
	LineID         string `json:"line_id"`
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name"`
	VariantID      string `json:"variant_id,omitempty"`
	Quantity       int64  `json:"quantity"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
	SubtotalMinor  int64  `json:"subtotal_minor"`
	Class          string `json:"class"`
	IsAvailable    bool   `json:"is_available"`
	AvailableStock int64  `json:"available_stock"`
}

type cartResponse struct {
	CartID        string             `json:"cart_id"`
	StoreID       string             `json:"store_id"`
	Currency      string             `json:"currency"`
	Lines         []cartLineResponse `json:"lines"`
	SubtotalMinor int64              `json:"subtotal_minor"`
	// AffectedLine — строка, которую изменила мутация; для чтений отсутствует.
	AffectedLine *cartLineResponse `json:"affected_line,omitempty"`
}

func cartLineResponseFrom(line cart.LineView) cartLineResponse {
	return cartLineResponse{
		LineID:         line.LineID,
		ProductID:      line.ProductID,
		ProductName:    line.ProductName,
		VariantID:      line.VariantID,
		Quantity:       line.Quantity,
		UnitPriceMinor: line.UnitPriceMinor,
		SubtotalMinor:  line.SubtotalMinor,
		Class:          string(line.Class),
		IsAvailable:    line.IsAvailable,
		AvailableStock: line.AvailableStock,
	}
}

func cartResponseFrom(view cart.View) cartResponse {
	resp := cartResponse{
		CartID:        view.CartID,
		StoreID:       view.StoreID,
		Currency:      view.Currency,
		Lines:         make([]cartLineResponse, 0, len(view.Lines)),
		SubtotalMinor: view.SubtotalMinor,
	}
	for _, line := range view.Lines {
		resp.Lines = append(resp.Lines, cartLineResponseFrom(line))
	}
	if affected, ok := view.AffectedLine(); ok {
		lr := cartLineResponseFrom(affected)
		resp.AffectedLine = &lr
	}
	return resp
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFrom(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	view, err := s.carts.Render(storeFrom(r), owner)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponseFrom(view))
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
	Quantity  int64  `json:"quantity"`
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFrom(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: apiError{Kind: "bad_request", Message: "malformed request body"}})
		return
	}

	view, err := s.carts.AddItem(storeFrom(r), owner, cart.AddItemInput{
		ProductID: req.ProductID,
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
		Class:     classFrom(r),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponseFrom(view))
}

type updateItemRequest struct {
	Quantity int64 `json:"quantity"`
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFrom(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req updateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: apiError{Kind: "bad_request", Message: "malformed request body"}})
		return
	}

	view, err := s.carts.UpdateItemQuantity(storeFrom(r), owner, r.PathValue("id"), req.Quantity)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponseFrom(view))
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFrom(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	view, err := s.carts.RemoveItem(storeFrom(r), owner, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponseFrom(view))
}

func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFrom(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	view, err := s.carts.Clear(storeFrom(r), owner)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponseFrom(view))
}

type mergeCartRequest struct {
	SessionKey string `json:"session_key"`
}

// handleMergeCart переносит анонимную корзину сессии в корзину
// аутентифицированного покупателя из X-Buyer-ID.
func (s *Server) handleMergeCart(w http.ResponseWriter, r *http.Request) {
	buyerID := r.Header.Get(headerBuyerID)
	if buyerID == "" {
		s.writeError(w, domain.ErrCartOwnerInvalid)
		return
	}

	var req mergeCartRequest
	if err := decodeJSON(r, &req); err != nil || req.SessionKey == "" {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: apiError{Kind: "bad_request", Message: "session_key is required"}})
		return
	}

	view, err := s.carts.Merge(storeFrom(r), req.SessionKey, buyerID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponseFrom(view))
}
