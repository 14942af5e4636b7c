package httpapi

import (
	"net/http"

	"github.com/vendaro/commerce-engine/internal/domain"
)

type sizeOptionResponse struct {
	VariantID  string `json:"variant_id"`
	SizeID     string `json:"size_id"`
	SizeValue  string `json:"size_value"`
	SizeType   string `json:"size_type"`
	Stock      int64  `json:"stock"`
	PriceMinor int64  `json:"price_minor"`
}

type productResponse struct {
	ID             string               `json:"id"`
	Name           string               `json:"name"`
	Currency       string               `json:"currency"`
	PriceMinor     int64                `json:"price_minor"`
	CompareAtMinor int64                `json:"compare_at_minor,omitempty"`
	InStock        bool                 `json:"in_stock"`
	TotalStock     int64                `json:"total_stock"`
	AvailableSizes []sizeOptionResponse `json:"available_sizes"`
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	store := storeFrom(r)
	class := classFrom(r)
	if !class.Valid() {
		s.writeError(w, domain.ErrPricingClassInvalid)
		return
	}

	product, err := s.catalog.GetProduct(store.ID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !product.Available {
		s.writeError(w, domain.ErrProductNotFound)
		return
	}

	view, err := s.availability.View(product)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := productResponse{
		ID:             product.ID,
		Name:           product.Name,
		Currency:       store.Currency,
		PriceMinor:     domain.PriceFor(store, product, nil, class),
		CompareAtMinor: product.CompareAtMinor,
		InStock:        view.InStock,
		TotalStock:     view.TotalStock,
		AvailableSizes: make([]sizeOptionResponse, 0, len(view.AvailableSizes)),
	}
	for _, opt := range view.AvailableSizes {
		variant, err := s.catalog.GetVariant(product.ID, opt.VariantID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		resp.AvailableSizes = append(resp.AvailableSizes, sizeOptionResponse{
			VariantID:  opt.VariantID,
			SizeID:     opt.SizeID,
			SizeValue:  opt.SizeValue,
			SizeType:   opt.SizeType,
			Stock:      opt.Stock,
			PriceMinor: domain.PriceFor(store, product, &variant, class),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}
