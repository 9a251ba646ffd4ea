package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/proyek/coffeeshop-pos/internal/catalog"
	"github.com/proyek/coffeeshop-pos/internal/inventory"
)

type StockHandler struct {
	Ledger  *inventory.Ledger
	Catalog *catalog.Repo
}

type stockUpdateReq struct {
	StockQuantity int    `json:"stock_quantity"`
	MinStockLevel int    `json:"min_stock_level"`
	MaxStockLevel int    `json:"max_stock_level"`
	Reason        string `json:"reason,omitempty"`
}

type stockAddReq struct {
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason,omitempty"`
}

type stockInfoResp struct {
	catalog.Product
	InStock   bool `json:"in_stock"`
	Available bool `json:"available"`
	LowStock  bool `json:"low_stock"`
}

func stockInfo(p catalog.Product) stockInfoResp {
	return stockInfoResp{Product: p, InStock: p.InStock(), Available: p.Available(), LowStock: p.LowStock()}
}

func (h *StockHandler) Register(r *chi.Mux) {
	r.Get("/products", h.listProducts)
	r.Get("/stock", h.listStock)
	r.Get("/stock/low", h.lowStock)
	r.Get("/stock/{productID}", h.getStock)
	r.Put("/stock/{productID}", h.setLevels)
	r.Post("/stock/{productID}/add", h.addStock)
}

func (h *StockHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Catalog.ListProducts(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *StockHandler) listStock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Catalog.ListProducts(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	out := make([]stockInfoResp, 0, len(ps))
	for _, p := range ps {
		out = append(out, stockInfo(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *StockHandler) lowStock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Ledger.LowStock(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	out := make([]stockInfoResp, 0, len(ps))
	for _, p := range ps {
		out = append(out, stockInfo(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *StockHandler) getStock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Ledger.StockInfo(ctx, chi.URLParam(r, "productID"))
	if err != nil {
		writeEngineErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stockInfo(p))
}

func (h *StockHandler) setLevels(w http.ResponseWriter, r *http.Request) {
	var req stockUpdateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Ledger.SetLevels(ctx, chi.URLParam(r, "productID"), req.StockQuantity, req.MinStockLevel, req.MaxStockLevel)
	if err != nil {
		writeEngineErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stockInfo(p))
}

func (h *StockHandler) addStock(w http.ResponseWriter, r *http.Request) {
	var req stockAddReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Ledger.AddStock(ctx, chi.URLParam(r, "productID"), req.Quantity, req.Reason)
	if err != nil {
		writeEngineErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stockInfo(p))
}
