package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Error bodies stay generic; details go to the log.
const (
	msgStockError = "An error occurred while processing the stock data."
	msgBatchError = "Error processing stock data"
)

type handler struct {
	pipeline Pipeline
}

// GET /test
func (h *handler) test(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "test successfully"})
}

// GET /fetch-stock/{symbol}
func (h *handler) fetchStock(w http.ResponseWriter, r *http.Request) {
	symbol, ok := symbolParam(w, r)
	if !ok {
		return
	}
	snap, err := h.pipeline.FetchStock(r.Context(), symbol)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("symbol", symbol).Msg("fetch stock failed")
		writeError(w, http.StatusInternalServerError, msgStockError)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// GET /process-stock/{symbol}
func (h *handler) processStock(w http.ResponseWriter, r *http.Request) {
	symbol, ok := symbolParam(w, r)
	if !ok {
		return
	}
	res, err := h.pipeline.ProcessStock(r.Context(), symbol)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("symbol", symbol).Msg("process stock failed")
		writeError(w, http.StatusInternalServerError, msgStockError)
		return
	}
	status := http.StatusOK
	if !res.Complete() {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, res)
}

// GET /UpdateFNOStockList
func (h *handler) updateFNOStockList(w http.ResponseWriter, r *http.Request) {
	// A dropped client must not abort a half-done refresh.
	ctx := context.WithoutCancel(r.Context())
	report, err := h.pipeline.RefreshUniverse(ctx)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("universe refresh failed")
		writeError(w, http.StatusInternalServerError, msgBatchError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "FNO stock list updated successfully",
		"report":  report,
	})
}

// GET /UpdateOHLStocks
func (h *handler) updateOHLStocks(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	report, err := h.pipeline.ScanOHL(ctx)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("ohl scan failed")
		writeError(w, http.StatusInternalServerError, msgBatchError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Stock data processed successfully",
		"report":  report,
	})
}

func symbolParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	symbol := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "symbol")))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return "", false
	}
	return symbol, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
