package symbolsearch

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// Handler serves GET /api/symbols/search?q=..., backed by an Index that can
// be hot-swapped on each periodic refresh without locking readers.
type Handler struct {
	idx atomic.Pointer[Index]
}

// NewHandler wraps an initial Index for serving.
func NewHandler(idx *Index) *Handler {
	h := &Handler{}
	h.idx.Store(idx)
	return h
}

// Replace atomically swaps in a freshly rebuilt Index, called after each
// periodic reload from internal/persist.
func (h *Handler) Replace(idx *Index) {
	h.idx.Store(idx)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(struct {
			Error string `json:"error"`
		}{Error: "q is required"})
		return
	}

	results := h.idx.Load().Search(q)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Results []Result `json:"results"`
	}{Results: results})
}
