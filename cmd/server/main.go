// Command server runs the read-side HTTP daemon: the zero-copy mmap
// range-query endpoint and the weighted symbol search endpoint, both
// backed by the same data root and Mongo symbol store the logger writes.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ndrandal/tickvis/internal/config"
	"github.com/ndrandal/tickvis/internal/persist"
	"github.com/ndrandal/tickvis/internal/rangeserver"
	"github.com/ndrandal/tickvis/internal/symbol"
	"github.com/ndrandal/tickvis/internal/symbolsearch"
)

func main() {
	cfg := config.Load()

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Println("tickvis server starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	store, err := persist.NewStore(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer store.Close(context.Background())

	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	syms, err := store.ListSymbols(ctx)
	if err != nil {
		log.Fatalf("list symbols: %v", err)
	}
	if len(syms) == 0 {
		log.Println("symbol store empty, seeding from built-in list")
		syms = symbol.Seed()
	}

	searchHandler := symbolsearch.NewHandler(symbolsearch.NewIndex(syms))
	go refreshSymbolIndexPeriodically(ctx, store, searchHandler)

	cache := rangeserver.NewCache(cfg.DataRoot)
	defer cache.Purge()
	rangeHandler := rangeserver.NewHandler(cache)
	rangeHandler.DefaultExchange = cfg.Exchange

	mux := http.NewServeMux()
	mux.Handle("/api/data", rangeHandler)
	mux.Handle("/api/symbols/search", searchHandler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","cached_mappings":%d}`, cache.Len())
	})

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("range/search server listening on http://%s", addr)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}

	log.Println("tickvis server stopped")
}

// refreshSymbolIndexPeriodically reloads the in-memory search index from
// Mongo every few minutes, picking up symbols the logger has seeded or
// operators have added since this process started.
func refreshSymbolIndexPeriodically(ctx context.Context, store *persist.Store, h *symbolsearch.Handler) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			syms, err := store.ListSymbols(ctx)
			if err != nil {
				log.Printf("symbol index refresh failed: %v", err)
				continue
			}
			if len(syms) == 0 {
				continue
			}
			h.Replace(symbolsearch.NewIndex(syms))
		}
	}
}
