// Command logger runs the ingestion daemon: one websocket handler per
// configured exchange/symbol set, flushing ordered ticks to per-column
// files, fanning each flush out to live websocket subscribers, and running
// the background retention and archive workers against the same data root.
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

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ndrandal/tickvis/internal/archive"
	"github.com/ndrandal/tickvis/internal/breaker"
	"github.com/ndrandal/tickvis/internal/config"
	"github.com/ndrandal/tickvis/internal/filehandles"
	"github.com/ndrandal/tickvis/internal/ingest"
	"github.com/ndrandal/tickvis/internal/live"
	"github.com/ndrandal/tickvis/internal/persist"
	"github.com/ndrandal/tickvis/internal/retention"
	"github.com/ndrandal/tickvis/internal/symbol"
)

func main() {
	cfg := config.Load()

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Println("tickvis logger starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	handles := filehandles.NewManager(cfg.DataRoot)
	breakers := breaker.NewRegistry()
	liveMgr := live.NewManager(cfg.LiveSendBufferSize)

	if err := seedSymbolStore(ctx, cfg.MongoURI); err != nil {
		log.Printf("warning: symbol store seed failed: %v", err)
	}

	adapter, err := adapterFor(cfg.Exchange)
	if err != nil {
		log.Fatalf("exchange adapter: %v", err)
	}

	handler := &ingest.Handler{
		Adapter:  adapter,
		Symbols:  cfg.Symbols,
		Handles:  handles,
		Breakers: breakers,
		Live:     liveMgr,
	}
	go func() {
		if err := handler.Run(ctx); err != nil {
			log.Printf("ingest handler stopped: %v", err)
		}
	}()

	go retention.Run(ctx, cfg.DataRoot, cfg.RetentionMaxBytes)

	if cfg.S3Bucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
		if err != nil {
			log.Printf("warning: archive disabled, aws config load failed: %v", err)
		} else {
			client := s3.NewFromConfig(awsCfg)
			archiver := archive.New(cfg.DataRoot, client, cfg.S3Bucket, cfg.S3Prefix, cfg.ArchiveInterval, cfg.ArchiveMinAge)
			go archiver.Run(ctx)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/live", live.Handler(liveMgr))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","state":"%s","clients":%d}`, handler.State(), liveMgr.ClientCount())
	})

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("live websocket listening on ws://%s/live", addr)
	log.Printf("health check: http://%s/health", addr)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}

	log.Println("tickvis logger stopped")
}

func adapterFor(name string) (ingest.ExchangeAdapter, error) {
	switch name {
	case "coinbase":
		return ingest.Coinbase{}, nil
	default:
		return nil, fmt.Errorf("unknown exchange adapter %q", name)
	}
}

// seedSymbolStore connects to Mongo just long enough to ensure indexes and
// upsert the known seed symbols, then disconnects; internal/symbolsearch's
// in-memory index is rebuilt from this store by cmd/server.
func seedSymbolStore(ctx context.Context, uri string) error {
	store, err := persist.NewStore(ctx, uri)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	for _, sym := range symbol.Seed() {
		if err := store.UpsertSymbol(ctx, sym); err != nil {
			return err
		}
	}
	return nil
}
