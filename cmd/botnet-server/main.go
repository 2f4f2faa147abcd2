// Package main is the entry point for the Botnet Empire game server.
// It only handles dependency injection and server initialization.
// NO business logic belongs here.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/botnet-empire/server/internal/catalog"
	"github.com/botnet-empire/server/internal/crypto"
	"github.com/botnet-empire/server/internal/engine"
	"github.com/botnet-empire/server/internal/events"
	"github.com/botnet-empire/server/internal/infra/storage"
	"github.com/botnet-empire/server/internal/network"
	"github.com/botnet-empire/server/internal/persistence"
	"github.com/botnet-empire/server/internal/platform/logger"
	"github.com/botnet-empire/server/internal/platform/metrics"
	"github.com/botnet-empire/server/internal/platform/tuning"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	dbPath := flag.String("db", "empire.db", "SQLite database path")
	catalogPath := flag.String("catalog", "", "catalog YAML path (empty uses the embedded set)")
	lowResource := flag.Bool("low-resource", false, "use the reduced-footprint tuning profile")
	flag.Parse()

	log.Println("[BOTNET-SERVER] Initializing Botnet Empire authoritative server...")

	appLogger := logger.NewLogger()

	cfg := tuning.DefaultConfig()
	if *lowResource {
		cfg = tuning.LowResourceConfig()
	}

	appLogger.Info("Opening SQLite database %q...", *dbPath)
	store, err := storage.OpenSQLite(*dbPath, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
	if err != nil {
		appLogger.Error("Failed to open SQLite: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	cat := catalog.Default()
	if *catalogPath != "" {
		cat, err = catalog.Load(*catalogPath)
		if err != nil {
			appLogger.Error("Failed to load catalog %q: %v", *catalogPath, err)
			os.Exit(1)
		}
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	appLogger.Info("Bootstrapping event feed...")
	feed := events.NewFeed(events.NewSQLitePersister(store.DB()), cfg.FeedChannelBuffer)

	appLogger.Info("Loading game state...")
	loader := persistence.NewLoader(store, appLogger, rng)
	state := loader.Load()

	session := engine.NewSession(state, cat, feed, appLogger, rng, nil)

	miner := crypto.NewMiner(store, rng)
	miner.Load()
	session.SetMiner(miner)

	manager := persistence.NewManager(store, session, appLogger)
	session.SetSaver(manager)

	if summary, err := session.ReconcileOffline(store); err != nil {
		appLogger.Warn("Offline reconciliation failed: %v", err)
	} else if summary != nil {
		appLogger.Info("Offline progress awarded for %dms away.", summary.ElapsedMs)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session.Start(ctx)

	// Crypto exchange-rate drift, independent of the economy tick.
	go func() {
		rateTicker := time.NewTicker(engine.CryptoRatePeriod)
		defer rateTicker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-rateTicker.C:
				miner.RollRates()
				miner.Save()
			}
		}
	}()

	appLogger.Info("Bootstrapping WebSocket Hub...")
	hub := network.NewHub(session, miner, feed, *cfg, appLogger)
	go hub.Run(ctx)
	hub.StartSnapshotBroadcaster(ctx)
	hub.StartFeedPoller(ctx)

	http.HandleFunc("/ws", hub.ServeWS)
	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	http.HandleFunc("/metrics", metrics.Handler())
	http.HandleFunc("/metrics/prometheus", metrics.PrometheusHandler())

	http.HandleFunc("/api/export", func(w http.ResponseWriter, r *http.Request) {
		raw, err := session.SaveSnapshot(false)
		if err != nil {
			http.Error(w, "export failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(persistence.Export(raw)))
	})

	http.HandleFunc("/api/import", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		payload, err := io.ReadAll(io.LimitReader(r.Body, persistence.MaxSaveBytes*2))
		if err != nil {
			http.Error(w, "read failed", http.StatusBadRequest)
			return
		}
		imported, err := persistence.Import(string(payload))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		session.ReplaceState(imported)
		manager.RequestSave()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	http.HandleFunc("/api/reset", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := loader.FullReset(); err != nil {
			http.Error(w, "reset failed", http.StatusInternalServerError)
			return
		}
		session.FullReset()
		miner.Reset()
		_ = store.Delete(engine.OfflineKey)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	server := &http.Server{Addr: *addr}
	go func() {
		appLogger.Info("HTTP server listening on %s", *addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed: %v", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
		appLogger.Info("Shutdown signal received.")
	case <-ctx.Done():
	}

	cancel()
	session.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)

	if err := manager.SaveNow(); err != nil {
		appLogger.Error("Final save failed: %v", err)
	}
	miner.Save()
	if err := session.UpdateLastOnline(store); err != nil {
		appLogger.Warn("Presence stamp failed: %v", err)
	}
	appLogger.Info("Shutdown complete.")
}
