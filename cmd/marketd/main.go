package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nftmarket/config"
	"nftmarket/core/events"
	"nftmarket/core/identity"
	"nftmarket/native/assets"
	"nftmarket/native/common"
	"nftmarket/native/market"
	"nftmarket/observability/logging"
	"nftmarket/observability/metrics"
	"nftmarket/rpc"
	"nftmarket/state"
	"nftmarket/storage"
)

const shutdownGrace = 5 * time.Second

func main() {
	configPath := flag.String("config", "./config.toml", "path to the marketd configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Setup("marketd", "").Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup("marketd", cfg.Env)

	var db storage.Database
	if cfg.DataDir == "" {
		db = storage.NewMemDB()
		logger.Warn("no data directory configured, using in-memory storage")
	} else {
		leveldb, err := storage.NewLevelDB(cfg.DataDir)
		if err != nil {
			logger.Error("failed to open database", "path", cfg.DataDir, "error", err)
			os.Exit(1)
		}
		db = leveldb
	}
	defer db.Close()

	admins := make([][20]byte, 0, len(cfg.AdminAddresses))
	for _, raw := range cfg.AdminAddresses {
		addr, err := identity.ParseAddress(raw)
		if err != nil {
			logger.Error("invalid admin address", "address", raw, "error", err)
			os.Exit(1)
		}
		admins = append(admins, addr)
	}

	manager := state.NewManager(db)
	ledger := assets.NewLedger(db)
	broker := events.NewBroker()
	pauses := common.NewPauseSet()
	pauses.SetPaused("market", cfg.PauseMarket)

	engine := market.NewEngine()
	engine.SetState(manager)
	engine.SetAssetLedger(ledger)
	engine.SetAccessControl(identity.NewAdminSet(admins...))
	engine.SetEmitter(metrics.NewEventObserver(broker))
	engine.SetPauses(pauses)
	if cfg.FeeTreasury != "" {
		treasury, err := identity.ParseAddress(cfg.FeeTreasury)
		if err != nil {
			logger.Error("invalid fee treasury", "address", cfg.FeeTreasury, "error", err)
			os.Exit(1)
		}
		engine.SetFeeTreasury(treasury)
	}
	if _, ok, err := manager.RoyaltyPercentGet(); err != nil {
		logger.Error("failed to read royalty percent", "error", err)
		os.Exit(1)
	} else if !ok {
		if err := manager.RoyaltyPercentPut(cfg.RoyaltyFeePercent); err != nil {
			logger.Error("failed to seed royalty percent", "error", err)
			os.Exit(1)
		}
	}

	server := rpc.NewServer(engine, ledger, manager, broker, logger)
	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("marketd listening", "address", cfg.RPCAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("rpc server failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case <-stop:
		logger.Info("shutting down")
	case <-done:
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	<-done
}
