package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"tron-multisig/contract"
	"tron-multisig/coordinator"
	"tron-multisig/db"
	"tron-multisig/handlers"
	"tron-multisig/logger"
	"tron-multisig/models"
	"tron-multisig/repository"
	"tron-multisig/routers"
	"tron-multisig/tron"
)

func main() {
	// Load config
	viper.SetConfigFile("config/config.yaml")
	if err := viper.ReadInConfig(); err != nil {
		fmt.Println("Config file error:", err)
		os.Exit(1)
	}

	appLogFile := viper.GetString("log.app_log_file")
	logLevel := viper.GetString("log.level")

	if err := logger.InitLogger(appLogFile, logLevel); err != nil {
		fmt.Println("Failed to initialize logger:", err)
		os.Exit(1)
	}

	logger.Logger.Info("Starting multisig server...")

	// On-chain approval automaton backed by the in-memory token ledger
	roster := models.Roster{
		Owners:    viper.GetStringSlice("contract.owners"),
		Threshold: viper.GetInt("contract.threshold"),
	}
	contractAccount := viper.GetString("contract.account")
	token := contract.NewMemoryToken(map[string]int64{
		contractAccount: viper.GetInt64("contract.initial_balance"),
	}, true)
	multisig, err := contract.New(roster, contractAccount, token,
		viper.GetDuration("contract.expiration"), nil)
	if err != nil {
		logger.Logger.Fatal("Failed to initialize contract automaton", zap.Error(err))
	}

	// Connect to LevelDB
	leveldbPath := viper.GetString("leveldb.path")
	ldb, err := db.NewLevelDB(leveldbPath)
	if err != nil {
		logger.Logger.Fatal("Failed to open leveldb", zap.Error(err))
	}
	defer ldb.Close()

	// Off-chain signature coordinator
	signer, err := tron.NewSigner(viper.GetString("tron.private_key"))
	if err != nil {
		logger.Logger.Fatal("Failed to parse signing key", zap.Error(err))
	}
	client := tron.NewClient(viper.GetString("tron.rpc_url"))
	wallet, err := tron.NewWallet(signer, client, viper.GetString("tron.account"))
	if err != nil {
		logger.Logger.Fatal("Failed to initialize wallet", zap.Error(err))
	}
	pendingRepo := repository.NewPendingRepository(ldb)
	coord := coordinator.New(pendingRepo, wallet, client, nil)

	// Periodic reconciliation
	scheduler := cron.New()
	schedule := viper.GetString("reconcile.schedule")
	if _, err := scheduler.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		coord.Reconcile(ctx)
	}); err != nil {
		logger.Logger.Fatal("Failed to schedule reconciliation", zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Initialize HTTP handlers
	h := handlers.NewHandler(multisig, coord)

	// Setup router
	r := mux.NewRouter()
	routers.RegisterRoutes(r, h)

	// HTTP Server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", viper.GetInt("server.port")),
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			logger.Logger.Info("Server stopped", zap.Error(err))
		}
	}()

	logger.Logger.Info("Server running on port", zap.Int("port", viper.GetInt("server.port")))

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Logger.Info("Shutdown signal received, exiting...")
	srv.Close()
}
