// Package main initializes and starts the Nexus HTTP server, setting
// up configuration, logging, persistence, the identity store, the code
// ticker, and the API routes.
package main

import (
	"context"
	"fmt"

	nethttp "net/http"

	"go.uber.org/zap"

	"github.com/nexuskeeper/nexus/internal/backup"
	"github.com/nexuskeeper/nexus/internal/config"
	"github.com/nexuskeeper/nexus/internal/db"
	"github.com/nexuskeeper/nexus/internal/logger"
	"github.com/nexuskeeper/nexus/internal/repository"
	"github.com/nexuskeeper/nexus/internal/scheduler"
	"github.com/nexuskeeper/nexus/internal/server/handler/http"
	"github.com/nexuskeeper/nexus/internal/storage"
	"github.com/nexuskeeper/nexus/internal/store"
	"github.com/nexuskeeper/nexus/internal/totp"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line, config-file, and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", orDefault(version, "N/A"))
	fmt.Printf("Build date: %s\n", orDefault(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	// Choose the persistence backend: PostgreSQL when a DSN is given,
	// the JSON file store otherwise.
	var persister store.Persister
	if options.DatabaseDSN != "" {
		postgresDB, err := db.InitPostgres(options.DatabaseDSN)
		if err != nil {
			zapLogger.Fatal("cannot init database", zap.Error(err))
		}
		persister = repository.NewPostgresIdentityRepository(postgresDB)
	} else {
		persister = storage.NewFileStore(options.StoragePath)
	}

	// Initialize the identity store from the persisted collection.
	st, err := store.New(persister, zapLogger)
	if err != nil {
		zapLogger.Fatal("cannot init store", zap.Error(err))
	}

	// Start the per-second code ticker.
	ticker := scheduler.NewTicker(st, totp.Service{}, zapLogger)
	ticker.Start(context.Background())

	// Backup codec over the store; no observer dataset on the server.
	codec := backup.NewCodec(st, backup.NopObserver{}, zapLogger)

	// Create HTTP handlers and build the router.
	identityHandler := &http.IdentityHandler{Store: st, Issuer: options.Issuer}
	backupHandler := &http.BackupHandler{Codec: codec}
	codesHandler := &http.CodesHandler{Source: ticker}
	router := http.NewRouter(identityHandler, backupHandler, codesHandler, zapLogger)

	server := &nethttp.Server{
		Addr:    options.Addr,
		Handler: router,
	}

	zapLogger.Info("starting HTTP server", zap.String("addr", options.Addr))
	if err := server.ListenAndServe(); err != nil {
		zapLogger.Fatal("failed to start HTTP server", zap.Error(err))
	}
}

// orDefault returns s, or def when s is empty. It stands in for
// cmp.Or, which needs Go 1.22+.
func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
