package main

import (
	"chatline/auth"
	"chatline/domain"
	"chatline/infrastructure/http/server"
	"chatline/infrastructure/storage"
	"chatline/internal"
	"chatline/runtime"
	"chatline/runtime/workers"
	"chatline/search"
	"chatline/services"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and owns their lifecycle, so deferred
// cleanups (badger, bluge) run before the process exits.
func run() (int, error) {
	issueToken := flag.String("issue-token", "", "print a bearer token for this email and exit")
	flag.Parse()

	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	location, err := config.DisplayLocation()
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	provider := auth.NewProvider(config.AuthSecret, config.AuthTokenTTL)
	if *issueToken != "" {
		token, err := provider.GenerateToken(*issueToken)
		if err != nil {
			return exitRuntime, fmt.Errorf("token generation failed: %w", err)
		}
		fmt.Println(token)
		return exitOK, nil
	}

	// 2. Document store (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(config))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	store, err := storage.NewDocumentStore(db, logger, runtime.NewRegistry(), time.Now)
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		_ = store.Close()
	}()

	// 3. Search index (Bluge)
	blugeCfg := bluge.InMemoryOnlyConfig()
	if config.BlugeFilepath != "" {
		blugeCfg = bluge.DefaultConfig(config.BlugeFilepath)
	}
	blugeWriter, err := bluge.OpenWriter(blugeCfg)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	index := search.NewIndex(blugeWriter, logger)
	defer func() {
		logger.Info("Closing Bluge...")
		_ = index.Close()
	}()

	// 4. Services
	normalizer := domain.NewNormalizer(config.DisplayLayout, location)
	messageService := services.NewMessageService(store, index, normalizer, logger)
	conversationService := services.NewConversationService(store, messageService, normalizer, logger)
	searchService := services.NewSearchService(conversationService, index)

	// 5. HTTP server
	router := server.NewRouter(server.Dependencies{
		Auth:          provider,
		Conversations: conversationService,
		Messages:      messageService,
		Search:        searchService,
		Log:           logger,
		WriteTimeout:  config.WriteTimeout,
		PingInterval:  config.PingInterval,
	})
	httpWorker := workers.NewHTTPServer(config.Address(), router, config.ShutdownTimeout, logger)
	pruner := workers.NewRevocationPruner(provider, config.PruneInterval, logger)

	// 6. Supervise until a shutdown signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting chatline", "address", config.Address(), "at", time.Now().UTC())
	runtime.NewSupervisor(logger).Add(httpWorker, pruner).Run(ctx)

	logger.Info("Program stopped cleanly", "live_queries_left", store.SubscriberCount())
	return exitOK, nil
}

func buildBadgerOpts(config internal.Config) badger.Options {
	if config.BadgerInMemory {
		return badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.WARNING)
	}
	return badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.WARNING)
}
