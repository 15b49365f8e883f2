package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"support-relay/auth"
	"support-relay/observability"
	"support-relay/repositories"
	"support-relay/runtime"
	"support-relay/runtime/workers"
	"support-relay/services"
	"support-relay/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the HTTP server and background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Relay core wiring
	monitor := observability.NewMonitor(log)
	registry := runtime.NewRegistry()
	table := runtime.NewAssignmentTable()

	conversations := repositories.NewConversationRepository(db, log, config.LimitMessages)
	recorderQueue := workers.NewRecorderQueue(config.RecorderBufferSize, monitor)

	router := runtime.NewRouter(log, registry, table, recorderQueue, monitor)
	lifecycle := runtime.NewLifecycle(log, registry, table, router, monitor, config.BufferSize)
	monitor.SetGaugeProvider(lifecycle.Gauges)

	replacement, err := censorRune(config.CensorReplacement)
	if err != nil {
		return err
	}
	censor, err := runtime.BuildCensor(log, replacement)
	if err != nil {
		return fmt.Errorf("moderation setup failed: %w", err)
	}
	lifecycle.SetCensor(censor)

	// 4. Supervised workers
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(workers.NewDispatchWorker(lifecycle.Commands(), lifecycle, log))
	sup.Add(workers.NewRecorderWorker(recorderQueue, conversations, log))
	sup.Add(workers.NewTelemetryWorker(monitor, config.MetricInterval))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	supDone := make(chan struct{})
	go func() {
		defer close(supDone)
		sup.Run(ctx)
	}()

	// 5. Services & HTTP surface
	tokens := auth.NewTokenManager(config.JwtSecret, config.AuthTokenDuration)
	verifier := auth.NewTokenVerifier(tokens)
	accounts := services.NewAccountService(repositories.NewUserRepository(db), tokens)
	relay := services.NewRelayService(lifecycle, conversations)

	server := ws.NewServer(log, relay, verifier, config.ConnectionBufferSize, config.WriteTimeout)
	api := ws.NewAPI(log, accounts, relay, verifier, monitor)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{Addr: address, Handler: ws.NewMux(server, api)}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting relay server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 6. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 7. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	sup.Stop()
	<-supDone
	log.Info("Program stopped cleanly")

	return nil
}

// censorRune parses the configured replacement character. An empty value
// disables moderation.
func censorRune(str string) (rune, error) {
	if str == "" {
		return 0, nil
	}
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf("CENSOR_REPLACEMENT must be a single character, got %q", str)
	}
	return r[0], nil
}
