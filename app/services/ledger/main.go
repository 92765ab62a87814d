package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/safeguard/fraudledger/app/services/ledger/handlers"
	"github.com/safeguard/fraudledger/business/sys/metrics"
	"github.com/safeguard/fraudledger/foundation/blockchain/state"
	"github.com/safeguard/fraudledger/foundation/blockchain/storage"
	"github.com/safeguard/fraudledger/foundation/blockchain/storage/bolt"
	"github.com/safeguard/fraudledger/foundation/blockchain/storage/disk"
	"github.com/safeguard/fraudledger/foundation/blockchain/storage/memory"
	"github.com/safeguard/fraudledger/foundation/blockchain/worker"
	"github.com/safeguard/fraudledger/foundation/events"
	"github.com/safeguard/fraudledger/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("LEDGER")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:120s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			APIHost         string        `conf:"default:0.0.0.0:8080"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			CorsOrigin      string        `conf:"default:*"`
			MaxPageSize     int           `conf:"default:1000"`
		}
		Ledger struct {
			Storage        string        `conf:"default:disk,help:disk|bolt|memory"`
			Path           string        `conf:"default:zblock/"`
			Key            string        `conf:"default:ledger"`
			Difficulty     uint          `conf:"default:4"`
			BatchSize      int           `conf:"default:5"`
			Workers        int           `conf:"default:1"`
			HashAlgorithm  string        `conf:"default:sha256"`
			NetworkName    string        `conf:"default:SafeGuard Fraud Registry"`
			NetworkVersion string        `conf:"default:1.0.0"`
			SealInterval   time.Duration `conf:"default:0s"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "fraud registry ledger",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "LEDGER"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Ledger Support

	strg, err := openStorage(cfg.Ledger.Storage, cfg.Ledger.Path)
	if err != nil {
		return fmt.Errorf("unable to open storage: %w", err)
	}

	// The ledger packages accept a function of this signature to allow the
	// application to log. These raw messages are also sent to any websocket
	// client that is connected into the system through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	// The state value represents the ledger and provides an API for
	// application support.
	st, err := state.New(state.Config{
		Storage:        strg,
		Key:            cfg.Ledger.Key,
		Difficulty:     cfg.Ledger.Difficulty,
		BatchSize:      cfg.Ledger.BatchSize,
		Workers:        cfg.Ledger.Workers,
		HashAlgorithm:  cfg.Ledger.HashAlgorithm,
		NetworkName:    cfg.Ledger.NetworkName,
		NetworkVersion: cfg.Ledger.NetworkVersion,
		EvHandler:      ev,
	})
	if err != nil {
		strg.Close()
		return err
	}
	defer func() {
		if err := st.Shutdown(); err != nil {
			log.Errorw("shutdown", "status", "ledger shutdown", "ERROR", err)
		}
	}()

	// The worker seals pending transactions in the background. The worker
	// will register itself with the state.
	worker.Run(st, worker.Config{SealInterval: cfg.Ledger.SealInterval}, ev)

	m := metrics.New()
	m.RegisterLedger(st)

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log, st, m)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Start API Service

	log.Infow("startup", "status", "initializing V1 API support")

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Construct the mux for the API calls.
	apiMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown:    shutdown,
		Log:         log,
		State:       st,
		Evts:        evts,
		Metrics:     m,
		CorsOrigin:  cfg.Web.CorsOrigin,
		MaxPageSize: cfg.Web.MaxPageSize,
	})

	// Construct a server to service the requests against the mux.
	api := http.Server{
		Addr:         cfg.Web.APIHost,
		Handler:      apiMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "api router started", "host", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		// Asking listener to shut down and shed load.
		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}

	return nil
}

// openStorage constructs the configured storage backend.
func openStorage(kind string, path string) (storage.Storage, error) {
	switch kind {
	case "disk":
		d, err := disk.New(path)
		if err != nil {
			return nil, err
		}
		return d, nil

	case "bolt":
		b, err := bolt.New(filepath.Join(path, "ledger.db"))
		if err != nil {
			return nil, err
		}
		return b, nil

	case "memory":
		return memory.New(), nil
	}

	return nil, fmt.Errorf("unknown storage %q, use disk, bolt or memory", kind)
}
