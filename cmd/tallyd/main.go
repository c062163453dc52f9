// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"time"

	"github.com/luxfi/ids"
	log "github.com/luxfi/log"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/tally"
	"github.com/luxfi/tally/crypto/fhe"
	"github.com/luxfi/tally/oracle/simoracle"
	"github.com/luxfi/tally/service/api"
	"github.com/luxfi/tally/service/config"
	"github.com/luxfi/tally/service/healthcheck"
	"github.com/luxfi/tally/store"
)

var version = "v0.0.0-dev"

const oracleFlushInterval = time.Second

func main() {
	cfg := buildConfig()

	logLevel, err := log.ToLevel(cfg.LogLevel)
	if err != nil {
		stdlog.Fatalf("error reading log level from config: %s", err)
	}
	logger := log.NewLogger(
		"tallyd",
		*log.NewWrappedCore(
			logLevel,
			os.Stdout,
			log.JSON.ConsoleEncoder(),
		),
	)

	logger.Info("Initializing tallyd", log.String("version", version))

	s, err := store.New(cfg.StoreDir)
	if err != nil {
		logger.Fatal("Failed to open state store", log.Err(err))
		os.Exit(1)
	}
	defer s.Close()

	// The daemon runs the insecure development scheme with an in-process
	// oracle. Keys are regenerated on every start, which is fine for the
	// mock scheme since handles decode without them.
	scheme := fhe.NewMockScheme()
	_, sk, err := scheme.GenerateKeys()
	if err != nil {
		logger.Fatal("Failed to generate scheme keys", log.Err(err))
		os.Exit(1)
	}
	oracle, err := simoracle.New(logger, scheme, sk)
	if err != nil {
		logger.Fatal("Failed to create oracle", log.Err(err))
		os.Exit(1)
	}

	protocol := tally.NewProtocol(tally.ProtocolConfig{
		Owner:    cfg.OwnerAddress(),
		Instance: cfg.InstanceAddress(),
		Oracle:   oracle,
		Store:    s,
		Logger:   logger,
	})
	oracle.SetCallback(func(ctx context.Context, requestID ids.ID, cleartext, proof []byte) error {
		_, err := protocol.OnDecryptionResult(ctx, requestID, cleartext, proof)
		return err
	})

	if err := store.Restore(s, scheme, protocol.Ledger(), protocol.Coordinator()); err != nil {
		logger.Fatal("Failed to restore state", log.Err(err))
		os.Exit(1)
	}

	ctx := context.Background()
	owner := cfg.OwnerAddress()
	if err := protocol.SetCooldown(ctx, owner, cfg.Cooldown); err != nil {
		logger.Fatal("Failed to set cooldown", log.Err(err))
		os.Exit(1)
	}
	for _, provider := range cfg.ProviderAddresses() {
		if err := protocol.AddProvider(ctx, owner, provider); err != nil {
			logger.Fatal("Failed to add provider",
				log.Stringer("provider", provider),
				log.Err(err),
			)
			os.Exit(1)
		}
	}

	api.HandleStatusRequest(logger, protocol)
	api.HandleBatchRequest(logger, protocol)
	api.HandleRequestLookup(logger, protocol)
	healthcheck.HandleHealthCheckRequest(func(context.Context) error {
		_, _, _, err := s.BatchMeta()
		return err
	})

	logger.Info("Initialization complete")

	errGroup, ctx := errgroup.WithContext(ctx)
	errGroup.Go(func() error {
		ticker := time.NewTicker(oracleFlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := oracle.Flush(ctx); err != nil {
					logger.Warn("Oracle flush failed", log.Err(err))
				}
			}
		}
	})
	errGroup.Go(func() error {
		httpServer := &http.Server{
			Addr: fmt.Sprintf(":%d", cfg.APIPort),
		}
		go func() {
			<-ctx.Done()
			_ = httpServer.Shutdown(ctx)
		}()

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		return nil
	})

	if err := errGroup.Wait(); err != nil {
		logger.Fatal("Exited with error", log.Err(err))
		os.Exit(1)
	}
}

// buildConfig parses the flags and builds the config. Errors here call
// stdlog.Fatalf since they occur before the logger exists.
func buildConfig() config.Config {
	fs := config.BuildFlagSet()
	if err := fs.Parse(os.Args[1:]); err != nil {
		config.DisplayUsageText()
		stdlog.Fatalf("Failed to parse flags: %s", err)
	}

	displayVersion, err := fs.GetBool(config.VersionKey)
	if err != nil {
		stdlog.Fatalf("error reading %s flag: %s", config.VersionKey, err)
	}
	if displayVersion {
		fmt.Printf("%s\n", version)
		os.Exit(0)
	}

	help, err := fs.GetBool(config.HelpKey)
	if err != nil {
		stdlog.Fatalf("error reading %s flag: %s", config.HelpKey, err)
	}
	if help {
		config.DisplayUsageText()
		os.Exit(0)
	}

	v, err := config.BuildViper(fs)
	if err != nil {
		stdlog.Fatalf("couldn't configure flags: %s", err)
	}

	cfg, err := config.NewConfig(v)
	if err != nil {
		stdlog.Fatalf("couldn't build config: %s", err)
	}
	return cfg
}
