// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// stagehandd is the standalone LogService process: the same
// component `stagehand log-serve` starts in-process, packaged as its own
// binary for deployments that run the shared log database outside any
// one workflow run.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ironloom/stagehand/internal/log"
	"github.com/ironloom/stagehand/internal/logservice"
)

// Version information (injected via ldflags at build time).
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	var (
		dbPath      = flag.String("db", "", "LogStore database path (required)")
		port        = flag.Int("port", logservice.DefaultPort, "TCP port for the relational endpoint")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("stagehandd %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "stagehandd: --db is required")
		os.Exit(2)
	}

	logger := log.New(log.FromEnv())
	slog.SetDefault(logger)

	svc, err := logservice.New(logservice.Options{
		DBPath:  *dbPath,
		Port:    *port,
		Version: version,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("stagehandd: failed to start", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() { errCh <- svc.Start(ctx) }()

	select {
	case sig := <-sigCh:
		logger.Info("stagehandd: shutting down", slog.String("signal", sig.String()))
		cancel()
		if err := svc.Shutdown(context.Background()); err != nil {
			logger.Error("stagehandd: shutdown error", slog.Any("error", err))
			os.Exit(1)
		}
	case err := <-errCh:
		if err != nil {
			logger.Error("stagehandd: error", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
