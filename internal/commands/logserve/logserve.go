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

// Package logserve implements `stagehand log-serve`: start (or, with
// --find, locate) the shared LogService for a database.
package logserve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ironloom/stagehand/internal/cli"
	"github.com/ironloom/stagehand/internal/config"
	"github.com/ironloom/stagehand/internal/log"
	"github.com/ironloom/stagehand/internal/logservice"
)

// NewCommand builds `stagehand log-serve`.
func NewCommand() *cobra.Command {
	var (
		dbPath string
		port   int
		find   bool
	)

	cmd := &cobra.Command{
		Use:   "log-serve",
		Short: "Start (or locate) the shared log service for a database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				return cli.NewMissingArgsError("log-serve requires --db", nil)
			}
			if port <= 0 {
				port = logservice.DefaultPort
			}

			if find {
				found, err := logservice.Discover(cmd.Context(), "localhost", dbPath, logservice.DefaultPort)
				if err != nil {
					return cli.NewFailureError("discovering log service", err)
				}
				fmt.Printf("%s (http %d)\n", found.Addr, found.Info.HTTPPort)
				return nil
			}

			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return cli.NewMissingArgsError("loading configuration", err)
			}

			logger := log.New(log.FromEnv())
			version, _, _ := cli.GetVersion()
			svc, err := logservice.New(logservice.Options{
				DBPath:      dbPath,
				Port:        port,
				Version:     version,
				Logger:      logger,
				TLSCertFile: cfg.TLSCertFile,
				TLSKeyFile:  cfg.TLSKeyFile,
			})
			if err != nil {
				return cli.NewFailureError("starting log service", err)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() { errCh <- svc.Start(ctx) }()

			select {
			case sig := <-sigCh:
				logger.Info("log-serve: shutting down", log.String("signal", sig.String()))
				cancel()
				return svc.Shutdown(context.Background())
			case err := <-errCh:
				return err
			}
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "LogStore database path (required)")
	cmd.Flags().IntVar(&port, "port", logservice.DefaultPort, "TCP port for the relational endpoint")
	cmd.Flags().BoolVar(&find, "find", false, "Scan the conventional port range for an existing service instead of starting one")

	return cmd
}
