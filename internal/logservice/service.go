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

// Package logservice implements the standalone shared log process:
// a relational TCP endpoint other `stagehand run` invocations attach to,
// an HTTP `/info` and `/metrics` listener on TCP_PORT-200, activity
// tracking, and a discovery client that locates a running service by the
// database it owns.
package logservice

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ironloom/stagehand/internal/actorsystem"
	"github.com/ironloom/stagehand/internal/logstore"
	"github.com/ironloom/stagehand/internal/metrics"
)

// PortOffset is how far below the TCP port the HTTP `/info`/`/metrics`
// listener binds.
const PortOffset = 200

// DefaultPort is the conventional TCP port LogService listens on absent
// an explicit --port.
const DefaultPort = 29090

// ScanRangeWidth is how many ports a discovery scan covers starting at
// the requested base port.
const ScanRangeWidth = 11

// Options configures a Service.
type Options struct {
	DBPath  string
	Port    int
	Version string
	Logger  *slog.Logger

	// TLSCertFile/TLSKeyFile switch the HTTP info/metrics listener to
	// TLS when both are set. The relational TCP endpoint stays
	// plaintext either way.
	TLSCertFile string
	TLSKeyFile  string
}

// Service owns a LogStore writer and fronts it with a TCP relational
// endpoint plus an HTTP info/metrics listener.
type Service struct {
	store   *logstore.LogStore
	version string
	logger  *slog.Logger

	port     int
	httpPort int

	tlsCertFile string
	tlsKeyFile  string

	tcpLn net.Listener
	http  *http.Server

	startedAt time.Time

	mu          sync.Mutex
	activeConns int
	lastActive  atomic.Int64 // unix nanos

	wg sync.WaitGroup
}

// New opens the log store at opts.DBPath and prepares a Service; it does
// not yet bind any listener (call Start for that).
func New(opts Options) (*Service, error) {
	if opts.Port <= 0 {
		opts.Port = DefaultPort
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	// LogService runs standalone, with no actor System of its own; it
	// still needs the reserved width-1 database pool LogStore's writer
	// loop dispatches onto, so it creates one directly.
	store, err := logstore.Open(opts.DBPath, actorsystem.NewPool(1))
	if err != nil {
		return nil, fmt.Errorf("logservice: open store: %w", err)
	}

	svc := &Service{
		store:       store,
		version:     opts.Version,
		logger:      opts.Logger,
		port:        opts.Port,
		httpPort:    opts.Port - PortOffset,
		tlsCertFile: opts.TLSCertFile,
		tlsKeyFile:  opts.TLSKeyFile,
	}
	svc.touch()
	return svc, nil
}

// Port returns the bound (or requested, pre-Start) TCP port.
func (s *Service) Port() int { return s.port }

// HTTPPort returns the bound (or requested, pre-Start) HTTP port.
func (s *Service) HTTPPort() int { return s.httpPort }

// Store exposes the underlying LogStore, e.g. for a local `log-serve`
// caller that also wants direct query access.
func (s *Service) Store() *logstore.LogStore { return s.store }

// Start binds both listeners and serves until ctx is cancelled or a
// listener fails. Callers run it in a goroutine and race it against a
// signal channel.
func (s *Service) Start(ctx context.Context) error {
	tcpLn, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("logservice: listen tcp :%d: %w", s.port, err)
	}
	s.tcpLn = tcpLn
	s.startedAt = time.Now().UTC()

	mux := http.NewServeMux()
	mux.HandleFunc("/info", s.handleInfo)
	mux.Handle("/metrics", metrics.Handler())
	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.httpPort),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ctx)
	}()

	go func() {
		var err error
		if s.tlsCertFile != "" && s.tlsKeyFile != "" {
			err = s.http.ListenAndServeTLS(s.tlsCertFile, s.tlsKeyFile)
		} else {
			err = s.http.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("logservice: http server: %w", err)
		}
	}()

	s.logger.Info("logservice started",
		slog.Int("tcp_port", s.port),
		slog.Int("http_port", s.httpPort),
		slog.String("db_path", s.store.Path()))

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// acceptLoop accepts remote sessions until the listener closes or ctx is
// cancelled, handing each connection to handleConn on its own goroutine.
func (s *Service) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.tcpLn.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				if isClosedConnError(err) {
					return
				}
				s.logger.Warn("logservice: accept error", slog.Any("error", err))
				return
			}
		}
		s.mu.Lock()
		s.activeConns++
		s.mu.Unlock()
		s.touch()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				s.mu.Lock()
				s.activeConns--
				s.mu.Unlock()
			}()
			s.handleConn(conn)
		}()
	}
}

// touch stamps the activity clock. Nominally that means "on session
// insert or new log record"; it is approximated at the
// connection/request boundary, which is when either of those can occur.
func (s *Service) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// idleTime reports how long it's been since the last recorded activity.
func (s *Service) idleTime() time.Duration {
	last := s.lastActive.Load()
	if last == 0 {
		return 0
	}
	return time.Since(time.Unix(0, last))
}

// ActiveConnections returns the current count of attached TCP sessions.
// OS-level TCP inspection (with -1 as the unavailable fallback) is not
// needed here: this process already has an authoritative count of the
// connections it accepted, so it is reported directly rather than
// shelling out to netstat-equivalents.
func (s *Service) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeConns
}

// Shutdown stops the HTTP listener, then the TCP endpoint, then drains
// and closes the writer, in that order.
func (s *Service) Shutdown(ctx context.Context) error {
	var firstErr error

	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.tcpLn != nil {
		if err := s.tcpLn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	if err := s.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func isClosedConnError(err error) bool {
	return err == net.ErrClosed
}
