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

package logstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ironloom/stagehand/internal/actorsystem"
	"github.com/ironloom/stagehand/internal/metrics"
)

const (
	writerBatchSize = 100
	writerPollEvery = 100 * time.Millisecond
	closeJoinCap    = 5 * time.Second
	drainSpinEvery  = 10 * time.Millisecond
)

// pendingRecord is one queue entry awaiting the writer's next batch.
type pendingRecord struct {
	sessionID  int64
	nodeID     string
	label      string
	actionName string
	level      Level
	message    string
	exitCode   *int
	durationMS *int64
	timestamp  time.Time
}

// LogStore is the durable append-only relational log. Its write
// connection is owned exclusively by a single writer goroutine dispatched
// onto a reserved width-1 pool; reads run on a second, shared connection.
type LogStore struct {
	path    string
	writeDB *sql.DB
	readDB  *sql.DB
	pool    *actorsystem.Pool

	queue   chan pendingRecord
	queueWG sync.WaitGroup // counts records accepted but not yet committed

	running   atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// Open opens (creating if necessary) the SQLite database at path, runs
// migrations on the write connection, and starts the writer loop on pool, the
// reserved width-1 database pool. WAL mode lets other
// processes attach to the same file concurrently, the functional
// equivalent of the embedded "auto-server" mode; see DESIGN.md.
func Open(path string, pool *actorsystem.Pool) (*LogStore, error) {
	writeDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("logstore: open write connection: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	readDB, err := sql.Open("sqlite", path)
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("logstore: open read connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := writeDB.PingContext(ctx); err != nil {
		writeDB.Close()
		readDB.Close()
		return nil, fmt.Errorf("logstore: ping: %w", err)
	}
	if err := configurePragmas(ctx, writeDB); err != nil {
		writeDB.Close()
		readDB.Close()
		return nil, err
	}
	if err := migrate(ctx, writeDB); err != nil {
		writeDB.Close()
		readDB.Close()
		return nil, err
	}

	ls := &LogStore{
		path:    path,
		writeDB: writeDB,
		readDB:  readDB,
		pool:    pool,
		queue:   make(chan pendingRecord, 4096),
		done:    make(chan struct{}),
	}
	ls.running.Store(true)
	ls.pool.Submit(ls.writerLoop)
	return ls, nil
}

// Path returns the database file path this store was opened with.
func (ls *LogStore) Path() string { return ls.path }

// SubmitLog implements accumulator.LogSubmitter: it enqueues a LogRecord
// and returns without waiting for the write to land (fire-and-forget).
func (ls *LogStore) SubmitLog(sessionID int64, nodeID, level, message string) {
	ls.enqueue(pendingRecord{
		sessionID: sessionID,
		nodeID:    nodeID,
		level:     Level(level),
		message:   message,
		timestamp: time.Now().UTC(),
	})
}

// LogActionForSession packages a structured action/transition outcome as a
// LogRecord for the writer queue. session.Recorder adapts this into the
// session-less interpreter.ActionLogger shape by closing over the id.
func (ls *LogStore) LogActionForSession(sessionID int64, nodeID, label, actionName, level, message string, exitCode *int, durationMS *int64) {
	ls.enqueue(pendingRecord{
		sessionID:  sessionID,
		nodeID:     nodeID,
		label:      label,
		actionName: actionName,
		level:      Level(level),
		message:    message,
		exitCode:   exitCode,
		durationMS: durationMS,
		timestamp:  time.Now().UTC(),
	})
}

func (ls *LogStore) enqueue(rec pendingRecord) {
	if !ls.running.Load() {
		return
	}
	ls.queueWG.Add(1)
	select {
	case ls.queue <- rec:
	default:
		// Queue saturated: block the producer briefly rather than drop a
		// record outright, mirroring the bounded multi-producer contract.
		ls.queue <- rec
	}
	metrics.SetWriterQueueDepth(len(ls.queue))
}

// writerLoop is the sole consumer of ls.queue. It drains up to
// writerBatchSize records per transaction, committing each batch; when the
// queue is empty it polls with a writerPollEvery timeout.
func (ls *LogStore) writerLoop() {
	defer close(ls.done)
	for {
		batch := ls.collectBatch()
		if len(batch) == 0 {
			if !ls.running.Load() {
				return
			}
			continue
		}
		ls.commitBatch(batch)
		metrics.RecordBatchWritten()
		for range batch {
			ls.queueWG.Done()
		}
		metrics.SetWriterQueueDepth(len(ls.queue))
		if len(batch) == 0 && !ls.running.Load() {
			return
		}
	}
}

func (ls *LogStore) collectBatch() []pendingRecord {
	var batch []pendingRecord
	timer := time.NewTimer(writerPollEvery)
	defer timer.Stop()

	select {
	case rec, ok := <-ls.queue:
		if !ok {
			return batch
		}
		batch = append(batch, rec)
	case <-timer.C:
		if !ls.running.Load() {
			return nil
		}
		return nil
	}

	for len(batch) < writerBatchSize {
		select {
		case rec, ok := <-ls.queue:
			if !ok {
				return batch
			}
			batch = append(batch, rec)
		default:
			return batch
		}
	}
	return batch
}

func (ls *LogStore) commitBatch(batch []pendingRecord) {
	tx, err := ls.writeDB.Begin()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logstore: begin batch: %v\n", err)
		return
	}

	stmt, err := tx.Prepare(`INSERT INTO logs
		(session_id, timestamp, node_id, label, action_name, level, message, exit_code, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		fmt.Fprintf(os.Stderr, "logstore: prepare batch: %v\n", err)
		return
	}
	defer stmt.Close()

	for _, rec := range batch {
		if _, err := stmt.Exec(rec.sessionID, rec.timestamp.Format(time.RFC3339Nano), rec.nodeID,
			rec.label, rec.actionName, string(rec.level), rec.message, rec.exitCode, rec.durationMS); err != nil {
			tx.Rollback()
			fmt.Fprintf(os.Stderr, "logstore: insert failed, batch rolled back: %v\n", err)
			return
		}
	}

	if err := tx.Commit(); err != nil {
		fmt.Fprintf(os.Stderr, "logstore: commit batch: %v\n", err)
	}
}

// EndSession blocks until the write queue fully drains (spin-sleeping in
// drainSpinEvery increments), then marks the session with status.
func (ls *LogStore) EndSession(ctx context.Context, sessionID int64, status SessionStatus) error {
	ls.waitForDrain(ctx)
	_, err := ls.writeDB.ExecContext(ctx,
		`UPDATE sessions SET status = ?, ended_at = ? WHERE id = ?`,
		string(status), time.Now().UTC().Format(time.RFC3339Nano), sessionID)
	if err != nil {
		return fmt.Errorf("logstore: end session: %w", err)
	}
	return nil
}

func (ls *LogStore) waitForDrain(ctx context.Context) {
	drained := make(chan struct{})
	go func() {
		ls.queueWG.Wait()
		close(drained)
	}()
	ticker := time.NewTicker(drainSpinEvery)
	defer ticker.Stop()
	for {
		select {
		case <-drained:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Close stops the writer (running=false), joins it with a closeJoinCap
// timeout, and closes both connections. Safe to call more than once.
func (ls *LogStore) Close() error {
	var err error
	ls.closeOnce.Do(func() {
		ls.running.Store(false)
		select {
		case <-ls.done:
		case <-time.After(closeJoinCap):
			fmt.Fprintln(os.Stderr, "logstore: writer did not stop within 5s, closing anyway")
		}
		if e := ls.writeDB.Close(); e != nil {
			err = e
		}
		if e := ls.readDB.Close(); e != nil && err == nil {
			err = e
		}
	})
	return err
}
