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

// Package run implements `stagehand run`: it wires every component in
// together for one workflow execution — actor system, log store,
// output multiplexer, node group, and the closing report.
package run

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ironloom/stagehand/internal/accumulator"
	"github.com/ironloom/stagehand/internal/actors/builtin"
	"github.com/ironloom/stagehand/internal/actorsystem"
	"github.com/ironloom/stagehand/internal/cli"
	"github.com/ironloom/stagehand/internal/config"
	"github.com/ironloom/stagehand/internal/cowsay"
	"github.com/ironloom/stagehand/internal/interpreter"
	"github.com/ironloom/stagehand/internal/inventory"
	"github.com/ironloom/stagehand/internal/log"
	"github.com/ironloom/stagehand/internal/logstore"
	"github.com/ironloom/stagehand/internal/nodegroup"
	"github.com/ironloom/stagehand/internal/remoteshell"
	"github.com/ironloom/stagehand/internal/reporter"
	"github.com/ironloom/stagehand/internal/session"
	"github.com/ironloom/stagehand/internal/workflowdoc"
)

// localHostname is the synthetic inventory host name used for the
// node-less, single-host execution path (no --inventory given): the
// node factory below routes it to LocalShell instead of dialing SSH,
// the "node-less (single-host) case" remoteshell.LocalShell's doc
// comment describes.
const localHostname = "localhost"

const sshDialTimeout = 30 * time.Second

// NewCommand builds `stagehand run`.
func NewCommand() *cobra.Command {
	var (
		dir         string
		workflow    string
		inventoryPt string
		overlay     string
		threads     int
		maxSteps    int
		limit       string
		fileLog     bool
		noFileLog   bool
		logDB       bool
		noLogDB     bool
		askPass     bool
		quiet       bool
		cowfile     string
		renderTo    string
		dbPath      string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a workflow",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" || workflow == "" {
				return cli.NewMissingArgsError("run requires --dir and --workflow", nil)
			}

			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return cli.NewMissingArgsError("loading configuration", err)
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}
			if threads > 0 {
				cfg.Threads = threads
			}
			if maxSteps > 0 {
				cfg.MaxSteps = maxSteps
			}

			fileLogEnabled := fileLog && !noFileLog
			logDBEnabled := !noLogDB || logDB

			opts := runOptions{
				dir:         dir,
				workflow:    workflow,
				inventoryPt: inventoryPt,
				overlay:     overlay,
				limit:       limit,
				threads:     cfg.Threads,
				maxSteps:    cfg.MaxSteps,
				fileLog:     fileLogEnabled,
				logDB:       logDBEnabled,
				askPass:     askPass,
				quiet:       quiet,
				cowfile:     cowfile,
				renderTo:    renderTo,
				dbPath:      cfg.DBPath,
			}

			success, err := execute(cmd.Context(), opts)
			if err != nil {
				return cli.NewMissingArgsError("run", err)
			}
			if !success {
				return cli.NewFailureError("workflow failed", nil)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Workflow base directory (required)")
	cmd.Flags().StringVar(&workflow, "workflow", "", "Workflow file name, relative to --dir (required)")
	cmd.Flags().StringVar(&inventoryPt, "inventory", "", "Inventory file (omit for single-host/local execution)")
	cmd.Flags().StringVar(&overlay, "overlay", "", "Overlay directory layered on top of --dir for sub-workflow lookups")
	cmd.Flags().IntVar(&threads, "threads", 0, "Shared user-pool width (default: config/4)")
	cmd.Flags().IntVar(&maxSteps, "max-steps", interpreter.DefaultMaxSteps, "Interpreter step budget")
	cmd.Flags().StringVar(&limit, "limit", "", "Restrict execution to a host/group subset of the inventory")
	cmd.Flags().BoolVar(&fileLog, "file-log", true, "Write a run.log file in the --dir directory")
	cmd.Flags().BoolVar(&noFileLog, "no-file-log", false, "Disable the run.log file")
	cmd.Flags().BoolVar(&logDB, "log-db", true, "Record the session in the log database")
	cmd.Flags().BoolVar(&noLogDB, "no-log-db", false, "Disable log database recording")
	cmd.Flags().BoolVar(&askPass, "ask-pass", false, "Prompt for the SSH password instead of using inventory vars")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "Suppress non-error console output")
	cmd.Flags().StringVar(&cowfile, "cowfile", "", "Wrap the closing report in a cowsay-style banner")
	cmd.Flags().StringVar(&renderTo, "render-to", "", "Write the closing report to a file instead of stdout")
	cmd.Flags().StringVar(&dbPath, "db", "", "LogStore database path (default: XDG config dir)")

	return cmd
}

type runOptions struct {
	dir, workflow, inventoryPt, overlay, limit string
	threads, maxSteps                          int
	fileLog, logDB, askPass, quiet             bool
	cowfile, renderTo, dbPath                  string
}

// execute runs one full `run` invocation and reports whether every node
// succeeded. A non-nil error means the command could not even get that
// far (configuration, workflow load, inventory load).
func execute(ctx context.Context, o runOptions) (bool, error) {
	logger := log.New(log.FromEnv())

	workflowPath := filepath.Join(o.dir, o.workflow)
	wf, err := workflowdoc.Load(workflowPath)
	if err != nil {
		return false, fmt.Errorf("load workflow: %w", err)
	}
	if err := workflowdoc.Validate(wf); err != nil {
		return false, fmt.Errorf("validate workflow: %w", err)
	}

	hosts, inventoryName, err := loadHosts(o)
	if err != nil {
		return false, err
	}

	sys := actorsystem.New(o.threads)
	defer sys.Shutdown()
	registerBuiltins(sys)

	var store *logstore.LogStore
	if o.logDB {
		store, err = logstore.Open(o.dbPath, sys.DatabasePool())
		if err != nil {
			return false, fmt.Errorf("open log store: %w", err)
		}
		defer store.Close()
	}

	mux := accumulator.NewMultiplexer(accumulator.DefaultStderrWriter)
	console := accumulator.NewConsoleAccumulator(os.Stdout, os.Stderr, o.quiet)
	mux.Attach(console)
	defer console.Close()

	if o.fileLog {
		logPath := filepath.Join(o.dir, "run.log")
		fileAcc, err := accumulator.NewFileAccumulator(logPath)
		if err != nil {
			logger.Warn("run: could not open run.log", log.Error(err))
		} else {
			mux.Attach(fileAcc)
			defer fileAcc.Close()
		}
	}

	sessCtx := session.Capture(versionOrDev(), commitOrUnknown())
	var sessionID int64
	var recorder *session.Recorder
	if store != nil {
		sessionID, err = store.OpenSession(ctx, logstore.OpenSessionParams{
			WorkflowName:  wf.Name,
			OverlayName:   o.overlay,
			InventoryName: inventoryName,
			NodeCount:     len(hosts),
			CWD:           sessCtx.CWD,
			GitCommit:     sessCtx.GitCommit,
			GitBranch:     sessCtx.GitBranch,
			CommandLine:   sessCtx.CommandLine,
			ToolVersion:   sessCtx.ToolVersion,
			ToolCommit:    sessCtx.ToolCommit,
		})
		if err != nil {
			return false, fmt.Errorf("open session: %w", err)
		}
		recorder = session.NewRecorder(store, sessionID)
		mux.Attach(accumulator.NewDatabaseAccumulator(store, sessionID, ""))
	}

	loadSubWorkflow := func(baseDir, name string) (*workflowdoc.Workflow, error) {
		return workflowdoc.Load(filepath.Join(baseDir, name))
	}

	factory := func(h inventory.Host) (remoteshell.Shell, *interpreter.Interpreter, error) {
		shell, err := dialShell(h, o.askPass)
		if err != nil {
			return nil, nil, err
		}
		it := interpreter.New("node-"+h.Hostname, sys, actionLogger(recorder)).
			WithWorkflowBaseDir(o.dir).
			WithOverlayDir(o.overlay).
			WithSubWorkflowLoader(loadSubWorkflow)
		return shell, it, nil
	}

	ng := nodegroup.New(sys, store, mux, factory, func(path string) (*workflowdoc.Workflow, error) {
		return workflowdoc.Load(path)
	})
	if store != nil {
		ng.SetSession(sessionID)
	}
	ng.SetHosts(hosts)
	ng.SetMaxSteps(o.maxSteps)
	sys.Register(nodegroup.NewGroupActor(ng))
	sys.Register(accumulator.NewMultiplexerActor(mux))

	if err := ng.CreateNodeActors(hosts); err != nil {
		return false, err
	}
	if err := ng.ApplyWorkflowToAllNodes(workflowPath); err != nil {
		return false, err
	}

	result := ng.RunUntilEnd(ctx, o.maxSteps, o.threads)

	if store != nil {
		status := logstore.SessionCompleted
		if !result.Success {
			status = logstore.SessionFailed
		}
		if err := store.EndSession(ctx, sessionID, status); err != nil {
			logger.Warn("run: end session", log.Error(err))
		}

		rc := reporter.ReportContext{
			Store:               store,
			SessionID:           sessionID,
			WorkflowName:        wf.Name,
			WorkflowFile:        workflowPath,
			WorkflowDescription: wf.Description,
			IncludeChildren:     len(hosts) > 1,
		}
		text, err := reporter.New().Compose(ctx, rc)
		if err != nil {
			logger.Warn("run: compose report", log.Error(err))
		} else if text != "" {
			if err := emitReport(text, mux, o); err != nil {
				logger.Warn("run: emit report", log.Error(err))
			}
		}
	}

	return result.Success, nil
}

// emitReport routes the composed report back through the multiplexer as
// source=workflow-reporter, type=plugin-result (type=cowsay when wrapped),
// or writes it straight to --render-to's file when one is given.
func emitReport(text string, mux *accumulator.Multiplexer, o runOptions) error {
	typ := accumulator.TypePluginResult
	if o.cowfile != "" {
		text = cowsay.Say(text, o.cowfile)
		typ = accumulator.TypeCowsay
	}
	if o.renderTo != "" {
		return os.WriteFile(o.renderTo, []byte(text+"\n"), 0644)
	}
	return mux.Add("workflow-reporter", typ, text)
}

// loadHosts resolves the node set: the inventory file's (optionally
// --limit-narrowed) hosts, or a single synthetic localhost entry when
// --inventory is absent (the node-less case).
func loadHosts(o runOptions) ([]inventory.Host, string, error) {
	if o.inventoryPt == "" {
		return []inventory.Host{{Hostname: localHostname}}, "", nil
	}

	inv, err := inventory.Load(o.inventoryPt)
	if err != nil {
		return nil, "", fmt.Errorf("load inventory: %w", err)
	}
	hosts := inv.Hosts
	if o.limit != "" {
		hosts, err = inventory.WithHostLimit(hosts, o.limit)
		if err != nil {
			return nil, "", fmt.Errorf("apply --limit: %w", err)
		}
	}
	return hosts, filepath.Base(o.inventoryPt), nil
}

// dialShell builds the RemoteShell for one host: LocalShell for the
// synthetic localhost entry, SSHShell otherwise.
func dialShell(h inventory.Host, askPass bool) (remoteshell.Shell, error) {
	if h.Hostname == "" || h.Hostname == localHostname {
		return remoteshell.NewLocalShell(""), nil
	}

	password := h.Password
	if askPass && password == "" {
		fmt.Printf("SSH password for %s: ", h.Hostname)
		var entered string
		fmt.Scanln(&entered)
		password = entered
	}

	port := h.Port
	if port == 0 {
		port = inventory.DefaultPort
	}
	return remoteshell.DialSSH(remoteshell.SSHConfig{
		Host:     h.Hostname,
		Port:     port,
		User:     h.User,
		Password: password,
		Timeout:  sshDialTimeout,
	})
}

// registerBuiltins registers the fixed set of built-in actor instances
// every workflow can address by class_id-as-name: `env`, `noop`,
// `subWorkflow`, and `loader` for dynamically creating further instances.
func registerBuiltins(sys *actorsystem.System) {
	for _, classID := range []string{"env", "noop", "subWorkflow"} {
		if _, err := builtin.New(sys, classID, classID); err != nil {
			panic(fmt.Sprintf("run: register builtin %s: %v", classID, err))
		}
	}
	sys.Register(builtin.NewLoaderActor("loader", sys))
}

// actionLogger adapts a possibly-nil *session.Recorder into an
// interpreter.ActionLogger, so --no-log-db runs still drive the
// interpreter without a nil-pointer dereference.
func actionLogger(r *session.Recorder) interpreter.ActionLogger {
	if r == nil {
		return noopActionLogger{}
	}
	return r
}

type noopActionLogger struct{}

func (noopActionLogger) LogAction(nodeID, label, actionName, level, message string, exitCode *int, durationMS *int64) {
}

func versionOrDev() string {
	v, _, _ := cli.GetVersion()
	return v
}

func commitOrUnknown() string {
	_, c, _ := cli.GetVersion()
	return c
}
