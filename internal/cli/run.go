package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/splitscript/internal/compiler"
	"github.com/roach88/splitscript/internal/config"
	"github.com/roach88/splitscript/internal/engine"
	"github.com/roach88/splitscript/internal/process"
	"github.com/roach88/splitscript/internal/process/procfs"
	"github.com/roach88/splitscript/internal/script"
	"github.com/roach88/splitscript/internal/store"
	"github.com/roach88/splitscript/internal/timer"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Descriptors string
	Database    string
	Settings    string
	Splits      []string
	Ticks       int // stop after this many ticks; 0 runs until interrupted
	StopOnError bool

	// Lister overrides process discovery (for testing).
	// If nil, defaults to the procfs lister.
	Lister process.Lister

	// IDGenerator overrides the session id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator engine.IDGenerator
}

// RunSummary is what run reports once it stops.
type RunSummary struct {
	Session  string          `json:"session"`
	Ticks    int             `json:"ticks"`
	State    string          `json:"state"`
	Phase    string          `json:"phase"`
	Splits   []SplitSummary  `json:"splits"`
	Settings map[string]bool `json:"settings"`
}

// SplitSummary is one segment of the in-memory timer.
type SplitSummary struct {
	Name     string `json:"name"`
	RealTime string `json:"real_time,omitempty"`
	GameTime string `json:"game_time,omitempty"`
	Skipped  bool   `json:"skipped,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <script.lua>",
		Short: "Run a script against the live process",
		Long: `Run an auto-splitter script until interrupted.

The script's state descriptors are loaded from --descriptors (default: a
"descriptors" directory next to the script). The runtime polls for the
process at the script's refresh rate and drives an in-memory timer whose
segments come from --splits.

Every state change and timer action is journaled to the SQLite database at
--db; pass --db "" to disable journaling. Toggle values are read from
--settings before startup and written back on shutdown.

A failing script method is logged and ticking continues; with
--stop-on-error the first failed tick stops the run, shutdown still runs,
and the command exits non-zero.

Defaults come from SPLITSCRIPT_DB, SPLITSCRIPT_SETTINGS, SPLITSCRIPT_SPLITS
and SPLITSCRIPT_SLOW_CALL.

Example:
  splitscript run ./game.lua
  splitscript run ./game.lua --descriptors ./layouts --splits "Level 1,Level 2,Boss"
  splitscript run ./game.lua --settings ./game.toml --db ./runs.db --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid environment", err)
			}
			applyConfig(opts, cmd, cfg)
			return runSplitter(opts, args[0], cfg.SlowCall, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Descriptors, "descriptors", "", "directory of CUE state descriptors")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (env SPLITSCRIPT_DB)")
	cmd.Flags().StringVar(&opts.Settings, "settings", "", "toggle file, .yaml or .toml (env SPLITSCRIPT_SETTINGS)")
	cmd.Flags().StringSliceVar(&opts.Splits, "splits", nil, "comma-separated segment names (env SPLITSCRIPT_SPLITS)")
	cmd.Flags().IntVar(&opts.Ticks, "ticks", 0, "stop after this many ticks")
	cmd.Flags().BoolVar(&opts.StopOnError, "stop-on-error", false, "stop at the first failed tick and exit non-zero")

	return cmd
}

// applyConfig fills every flag the user did not set from the environment.
func applyConfig(opts *RunOptions, cmd *cobra.Command, cfg config.Config) {
	flags := cmd.Flags()
	if !flags.Changed("db") {
		opts.Database = cfg.DBPath
	}
	if !flags.Changed("settings") {
		opts.Settings = cfg.SettingsPath
	}
	if !flags.Changed("splits") {
		opts.Splits = cfg.Splits
	}
}

func runSplitter(opts *RunOptions, scriptPath string, slowCall time.Duration, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd)
	slog.SetDefault(logger)
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	descDir := opts.Descriptors
	if descDir == "" {
		descDir = filepath.Join(filepath.Dir(scriptPath), "descriptors")
	}

	// Load script and descriptors
	logger.Info("loading script", "path", scriptPath)
	methods, err := script.LoadLua(scriptPath, script.WithLuaLogger(logger))
	if err != nil {
		_ = formatter.Error(ErrCodeScript, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load script", err)
	}
	defer methods.Close()

	loaded, loadErrs := compiler.LoadDir(descDir, compiler.LoadModeFailFast)
	if len(loadErrs) > 0 {
		return WrapExitError(ExitCommandError, "failed to load descriptors", loadErrs[0])
	}
	logger.Info("descriptors loaded", "dir", descDir, "processes", loaded.Registry.Processes())

	ids := opts.IDGenerator
	if ids == nil {
		ids = engine.UUIDv7Generator{}
	}
	sessionID := ids.Generate()

	// Open journal (optional)
	var st *store.Store
	observer := engine.Observer(engine.ObserverFunc(func(engine.Record) {}))
	if opts.Database != "" {
		logger.Info("opening database", "path", opts.Database)
		st, err = store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		if err := st.BeginSession(context.Background(), store.Session{
			ID:        sessionID,
			Script:    scriptPath,
			Runtime:   sessionID,
			StartedAt: time.Now(),
		}); err != nil {
			return WrapExitError(ExitCommandError, "failed to begin session", err)
		}
		observer = store.NewRecorder(st, sessionID, logger)
	}

	lister := opts.Lister
	if lister == nil {
		lister = procfs.New()
	}

	model := timer.NewModel(opts.Splits)
	if !formatter.JSON() {
		model.Subscribe(timerPrinter(cmd.OutOrStdout(), model))
	}

	rates := make(chan float64, 1)
	rt, err := engine.New(methods, loaded.Registry, lister, model,
		engine.WithLogger(logger),
		engine.WithObserver(observer),
		engine.WithInstanceID(sessionID),
		engine.WithSlowCallThreshold(slowCall),
		engine.WithRefreshRateListener(func(rate float64) {
			select {
			case <-rates:
			default:
			}
			select {
			case rates <- rate:
			default:
			}
		}),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create runtime", err)
	}
	defer rt.Close()

	settings, err := rt.RunStartup()
	if err != nil {
		_ = formatter.Error(ErrCodeStartup, err.Error(), nil)
		return WrapExitError(ExitFailure, "startup failed", err)
	}

	if opts.Settings != "" {
		values, err := config.LoadToggles(opts.Settings)
		switch {
		case errors.Is(err, os.ErrNotExist):
			logger.Info("settings file not found, using defaults", "path", opts.Settings)
		case err != nil:
			_ = formatter.Error(ErrCodeSettings, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to load settings", err)
		default:
			if unknown := settings.Apply(values); len(unknown) > 0 {
				logger.Warn("ignoring unknown settings", "ids", unknown)
			}
		}
	}
	if st != nil {
		if err := st.UpdateSettings(context.Background(), sessionID, settings.Values()); err != nil {
			logger.Error("failed to record settings", "error", err)
		}
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.Info("runtime starting", "session", sessionID, "refresh_rate", rt.RefreshRate())
	if !formatter.JSON() {
		fmt.Fprintf(cmd.OutOrStdout(), "Watching for %v. Press Ctrl-C to stop.\n", loaded.Registry.Processes())
	}

	ticks, tickErr := tickLoop(ctx, rt, rates, opts.Ticks, opts.StopOnError, logger)

	// Shutdown
	if err := rt.RunShutdown(); err != nil {
		logger.Warn("shutdown method failed", "error", err)
	}
	if opts.Settings != "" {
		if err := config.SaveToggles(opts.Settings, settings.Values()); err != nil {
			logger.Error("failed to save settings", "path", opts.Settings, "error", err)
		}
	}
	if st != nil {
		if err := st.UpdateSettings(context.Background(), sessionID, settings.Values()); err != nil {
			logger.Error("failed to record settings", "error", err)
		}
		if err := st.EndSession(context.Background(), sessionID, time.Now()); err != nil {
			logger.Error("failed to end session", "error", err)
		}
	}
	logger.Info("runtime stopped", "ticks", ticks)

	if tickErr != nil {
		_ = formatter.Error(ErrCodeTick, tickErr.Error(), map[string]any{"ticks": ticks})
		return WrapExitError(ExitFailure, "tick failed", tickErr)
	}

	summary := RunSummary{
		Session:  sessionID,
		Ticks:    ticks,
		State:    rt.State().String(),
		Phase:    model.Phase().String(),
		Splits:   summarizeSplits(model.Splits()),
		Settings: settings.Values(),
	}
	if formatter.JSON() {
		return formatter.Success(summary)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Stopped after %d tick(s). Session %s.\n", summary.Ticks, summary.Session)
	return nil
}

// tickLoop ticks rt at its refresh rate until ctx ends or limit ticks ran.
// Tick errors are logged with the failing method. With stopOnError the
// first one ends the loop and is returned.
func tickLoop(ctx context.Context, rt *engine.Runtime, rates <-chan float64, limit int, stopOnError bool, logger *slog.Logger) (int, error) {
	ticker := time.NewTicker(tickInterval(rt.RefreshRate()))
	defer ticker.Stop()

	ticks := 0
	for {
		select {
		case <-ctx.Done():
			return ticks, nil
		case rate := <-rates:
			logger.Debug("refresh rate changed", "rate", rate)
			ticker.Reset(tickInterval(rate))
		case <-ticker.C:
			err := rt.Tick(ctx)
			ticks++
			if err != nil && ctx.Err() == nil {
				method, _ := engine.IsCallError(err)
				logger.Error("tick failed", "tick", ticks, "method", method, "error", err)
				if stopOnError {
					return ticks, err
				}
			}
			if limit > 0 && ticks >= limit {
				return ticks, nil
			}
		}
	}
}

func tickInterval(rate float64) time.Duration {
	if rate <= 0 {
		rate = engine.DefaultRefreshRate
	}
	return time.Duration(float64(time.Second) / rate)
}

// timerPrinter writes one line per timer notification.
func timerPrinter(w io.Writer, model *timer.Model) timer.Listener {
	return func(ev timer.Event) {
		pub := model.Public()
		switch ev.Kind {
		case timer.EventSplit, timer.EventSkipSplit:
			fmt.Fprintf(w, "%-10s %d/%d  %s\n", ev.Kind, pub.SplitIndex, pub.SplitCount, formatDuration(pub.RealTime))
		default:
			fmt.Fprintf(w, "%-10s %s\n", ev.Kind, formatDuration(pub.RealTime))
		}
	}
}

func summarizeSplits(splits []timer.SplitTime) []SplitSummary {
	out := make([]SplitSummary, len(splits))
	for i, s := range splits {
		out[i] = SplitSummary{Name: s.Name, Skipped: s.Skipped}
		if s.Done && !s.Skipped {
			out[i].RealTime = formatDuration(s.RealTime)
			out[i].GameTime = formatDuration(s.GameTime)
		}
	}
	return out
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
