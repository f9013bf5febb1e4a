package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/splitscript/internal/engine"
	"github.com/roach88/splitscript/internal/ir"
	"github.com/roach88/splitscript/internal/queryir"
	"github.com/roach88/splitscript/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string   // "latest" picks the most recent session
	Kinds    []string // optional record kind filter
	Where    []string // field=value filters
	After    int64    // only records with a larger seq
	Limit    int
}

// SessionSummary is one line of the session listing.
type SessionSummary struct {
	store.Session
	Records int64 `json:"records"`
}

// TraceResult holds one session's journaled records.
type TraceResult struct {
	Session  store.Session   `json:"session"`
	Timeline []engine.Record `json:"timeline"`
	Stats    map[string]int  `json:"stats"`
}

var recordKinds = []engine.RecordKind{
	engine.RecordTransition,
	engine.RecordDescriptorSwitch,
	engine.RecordDescriptorMiss,
	engine.RecordTimerAction,
	engine.RecordEventCallback,
	engine.RecordEventFailed,
	engine.RecordMethodFailed,
	engine.RecordRefreshRate,
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect journaled sessions",
		Long: `Inspect the sessions journaled by run.

Without --session, lists every session. With --session, prints that
session's records in order:
- Timeline: state transitions, descriptor switches, timer actions and
  script failures
- Stats: record counts per kind

Examples:
  splitscript trace --db ./splitscript.db
  splitscript trace --db ./splitscript.db --session latest
  splitscript trace --db ./splitscript.db --session 0192... --kind timer_action --kind transition
  splitscript trace --db ./splitscript.db --session latest --where process=game --after 120
  splitscript trace --db ./splitscript.db --session latest --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", `session id, or "latest"`)
	cmd.Flags().StringSliceVar(&opts.Kinds, "kind", nil, "filter to record kinds (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "filter on a record field, field=value (repeatable)")
	cmd.Flags().Int64Var(&opts.After, "after", 0, "only records after this seq")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum records to show (0 = all)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	filter, err := traceFilter(opts)
	if err != nil {
		return NewExitError(ExitCommandError, err.Error())
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.Session == "" {
		return listSessions(ctx, st, opts, cmd)
	}

	id := opts.Session
	if id == "latest" {
		sessions, err := st.ListSessions(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list sessions", err)
		}
		if len(sessions) == 0 {
			return NewExitError(ExitCommandError, "no sessions in journal")
		}
		id = sessions[len(sessions)-1].ID
	}

	sess, err := st.ReadSession(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return NewExitError(ExitCommandError, fmt.Sprintf("session not found: %s", id))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}

	records, err := st.QueryRecords(ctx, queryir.Select{Session: id, Filter: filter, Limit: opts.Limit})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read records", err)
	}

	result := TraceResult{
		Session:  sess,
		Timeline: records,
		Stats:    make(map[string]int),
	}
	for _, r := range records {
		result.Stats[string(r.Kind)]++
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: result})
	}
	outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
	return nil
}

// traceFilter builds the record predicate from the filter flags.
func traceFilter(opts *TraceOptions) (queryir.Predicate, error) {
	var preds []queryir.Predicate
	if len(opts.Kinds) > 0 {
		values := make([]ir.Value, 0, len(opts.Kinds))
		for _, k := range opts.Kinds {
			if !slices.Contains(recordKinds, engine.RecordKind(k)) {
				return nil, fmt.Errorf("unknown record kind %q", k)
			}
			values = append(values, ir.String(k))
		}
		preds = append(preds, queryir.In{Field: "kind", Values: values})
	}
	for _, expr := range opts.Where {
		eq, err := queryir.ParseEquals(expr)
		if err != nil {
			return nil, err
		}
		preds = append(preds, eq)
	}
	if opts.After > 0 {
		preds = append(preds, queryir.After{Seq: opts.After})
	}
	if opts.Limit < 0 {
		return nil, fmt.Errorf("negative limit %d", opts.Limit)
	}
	return queryir.AllOf(preds...), nil
}

func listSessions(ctx context.Context, st *store.Store, opts *TraceOptions, cmd *cobra.Command) error {
	sessions, err := st.ListSessions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}

	summaries := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		n, err := st.LastSeq(ctx, s.ID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to count records", err)
		}
		summaries = append(summaries, SessionSummary{Session: s, Records: n})
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: summaries})
	}

	w := cmd.OutOrStdout()
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No sessions found.")
		return nil
	}
	fmt.Fprintln(w, "=== Sessions ===")
	for _, s := range summaries {
		fmt.Fprintf(w, "  %s  %s  %s  %d record(s)  %s\n",
			truncateID(s.ID), formatTime(s.StartedAt), sessionStatus(s.EndedAt), s.Records, s.Script)
	}
	return nil
}

// outputTraceText outputs one session as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	sess := result.Session
	fmt.Fprintf(w, "Session: %s\n", sess.ID)
	fmt.Fprintf(w, "Script:  %s\n", sess.Script)
	fmt.Fprintf(w, "Started: %s\n", formatTime(sess.StartedAt))
	fmt.Fprintf(w, "Status:  %s\n", sessionStatus(sess.EndedAt))
	fmt.Fprintf(w, "Settings: %s\n", formatSettings(sess.Settings))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no records)")
	}
	for _, r := range result.Timeline {
		fmt.Fprintf(w, "  [%d] %s\n", r.Seq, describeRecord(r))
		if verbose && r.Detail != "" {
			fmt.Fprintf(w, "       Detail: %s\n", r.Detail)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	kinds := make([]string, 0, len(result.Stats))
	for k := range result.Stats {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	fmt.Fprintf(w, "  Total Records: %d\n", len(result.Timeline))
	for _, k := range kinds {
		fmt.Fprintf(w, "  %-18s %d\n", k+":", result.Stats[k])
	}
}

// describeRecord renders the fields relevant to a record's kind.
func describeRecord(r engine.Record) string {
	switch r.Kind {
	case engine.RecordTransition:
		s := fmt.Sprintf("%s -> %s", r.From, r.To)
		if r.Process != "" {
			s += fmt.Sprintf(" (%s pid %d)", r.Process, r.PID)
		}
		return s
	case engine.RecordDescriptorSwitch, engine.RecordDescriptorMiss:
		version := r.Version
		if version == "" {
			version = "(default)"
		}
		return fmt.Sprintf("%s %s %s", strings.ToUpper(string(r.Kind)), r.Process, version)
	case engine.RecordTimerAction:
		return "TIMER " + r.Action
	case engine.RecordEventCallback:
		return fmt.Sprintf("EVENT %s -> %s", r.Action, r.Method)
	case engine.RecordEventFailed, engine.RecordMethodFailed:
		return fmt.Sprintf("FAILED %s: %s", r.Method, r.Detail)
	case engine.RecordRefreshRate:
		return "REFRESH " + r.Detail
	}
	return string(r.Kind)
}

// formatSettings formats toggles with sorted keys.
func formatSettings(settings map[string]bool) string {
	if len(settings) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%t", k, settings[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func formatTime(t time.Time) string {
	return t.Local().Format(time.DateTime)
}

func sessionStatus(endedAt *time.Time) string {
	if endedAt == nil {
		return "open"
	}
	return "ended " + formatTime(*endedAt)
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
