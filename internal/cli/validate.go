package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue/token"
	"github.com/spf13/cobra"

	"github.com/roach88/splitscript/internal/compiler"
	"github.com/roach88/splitscript/internal/config"
	"github.com/roach88/splitscript/internal/engine"
	"github.com/roach88/splitscript/internal/process"
	"github.com/roach88/splitscript/internal/script"
	"github.com/roach88/splitscript/internal/state"
	"github.com/roach88/splitscript/internal/timer"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Descriptors string
	Settings    string
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid       bool                       `json:"valid"`
	Errors      []compiler.ValidationError `json:"errors,omitempty"`
	Methods     []string                   `json:"methods"`
	Settings    []engine.Setting           `json:"settings"`
	Descriptors []DescriptorSummary        `json:"descriptors"`
}

// DescriptorSummary describes one loaded state layout.
type DescriptorSummary struct {
	Process     string `json:"process"`
	Version     string `json:"version"`
	PointerSize int    `json:"pointer_size"`
	Fields      int    `json:"fields"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <script.lua>",
		Short: "Check a script and its descriptors without attaching",
		Long: `Check a script and its state descriptors without touching any process.

Loads the script, compiles every descriptor under --descriptors and runs the
script's startup method to list the toggles it declares. With --settings, the
toggle file is checked against that list.

Exit codes:
  0 - Script and descriptors are valid
  1 - Validation failed
  2 - Command error (missing paths, etc.)

Examples:
  splitscript validate ./game.lua
  splitscript validate ./game.lua --descriptors ./layouts --format json
  splitscript validate ./game.lua --settings ./game.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Descriptors, "descriptors", "", "directory of CUE state descriptors (default: next to the script)")
	cmd.Flags().StringVar(&opts.Settings, "settings", "", "toggle file to check against the script")

	return cmd
}

func runValidate(opts *ValidateOptions, scriptPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	if _, err := os.Stat(scriptPath); err != nil {
		return outputValidateError(formatter, compiler.ErrCodeNotFound, fmt.Sprintf("script not found: %s", scriptPath), nil)
	}
	descDir := opts.Descriptors
	if descDir == "" {
		descDir = filepath.Join(filepath.Dir(scriptPath), "descriptors")
	}

	result := ValidationResult{
		Methods:     []string{},
		Settings:    []engine.Setting{},
		Descriptors: []DescriptorSummary{},
	}

	// Descriptors
	loaded, loadErrs := compiler.LoadDir(descDir, compiler.LoadModeCollectAll)
	if loaded == nil && len(loadErrs) > 0 {
		var loadErr *compiler.LoadError
		if errors.As(loadErrs[0], &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputValidateError(formatter, compiler.ErrCodeGeneric, loadErrs[0].Error(), nil)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loaded.FileCount, descDir)
	for _, spec := range loaded.Specs {
		result.Descriptors = append(result.Descriptors, DescriptorSummary{
			Process:     spec.Process,
			Version:     spec.Version,
			PointerSize: spec.PointerSize,
			Fields:      len(spec.Fields),
		})
	}
	result.Errors = append(result.Errors, descriptorErrors(loadErrs)...)

	// Script
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.Verbose {
		logger = newLogger(opts.RootOptions, cmd)
	}
	methods, err := script.LoadLua(scriptPath, script.WithLuaLogger(logger))
	if err != nil {
		result.Errors = append(result.Errors, compiler.ValidationError{
			Field:   "script",
			Message: err.Error(),
			Code:    ErrCodeScript,
		})
		return outputValidation(formatter, scriptPath, result)
	}
	defer methods.Close()
	for _, name := range methods.DefinedNames() {
		result.Methods = append(result.Methods, string(name))
	}
	formatter.VerboseLog("Script defines %d method(s)", len(result.Methods))

	registry := state.NewRegistry()
	if loaded.Registry != nil {
		registry = loaded.Registry
	}
	settings, err := startupSettings(methods, registry, logger)
	if err != nil {
		result.Errors = append(result.Errors, compiler.ValidationError{
			Field:   "startup",
			Message: err.Error(),
			Code:    ErrCodeStartup,
		})
	}
	if settings != nil {
		result.Settings = settings.All()
	}

	// Settings file
	if opts.Settings != "" && settings != nil {
		values, err := config.LoadToggles(opts.Settings)
		if err != nil {
			result.Errors = append(result.Errors, compiler.ValidationError{
				Field:   "settings",
				Message: err.Error(),
				Code:    ErrCodeSettings,
			})
		} else {
			for _, id := range unknownToggles(settings, values) {
				result.Errors = append(result.Errors, compiler.ValidationError{
					Field:   "settings." + id,
					Message: fmt.Sprintf("script declares no toggle %q", id),
					Code:    ErrCodeSettings,
				})
			}
		}
	}

	return outputValidation(formatter, scriptPath, result)
}

// startupSettings runs the startup method against an empty process list and
// returns the toggle set it declares.
func startupSettings(methods *script.MethodTable, registry *state.Registry, logger *slog.Logger) (*engine.Settings, error) {
	rt, err := engine.New(methods, registry, process.NewSimulatedLister(), timer.NewModel(nil),
		engine.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	defer rt.Close()
	return rt.RunStartup()
}

// unknownToggles lists the ids in values the toggle set lacks, sorted.
func unknownToggles(settings *engine.Settings, values map[string]bool) []string {
	var unknown []string
	for id := range values {
		if _, ok := settings.Get(id); !ok {
			unknown = append(unknown, id)
		}
	}
	sort.Strings(unknown)
	return unknown
}

// descriptorErrors converts loader errors to validation errors.
func descriptorErrors(errs []error) []compiler.ValidationError {
	var out []compiler.ValidationError
	for _, err := range errs {
		var verr compiler.ValidationError
		var loadErr *compiler.LoadError
		switch {
		case errors.As(err, &verr):
			out = append(out, verr)
		case errors.As(err, &loadErr):
			out = append(out, compiler.ValidationError{
				Field:   "descriptors",
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    lineOf(loadErr.Pos),
			})
		default:
			out = append(out, compiler.ValidationError{
				Field:   "descriptors",
				Message: err.Error(),
				Code:    compiler.ErrCodeGeneric,
			})
		}
	}
	return out
}

// lineOf extracts the line number from a CUE position.
func lineOf(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}

// outputValidateError outputs a single command-level error.
func outputValidateError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidation reports result and maps any errors to exit code 1.
func outputValidation(formatter *OutputFormatter, scriptPath string, result ValidationResult) error {
	result.Valid = len(result.Errors) == 0

	if formatter.JSON() {
		response := CLIResponse{Status: "ok", Data: result}
		if !result.Valid {
			response.Status = "error"
			response.Error = &CLIError{
				Code:    result.Errors[0].Code,
				Message: result.Errors[0].Message,
			}
		}
		if err := writeJSON(formatter.Writer, response); err != nil {
			return err
		}
	} else {
		writeValidationText(formatter.Writer, scriptPath, result)
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}
	return nil
}

func writeValidationText(w io.Writer, scriptPath string, result ValidationResult) {
	if !result.Valid {
		fmt.Fprintln(w, "✗ Validation failed")
		fmt.Fprintln(w)
		for _, err := range result.Errors {
			if err.Line > 0 {
				fmt.Fprintf(w, "line %d\n", err.Line)
			}
			fmt.Fprintf(w, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
		}
		return
	}

	fmt.Fprintf(w, "✓ %s valid\n", filepath.Base(scriptPath))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Methods: %s\n", strings.Join(result.Methods, ", "))

	fmt.Fprintln(w, "Settings:")
	if len(result.Settings) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, s := range result.Settings {
		mark := " "
		if s.Value {
			mark = "x"
		}
		fmt.Fprintf(w, "  [%s] %-20s %s\n", mark, s.ID, s.Description)
	}

	fmt.Fprintln(w, "Descriptors:")
	for _, d := range result.Descriptors {
		version := d.Version
		if version == "" {
			version = "(default)"
		}
		fmt.Fprintf(w, "  %s %s: %d field(s), %d-byte pointers\n", d.Process, version, d.Fields, d.PointerSize)
	}
}
