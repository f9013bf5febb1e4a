package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"

	"github.com/roach88/splitscript/internal/state"
)

// Validation error codes (E100-E199)
const (
	ErrNoDescriptors      = "E100" // no state descriptors defined
	ErrEmptyProcessName   = "E101" // process name is empty
	ErrInvalidPointerSize = "E102" // pointer size is not 4 or 8
	ErrMissingLength      = "E103" // string/bytes field without a length
	ErrInvalidFieldType   = "E104" // unknown field type
	ErrDuplicateVersion   = "E105" // duplicate (process, version)
	ErrInvalidFieldName   = "E106" // field name is not a script identifier
	ErrUnexpectedLength   = "E107" // length on a fixed-width field
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Field names double as keys of the script's old/current tables.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks specs against the descriptor rules.
// Returns all errors found (does not fail-fast).
func Validate(specs []DescriptorSpec) []ValidationError {
	if len(specs) == 0 {
		return []ValidationError{{
			Field:   "state",
			Message: "at least one state descriptor is required",
			Code:    ErrNoDescriptors,
		}}
	}

	var errs []ValidationError
	seen := make(map[string]bool)
	index := make(map[string]int)

	for _, spec := range specs {
		folded := cases.Fold().String(spec.Process)
		i := index[folded]
		index[folded]++
		path := spec.Path(i)
		line := spec.Pos.Line()

		if strings.TrimSpace(spec.Process) == "" {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: "process name must be non-empty",
				Code:    ErrEmptyProcessName,
				Line:    line,
			})
		}

		key := folded + "\x00" + spec.Version
		if seen[key] {
			errs = append(errs, ValidationError{
				Field:   path + ".version",
				Message: fmt.Sprintf("duplicate version %q for process %q", spec.Version, spec.Process),
				Code:    ErrDuplicateVersion,
				Line:    line,
			})
		}
		seen[key] = true

		if spec.PointerSize != 0 && spec.PointerSize != 4 && spec.PointerSize != 8 {
			errs = append(errs, ValidationError{
				Field:   path + ".pointer_size",
				Message: fmt.Sprintf("pointer size must be 4 or 8, got %d", spec.PointerSize),
				Code:    ErrInvalidPointerSize,
				Line:    line,
			})
		}

		for _, f := range spec.Fields {
			errs = append(errs, validateField(f, path+".fields."+f.Name, line)...)
		}
	}
	return errs
}

func validateField(f state.Field, path string, line int) []ValidationError {
	var errs []ValidationError

	if !identPattern.MatchString(f.Name) {
		errs = append(errs, ValidationError{
			Field:   path,
			Message: fmt.Sprintf("field name %q is not an identifier", f.Name),
			Code:    ErrInvalidFieldName,
			Line:    line,
		})
	}

	if !f.Type.Valid() {
		errs = append(errs, ValidationError{
			Field:   path + ".type",
			Message: fmt.Sprintf("invalid type %q for field %q", f.Type, f.Name),
			Code:    ErrInvalidFieldType,
			Line:    line,
		})
		return errs
	}

	switch {
	case f.Type.Sized() && f.Length <= 0:
		errs = append(errs, ValidationError{
			Field:   path + ".length",
			Message: fmt.Sprintf("type %s needs a positive length", f.Type),
			Code:    ErrMissingLength,
			Line:    line,
		})
	case !f.Type.Sized() && f.Length != 0:
		errs = append(errs, ValidationError{
			Field:   path + ".length",
			Message: fmt.Sprintf("type %s has a fixed width", f.Type),
			Code:    ErrUnexpectedLength,
			Line:    line,
		})
	}
	return errs
}

// Build validates specs and registers them, in order, into a new registry.
func Build(specs []DescriptorSpec) (*state.Registry, error) {
	if errs := Validate(specs); len(errs) > 0 {
		return nil, errs[0]
	}
	reg := state.NewRegistry()
	for _, spec := range specs {
		d, err := state.NewDescriptor(spec.Process, spec.Version, spec.PointerSize, spec.Fields)
		if err != nil {
			return nil, err
		}
		if err := reg.Add(d); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
