package compiler

import (
	"fmt"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError is a descriptor error at a CUE source position. Field is the
// descriptor path, e.g. state."game"[1].fields.level.base.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if !e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s",
		e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
}

// cueError attributes a CUE evaluation error to a descriptor path. The
// first reported CUE error wins; its first position is kept.
func cueError(field string, err error) error {
	if err == nil {
		return nil
	}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &CompileError{Field: field, Message: err.Error()}
	}
	ce := &CompileError{Field: field, Message: errs[0].Error()}
	if pos := cueerrors.Positions(errs[0]); len(pos) > 0 {
		ce.Pos = pos[0]
	}
	return ce
}
