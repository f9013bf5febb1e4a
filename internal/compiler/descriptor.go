package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/splitscript/internal/state"
)

// DescriptorSpec is one compiled layout before validation.
type DescriptorSpec struct {
	Process     string
	Version     string
	PointerSize int
	Fields      []state.Field
	Pos         token.Pos
}

// Path is a stable locator used in error messages, e.g. state."game"[1].
func (s DescriptorSpec) Path(index int) string {
	return fmt.Sprintf("state.%q[%d]", s.Process, index)
}

var (
	descriptorKeys = map[string]bool{"version": true, "pointer_size": true, "fields": true}
	fieldKeys      = map[string]bool{"type": true, "module": true, "base": true, "offsets": true, "length": true}
)

// CompileDescriptors parses the top-level "state" struct of a CUE value.
// Processes appear in source order; each process may hold a list of layouts
// or a single layout struct.
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`state: game: [{fields: {x: {type: "int"}}}]`)
//	specs, err := CompileDescriptors(v)
func CompileDescriptors(v cue.Value) ([]DescriptorSpec, error) {
	if err := v.Err(); err != nil {
		return nil, cueError("state", err)
	}

	stateVal := v.LookupPath(cue.ParsePath("state"))
	if !stateVal.Exists() {
		return nil, nil
	}

	iter, err := stateVal.Fields()
	if err != nil {
		return nil, cueError("state", err)
	}

	var specs []DescriptorSpec
	for iter.Next() {
		process := iter.Selector().Unquoted()
		entries := iter.Value()

		if entries.IncompleteKind() == cue.StructKind {
			spec, err := compileDescriptor(process, 0, entries)
			if err != nil {
				return nil, err
			}
			specs = append(specs, spec)
			continue
		}

		list, err := entries.List()
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("state.%q", process),
				Message: "must be a layout struct or a list of layouts",
				Pos:     entries.Pos(),
			}
		}
		for i := 0; list.Next(); i++ {
			spec, err := compileDescriptor(process, i, list.Value())
			if err != nil {
				return nil, err
			}
			specs = append(specs, spec)
		}
	}
	return specs, nil
}

func compileDescriptor(process string, index int, v cue.Value) (DescriptorSpec, error) {
	spec := DescriptorSpec{Process: process, Pos: v.Pos()}
	path := spec.Path(index)

	if err := checkKeys(v, path, descriptorKeys); err != nil {
		return spec, err
	}

	if vv := v.LookupPath(cue.ParsePath("version")); vv.Exists() {
		s, err := vv.String()
		if err != nil {
			return spec, cueError(path+".version", err)
		}
		spec.Version = s
	}

	if pv := v.LookupPath(cue.ParsePath("pointer_size")); pv.Exists() {
		n, err := pv.Int64()
		if err != nil {
			return spec, cueError(path+".pointer_size", err)
		}
		spec.PointerSize = int(n)
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return spec, nil
	}
	iter, err := fieldsVal.Fields()
	if err != nil {
		return spec, cueError(path+".fields", err)
	}
	for iter.Next() {
		name := iter.Selector().Unquoted()
		f, err := compileField(name, path+".fields."+name, iter.Value())
		if err != nil {
			return spec, err
		}
		spec.Fields = append(spec.Fields, f)
	}
	return spec, nil
}

func compileField(name, path string, v cue.Value) (state.Field, error) {
	f := state.Field{Name: name}

	if err := checkKeys(v, path, fieldKeys); err != nil {
		return f, err
	}

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return f, &CompileError{
			Field:   path + ".type",
			Message: "field type is required",
			Pos:     v.Pos(),
		}
	}
	t, err := typeVal.String()
	if err != nil {
		return f, cueError(path+".type", err)
	}
	f.Type = state.FieldType(t)

	if mv := v.LookupPath(cue.ParsePath("module")); mv.Exists() {
		if f.Module, err = mv.String(); err != nil {
			return f, cueError(path+".module", err)
		}
	}

	if bv := v.LookupPath(cue.ParsePath("base")); bv.Exists() {
		if f.Base, err = bv.Uint64(); err != nil {
			return f, &CompileError{
				Field:   path + ".base",
				Message: "base must be a non-negative integer",
				Pos:     bv.Pos(),
			}
		}
	}

	if ov := v.LookupPath(cue.ParsePath("offsets")); ov.Exists() {
		list, err := ov.List()
		if err != nil {
			return f, cueError(path+".offsets", err)
		}
		for list.Next() {
			off, err := list.Value().Int64()
			if err != nil {
				return f, cueError(path+".offsets", err)
			}
			f.Offsets = append(f.Offsets, off)
		}
	}

	if lv := v.LookupPath(cue.ParsePath("length")); lv.Exists() {
		n, err := lv.Int64()
		if err != nil {
			return f, cueError(path+".length", err)
		}
		f.Length = int(n)
	}
	return f, nil
}

// checkKeys rejects struct keys outside allowed.
func checkKeys(v cue.Value, path string, allowed map[string]bool) error {
	iter, err := v.Fields()
	if err != nil {
		return &CompileError{
			Field:   path,
			Message: "must be a struct",
			Pos:     v.Pos(),
		}
	}
	for iter.Next() {
		key := iter.Selector().Unquoted()
		if !allowed[key] {
			return &CompileError{
				Field:   path + "." + key,
				Message: "unknown key",
				Pos:     iter.Value().Pos(),
			}
		}
	}
	return nil
}
