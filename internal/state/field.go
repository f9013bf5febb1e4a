package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/roach88/splitscript/internal/ir"
	"github.com/roach88/splitscript/internal/process"
)

// FieldType is the in-memory representation of a field.
type FieldType string

const (
	TypeBool   FieldType = "bool"
	TypeByte   FieldType = "byte"
	TypeSByte  FieldType = "sbyte"
	TypeShort  FieldType = "short"
	TypeUShort FieldType = "ushort"
	TypeInt    FieldType = "int"
	TypeUInt   FieldType = "uint"
	TypeLong   FieldType = "long"
	TypeULong  FieldType = "ulong"
	TypeFloat  FieldType = "float"
	TypeDouble FieldType = "double"
	TypeString FieldType = "string"
	TypeBytes  FieldType = "bytes"
)

// FieldTypes lists every supported type.
var FieldTypes = []FieldType{
	TypeBool, TypeByte, TypeSByte, TypeShort, TypeUShort, TypeInt, TypeUInt,
	TypeLong, TypeULong, TypeFloat, TypeDouble, TypeString, TypeBytes,
}

// Valid reports whether t is supported.
func (t FieldType) Valid() bool {
	for _, ft := range FieldTypes {
		if ft == t {
			return true
		}
	}
	return false
}

// Sized reports whether t needs an explicit length.
func (t FieldType) Sized() bool {
	return t == TypeString || t == TypeBytes
}

// Size is the fixed width of t in bytes, 0 for sized types.
func (t FieldType) Size() int {
	switch t {
	case TypeBool, TypeByte, TypeSByte:
		return 1
	case TypeShort, TypeUShort:
		return 2
	case TypeInt, TypeUInt, TypeFloat:
		return 4
	case TypeLong, TypeULong, TypeDouble:
		return 8
	}
	return 0
}

// Zero is the value a field samples to when its memory cannot be read.
func (t FieldType) Zero() ir.Value {
	switch t {
	case TypeBool:
		return ir.Bool(false)
	case TypeFloat, TypeDouble:
		return ir.Float(0)
	case TypeString:
		return ir.String("")
	case TypeBytes:
		return ir.Array{}
	}
	return ir.Int(0)
}

// Field locates one value. The address is found by reading a pointer at
// module base + Base, then following Offsets: every offset but the last is
// added and dereferenced, the last is added to give the final address. With
// no offsets the value lives at module base + Base directly.
type Field struct {
	Name    string
	Type    FieldType
	Module  string // empty for the main executable
	Base    uint64
	Offsets []int64
	Length  int // string and bytes only
}

// Validate checks that the field is well formed.
func (f Field) Validate() error {
	if f.Name == "" {
		return errors.New("field name is empty")
	}
	if !f.Type.Valid() {
		return fmt.Errorf("field %s: unknown type %q", f.Name, f.Type)
	}
	if f.Type.Sized() && f.Length <= 0 {
		return fmt.Errorf("field %s: type %s needs a positive length", f.Name, f.Type)
	}
	if !f.Type.Sized() && f.Length != 0 {
		return fmt.Errorf("field %s: type %s does not take a length", f.Name, f.Type)
	}
	return nil
}

func (f Field) width() int {
	if f.Type.Sized() {
		return f.Length
	}
	return f.Type.Size()
}

// Address resolves the field's final address in h. ok is false when the
// pointer path cannot be followed (null or unmapped pointer, module not
// loaded). err is only set when the process is gone.
func (f Field) Address(h process.Handle, pointerSize int) (addr uint64, ok bool, err error) {
	base, err := h.ModuleBase(f.Module)
	if err != nil {
		if errors.Is(err, process.ErrExited) {
			return 0, false, err
		}
		return 0, false, nil
	}
	addr = base + f.Base
	if len(f.Offsets) == 0 {
		return addr, true, nil
	}

	ptr := make([]byte, pointerSize)
	// The base itself holds a pointer; each offset but the last is a hop.
	path := append([]int64{0}, f.Offsets...)
	for _, off := range path[:len(path)-1] {
		if err := h.ReadMemory(addr+uint64(off), ptr); err != nil {
			if errors.Is(err, process.ErrExited) {
				return 0, false, err
			}
			return 0, false, nil
		}
		addr = decodePointer(ptr)
		if addr == 0 {
			return 0, false, nil
		}
	}
	return addr + uint64(path[len(path)-1]), true, nil
}

// Read samples the field. Unreadable memory yields the type's zero value;
// only process.ErrExited is returned as an error.
func (f Field) Read(h process.Handle, pointerSize int) (ir.Value, error) {
	addr, ok, err := f.Address(h, pointerSize)
	if err != nil {
		return nil, err
	}
	if !ok {
		return f.Type.Zero(), nil
	}

	buf := make([]byte, f.width())
	if err := h.ReadMemory(addr, buf); err != nil {
		if errors.Is(err, process.ErrExited) {
			return nil, err
		}
		return f.Type.Zero(), nil
	}
	return decode(f.Type, buf), nil
}

func decodePointer(b []byte) uint64 {
	if len(b) == 4 {
		return uint64(binary.LittleEndian.Uint32(b))
	}
	return binary.LittleEndian.Uint64(b)
}

func decode(t FieldType, b []byte) ir.Value {
	le := binary.LittleEndian
	switch t {
	case TypeBool:
		return ir.Bool(b[0] != 0)
	case TypeByte:
		return ir.Int(b[0])
	case TypeSByte:
		return ir.Int(int8(b[0]))
	case TypeShort:
		return ir.Int(int16(le.Uint16(b)))
	case TypeUShort:
		return ir.Int(le.Uint16(b))
	case TypeInt:
		return ir.Int(int32(le.Uint32(b)))
	case TypeUInt:
		return ir.Int(le.Uint32(b))
	case TypeLong:
		return ir.Int(int64(le.Uint64(b)))
	case TypeULong:
		u := le.Uint64(b)
		if u > math.MaxInt64 {
			return ir.Float(float64(u))
		}
		return ir.Int(int64(u))
	case TypeFloat:
		return ir.Float(math.Float32frombits(le.Uint32(b)))
	case TypeDouble:
		return ir.Float(math.Float64frombits(le.Uint64(b)))
	case TypeString:
		s := string(b)
		if i := strings.IndexByte(s, 0); i >= 0 {
			s = s[:i]
		}
		return ir.String(strings.ToValidUTF8(s, "�"))
	case TypeBytes:
		arr := make(ir.Array, len(b))
		for i, c := range b {
			arr[i] = ir.Int(c)
		}
		return arr
	}
	return t.Zero()
}
