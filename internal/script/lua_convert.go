package script

import (
	"fmt"
	"math"
	"strconv"

	"github.com/Shopify/go-lua"

	"github.com/roach88/splitscript/internal/ir"
)

// maxTableDepth bounds conversion of nested (possibly cyclic) tables.
const maxTableDepth = 32

// pushValue pushes v onto the stack. A nil Object pushes an empty table.
func pushValue(l *lua.State, v ir.Value) error {
	switch val := v.(type) {
	case nil, ir.Null:
		l.PushNil()
	case ir.String:
		l.PushString(string(val))
	case ir.Int:
		l.PushNumber(float64(val))
	case ir.Float:
		l.PushNumber(float64(val))
	case ir.Bool:
		l.PushBoolean(bool(val))
	case ir.Array:
		l.CreateTable(len(val), 0)
		for i, elem := range val {
			if err := pushValue(l, elem); err != nil {
				l.Pop(1)
				return fmt.Errorf("[%d]: %w", i, err)
			}
			l.RawSetInt(-2, i+1)
		}
	case ir.Object:
		l.CreateTable(0, len(val))
		for _, k := range val.SortedKeys() {
			if err := pushValue(l, val[k]); err != nil {
				l.Pop(1)
				return fmt.Errorf("%s: %w", k, err)
			}
			l.SetField(-2, k)
		}
	default:
		return fmt.Errorf("unsupported value %T", v)
	}
	return nil
}

// copyTable pushes a deep copy of the table at index. Keys keep their Lua
// type and non-table values are shared. On error the stack is left
// unbalanced; callers reset the top.
func copyTable(l *lua.State, index, depth int) error {
	if depth >= maxTableDepth {
		return fmt.Errorf("table nesting exceeds %d levels", maxTableDepth)
	}
	index = l.AbsIndex(index)
	l.NewTable()
	l.PushNil()
	for l.Next(index) {
		// copy, key, value
		if l.IsTable(-1) {
			if err := copyTable(l, -1, depth+1); err != nil {
				return err
			}
			l.Remove(-2)
		}
		l.PushValue(-2)
		l.Insert(-2)
		l.RawSet(-4)
	}
	return nil
}

// decoder converts Lua values to ir values. With onSkip set, values that
// have no ir form (functions, userdata, threads, table keys) are dropped
// and reported instead of failing the conversion.
type decoder struct {
	onSkip func(key, luaType string)
}

// strict fails on any value without an ir form.
var strict = decoder{}

func (d decoder) skip(key, luaType string) bool {
	if d.onSkip == nil {
		return false
	}
	d.onSkip(key, luaType)
	return true
}

// value converts the value at index. Lua nil converts to a nil Value
// (absent). Integral numbers become Int.
func (d decoder) value(l *lua.State, index, depth int) (ir.Value, error) {
	switch l.TypeOf(index) {
	case lua.TypeNil, lua.TypeNone:
		return nil, nil
	case lua.TypeBoolean:
		return ir.Bool(l.ToBoolean(index)), nil
	case lua.TypeNumber:
		n, _ := l.ToNumber(index)
		return numberValue(n), nil
	case lua.TypeString:
		s, _ := l.ToString(index)
		return ir.String(s), nil
	case lua.TypeTable:
		return d.table(l, index, depth)
	}
	return nil, &unsupportedError{luaType: lua.TypeNameOf(l, index)}
}

type unsupportedError struct {
	luaType string
}

func (e *unsupportedError) Error() string {
	return "unsupported lua type " + e.luaType
}

func numberValue(n float64) ir.Value {
	if n == math.Trunc(n) && math.Abs(n) <= 1<<53 {
		return ir.Int(int64(n))
	}
	return ir.Float(n)
}

// table converts a table to an Array when its keys are exactly 1..n,
// otherwise to an Object.
func (d decoder) table(l *lua.State, index, depth int) (ir.Value, error) {
	if depth >= maxTableDepth {
		return nil, fmt.Errorf("table nesting exceeds %d levels", maxTableDepth)
	}
	index = l.AbsIndex(index)

	isArray := true
	count, maxIndex := 0, 0
	l.PushNil()
	for l.Next(index) {
		if isArray {
			if l.TypeOf(-2) != lua.TypeNumber {
				isArray = false
			} else if i, ok := l.ToInteger(-2); ok && i > 0 {
				count++
				maxIndex = max(maxIndex, i)
			} else {
				isArray = false
			}
		}
		l.Pop(1)
	}

	if !isArray || count == 0 || maxIndex != count {
		return d.object(l, index, depth)
	}

	arr := make(ir.Array, 0, count)
	for i := 1; i <= count; i++ {
		l.RawGetInt(index, i)
		v, err := d.value(l, -1, depth+1)
		l.Pop(1)
		var unsupported *unsupportedError
		if asUnsupported(err, &unsupported) && d.skip(strconv.Itoa(i), unsupported.luaType) {
			v, err = ir.Null{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		arr = append(arr, v)
	}
	return arr, nil
}

// object converts a table with string or number keys to an Object. Number
// keys are formatted as decimal strings.
func (d decoder) object(l *lua.State, index, depth int) (ir.Object, error) {
	if depth >= maxTableDepth {
		return nil, fmt.Errorf("table nesting exceeds %d levels", maxTableDepth)
	}
	index = l.AbsIndex(index)
	obj := ir.Object{}

	l.PushNil()
	for l.Next(index) {
		var key string
		switch l.TypeOf(-2) {
		case lua.TypeString:
			key, _ = l.ToString(-2)
		case lua.TypeNumber:
			n, _ := l.ToNumber(-2)
			key = strconv.FormatFloat(n, 'f', -1, 64)
		default:
			t := lua.TypeNameOf(l, -2)
			if d.skip("<"+t+" key>", t) {
				l.Pop(1)
				continue
			}
			l.Pop(2)
			return nil, fmt.Errorf("unsupported key type %s", t)
		}
		v, err := d.value(l, -1, depth+1)
		var unsupported *unsupportedError
		if asUnsupported(err, &unsupported) && d.skip(key, unsupported.luaType) {
			l.Pop(1)
			continue
		}
		if err != nil {
			l.Pop(2)
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		if v != nil {
			obj[key] = v
		}
		l.Pop(1)
	}
	return obj, nil
}

// asUnsupported reports whether err is a direct unsupportedError.
func asUnsupported(err error, target **unsupportedError) bool {
	u, ok := err.(*unsupportedError)
	if ok {
		*target = u
	}
	return ok
}
