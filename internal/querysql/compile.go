// Package querysql compiles journal queries to parameterized SQLite SQL.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/splitscript/internal/ir"
	"github.com/roach88/splitscript/internal/queryir"
)

// RecordColumns is the column list every compiled query selects, in the
// order store scans them.
const RecordColumns = `r.seq, s.runtime, r.kind, r.from_state, r.to_state, r.process, r.pid,
		       r.version, r.action, r.method, r.detail`

// columns maps record fields to their qualified column.
var columns = map[string]string{
	"seq":     "r.seq",
	"kind":    "r.kind",
	"from":    "r.from_state",
	"to":      "r.to_state",
	"process": "r.process",
	"pid":     "r.pid",
	"version": "r.version",
	"action":  "r.action",
	"method":  "r.method",
	"detail":  "r.detail",
}

// SQLCompiler compiles queryir queries. Values are always bound as
// parameters and every query orders by seq.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a query to SQL and its parameters. Invalid queries are
// rejected with the validator's first error.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if res := queryir.Validate(q); !res.Valid {
		return "", nil, fmt.Errorf("invalid query: %s", res.Errors[0])
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(RecordColumns)
	b.WriteString("\n\t\tFROM records r\n\t\tJOIN sessions s ON r.session_id = s.id\n\t\tWHERE r.session_id = ?")
	params := []any{q.Session}

	if q.Filter != nil {
		where, filterParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" AND ")
		b.WriteString(where)
		params = append(params, filterParams...)
	}

	b.WriteString(" ORDER BY r.seq ASC")
	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, q.Limit)
	}
	return b.String(), params, nil
}

func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		return c.compileEquals(pred)
	case *queryir.Equals:
		return c.compileEquals(*pred)
	case queryir.In:
		return c.compileIn(pred)
	case *queryir.In:
		return c.compileIn(*pred)
	case queryir.After:
		return "r.seq > ?", []any{pred.Seq}, nil
	case *queryir.After:
		return "r.seq > ?", []any{pred.Seq}, nil
	case queryir.And:
		return c.compileAnd(pred)
	case *queryir.And:
		return c.compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *SQLCompiler) compileEquals(eq queryir.Equals) (string, []any, error) {
	param, err := valueToParam(eq.Value)
	if err != nil {
		return "", nil, err
	}
	return columns[eq.Field] + " = ?", []any{param}, nil
}

func (c *SQLCompiler) compileIn(in queryir.In) (string, []any, error) {
	if len(in.Values) == 0 {
		return "0 = 1", nil, nil
	}
	params := make([]any, 0, len(in.Values))
	for _, v := range in.Values {
		param, err := valueToParam(v)
		if err != nil {
			return "", nil, err
		}
		params = append(params, param)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(params)), ", ")
	return fmt.Sprintf("%s IN (%s)", columns[in.Field], placeholders), params, nil
}

func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}
	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, pred := range and.Predicates {
		sql, ps, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, ps...)
	}
	return "(" + strings.Join(parts, " AND ") + ")", params, nil
}

// valueToParam converts a literal to a driver parameter.
func valueToParam(v ir.Value) (any, error) {
	switch val := v.(type) {
	case ir.String:
		return string(val), nil
	case ir.Int:
		return int64(val), nil
	default:
		return nil, fmt.Errorf("unsupported value for SQL parameter: %s", ir.Describe(v))
	}
}
