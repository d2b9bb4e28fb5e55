// Package querysql compiles queryir queries to parameterized SQLite.
package querysql

import (
	"fmt"
	"math"
	"strings"

	"github.com/roach88/poe/internal/queryir"
)

// orderBy gives every table a total order.
var orderBy = map[queryir.Table]string{
	queryir.TableCalls:  "seq ASC, id COLLATE BINARY ASC",
	queryir.TableEvents: "seq ASC, call_id COLLATE BINARY ASC",
	queryir.TableProofs: "fingerprint ASC",
}

// Compile converts a query to parameterized SQL.
// Returns (sql, params, error).
//
// The query is validated first: identifiers written into the statement must
// be known columns. Values are never interpolated.
func Compile(q queryir.Query) (string, []any, error) {
	if err := queryir.Validate(q).Err(); err != nil {
		return "", nil, err
	}

	switch query := q.(type) {
	case queryir.Select:
		return compileSelect(query)
	case *queryir.Select:
		return compileSelect(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func compileSelect(q queryir.Select) (string, []any, error) {
	var b strings.Builder
	var params []any

	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(q.Fields, ", "), q.From)

	if q.Filter != nil {
		filterSQL, filterParams, err := compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE ")
		b.WriteString(filterSQL)
		params = append(params, filterParams...)
	}

	b.WriteString(" ORDER BY ")
	b.WriteString(orderBy[q.From])

	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, int64(q.Limit))
	}

	return b.String(), params, nil
}

// compilePredicate compiles a predicate to a WHERE clause fragment.
func compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		return compileComparison(pred.Field, "=", pred.Value)
	case *queryir.Equals:
		return compileComparison(pred.Field, "=", pred.Value)
	case queryir.Compare:
		return compileComparison(pred.Field, string(pred.Op), pred.Value)
	case *queryir.Compare:
		return compileComparison(pred.Field, string(pred.Op), pred.Value)
	case queryir.And:
		return compileAnd(pred)
	case *queryir.And:
		return compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileComparison(field, op string, value any) (string, []any, error) {
	param, err := toParam(value)
	if err != nil {
		return "", nil, fmt.Errorf("column %s: %w", field, err)
	}
	return fmt.Sprintf("%s %s ?", field, op), []any{param}, nil
}

// compileAnd joins sub-predicates with AND. An empty And is always true.
func compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, pred := range and.Predicates {
		sql, ps, err := compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		if _, nested := pred.(queryir.And); nested {
			sql = "(" + sql + ")"
		}
		parts = append(parts, sql)
		params = append(params, ps...)
	}
	return strings.Join(parts, " AND "), params, nil
}

// toParam converts a query value to a SQLite parameter. Integers are stored
// as signed 64-bit values.
func toParam(v any) (any, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case int64:
		return val, nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("value %d overflows int64", val)
		}
		return int64(val), nil
	case []byte:
		if val == nil {
			return []byte{}, nil
		}
		return val, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}
