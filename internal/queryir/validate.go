package queryir

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ValidationResult lists everything wrong with a query.
type ValidationResult struct {
	// Valid is true when Problems is empty.
	Valid bool

	// Problems describes each rule the query breaks.
	Problems []string
}

// Err returns the problems as a single error, or nil for a valid query.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return errors.New("invalid query: " + strings.Join(r.Problems, "; "))
}

// Validate checks a query against the journal schema.
//
// Rules:
//  1. The table is a journal table
//  2. Fields is non-empty and names columns of that table
//  3. Predicates reference columns of that table
//  4. Values have a supported type; Compare only takes integers
//  5. Limit is not negative
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{problems: []string{}}
	v.validateQuery(query)

	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
	columns  []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case Select:
		v.validateSelect(query)
	case *Select:
		if query == nil {
			v.addProblem("nil query")
			return
		}
		v.validateSelect(*query)
	case nil:
		v.addProblem("nil query")
	default:
		v.addProblem("unknown query type: %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	columns, ok := Columns[sel.From]
	if !ok {
		v.addProblem("unknown table %q", sel.From)
		return
	}
	v.columns = columns

	if len(sel.Fields) == 0 {
		v.addProblem("empty field list - queries must name their columns")
	}
	for _, f := range sel.Fields {
		v.checkColumn(f)
	}
	if sel.Limit < 0 {
		v.addProblem("negative limit %d", sel.Limit)
	}
	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
}

func (v *validator) checkColumn(field string) bool {
	if !slices.Contains(v.columns, field) {
		v.addProblem("unknown column %q", field)
		return false
	}
	return true
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case Equals:
		v.validateEquals(pred)
	case *Equals:
		v.validateEquals(*pred)
	case Compare:
		v.validateCompare(pred)
	case *Compare:
		v.validateCompare(*pred)
	case And:
		v.validateAnd(pred)
	case *And:
		v.validateAnd(*pred)
	default:
		v.addProblem("unknown predicate type: %T", p)
	}
}

func (v *validator) validateEquals(eq Equals) {
	if !v.checkColumn(eq.Field) {
		return
	}
	switch eq.Value.(type) {
	case string, int64, uint64, []byte:
	default:
		v.addProblem("column %q compared to unsupported value type %T", eq.Field, eq.Value)
	}
}

func (v *validator) validateCompare(cmp Compare) {
	if !v.checkColumn(cmp.Field) {
		return
	}
	switch cmp.Op {
	case AtLeast, AtMost, GreaterThan, LessThan:
	default:
		v.addProblem("unknown comparison %q on column %q", cmp.Op, cmp.Field)
	}
	switch cmp.Value.(type) {
	case int64, uint64:
	default:
		v.addProblem("column %q ordered against non-integer value type %T", cmp.Field, cmp.Value)
	}
}

func (v *validator) validateAnd(and And) {
	for _, sub := range and.Predicates {
		v.validatePredicate(sub)
	}
}
