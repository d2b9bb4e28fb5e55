package queryir

// Table names a journal table.
type Table string

const (
	TableCalls  Table = "calls"
	TableEvents Table = "events"
	TableProofs Table = "proofs"
)

// Columns lists the queryable columns of each table in storage order.
var Columns = map[Table][]string{
	TableCalls:  {"id", "seq", "batch", "block", "op", "caller", "receiver", "fingerprint", "outcome", "weight"},
	TableEvents: {"call_id", "seq", "block", "kind", "caller", "receiver", "fingerprint"},
	TableProofs: {"fingerprint", "owner", "registered_at"},
}

// Query represents an abstract query.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Predicate represents a filter condition.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - Equals: field = value
//   - Compare: field >= value, field <= value, ...
//   - And: all predicates must be true
//
// OR is deliberately absent; run separate queries instead.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Select reads rows from one table.
//
// Semantics:
//
//	SELECT <fields> FROM <from> WHERE <filter> ORDER BY <table order> LIMIT <limit>
//
// Example, every rejected call by alice in blocks 10 through 20:
//
//	Select{
//	  From:   TableCalls,
//	  Fields: Columns[TableCalls],
//	  Filter: And{Predicates: []Predicate{
//	    Equals{Field: "caller", Value: "alice"},
//	    Equals{Field: "outcome", Value: "NotProofOwner"},
//	    Compare{Field: "block", Op: AtLeast, Value: uint64(10)},
//	    Compare{Field: "block", Op: AtMost, Value: uint64(20)},
//	  }},
//	}
type Select struct {
	From   Table     // Journal table
	Fields []string  // Explicit column list (no SELECT *)
	Filter Predicate // WHERE conditions (nil = no filter)
	Limit  int       // Maximum rows (0 = unlimited)
}

func (Select) queryNode() {}

// Equals represents a field-equals-value predicate.
//
// Value must be a string, int64, uint64 or []byte. Fingerprints compare as
// raw bytes.
type Equals struct {
	Field string
	Value any
}

func (Equals) predicateNode() {}

// CompareOp is an ordering comparison.
type CompareOp string

const (
	AtLeast     CompareOp = ">="
	AtMost      CompareOp = "<="
	GreaterThan CompareOp = ">"
	LessThan    CompareOp = "<"
)

// Compare represents an ordering predicate on a numeric field.
//
// Value must be an int64 or uint64.
type Compare struct {
	Field string
	Op    CompareOp
	Value any
}

func (Compare) predicateNode() {}

// And represents a conjunction of predicates (all must be true).
// An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Where conjoins the non-nil predicates. It returns nil when none remain, so
// callers can build filters from optional flags.
func Where(preds ...Predicate) Predicate {
	var kept []Predicate
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return And{Predicates: kept}
	}
}
