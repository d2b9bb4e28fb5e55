// Package queryir provides an abstract query representation for reads over
// the poe journal.
//
// A query names a journal table, an explicit column list and a filter built
// from a closed set of predicates. Backends (see querysql) compile it; the
// representation itself never contains SQL text.
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed interfaces using the marker method pattern.
// Only types in this package implement them, so backends can switch
// exhaustively:
//
//	switch p := pred.(type) {
//	case Equals:
//	case Compare:
//	case And:
//	}
//
// SAFETY:
//
// Table and column names are the only parts of a query a backend writes into
// the statement text. Validate checks them against Columns, and values are
// always passed as parameters.
//
// DETERMINISM:
//
// Every compiled query has a total order: journal tables order by seq,
// proofs by fingerprint bytes.
package queryir
