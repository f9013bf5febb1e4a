// Package queryir describes queries over the session journal's records
// independently of the store that answers them.
//
// A Query names a session and an optional Predicate over record fields:
//
//	Select{
//	  Session: "0192...",
//	  Filter: And{Predicates: []Predicate{
//	    In{Field: "kind", Values: []ir.Value{ir.String("timer_action")}},
//	    After{Seq: 40},
//	  }},
//	}
//
// Query and Predicate are sealed: only types in this package implement
// them, so backends can switch over them exhaustively.
//
// Field names are the record's JSON names (seq, kind, from, to, process,
// pid, version, action, method, detail). Literal values are ir.Value; each
// field accepts either strings or ints, never both.
package queryir
