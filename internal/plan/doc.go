// Package plan defines the logical and physical query plan.
//
// A plan is a tree of relational nodes (Rel) whose operands are scalar
// expression nodes (Rex). The same node types serve before and after
// binding resolution:
//
//	[parser, external] → [plan with Id nodes] → binder → [plan with Var nodes]
//	                                                      → compiler → operators
//
// Before resolution every variable reference is an *Id. The binder rewrites
// each *Id into a *VarLocal (register slot), a *VarGlobal (catalog unique id)
// or a *Dynamic lookup, and fills in the slot numbers of every declaration
// (Scan aliases, Project items, Aggregate outputs, Window outputs).
//
// SEALED INTERFACES:
//
// Rel, Rex, PathStep and Statement are sealed with marker methods. Only
// types in this package implement them, so every consumer (binder,
// compiler, EXPLAIN printer) can switch exhaustively:
//
//	switch r := rel.(type) {
//	case *Scan:
//	case *Filter:
//	...
//	default:
//	    // unreachable - the set of Rel types is closed
//	}
//
// IMMUTABILITY:
//
// Plans are never mutated in place once built. The binder and the rewrite
// strategies produce new nodes; the compiled operator tree only reads them.
// A compiled plan may therefore be shared by concurrent executions.
//
// PHYSICAL NODES:
//
// Every Rel carries an Impl tag naming the registered operator
// implementation that executes it. An empty tag selects the "default"
// implementation for the node's kind.
package plan
