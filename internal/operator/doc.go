// Package operator provides the pull-based relational operators and the
// factory registry the compiler instantiates them from.
//
// Every operator is an eval.Rows. Opening it with a State yields a cursor
// whose Next loads one row into the State's registers. Parents pull from
// children synchronously; only Sort, Aggregate, Distinct and Window
// materialize their input.
//
// FACTORY REGISTRY:
//
// Factories are keyed by (plan.RelKind, impl name). The compiler looks up
// each node's key, using "default" when the node carries no impl tag:
//
//	reg, err := operator.NewRegistry(customScan)
//	f, err := reg.Lookup(plan.KindScan, "sqlite")
//	rows, err := f.Create(&operator.ScanSpec{...})
//
// Registering two factories under one key fails with a *ConfigError when
// the registry is built, never during execution.
package operator
