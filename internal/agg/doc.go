// Package agg implements aggregate accumulators.
//
// An Accumulator folds the values of one aggregate call over one group.
// Unknown values (NULL, MISSING) are skipped before folding, and a DISTINCT
// quantifier installs a structural-equality filter ahead of the fold, so
//
//	SUM(DISTINCT x) over [1, 1, 2, NULL] = 3
//
// COUNT(*) is the one accumulator that sees every row.
//
// Accumulators are per-execution state. Create one per group with New.
package agg
