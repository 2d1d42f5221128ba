// Package value provides the semi-structured value model evaluated by pql.
//
// This package contains the value types, their total order, the numeric
// tower, casts and the canonical encodings. Every other internal package
// imports value; value imports nothing internal. This keeps the data model
// the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Two distinct unknowns: MISSING (absent field) and NULL (explicit null).
//     They propagate identically and compare equal to each other.
//   - Value is a sealed interface; type switches over it are exhaustive.
//   - DECIMAL is exact (github.com/cockroachdb/apd/v3). FLOAT is IEEE-754.
//   - Struct equality ignores field order; bag equality ignores element order.
//   - Values are immutable once constructed. Compiled plans share them
//     freely across concurrent executions.
package value
