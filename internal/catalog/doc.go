// Package catalog holds the global variables statements are resolved and
// executed against.
//
// Catalog is an in-memory implementation and SQLiteStore a durable one.
// Both resolve names for the binder, supply session values and apply
// Insert and Delete statements. A case-insensitive name matching several
// globals resolves to the one registered first.
package catalog
