// Package storage holds the persistence configuration shared by the store
// implementations.
//
// The billing stores themselves live in pkg/storage/postgres and implement
// the interfaces declared by pkg/billing, so the engine never depends on a
// concrete database.
package storage
