// Package core implements the row-processing engine for partner-onboarding
// batches: given one incoming record that spans several related tables, it
// decides per table and per field whether a write is permitted, executes the
// writes inside a single transaction, and produces an auditable outcome.
//
// The package is product-agnostic. Product-specific knowledge (which tables a
// record decomposes into, in what order, and which fields each table allows)
// is supplied through the Adapter interface. Persistence is supplied through
// the Store/Tx interfaces, so the engine itself performs no SQL and opens no
// connections.
package core
