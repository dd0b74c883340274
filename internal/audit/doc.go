// Package audit records block-list mutations and auto-sleep triggers
// in a SQLite ledger so operators can reconstruct who blocked what and
// when. The ledger is advisory: a failed audit write is logged, never
// fatal to the mutation it describes.
package audit
