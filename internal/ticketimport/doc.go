// Package ticketimport implements the spreadsheet import pipeline that
// turns third-party ticketing exports (CSV, XLSX) into normalized ticket
// sales.
//
// The pipeline is a two-phase wizard driven by the operator:
//
//	decode -> map columns -> preview -> commit
//
// Decoding produces typed raw cells with no knowledge of the target
// schema. The operator maps source columns onto the fixed schema
// (schema.go), the normalizer coerces each cell to its canonical type
// (normalize.go), and the session state machine (session.go) guards the
// preview/commit ordering, performs the single batched write, and records
// one ledger entry per completed commit.
//
// Everything up to the commit's database write is pure and side-effect
// free; previews can be re-run freely while the operator edits the
// mapping.
package ticketimport
