//go:generate flatc --go --go-namespace fb -o internal schema/ledger.fbs

// Package modkit applies and reverses mods against game archive pairs.
//
// An archive pair is an index file of fixed-size records plus one or more
// binary blobs the records point into. Applying a mod entry appends its data
// to a blob at a 16-byte aligned offset and rewrites one index record to
// point at it. Every patch is recorded in a durable [ledger.Ledger] together
// with the record it replaced, so it can be reversed later:
//
//   - [Engine.Disable] restores one record and leaves the appended bytes in
//     place, since later entries may have been appended after them.
//   - [Engine.DisableAll] restores every record of an archive and truncates
//     each blob to the length it had before the earliest live patch.
//
// Within one operation the blob is mutated first, then the ledger, then the
// index file. A crash therefore leaves index records pointing at valid data
// and the ledger as the source of truth. [Engine.Verify] cross-checks the
// ledger against the files at startup and reports divergence without
// repairing it.
//
// The engine assumes a single writer per archive pair. Callers serialize
// operations on the same archive.
package modkit
