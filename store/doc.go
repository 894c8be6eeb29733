// Package store persists sealed column binaries in an embedded bbolt
// database, one series per key.
//
// Append reopens the stored binary in place (column.Reopen), appends the new
// elements and stores the refreshed binary back in a single transaction, so
// repeated small appends never pay for a full re-encode of the series. When
// a stored binary cannot be reopened the store falls back to decoding and
// re-encoding it, logging a warning through the configured slog.Logger.
//
// Series metadata (element count, update time, at-rest codec) is tracked in
// a separate bucket as msgpack.
package store
