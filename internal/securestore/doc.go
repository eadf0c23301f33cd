// Package securestore is the device-local key/value store holding every piece
// of persisted vault state: the encrypted blob, the authentication config,
// the device seed and the auto-lock settings.
//
// The store is a single SQLite file (modernc.org/sqlite, no cgo) whose schema
// is managed by goose migrations. Each Set is a single upsert statement, so a
// crash mid-write leaves the previous value intact; SetMany groups several
// keys in one transaction.
//
// Driver errors are wrapped with common.ErrStorageUnavailable so callers can
// classify them with errors.Is without knowing about database/sql.
package securestore
