// Package vault owns the encrypted record collection.
//
// The whole collection is serialized to JSON, encrypted with a key derived
// from the device root secret and a fresh salt, and written as one
// EncryptedBlob under a single secure store key. Every mutation rewrites the
// blob; there is no partial persistence. Operations are serialized by a
// per-Store mutex covering the full load-mutate-save sequence, and the
// in-memory collection only changes after the write succeeded.
//
// A blob that cannot be decoded or authenticated is treated as corrupt: it
// is deleted, the collection restarts empty and the error is reported with
// common.ErrCorruptData (and to the optional corruption handler) so the
// caller can warn the user.
package vault
