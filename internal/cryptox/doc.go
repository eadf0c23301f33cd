// Package cryptox contains the vault's cryptographic primitives: key
// derivation from the device root secret, authenticated encryption of byte
// buffers and the random secret generator.
//
// The root secret is a random device-bound seed, not biometric material and
// not something the user memorizes. Because it is already high entropy the
// vault key is expanded from it with HKDF-SHA256 and a per-save salt; a slow
// password hash would add nothing. PINs are hashed separately (see package
// auth) and never feed into the vault key.
package cryptox
