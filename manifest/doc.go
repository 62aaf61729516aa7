// Package manifest defines the contract between a signing capability and
// the library that embeds signatures into a content container, plus a
// minimal detached-envelope implementation of that contract.
//
// The binary container format itself is an external concern; anything that
// can consume the Signer interface can produce one. The Detached embedder in
// this package writes a standalone JSON envelope instead, which is enough
// for end-to-end signing and verification without a container library.
package manifest
