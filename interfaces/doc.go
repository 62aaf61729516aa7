// Package interfaces defines the shared types and contracts used across the
// trustedsign components: signature algorithm identifiers, the credential
// provider contract, remote operation statuses, blob storage, and the error
// sentinels every component reports through.
//
// The package has no dependencies on other packages in this repository so it
// can be imported freely by implementations and consumers alike.
package interfaces
