// Package common holds the package identity and logger setup shared by all
// binaries in this repository.
package common

// PackageName is used as the metrics namespace and user-agent prefix.
const PackageName = "trustedsign"

// Version is set at build time via -ldflags.
var Version = "dev"
