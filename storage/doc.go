// Package storage provides blob storage backends for the signing worker.
//
// Backends expose name-keyed List, Fetch, Store, and Delete operations and
// are created from location URIs through the StorageBackendFactory:
//
//   - file:///var/lib/signing/inbox/
//   - s3://bucket-name/prefix/?region=us-west-2&endpoint=custom.s3.com
//
// S3 credentials can be embedded in the URI userinfo (access:secret@) for
// development; production deployments should rely on ambient AWS credentials.
package storage
