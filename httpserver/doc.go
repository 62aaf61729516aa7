/*
Package httpserver implements the HTTP front end of the signing service.

It exposes two API endpoints backed by a remote signing account:

 1. POST /api/sign - signs the request body and returns the signed document
 2. POST /api/verify - checks a detached envelope and reports its validity

Alongside the API, the server provides the usual operational surface:
liveness and readiness probes, drain/undrain for load-balancer rotation, a
Prometheus metrics listener, and optional pprof profiling.

The server never touches key material. Signing happens in the remote
service; the handler streams content through a manifest.Signer whose
certificate chain was fetched and normalized at startup.
*/
package httpserver
