/*
Package signhandler implements the remote signing service protocol: the
client used by signers to submit digests and fetch certificate chains, the
wire types shared between both sides, and an in-process HTTP handler that
serves the same protocol for development and tests.

# Protocol

All endpoints live under a code-signing account and certificate profile and
carry an api-version query parameter plus a bearer token injected by the
request pipeline:

  - GET  /codesigningaccounts/{account}/certificateprofiles/{profile}/sign/certchain
    returns the profile's certificate bundle as application/pkcs7-mime.
  - POST /codesigningaccounts/{account}/certificateprofiles/{profile}/sign
    accepts {"signatureAlgorithm": "...", "digest": "<base64>"} and returns a
    SigningStatus JSON document for the created long-running operation.
  - GET  /codesigningaccounts/{account}/certificateprofiles/{profile}/sign/{operationId}
    refreshes the status of an operation.

# Long-running operations

Signing is asynchronous on the service side. The client polls the operation
until it reaches a terminal status, sleeping a fixed 250 ms between polls and
giving up after five attempts in total. Terminal non-success statuses fail
immediately; exhausting the poll budget is reported separately so callers can
distinguish a slow service from a rejecting one.
*/
package signhandler
