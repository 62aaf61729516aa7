// Package worker runs the blob signing loop: it polls an input storage
// backend, signs each blob it finds, stores the signed result in an output
// backend, and removes the processed input blob.
package worker
