// Package errors provides the error taxonomy of the composition engine.
//
// Argument errors are reported synchronously and leave the container untouched.
// Composition errors come from conflicting declarations and are fatal: after one
// is returned the container's internal state must not be relied upon.
package errors
