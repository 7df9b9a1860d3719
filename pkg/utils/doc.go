// Package utils provides small shared helpers for the recall library.
//
// It contains concurrent execution primitives with bounded parallelism
// (concurrent.go), panic recovery helpers that convert panics into errors
// (recovery.go), and id generation (helpers.go).
package utils
