// Package resource limits the memory, read concurrency and IO bandwidth of a
// store.
//
// A nil *Controller is valid and imposes no limits.
package resource
