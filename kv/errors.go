package kv

import "errors"

var (
	// ErrClosed is returned when the store is closed.
	ErrClosed = errors.New("kv: store is closed")
	// ErrUnknownIterator is returned when a scan names an unregistered iterator.
	ErrUnknownIterator = errors.New("kv: unknown iterator")
	// ErrIteratorExists is returned when an iterator name is registered twice.
	ErrIteratorExists = errors.New("kv: iterator already registered")
	// ErrInvalidRow is returned for rows that cannot be stored.
	ErrInvalidRow = errors.New("kv: invalid row")
)
