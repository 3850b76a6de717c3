// Package mmap maps segment files read-only into memory.
//
//	m, err := mmap.Open("segment.bin")
//	if err != nil { ... }
//	defer m.Close()
//	data := m.Bytes()
//
// On unix platforms the file is mapped with mmap(2) and access hints are
// passed on with madvise(2). Elsewhere the file is read into memory.
//
// A Mapping is safe for concurrent reads. Close is idempotent, but callers
// must not touch slices returned by Bytes after Close returns.
package mmap
