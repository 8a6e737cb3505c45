// Package storage defines the random-read file abstraction the pipeline
// core requires of its storage backend (spec §6) and two concrete variants:
// local disk and S3. The core only ever depends on the Backend interface —
// dispatch is by variant at construction time, not by an inheritance
// hierarchy (spec §9 "Polymorphism over capability, not inheritance").
package storage

import (
	"errors"
	"io"
)

// ErrFileDoesNotExist and ErrTransient are the two failure modes the core
// distinguishes for get_file_info/make_random_read_file (spec §6).
var (
	ErrFileDoesNotExist = errors.New("storage: file does not exist")
	ErrTransient        = errors.New("storage: transient failure")
)

// RandomReadFile is a seekable byte stream (spec §6).
type RandomReadFile interface {
	io.ReaderAt
	io.Closer
	// Size returns the total byte length of the file.
	Size() int64
}

// FileInfo is the result of a Backend.Stat call.
type FileInfo struct {
	Exists bool
	Size   int64
}

// Backend is the storage backend interface required by the core.
type Backend interface {
	// Open returns a seekable handle, failing with ErrFileDoesNotExist or
	// ErrTransient.
	Open(path string) (RandomReadFile, error)
	// Stat is used to gate preprocessing (spec §4.7): the lifecycle checks
	// whether the processed artifacts already exist before running.
	Stat(path string) (FileInfo, error)
}
