// Package ferrors defines FINJA's per-family error types, adapted from
// the teacher's internal/errors package: one struct per error kind from
// spec.md §7. VanishedError, DecodeError and StoreError wrap an underlying
// cause and implement Unwrap so callers can still use errors.Is/As against
// it; NotPlainFileError and BinaryFileError carry only the path and have
// no cause to unwrap.
package ferrors

import "fmt"

// VanishedError: the file disappeared between the directory walk and the
// stat call (spec.md §7).
type VanishedError struct {
	Path string
	Err  error
}

func NewVanished(path string, err error) *VanishedError {
	return &VanishedError{Path: path, Err: err}
}

func (e *VanishedError) Error() string {
	return fmt.Sprintf("%s: not found, skipping", e.Path)
}

func (e *VanishedError) Unwrap() error { return e.Err }

// NotPlainFileError: the path exists but isn't a regular file (socket,
// device, symlink loop).
type NotPlainFileError struct {
	Path string
}

func NewNotPlainFile(path string) *NotPlainFileError {
	return &NotPlainFileError{Path: path}
}

func (e *NotPlainFileError) Error() string {
	return fmt.Sprintf("%s: not a plain file, skipping", e.Path)
}

// BinaryFileError: the binary-detector predicate says so; tokenization is
// skipped but the file row stays.
type BinaryFileError struct {
	Path string
}

func NewBinaryFile(path string) *BinaryFileError {
	return &BinaryFileError{Path: path}
}

func (e *BinaryFileError) Error() string {
	return fmt.Sprintf("%s: is binary, skipping", e.Path)
}

// DecodeError: UTF-8 decoding failed, and the sniffed-encoding retry also
// failed; existing postings are left stale.
type DecodeError struct {
	Path     string
	Encoding string
	Err      error
}

func NewDecode(path, encoding string, err error) *DecodeError {
	return &DecodeError{Path: path, Encoding: encoding, Err: err}
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: decoding failed %s", e.Path, e.Encoding)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// StoreError: a fatal database error; the caller should propagate and
// terminate (spec.md §7: "Fatal: propagate and terminate").
type StoreError struct {
	Op  string
	Err error
}

func NewStore(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error during %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
