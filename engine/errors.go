package engine

import "fmt"

// VerificationError reports a size mismatch between what was read from the
// source and what the destination ended up holding. The source file is
// never deleted when this is returned.
type VerificationError struct {
	Name     string
	Expected int64
	Actual   int64
	Stage    string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s: %s size mismatch: expected %d bytes, got %d", e.Name, e.Stage, e.Expected, e.Actual)
}

// RenameError reports that the uploaded temporary file could not be moved
// to its final name, including after removing an existing target.
type RenameError struct {
	Name string
	Tmp  string
	Err  error
}

func (e *RenameError) Error() string {
	return fmt.Sprintf("%s: rename %s failed: %v", e.Name, e.Tmp, e.Err)
}

func (e *RenameError) Unwrap() error { return e.Err }

// FatalError marks a failure of the local environment rather than of one
// transfer. It aborts the whole run and makes the process exit non-zero.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }
