// Package herr defines the error taxonomy shared by every Hammersbald
// storage layer: Io, Corrupt, NotFound, WrongType, TooLarge and Locked.
//
// Each kind is a github.com/zeebo/errs Class so callers can classify a
// returned error without resorting to string matching or sentinel
// equality, while individual errors still carry a wrapped cause and a
// stack trace from the point they were raised.
package herr

import "github.com/zeebo/errs"

var (
	// Io wraps an underlying OS/filesystem failure.
	Io = errs.Class("io")

	// Corrupt marks a structural violation: a bad record type byte, an
	// impossible length, a self-offset mismatch, or a malformed WriteLog
	// header. Fatal for the call that observed it.
	Corrupt = errs.Class("corrupt")

	// NotFound marks a missing PRef target. It is an internal
	// programming error — never returned from Engine.Get by key, which
	// reports absence by returning ok=false instead.
	NotFound = errs.Class("not found")

	// WrongType marks GetAt on a PRef that does not address a type-1
	// application record.
	WrongType = errs.Class("wrong type")

	// TooLarge marks a key over 255 bytes or a payload over 2^24-1 bytes.
	TooLarge = errs.Class("too large")

	// Locked marks that the database is already open by another process.
	Locked = errs.Class("locked")
)
