package ar

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingGlobalHeader indicates that the archive file is invalid because its global
	// header is missing (i.e., because the file is shorter than 8 bytes).
	ErrMissingGlobalHeader = errors.New("ar: missing global header")

	// ErrInvalidGlobalHeader indicates that the archive file is invalid because its global
	// header is malformed (i.e., not the string "!<arch>\n").
	ErrInvalidGlobalHeader = errors.New("ar: invalid global header")

	// ErrInvalidArchive indicates a malformed archive: a bad header terminator, a bad
	// pad byte, or a Debian archive missing one of its required members.
	ErrInvalidArchive = errors.New("ar: invalid archive")

	// ErrUnknownFormat is returned when the archive's format is read before it has been
	// chosen explicitly or detected from an input stream.
	ErrUnknownFormat = errors.New("ar: no archive format specified or detected")

	// ErrUnknownMember indicates that a member header was not accepted by any known
	// member variant.
	ErrUnknownMember = errors.New("ar: unknown archive entry")

	// ErrMemberNotFound is returned by Lookup when no member has the requested name.
	ErrMemberNotFound = errors.New("ar: member not found")
)

// errWrongKind is the internal backtracking signal used while classifying a member
// header: it means "this variant does not match, try the next candidate". It never
// escapes a classification dispatch; once every candidate has been tried and none
// accepted it escalates to ErrUnknownMember.
var errWrongKind = errors.New("ar: wrong member kind")

// ErrStringTable indicates a problem with the string table in archives that use the GNU variant of
// the file format.
type ErrStringTable struct {
	Err error
}

func (e *ErrStringTable) Error() string {
	return fmt.Sprintf("ar: string table: %s", e.Err)
}

func (e *ErrStringTable) Unwrap() error {
	return e.Err
}

// ErrFileName indicates a problem with the file name in one of the archive's file headers.
type ErrFileName struct {
	Name string
	Err  error
}

func (e *ErrFileName) Error() string {
	return fmt.Sprintf("ar: archive member '%s': %s", e.Name, e.Err)
}

func (e *ErrFileName) Unwrap() error {
	return e.Err
}
