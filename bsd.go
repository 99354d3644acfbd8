package ar

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// BSD member encodings:
//
//	<name>             short member, name up to 16 bytes
//	#1/<namelength>    long member, namelength name bytes follow the header
//	__.SYMDEF          symbol table, bare or stored inline like a long member
//	                   with an optional " SORTED" suffix
const (
	bsdLongPrefix      = "#1/"
	bsdSymbolTableName = "__.SYMDEF"
	bsdSortedSuffix    = "SORTED"
)

func (a *Archive) bsdShortFromHeader(kind Kind, name string, buf []byte) (*Member, error) {
	// The symbol table literal and anything shaped like a GNU name belong to
	// other variants; rejecting them here keeps acceptance unambiguous
	// across the full candidate set.
	if name == "" || strings.HasPrefix(name, bsdSymbolTableName) || strings.Contains(name, gnuNameTerminal) {
		return nil, errWrongKind
	}
	meta, err := parseHeaderMeta(buf, false)
	if err != nil {
		return nil, err
	}
	return a.newMember(kind, trimName(name), meta), nil
}

func (a *Archive) bsdShortFromFile(path, base string, fm fileMeta) (*Member, error) {
	encoded, err := a.encodeName(base)
	if err != nil {
		return nil, &ErrFileName{Name: base, Err: err}
	}
	if len(encoded) > nameFieldSize || containsSpace(base) {
		return nil, errWrongKind
	}
	return a.newFileMember(KindBSDShort, base, path, fm), nil
}

func (a *Archive) bsdLongFromHeader(name string, buf []byte) (*Member, error) {
	inline, filename, err := a.readInlineName(name)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(filename, bsdSymbolTableName) {
		return nil, errWrongKind
	}
	meta, err := parseHeaderMeta(buf, false)
	if err != nil {
		return nil, err
	}
	m := a.newMember(KindBSDLong, filename, meta)
	m.namelen = int64(len(inline))
	m.inline = inline
	return m, nil
}

func (a *Archive) bsdLongFromFile(path, base string, fm fileMeta) (*Member, error) {
	encoded, err := a.encodeName(base)
	if err != nil {
		return nil, &ErrFileName{Name: base, Err: err}
	}
	if len(encoded) <= nameFieldSize && !containsSpace(base) {
		return nil, errWrongKind
	}
	m := a.newFileMember(KindBSDLong, base, path, fm)
	m.namelen = int64(len(encoded))
	m.inline = encoded
	m.size = fm.size + m.namelen
	return m, nil
}

func (a *Archive) bsdSymbolTableFromHeader(name string, buf []byte) (*Member, error) {
	var inline []byte
	var filename string
	sorted := false
	switch {
	case name == bsdSymbolTableName:
		// Bare form: no inline bytes, unsorted.
	case strings.HasPrefix(name, bsdLongPrefix):
		var err error
		inline, filename, err = a.readInlineName(name)
		if err != nil {
			return nil, err
		}
		if !strings.HasPrefix(filename, bsdSymbolTableName) {
			return nil, errWrongKind
		}
		sorted = strings.HasSuffix(filename, bsdSortedSuffix)
	default:
		return nil, errWrongKind
	}
	meta, err := parseHeaderMeta(buf, false)
	if err != nil {
		return nil, err
	}
	m := a.newMember(KindBSDSymbolTable, filename, meta)
	m.namelen = int64(len(inline))
	m.inline = inline
	m.sorted = sorted
	return m, nil
}

// readInlineName consumes the inline name bytes that follow a #1/<n> header.
// The raw bytes are preserved verbatim alongside the cleaned logical name so
// re-saving reproduces any trailing padding exactly.
func (a *Archive) readInlineName(name string) (raw []byte, filename string, err error) {
	if !strings.HasPrefix(name, bsdLongPrefix) {
		return nil, "", errWrongKind
	}
	n, err := strconv.ParseInt(name[len(bsdLongPrefix):], 10, 64)
	if err != nil || n < 0 {
		return nil, "", errWrongKind
	}
	raw = make([]byte, n)
	if _, err := io.ReadFull(a.in, raw); err != nil {
		return nil, "", fmt.Errorf("%w: short read of inline name %q: %v", ErrInvalidArchive, name, err)
	}
	decoded, err := a.decodeName(raw)
	if err != nil {
		return nil, "", &ErrFileName{Name: name, Err: err}
	}
	return raw, trimName(decoded), nil
}

// newBSDSymbolTable builds a BSD symbol table member from scratch with the
// given opaque index blob. A sorted table stores its marker name inline in
// the same shape as a long member.
func (a *Archive) newBSDSymbolTable(data []byte, sorted bool) *Member {
	m := &Member{
		kind:    KindBSDSymbolTable,
		archive: a,
		modTime: time.Now(),
		mode:    0o100644,
		size:    int64(len(data)),
		offset:  -1,
		data:    data,
		sorted:  sorted,
	}
	if sorted {
		m.filename = bsdSymbolTableName + " " + bsdSortedSuffix
		m.inline = []byte(m.filename)
		m.namelen = int64(len(m.inline))
		m.size += m.namelen
	}
	return m
}
