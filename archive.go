package ar

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/encoding"
)

// Archive is one load/save session over an ar-style container. It owns the
// ordered sequence of regular members plus the two optional singletons (the
// symbol table and, for GNU archives, the string table).
//
// An Archive binds at most one input and one output stream at a time, and is
// not safe for concurrent use. Load fully discards prior state before
// reading. Editing is whole-archive: load or add members, mutate the
// in-memory model, then rewrite the entire stream with Save.
type Archive struct {
	variant      Variant
	variantKnown bool

	members []*Member
	symtab  *Member
	strtab  *StringTable

	in    io.ReadSeeker
	out   io.WriteSeeker
	owned io.Closer

	logger *slog.Logger
	enc    encoding.Encoding
}

// New returns an empty archive ready for building or loading. The format
// defaults to GNU; loading an existing stream re-detects it.
func New(opts ...Option) *Archive {
	a := &Archive{
		variant:      GNU,
		variantKnown: true,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Format returns the archive's format. It is an error to read the format
// before it has been chosen explicitly or detected from an input stream;
// there is no fallback default once a load has begun.
func (a *Archive) Format() (Variant, error) {
	if !a.variantKnown {
		return 0, ErrUnknownFormat
	}
	return a.variant, nil
}

// Members returns the regular members in archive file order. The symbol
// table and string table are not included.
func (a *Archive) Members() []*Member { return a.members }

// SymbolTable returns the archive's symbol table member, or nil.
func (a *Archive) SymbolTable() *Member { return a.symtab }

// StringTable returns the archive's string table, or nil. Only GNU archives
// with at least one long-named member have one.
func (a *Archive) StringTable() *StringTable { return a.strtab }

// Lookup returns the first regular member whose logical name equals
// filename; duplicates resolve to the earliest occurrence.
func (a *Archive) Lookup(filename string) (*Member, error) {
	for _, m := range a.members {
		if m.filename == filename {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrMemberNotFound, filename)
}

// ensureStringTable returns the archive's string table, creating it at the
// first long-name registration.
func (a *Archive) ensureStringTable() *StringTable {
	if a.strtab == nil {
		a.strtab = newStringTable(a)
	}
	return a.strtab
}

func (a *Archive) reset() {
	if a.owned != nil {
		a.owned.Close()
		a.owned = nil
	}
	a.variantKnown = false
	a.members = nil
	a.symtab = nil
	a.strtab = nil
	a.in = nil
	a.out = nil
}

// Load reads an archive from r, replacing any previously loaded state. The
// format is detected from the first member; an archive whose first regular
// member is named debian-binary is reclassified as DEB after the fact (the
// format has no container-level marker of its own).
func (a *Archive) Load(r io.ReadSeeker) error {
	a.reset()
	a.in = r
	a.logger.Debug("loading archive")

	magic := make([]byte, len(GLOBAL_HEADER))
	if _, err := io.ReadFull(r, magic); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrMissingGlobalHeader
		}
		return fmt.Errorf("ar: %w", err)
	}
	if string(magic) != GLOBAL_HEADER {
		return fmt.Errorf("%w: got %q, expected %q", ErrInvalidGlobalHeader, magic, GLOBAL_HEADER)
	}

	for {
		m, err := a.readMember()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return err
		}
		switch m.kind {
		case KindGNUSymbolTable, KindBSDSymbolTable:
			if a.symtab != nil {
				return fmt.Errorf("%w: multiple symbol tables", ErrInvalidArchive)
			}
			a.symtab = m
		case KindGNUStringTable:
			if a.strtab != nil {
				return &ErrStringTable{Err: errors.New("archive contains multiple string tables")}
			}
			a.strtab = loadedStringTable(a, m)
		default:
			a.members = append(a.members, m)
		}
		if err := a.readPad(); err != nil {
			return err
		}
	}

	if len(a.members) > 0 && a.members[0].filename == "debian-binary" {
		a.variant = DEB
	}
	a.logger.Debug("loaded archive", "format", a.variant, "members", len(a.members))
	return nil
}

// LoadFile opens path and loads the archive from it. On success the archive
// owns the file until Close, the next Load, or a SaveFile; on failure the
// file is closed before returning.
func (a *Archive) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	if err := a.Load(f); err != nil {
		f.Close()
		return err
	}
	a.owned = f
	return nil
}

// readMember classifies and constructs the next member from the input
// stream. It returns io.EOF when fewer than 60 header bytes remain, which is
// the expected end of the archive.
func (a *Archive) readMember() (*Member, error) {
	start, err := tell(a.in)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, HEADER_BYTE_SIZE)
	if _, err := io.ReadFull(a.in, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	rawName, err := headerName(buf)
	if err != nil {
		return nil, fmt.Errorf("%w (member at offset %d)", err, start)
	}
	name, err := a.decodeName(rawName)
	if err != nil {
		return nil, &ErrFileName{Name: string(rawName), Err: err}
	}

	var m *Member
	if a.variantKnown {
		m, err = a.classify(kindsFor(a.variant), start, name, buf)
	} else {
		m, err = a.classifyFirst(start, name, buf)
	}
	if err != nil {
		return nil, err
	}
	m.offset = start + HEADER_BYTE_SIZE + m.namelen
	if _, err := a.in.Seek(m.offset+m.Filesize(), io.SeekStart); err != nil {
		return nil, err
	}
	a.logger.Debug("read member", "member", m)
	return m, nil
}

// classify tries the candidate kinds in their fixed priority order, seeking
// back to the end of the header between trials so a candidate that consumed
// inline name bytes cannot disturb the next one.
func (a *Archive) classify(kinds []Kind, start int64, name string, buf []byte) (*Member, error) {
	for _, kind := range kinds {
		if _, err := a.in.Seek(start+HEADER_BYTE_SIZE, io.SeekStart); err != nil {
			return nil, err
		}
		m, err := a.memberFromHeader(kind, name, buf)
		if errors.Is(err, errWrongKind) {
			a.logger.Debug("variant rejected", "kind", kind, "name", name)
			continue
		} else if err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, fmt.Errorf("%w: %q at offset %d", ErrUnknownMember, name, start)
}

// classifyFirst classifies the leading member of an archive whose format is
// not yet known, trying every variant across all families. Exactly one must
// accept; acceptance by more than one is a malformed or ambiguous header,
// not something resolved by trial order. The accepting variant's family
// fixes the archive's format for the rest of the load.
func (a *Archive) classifyFirst(start int64, name string, buf []byte) (*Member, error) {
	var member *Member
	var matched Kind
	for _, kind := range allKinds {
		if _, err := a.in.Seek(start+HEADER_BYTE_SIZE, io.SeekStart); err != nil {
			return nil, err
		}
		m, err := a.memberFromHeader(kind, name, buf)
		if errors.Is(err, errWrongKind) {
			continue
		} else if err != nil {
			return nil, err
		}
		if member != nil {
			return nil, fmt.Errorf("%w: header %q matches both %v and %v", ErrInvalidArchive, name, matched, kind)
		}
		member, matched = m, kind
	}
	if member == nil {
		return nil, fmt.Errorf("%w: %q at offset %d", ErrUnknownMember, name, start)
	}
	a.variant = variantOf(matched)
	a.variantKnown = true
	a.logger.Debug("detected format", "format", a.variant)
	return member, nil
}

// readPad consumes the single '\n' pad byte that follows any member whose
// payload ends at an odd stream offset.
func (a *Archive) readPad() error {
	pos, err := tell(a.in)
	if err != nil {
		return err
	}
	if pos%2 == 0 {
		return nil
	}
	var b [1]byte
	if _, err := io.ReadFull(a.in, b[:]); err != nil {
		return fmt.Errorf("%w: missing pad byte at offset %d", ErrInvalidArchive, pos)
	}
	if b[0] != padByte {
		return fmt.Errorf("%w: bad pad byte %q at offset %d", ErrInvalidArchive, b[0], pos)
	}
	return nil
}

// Save writes the whole archive to w: magic, symbol table, string table
// (GNU), then every regular member. Debian archives are reordered into the
// required debian-binary, control.tar*, data.tar* sequence first. After each
// member's payload is collected its offset points into the output stream; if
// w is also readable it becomes the archive's payload source.
func (a *Archive) Save(w io.WriteSeeker) error {
	v, err := a.Format()
	if err != nil {
		return err
	}
	a.out = w
	a.logger.Debug("saving archive", "format", v, "members", len(a.members))

	if _, err := w.Write([]byte(GLOBAL_HEADER)); err != nil {
		return err
	}
	if a.strtab != nil {
		a.strtab.finalize()
	}
	if a.symtab != nil {
		if err := a.writeMember(a.symtab); err != nil {
			return err
		}
		if err := a.writePad(); err != nil {
			return err
		}
	}
	if v == GNU && a.strtab != nil {
		if err := a.strtab.save(w); err != nil {
			return err
		}
		if err := a.writePad(); err != nil {
			return err
		}
	}
	if v == DEB {
		if err := a.orderDebianMembers(); err != nil {
			return err
		}
	}
	for _, m := range a.members {
		if err := a.writeMember(m); err != nil {
			return err
		}
		if err := a.writePad(); err != nil {
			return err
		}
	}
	if rs, ok := w.(io.ReadSeeker); ok {
		a.in = rs
	}
	a.logger.Debug("saved archive", "format", v)
	return nil
}

// SaveFile writes the archive to path. The file is opened read/write: after
// a successful save it becomes the archive's bound input stream (member
// payloads now live there) and any previously owned input is released. On
// failure the file is closed before returning.
func (a *Archive) SaveFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o666)
	if err != nil {
		return err
	}
	if err := a.Save(f); err != nil {
		f.Close()
		return err
	}
	if a.owned != nil {
		a.owned.Close()
	}
	a.owned = f
	a.in = f
	return nil
}

// orderDebianMembers rearranges the member sequence into the fixed Debian
// triad followed by any remaining members in their original relative order.
// Each of the three roles must be filled by exactly one member.
func (a *Archive) orderDebianMembers() error {
	triad := make([]*Member, 3)
	var extra []*Member
	for _, m := range a.members {
		slot := -1
		switch {
		case m.filename == "debian-binary":
			slot = 0
		case strings.HasPrefix(m.filename, "control.tar"):
			slot = 1
		case strings.HasPrefix(m.filename, "data.tar"):
			slot = 2
		}
		if slot < 0 {
			extra = append(extra, m)
			continue
		}
		if triad[slot] != nil {
			return fmt.Errorf("%w: members %q and %q fill the same debian role", ErrInvalidArchive, triad[slot].filename, m.filename)
		}
		triad[slot] = m
	}
	for _, m := range triad {
		if m == nil {
			return fmt.Errorf("%w: debian archives require debian-binary, control.tar(.*) and data.tar(.*) members", ErrInvalidArchive)
		}
	}
	a.members = append(triad, extra...)
	return nil
}

// writeMember serializes a member's header, its inline name bytes if the
// variant stores any, and then its payload.
func (a *Archive) writeMember(m *Member) error {
	name, err := m.headerNameBytes()
	if err != nil {
		return err
	}
	hdr, err := encodeHeader(name, headerMeta{
		date: m.modTime.Unix(),
		uid:  m.uid,
		gid:  m.gid,
		mode: m.mode,
		size: m.size,
	})
	if err != nil {
		return err
	}
	if _, err := a.out.Write(hdr); err != nil {
		return err
	}
	if len(m.inline) > 0 {
		if _, err := a.out.Write(m.inline); err != nil {
			return err
		}
	}
	return a.collect(m)
}

// collect copies a member's payload into the output stream and relocates the
// member there: offset now names its position in the output and the external
// source reference, if any, is cleared.
func (a *Archive) collect(m *Member) error {
	offset, err := tell(a.out)
	if err != nil {
		return err
	}
	switch {
	case m.data != nil:
		if _, err := a.out.Write(m.data); err != nil {
			return err
		}
	case m.sourcePath != "":
		f, err := os.Open(m.sourcePath)
		if err != nil {
			return err
		}
		err = copyPayload(a.out, f, m.Filesize())
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	default:
		if a.in == nil {
			return fmt.Errorf("ar: member %q has no payload source", m.filename)
		}
		if _, err := a.in.Seek(m.offset, io.SeekStart); err != nil {
			return err
		}
		if err := copyPayload(a.out, a.in, m.Filesize()); err != nil {
			return err
		}
	}
	m.offset = offset
	m.sourcePath = ""
	return nil
}

func (a *Archive) writePad() error {
	pos, err := tell(a.out)
	if err != nil {
		return err
	}
	if pos%2 == 0 {
		return nil
	}
	_, err = a.out.Write([]byte{padByte})
	return err
}

// Add captures path's filesystem metadata and appends it as a new member,
// selecting the first variant of the archive's format family that accepts
// the file's name. Its payload is read from the file at the next Save.
func (a *Archive) Add(path string) error {
	v, err := a.Format()
	if err != nil {
		return err
	}
	fm, err := statFile(path)
	if err != nil {
		return err
	}
	base := filepath.Base(path)
	for _, kind := range kindsFor(v) {
		m, err := a.memberFromFile(kind, path, base, fm)
		if errors.Is(err, errWrongKind) {
			continue
		} else if err != nil {
			return err
		}
		a.members = append(a.members, m)
		a.logger.Debug("added member", "member", m)
		return nil
	}
	return &ErrFileName{Name: base, Err: fmt.Errorf("no %v member variant accepts this name", v)}
}

// AddSymbolTable installs a symbol table holding the given opaque index
// blob. The content is never interpreted, only copied through on save. The
// sorted flag only has meaning for BSD archives, whose symbol table name
// carries a SORTED marker.
func (a *Archive) AddSymbolTable(data []byte, sorted bool) error {
	v, err := a.Format()
	if err != nil {
		return err
	}
	switch v {
	case GNU:
		a.symtab = &Member{
			kind:    KindGNUSymbolTable,
			archive: a,
			modTime: time.Now(),
			mode:    0o100644,
			size:    int64(len(data)),
			offset:  -1,
			data:    data,
		}
	case BSD:
		a.symtab = a.newBSDSymbolTable(data, sorted)
	default:
		return fmt.Errorf("ar: format %v has no symbol table variant", v)
	}
	return nil
}

// Close releases any file the archive opened for itself. It is safe to call
// more than once.
func (a *Archive) Close() error {
	if a.owned == nil {
		return nil
	}
	err := a.owned.Close()
	a.owned = nil
	return err
}

func (a *Archive) decodeName(b []byte) (string, error) {
	if a.enc == nil {
		return string(b), nil
	}
	out, err := a.enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (a *Archive) encodeName(s string) ([]byte, error) {
	if a.enc == nil {
		return []byte(s), nil
	}
	return a.enc.NewEncoder().Bytes([]byte(s))
}
