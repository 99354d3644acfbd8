package ar

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// GNU member encodings:
//
//	<name>/            short member, name under 16 bytes
//	/<decimal offset>  long member, name stored in the string table
//	/                  symbol table
//	//                 string table
const gnuNameTerminal = "/"

var gnuLongNameRE = regexp.MustCompile(`^/(\d+)$`)

func (a *Archive) gnuShortFromHeader(name string, buf []byte) (*Member, error) {
	if len(name) <= 1 || !strings.HasSuffix(name, gnuNameTerminal) ||
		strings.HasPrefix(name, gnuNameTerminal) || containsSpace(name) {
		return nil, errWrongKind
	}
	meta, err := parseHeaderMeta(buf, false)
	if err != nil {
		return nil, err
	}
	return a.newMember(KindGNUShort, trimName(strings.TrimSuffix(name, gnuNameTerminal)), meta), nil
}

func (a *Archive) gnuShortFromFile(path, base string, fm fileMeta) (*Member, error) {
	encoded, err := a.encodeName(base)
	if err != nil {
		return nil, &ErrFileName{Name: base, Err: err}
	}
	if len(encoded) >= nameFieldSize || containsSpace(base) {
		return nil, errWrongKind
	}
	m := a.newFileMember(KindGNUShort, base, path, fm)
	return m, nil
}

func (a *Archive) gnuLongFromHeader(name string, buf []byte) (*Member, error) {
	g := gnuLongNameRE.FindStringSubmatch(name)
	if g == nil {
		return nil, errWrongKind
	}
	offset, err := strconv.ParseInt(g[1], 10, 64)
	if err != nil {
		return nil, errWrongKind
	}
	if a.strtab == nil {
		return nil, &ErrFileName{Name: name, Err: errors.New("missing string table")}
	}
	raw, err := a.strtab.resolve(a.in, offset)
	if err != nil {
		return nil, err
	}
	filename, err := a.decodeName(raw)
	if err != nil {
		return nil, &ErrFileName{Name: name, Err: err}
	}
	meta, err := parseHeaderMeta(buf, false)
	if err != nil {
		return nil, err
	}
	m := a.newMember(KindGNULong, trimName(filename), meta)
	if err := a.strtab.register(m, raw); err != nil {
		return nil, err
	}
	return m, nil
}

func (a *Archive) gnuLongFromFile(path, base string, fm fileMeta) (*Member, error) {
	encoded, err := a.encodeName(base)
	if err != nil {
		return nil, &ErrFileName{Name: base, Err: err}
	}
	if len(encoded) < nameFieldSize && !containsSpace(base) {
		return nil, errWrongKind
	}
	m := a.newFileMember(KindGNULong, base, path, fm)
	if err := a.ensureStringTable().register(m, encoded); err != nil {
		return nil, err
	}
	return m, nil
}

func (a *Archive) gnuSymbolTableFromHeader(name string, buf []byte) (*Member, error) {
	if name != "/" {
		return nil, errWrongKind
	}
	meta, err := parseHeaderMeta(buf, false)
	if err != nil {
		return nil, err
	}
	return a.newMember(KindGNUSymbolTable, "", meta), nil
}

func (a *Archive) gnuStringTableFromHeader(name string, buf []byte) (*Member, error) {
	if name != "//" {
		return nil, errWrongKind
	}
	// Historical string table headers may omit date/uid/gid/mode; parse them
	// leniently with zero defaults rather than failing the whole load.
	meta, err := parseHeaderMeta(buf, true)
	if err != nil {
		return nil, err
	}
	return a.newMember(KindGNUStringTable, "", meta), nil
}

// newMember constructs a member parsed from an archive header. The caller
// fills in the payload offset once classification is settled.
func (a *Archive) newMember(kind Kind, filename string, meta headerMeta) *Member {
	return &Member{
		kind:     kind,
		archive:  a,
		filename: filename,
		modTime:  time.Unix(meta.date, 0),
		uid:      meta.uid,
		gid:      meta.gid,
		mode:     meta.mode,
		size:     meta.size,
		offset:   -1,
	}
}

// newFileMember constructs a member whose payload will be read from an
// external file on the first write.
func (a *Archive) newFileMember(kind Kind, filename, path string, fm fileMeta) *Member {
	return &Member{
		kind:       kind,
		archive:    a,
		filename:   filename,
		modTime:    fm.modTime,
		uid:        fm.uid,
		gid:        fm.gid,
		mode:       fm.mode,
		size:       fm.size,
		offset:     -1,
		sourcePath: path,
	}
}
