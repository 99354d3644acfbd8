package ar

import (
	"bufio"
	"errors"
	"io"
	"time"
)

// stringTableDelimiter terminates each name within the table's content.
var stringTableDelimiter = []byte("/\n")

// StringTable is the GNU-only auxiliary member that stores names too long
// for the fixed 16-byte header field. Long members reference it by byte
// offset. It maps member identity, not name, to the raw filename bytes:
// names may collide.
//
// The write side has two phases. While members are added or parsed each
// long-named member registers itself; immediately before serialization the
// table is finalized, fixing offsets in insertion order. Registration after
// finalization is rejected, since it would shift offsets already written.
type StringTable struct {
	archive *Archive

	// meta carries the table's own header fields. For a table read from an
	// existing archive its size is taken verbatim from the header (the
	// on-disk table may carry trailing padding); a freshly built table has
	// size -1 and computes it on demand from its entries.
	meta *Member

	order     []*Member
	names     map[*Member][]byte
	finalized bool
}

func newStringTable(a *Archive) *StringTable {
	meta := &Member{
		kind:    KindGNUStringTable,
		archive: a,
		modTime: time.Now(),
		mode:    0o100644,
		size:    -1,
		offset:  -1,
	}
	return &StringTable{archive: a, meta: meta, names: map[*Member][]byte{}}
}

func loadedStringTable(a *Archive, meta *Member) *StringTable {
	return &StringTable{archive: a, meta: meta, names: map[*Member][]byte{}}
}

// Len returns the number of registered names.
func (st *StringTable) Len() int { return len(st.order) }

// Names returns the registered names in insertion order.
func (st *StringTable) Names() []string {
	out := make([]string, 0, len(st.order))
	for _, m := range st.order {
		out = append(out, m.filename)
	}
	return out
}

// register records a long member's raw name bytes. Registering the same
// member again replaces its name without changing its position.
func (st *StringTable) register(m *Member, name []byte) error {
	if st.finalized {
		return &ErrStringTable{Err: errors.New("registration after table finalized")}
	}
	if _, ok := st.names[m]; !ok {
		st.order = append(st.order, m)
	}
	st.names[m] = name
	return nil
}

// offsetOf returns the byte offset of the member's name within the table
// content: the sum of len(name)+2 over all entries registered before it.
func (st *StringTable) offsetOf(m *Member) int64 {
	var offset int64
	for _, e := range st.order {
		if e == m {
			break
		}
		offset += int64(len(st.names[e])) + int64(len(stringTableDelimiter))
	}
	return offset
}

// size returns the table's content size for its header field.
func (st *StringTable) size() int64 {
	if st.meta.size >= 0 {
		return st.meta.size
	}
	var size int64
	for _, e := range st.order {
		size += int64(len(st.names[e])) + int64(len(stringTableDelimiter))
	}
	return size
}

func (st *StringTable) finalize() { st.finalized = true }

// resolve reads the name stored at the given byte offset within the table's
// content region of the input stream, scanning forward until the "/\n"
// delimiter. The stream position is restored before returning. Reaching end
// of input before the delimiter is a malformed archive.
func (st *StringTable) resolve(in io.ReadSeeker, offset int64) ([]byte, error) {
	prev, err := tell(in)
	if err != nil {
		return nil, err
	}
	if _, err := in.Seek(st.meta.offset+offset, io.SeekStart); err != nil {
		return nil, err
	}
	br := bufio.NewReader(in)
	var name []byte
	for {
		c, err := br.ReadByte()
		if errors.Is(err, io.EOF) {
			return nil, &ErrStringTable{Err: errors.New("unterminated string table")}
		} else if err != nil {
			return nil, err
		}
		name = append(name, c)
		if n := len(name); n >= 2 && name[n-2] == stringTableDelimiter[0] && name[n-1] == stringTableDelimiter[1] {
			break
		}
	}
	if _, err := in.Seek(prev, io.SeekStart); err != nil {
		return nil, err
	}
	return name[:len(name)-len(stringTableDelimiter)], nil
}

// save writes the table's header and content to the output stream and
// records the content's new offset.
func (st *StringTable) save(out io.WriteSeeker) error {
	hdr, err := encodeHeader([]byte("//"), headerMeta{
		date: st.meta.modTime.Unix(),
		uid:  st.meta.uid,
		gid:  st.meta.gid,
		mode: st.meta.mode,
		size: st.size(),
	})
	if err != nil {
		return err
	}
	if _, err := out.Write(hdr); err != nil {
		return err
	}
	offset, err := tell(out)
	if err != nil {
		return err
	}
	for _, e := range st.order {
		if _, err := out.Write(st.names[e]); err != nil {
			return err
		}
		if _, err := out.Write(stringTableDelimiter); err != nil {
			return err
		}
	}
	st.meta.offset = offset
	return nil
}
