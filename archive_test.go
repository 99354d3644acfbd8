package ar

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

const (
	testDate = 1361157466
	testUid  = 501
	testGid  = 20
)

// testArchive synthesizes archive bytes with the on-disk field layout, so
// load tests don't depend on the package's own writer.
type testArchive struct {
	buf bytes.Buffer
}

func newTestArchive() *testArchive {
	ta := &testArchive{}
	ta.buf.WriteString(GLOBAL_HEADER)
	return ta
}

func (ta *testArchive) add(name string, mode int64, inline, payload string) {
	size := len(inline) + len(payload)
	fmt.Fprintf(&ta.buf, "%-16s%-12d%-6d%-6d%-8s%-10d`\n",
		name, testDate, testUid, testGid, strconv.FormatInt(mode, 8), size)
	ta.buf.WriteString(inline)
	ta.buf.WriteString(payload)
	if ta.buf.Len()%2 == 1 {
		ta.buf.WriteByte(padByte)
	}
}

func (ta *testArchive) reader() *bytes.Reader {
	return bytes.NewReader(ta.buf.Bytes())
}

var testPayloads = map[string]string{
	"alpha.o":                    "alpha object\n",
	"test.o":                     "test object code\n",
	"zeta.o":                     "zeta\n",
	"this_is_a_long_file_name.o": "long one\n",
	"another_long_file_name.o":   "long two\n",
}

func bsdFixture() *testArchive {
	ta := newTestArchive()
	ta.add("__.SYMDEF", 0o100644, "", "SYMDATA\n")
	ta.add("alpha.o", 0o100644, "", testPayloads["alpha.o"])
	ta.add("test.o", 0o100644, "", testPayloads["test.o"])
	ta.add("zeta.o", 0o100644, "", testPayloads["zeta.o"])
	ta.add("#1/26", 0o100644, "this_is_a_long_file_name.o", testPayloads["this_is_a_long_file_name.o"])
	ta.add("#1/24", 0o100644, "another_long_file_name.o", testPayloads["another_long_file_name.o"])
	return ta
}

func gnuFixture() *testArchive {
	ta := newTestArchive()
	ta.add("/", 0o100644, "", "SYMDATA\n")
	ta.add("//", 0o100644, "", "this_is_a_long_file_name.o/\nanother_long_file_name.o/\n")
	ta.add("alpha.o/", 0o100644, "", testPayloads["alpha.o"])
	ta.add("test.o/", 0o100644, "", testPayloads["test.o"])
	ta.add("zeta.o/", 0o100644, "", testPayloads["zeta.o"])
	ta.add("/0", 0o100644, "", testPayloads["this_is_a_long_file_name.o"])
	ta.add("/28", 0o100644, "", testPayloads["another_long_file_name.o"])
	return ta
}

func memberNames(a *Archive) []string {
	var names []string
	for _, m := range a.Members() {
		names = append(names, m.Filename())
	}
	return names
}

func TestLoadBSDArchive(t *testing.T) {
	a := New()
	require.NoError(t, a.Load(bsdFixture().reader()))

	format, err := a.Format()
	require.NoError(t, err)
	assert.Equal(t, BSD, format)
	require.NotNil(t, a.SymbolTable())
	assert.False(t, a.SymbolTable().Sorted())
	assert.Nil(t, a.StringTable())

	assert.ElementsMatch(t, []string{
		"alpha.o", "another_long_file_name.o", "test.o", "this_is_a_long_file_name.o", "zeta.o",
	}, memberNames(a))

	m, err := a.Lookup("test.o")
	require.NoError(t, err)
	assert.Equal(t, int64(0o100644), m.Mode())
	assert.Equal(t, time.Unix(testDate, 0), m.ModTime())
	assert.Equal(t, testUid, m.Uid())
	assert.Equal(t, testGid, m.Gid())
	assert.Equal(t, KindBSDShort, m.Kind())

	long, err := a.Lookup("this_is_a_long_file_name.o")
	require.NoError(t, err)
	assert.Equal(t, KindBSDLong, long.Kind())
	assert.Equal(t, int64(len(testPayloads["this_is_a_long_file_name.o"])), long.Filesize())
	assert.Equal(t, long.Filesize()+26, long.Size())
}

func TestLoadGNUArchive(t *testing.T) {
	a := New()
	require.NoError(t, a.Load(gnuFixture().reader()))

	format, err := a.Format()
	require.NoError(t, err)
	assert.Equal(t, GNU, format)
	require.NotNil(t, a.SymbolTable())
	require.NotNil(t, a.StringTable())
	assert.Equal(t, 2, a.StringTable().Len())
	assert.Equal(t, []string{"this_is_a_long_file_name.o", "another_long_file_name.o"}, a.StringTable().Names())

	assert.ElementsMatch(t, []string{
		"alpha.o", "another_long_file_name.o", "test.o", "this_is_a_long_file_name.o", "zeta.o",
	}, memberNames(a))

	m, err := a.Lookup("test.o")
	require.NoError(t, err)
	assert.Equal(t, int64(0o100644), m.Mode())
	assert.Equal(t, KindGNUShort, m.Kind())

	for _, name := range []string{"this_is_a_long_file_name.o", "another_long_file_name.o"} {
		long, err := a.Lookup(name)
		require.NoError(t, err)
		assert.Equal(t, KindGNULong, long.Kind())
		assert.Equal(t, int64(len(testPayloads[name])), long.Filesize())
	}
}

func TestExtractAll(t *testing.T) {
	for _, tc := range []struct {
		Description string
		Fixture     *testArchive
	}{
		{"BSD format", bsdFixture()},
		{"GNU format", gnuFixture()},
	} {
		t.Run(tc.Description, func(t *testing.T) {
			a := New()
			require.NoError(t, a.Load(tc.Fixture.reader()))

			dir := t.TempDir()
			require.NoError(t, a.ExtractAll(dir))
			for name, payload := range testPayloads {
				m, err := a.Lookup(name)
				require.NoError(t, err)
				content, err := os.ReadFile(filepath.Join(dir, name))
				require.NoError(t, err)
				assert.Equal(t, payload, string(content))

				fi, err := os.Stat(filepath.Join(dir, name))
				require.NoError(t, err)
				assert.Equal(t, m.Filesize(), fi.Size())
				assert.Equal(t, os.FileMode(0o644), fi.Mode().Perm())
				assert.Equal(t, m.ModTime().Unix(), fi.ModTime().Unix())
			}
		})
	}
}

func TestResaveIsByteIdentical(t *testing.T) {
	for _, tc := range []struct {
		Description string
		Fixture     *testArchive
	}{
		{"BSD format", bsdFixture()},
		{"GNU format", gnuFixture()},
	} {
		t.Run(tc.Description, func(t *testing.T) {
			orig := tc.Fixture.buf.Bytes()
			a := New()
			require.NoError(t, a.Load(bytes.NewReader(orig)))

			out := filepath.Join(t.TempDir(), "out.a")
			require.NoError(t, a.SaveFile(out))
			defer a.Close()

			saved, err := os.ReadFile(out)
			require.NoError(t, err)
			assert.Equal(t, orig, saved)
		})
	}
}

func TestBSDSortedSymbolTable(t *testing.T) {
	ta := newTestArchive()
	ta.add("#1/16", 0o100644, "__.SYMDEF SORTED", "SYM\n")
	ta.add("test.o", 0o100644, "", "test object code\n")

	a := New()
	require.NoError(t, a.Load(ta.reader()))
	format, err := a.Format()
	require.NoError(t, err)
	assert.Equal(t, BSD, format)
	require.NotNil(t, a.SymbolTable())
	assert.True(t, a.SymbolTable().Sorted())
	assert.Equal(t, KindBSDSymbolTable, a.SymbolTable().Kind())
	assert.Equal(t, int64(4), a.SymbolTable().Filesize())
}

func TestNameEncoding(t *testing.T) {
	ta := newTestArchive()
	ta.add("caf\xe9.o", 0o100644, "", "bonjour\n")

	a := New(WithEncoding(charmap.ISO8859_1))
	require.NoError(t, a.Load(ta.reader()))
	require.Len(t, a.Members(), 1)
	assert.Equal(t, "café.o", a.Members()[0].Filename())

	// The name re-encodes to the same single latin-1 byte on save.
	out := filepath.Join(t.TempDir(), "out.a")
	require.NoError(t, a.SaveFile(out))
	defer a.Close()
	saved, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, ta.buf.Bytes(), saved)
}

func TestMissingGlobalHeader(t *testing.T) {
	a := New()
	err := a.Load(bytes.NewReader([]byte("!<a")))
	assert.ErrorIs(t, err, ErrMissingGlobalHeader)
}

func TestInvalidGlobalHeader(t *testing.T) {
	a := New()
	err := a.Load(bytes.NewReader([]byte("!<arch>XImpostor")))
	assert.ErrorIs(t, err, ErrInvalidGlobalHeader)

	// The failed load leaves the format unresolved, not defaulted.
	_, err = a.Format()
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestBadPadByte(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(GLOBAL_HEADER)
	fmt.Fprintf(&buf, "%-16s%-12d%-6d%-6d%-8s%-10d`\n", "a.o", testDate, testUid, testGid, "100644", 1)
	buf.WriteString("x")
	buf.WriteString("Z") // should be '\n'

	a := New()
	err := a.Load(bytes.NewReader(buf.Bytes()))
	require.ErrorIs(t, err, ErrInvalidArchive)
	assert.Contains(t, err.Error(), "pad byte")
}

func TestBadHeaderTerminator(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(GLOBAL_HEADER)
	fmt.Fprintf(&buf, "%-16s%-12d%-6d%-6d%-8s%-10dXX", "a.o", testDate, testUid, testGid, "100644", 0)

	a := New()
	err := a.Load(bytes.NewReader(buf.Bytes()))
	require.ErrorIs(t, err, ErrInvalidArchive)
	assert.Contains(t, err.Error(), "terminator")
}

// TestMemberKindExclusive feeds one header of each on-disk shape through the
// full candidate set and checks that exactly one variant accepts it, so
// classification never depends on trial order.
func TestMemberKindExclusive(t *testing.T) {
	strtabContent := "this_is_a_long_file_name.o/\nanother_long_file_name.o/\n"
	for _, tc := range []struct {
		Name   string
		Inline string
		Kind   Kind
	}{
		{"alpha.o/", "", KindGNUShort},
		{"/28", "", KindGNULong},
		{"/", "", KindGNUSymbolTable},
		{"//", "", KindGNUStringTable},
		{"alpha.o", "", KindBSDShort},
		{"#1/26", "this_is_a_long_file_name.o", KindBSDLong},
		{"__.SYMDEF", "", KindBSDSymbolTable},
		{"#1/16", "__.SYMDEF SORTED", KindBSDSymbolTable},
	} {
		t.Run(tc.Name, func(t *testing.T) {
			hdr, err := encodeHeader([]byte(tc.Name), headerMeta{
				date: testDate, uid: testUid, gid: testGid, mode: 0o100644,
				size: int64(len(tc.Inline)) + 4,
			})
			require.NoError(t, err)

			a := New()
			// The string table content precedes the inline name region so
			// that /N headers resolve against it.
			a.in = bytes.NewReader([]byte(strtabContent + tc.Inline))
			a.strtab = loadedStringTable(a, &Member{
				kind:    KindGNUStringTable,
				archive: a,
				size:    int64(len(strtabContent)),
				offset:  0,
			})
			inlineStart := int64(len(strtabContent))

			var accepted []Kind
			for _, kind := range allKinds {
				_, err := a.in.Seek(inlineStart, io.SeekStart)
				require.NoError(t, err)
				m, err := a.memberFromHeader(kind, tc.Name, hdr)
				if errors.Is(err, errWrongKind) {
					continue
				}
				require.NoError(t, err)
				require.Equal(t, kind, m.Kind())
				accepted = append(accepted, kind)
			}
			assert.Equal(t, []Kind{tc.Kind}, accepted)
		})
	}
}

func TestUnknownMemberKind(t *testing.T) {
	ta := newTestArchive()
	ta.add("a/b.o", 0o100644, "", "data\n")

	a := New()
	err := a.Load(ta.reader())
	assert.ErrorIs(t, err, ErrUnknownMember)
}

func TestUnterminatedStringTable(t *testing.T) {
	ta := newTestArchive()
	ta.add("//", 0o100644, "", "badname") // no "/\n" delimiter anywhere
	ta.add("/0", 0o100644, "", "xx")

	a := New()
	err := a.Load(ta.reader())
	require.Error(t, err)
	var ste *ErrStringTable
	require.ErrorAs(t, err, &ste)
	assert.Contains(t, err.Error(), "unterminated")
}

func TestLongNameWithoutStringTable(t *testing.T) {
	ta := newTestArchive()
	ta.add("test.o/", 0o100644, "", "test object code\n")
	ta.add("/0", 0o100644, "", "payload\n")

	a := New()
	err := a.Load(ta.reader())
	require.Error(t, err)
	var fne *ErrFileName
	require.ErrorAs(t, err, &fne)
	assert.Contains(t, err.Error(), "missing string table")
}

func TestLookupNotFound(t *testing.T) {
	a := New()
	require.NoError(t, a.Load(bsdFixture().reader()))
	_, err := a.Lookup("no_such_member.o")
	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestLoadResetsState(t *testing.T) {
	a := New()
	require.NoError(t, a.Load(gnuFixture().reader()))
	require.NotNil(t, a.StringTable())

	require.NoError(t, a.Load(bsdFixture().reader()))
	format, err := a.Format()
	require.NoError(t, err)
	assert.Equal(t, BSD, format)
	assert.Nil(t, a.StringTable())
	assert.Len(t, a.Members(), 5)
}
