/*
Copyright (c) 2013 Blake Smith <blakesmith0@gmail.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package ar

import (
	"bytes"
	"fmt"
	"strconv"
)

// headerTerminator is the two-byte tail that ends every member header.
const headerTerminator = "`\n"

// headerMeta holds the numeric fields of a decoded member header. The name
// field is handled separately because its interpretation depends on the
// member variant being classified.
type headerMeta struct {
	date int64
	uid  int
	gid  int
	mode int64
	size int64
}

// headerName verifies the terminator of a 60-byte member header and returns
// the raw name field with its trailing space padding removed. A bad
// terminator is always fatal; it is checked before any variant is tried.
func headerName(buf []byte) ([]byte, error) {
	if len(buf) != HEADER_BYTE_SIZE {
		return nil, fmt.Errorf("%w: header is %d bytes, want %d", ErrInvalidArchive, len(buf), HEADER_BYTE_SIZE)
	}
	if tail := string(buf[58:60]); tail != headerTerminator {
		return nil, fmt.Errorf("%w: bad header terminator %q (expected %q)", ErrInvalidArchive, tail, headerTerminator)
	}
	return bytes.TrimRight(buf[0:nameFieldSize], " "), nil
}

// parseHeaderMeta decodes the numeric fields of a 60-byte member header.
// In lenient mode a malformed date, uid, gid or mode falls back to a zero
// default instead of failing; historical string table headers in the wild
// sometimes omit them. The size field is always parsed strictly.
func parseHeaderMeta(buf []byte, lenient bool) (headerMeta, error) {
	s := slicer(buf)
	s.next(nameFieldSize)
	dateB := s.next(12)
	uidB := s.next(6)
	gidB := s.next(6)
	modeB := s.next(8)
	sizeB := s.next(10)

	var meta headerMeta
	var err error
	if lenient {
		meta.date = numericOr(dateB, 10, 0)
		meta.uid = int(numericOr(uidB, 10, 0))
		meta.gid = int(numericOr(gidB, 10, 0))
		meta.mode = numericOr(modeB, 8, 0o100644)
	} else {
		if meta.date, err = numeric(dateB, 10); err != nil {
			return meta, fmt.Errorf("ar: header date: %w", err)
		}
		var n int64
		if n, err = numeric(uidB, 10); err != nil {
			return meta, fmt.Errorf("ar: header uid: %w", err)
		}
		meta.uid = int(n)
		if n, err = numeric(gidB, 10); err != nil {
			return meta, fmt.Errorf("ar: header gid: %w", err)
		}
		meta.gid = int(n)
		if meta.mode, err = numeric(modeB, 8); err != nil {
			return meta, fmt.Errorf("ar: header mode: %w", err)
		}
	}
	if meta.size, err = numeric(sizeB, 10); err != nil {
		return meta, fmt.Errorf("ar: header size: %w", err)
	}
	return meta, nil
}

func numeric(b []byte, base int) (int64, error) {
	return strconv.ParseInt(string(bytes.TrimRight(b, " ")), base, 64)
}

func numericOr(b []byte, base int, def int64) int64 {
	n, err := numeric(b, base)
	if err != nil {
		return def
	}
	return n
}

// encodeHeader serializes one 60-byte member header. All fields are text,
// left-justified and padded with spaces; the mode is octal, everything else
// decimal. Callers must ensure the name fits the 16-byte field: longer names
// are represented indirectly by their variant, never truncated here.
func encodeHeader(name []byte, meta headerMeta) ([]byte, error) {
	if len(name) > nameFieldSize {
		return nil, &ErrFileName{Name: string(name), Err: fmt.Errorf("header name exceeds %d bytes", nameFieldSize)}
	}
	buf := bytes.Repeat([]byte{' '}, HEADER_BYTE_SIZE)
	s := slicer(buf)
	copy(s.next(nameFieldSize), name)
	putNumeric(s.next(12), meta.date)
	putNumeric(s.next(6), int64(meta.uid))
	putNumeric(s.next(6), int64(meta.gid))
	putOctal(s.next(8), meta.mode)
	putNumeric(s.next(10), meta.size)
	copy(s.next(2), headerTerminator)
	return buf, nil
}

func putNumeric(b []byte, x int64) {
	copy(b, strconv.FormatInt(x, 10))
}

func putOctal(b []byte, x int64) {
	copy(b, strconv.FormatInt(x, 8))
}
