package ar

const (
	HEADER_BYTE_SIZE = 60
	GLOBAL_HEADER    = "!<arch>\n"
)

// Variant is the flavor of the ar file format an archive uses.
type Variant int

const (
	// BSD represents the variant of the ar file format used by BSD ar.
	BSD Variant = iota

	// GNU represents the variant of the ar file format used by GNU ar.
	GNU

	// DEB represents the variant of the ar file format used by Debian
	// package files. On disk it is identical to BSD except that long file
	// names are unsupported and member uid/gid are always zero.
	DEB
)

func (v Variant) String() string {
	switch v {
	case BSD:
		return "BSD"
	case GNU:
		return "GNU"
	case DEB:
		return "DEB"
	}
	return "(none)"
}

const (
	// nameFieldSize is the width of the file name field in a member header.
	nameFieldSize = 16

	// padByte is written after any data section that ends at an odd offset,
	// keeping all archive units 2-byte aligned.
	padByte = '\n'

	// blockSize bounds the chunk size used when copying member payloads, so
	// that arbitrarily large payloads never require full buffering.
	blockSize = 65535
)

type slicer []byte

func (sp *slicer) next(n int) (b []byte) {
	s := *sp
	b, *sp = s[0:n], s[n:]
	return
}
