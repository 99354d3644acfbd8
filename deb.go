package ar

// Debian packages are ar archives of BSD shape with two extra rules: member
// uid and gid are always written as zero regardless of the source file's
// ownership, and there is no long-name encoding at all. Adding a file whose
// name needs long-form encoding to a DEB archive fails explicitly.

func (a *Archive) debShortFromFile(path, base string, fm fileMeta) (*Member, error) {
	m, err := a.bsdShortFromFile(path, base, fm)
	if err != nil {
		return nil, err
	}
	m.kind = KindDEBShort
	m.uid = 0
	m.gid = 0
	return m, nil
}
