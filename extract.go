package ar

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// fileMeta is the filesystem metadata captured when a member is created from
// an external file. The mode is the raw Unix mode including file type bits,
// matching what the header's octal field stores.
type fileMeta struct {
	modTime time.Time
	uid     int
	gid     int
	mode    int64
	size    int64
}

func statFile(path string) (fileMeta, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return fileMeta{}, err
	}
	fm := fileMeta{
		modTime: fi.ModTime(),
		mode:    int64(fi.Mode().Perm()) | 0o100000,
		size:    fi.Size(),
	}
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		fm.uid = int(st.Uid)
		fm.gid = int(st.Gid)
		fm.mode = int64(st.Mode)
	}
	return fm, nil
}

// Extract writes the member's payload to dir under its logical name and
// applies its metadata: mode bits, owner and group (best effort; changing
// ownership commonly needs elevated privilege, so failure is ignored), and
// modification time.
func (a *Archive) Extract(m *Member, dir string) error {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return err
	}
	dest := filepath.Join(dir, m.filename)

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	switch {
	case m.data != nil:
		_, err = out.Write(m.data)
	case m.sourcePath != "":
		var in *os.File
		if in, err = os.Open(m.sourcePath); err == nil {
			err = copyPayload(out, in, m.Filesize())
			in.Close()
		}
	default:
		if a.in == nil {
			err = fmt.Errorf("ar: member %q has no payload source", m.filename)
			break
		}
		if _, err = a.in.Seek(m.offset, io.SeekStart); err == nil {
			err = copyPayload(out, a.in, m.Filesize())
		}
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	if err := os.Chmod(dest, fs.FileMode(m.mode)&fs.ModePerm); err != nil {
		return err
	}
	// Ownership restore commonly needs elevated privilege; failure is
	// swallowed so unprivileged extraction still works.
	_ = os.Chown(dest, m.uid, m.gid)
	return os.Chtimes(dest, time.Now(), m.modTime)
}

// ExtractAll extracts every regular member into dir, in archive order.
func (a *Archive) ExtractAll(dir string) error {
	for _, m := range a.members {
		if err := a.Extract(m, dir); err != nil {
			return err
		}
	}
	return nil
}
