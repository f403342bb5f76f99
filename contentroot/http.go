package contentroot

import (
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"

	"github.com/go-git/go-billy/v5"
)

// HTTP adapts fs to http.FileSystem.
func HTTP(fs billy.Filesystem) http.FileSystem {
	return httpFS{fs: fs}
}

type httpFS struct {
	fs billy.Filesystem
}

func (h httpFS) Open(name string) (http.File, error) {
	st, err := h.fs.Stat(name)
	if err != nil {
		return nil, err
	}
	if st.IsDir() {
		return &dirFile{fs: h.fs, name: name, info: st}, nil
	}
	f, err := h.fs.Open(name)
	if err != nil {
		return nil, err
	}
	return &file{File: f, info: st}, nil
}

type file struct {
	billy.File
	info os.FileInfo
}

func (f *file) Readdir(int) ([]fs.FileInfo, error) {
	return nil, &fs.PathError{Op: "readdir", Path: f.Name(), Err: errors.New("not a directory")}
}

func (f *file) Stat() (fs.FileInfo, error) {
	return f.info, nil
}

// dirFile lists a directory lazily; reading its content is an error.
type dirFile struct {
	fs      billy.Filesystem
	name    string
	info    os.FileInfo
	entries []os.FileInfo
	loaded  bool
	off     int
}

func (d *dirFile) Close() error {
	return nil
}

func (d *dirFile) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.name, Err: errors.New("is a directory")}
}

func (d *dirFile) Seek(offset int64, whence int) (int64, error) {
	if offset == 0 && whence == io.SeekStart {
		d.off = 0
		return 0, nil
	}
	return 0, &fs.PathError{Op: "seek", Path: d.name, Err: errors.New("is a directory")}
}

func (d *dirFile) Stat() (fs.FileInfo, error) {
	return d.info, nil
}

func (d *dirFile) Readdir(count int) ([]fs.FileInfo, error) {
	if !d.loaded {
		entries, err := d.fs.ReadDir(d.name)
		if err != nil {
			return nil, err
		}
		d.entries = entries
		d.loaded = true
	}
	rest := d.entries[d.off:]
	if count <= 0 {
		d.off = len(d.entries)
		return rest, nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	if count > len(rest) {
		count = len(rest)
	}
	d.off += count
	return rest[:count], nil
}
