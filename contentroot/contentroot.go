// Package contentroot exposes the served directory as a billy filesystem
// whose paths, symlink targets included, cannot leave the directory.
package contentroot

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// New returns a filesystem bound to dir.
func New(dir string) (billy.Filesystem, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve content root: %w", err)
	}
	st, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("content root: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("content root %s is not a directory", abs)
	}
	return osfs.New(abs, osfs.WithBoundOS()), nil
}

// ReadOnly wraps fs so that every mutating call fails with billy.ErrReadOnly.
func ReadOnly(fs billy.Filesystem) billy.Filesystem {
	return &readOnly{Filesystem: fs}
}

type readOnly struct {
	billy.Filesystem
}

func (r *readOnly) Capabilities() billy.Capability {
	return billy.ReadCapability | billy.SeekCapability
}

func (r *readOnly) Create(string) (billy.File, error) {
	return nil, billy.ErrReadOnly
}

func (r *readOnly) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_APPEND|os.O_CREATE|os.O_TRUNC) != 0 {
		return nil, billy.ErrReadOnly
	}
	return r.Filesystem.OpenFile(filename, flag, perm)
}

func (r *readOnly) Rename(string, string) error {
	return billy.ErrReadOnly
}

func (r *readOnly) Remove(string) error {
	return billy.ErrReadOnly
}

func (r *readOnly) TempFile(string, string) (billy.File, error) {
	return nil, billy.ErrReadOnly
}

func (r *readOnly) MkdirAll(string, os.FileMode) error {
	return billy.ErrReadOnly
}

func (r *readOnly) Symlink(string, string) error {
	return billy.ErrReadOnly
}

func (r *readOnly) Chroot(path string) (billy.Filesystem, error) {
	fs, err := r.Filesystem.Chroot(path)
	if err != nil {
		return nil, err
	}
	return ReadOnly(fs), nil
}
