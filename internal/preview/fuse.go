package preview

import (
	"fmt"
	"io"
	"strings"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/winfsp/cgofuse/fuse"
)

// TreeFS is a read-only FUSE view over a billy filesystem holding a
// transformed tree.
type TreeFS struct {
	fuse.FileSystemBase
	fs    billy.Filesystem
	stamp fuse.Timespec
}

// NewTreeFS wraps fs for FUSE mounting.
func NewTreeFS(fs billy.Filesystem) *TreeFS {
	return &TreeFS{fs: fs, stamp: fuse.NewTimespec(time.Now())}
}

// rel maps a FUSE path to a billy path. billy trees are rooted at ".".
func rel(path string) string {
	p := strings.TrimPrefix(path, "/")
	if p == "" {
		return "."
	}
	return p
}

func (t *TreeFS) Getattr(path string, stat *fuse.Stat_t, fh uint64) int {
	fi, err := t.fs.Lstat(rel(path))
	if err != nil {
		return -fuse.ENOENT
	}

	if fi.IsDir() {
		stat.Mode = fuse.S_IFDIR | 0o555
		stat.Nlink = 2
	} else {
		stat.Mode = fuse.S_IFREG | 0o444
		stat.Nlink = 1
		stat.Size = fi.Size()
	}
	stat.Atim = t.stamp
	stat.Mtim = t.stamp
	stat.Ctim = t.stamp
	return 0
}

func (t *TreeFS) Readdir(path string,
	fill func(name string, stat *fuse.Stat_t, ofst int64) bool,
	ofst int64, fh uint64) int {
	entries, err := t.fs.ReadDir(rel(path))
	if err != nil {
		return -fuse.ENOENT
	}

	fill(".", nil, 0)
	fill("..", nil, 0)
	for _, entry := range entries {
		if !fill(entry.Name(), nil, 0) {
			break
		}
	}
	return 0
}

func (t *TreeFS) Open(path string, flags int) (int, uint64) {
	fi, err := t.fs.Lstat(rel(path))
	if err != nil || fi.IsDir() {
		return -fuse.ENOENT, ^uint64(0)
	}
	return 0, 0
}

func (t *TreeFS) Read(path string, buff []byte, ofst int64, fh uint64) int {
	f, err := t.fs.Open(rel(path))
	if err != nil {
		return -fuse.ENOENT
	}
	defer f.Close()

	n, err := f.ReadAt(buff, ofst)
	if err != nil && err != io.EOF {
		return -fuse.EIO
	}
	return n
}

// MountFUSE mounts the tree at mountpoint and blocks until unmounted.
func MountFUSE(fs billy.Filesystem, mountpoint string) error {
	host := fuse.NewFileSystemHost(NewTreeFS(fs))
	host.SetCapReaddirPlus(true)
	if !host.Mount(mountpoint, []string{"-o", "ro"}) {
		return fmt.Errorf("fuse mount failed at %s", mountpoint)
	}
	return nil
}
