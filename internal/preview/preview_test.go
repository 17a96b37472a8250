package preview

import (
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"
	"github.com/winfsp/cgofuse/fuse"
)

func previewTree(t *testing.T) *TreeFS {
	t.Helper()
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "src/main/java/V1/Bridge.java", []byte("package V1.com.facebook.react;\n"), 0o644))
	require.NoError(t, util.WriteFile(fs, "README.md", []byte("docs\n"), 0o644))
	return NewTreeFS(fs)
}

func TestNFSServerLifecycle(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "a.txt", []byte("hello"), 0o644))

	srv, err := NewServer(fs)
	require.NoError(t, err)
	require.Greater(t, srv.Port(), 0)
	require.Contains(t, srv.MountCommand("/mnt/preview"), "port=")
	require.NoError(t, srv.Close())
}

func TestTreeFSGetattr(t *testing.T) {
	tree := previewTree(t)

	var stat fuse.Stat_t
	require.Equal(t, 0, tree.Getattr("/", &stat, 0))
	require.NotZero(t, stat.Mode&fuse.S_IFDIR)

	stat = fuse.Stat_t{}
	require.Equal(t, 0, tree.Getattr("/README.md", &stat, 0))
	require.NotZero(t, stat.Mode&fuse.S_IFREG)
	require.EqualValues(t, 5, stat.Size)

	require.Equal(t, -fuse.ENOENT, tree.Getattr("/missing", &stat, 0))
}

func TestTreeFSReaddirAndRead(t *testing.T) {
	tree := previewTree(t)

	var names []string
	rc := tree.Readdir("/", func(name string, stat *fuse.Stat_t, ofst int64) bool {
		names = append(names, name)
		return true
	}, 0, 0)
	require.Equal(t, 0, rc)
	require.Contains(t, names, "README.md")
	require.Contains(t, names, "src")

	errc, _ := tree.Open("/README.md", 0)
	require.Equal(t, 0, errc)

	buff := make([]byte, 16)
	n := tree.Read("/README.md", buff, 0, 0)
	require.Equal(t, "docs\n", string(buff[:n]))

	nested := tree.Read("/src/main/java/V1/Bridge.java", buff, 0, 0)
	require.True(t, strings.HasPrefix(string(buff[:nested]), "package V1."))
}

func TestUnmountPlan(t *testing.T) {
	linux := unmountPlan("linux", "/mnt/p")
	require.Equal(t, [][]string{{"sudo", "umount", "/mnt/p"}}, linux)

	darwin := unmountPlan("darwin", "/mnt/p")
	require.Len(t, darwin, 2)
	require.Equal(t, []string{"diskutil", "unmount", "/mnt/p"}, darwin[0])
	require.Equal(t, []string{"sudo", "umount", "/mnt/p"}, darwin[1])
}

func TestRelMapping(t *testing.T) {
	require.Equal(t, ".", rel("/"))
	require.Equal(t, "README.md", rel("/README.md"))
	require.Equal(t, "a/b", rel("/a/b"))
}
