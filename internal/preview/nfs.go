// Package preview serves a transformed tree without materializing it on
// disk: the applier writes into an in-memory filesystem, and that tree is
// exported read-only over NFS or FUSE for inspection before a real pass.
package preview

import (
	"fmt"
	"net"
	"os/exec"
	"runtime"

	billy "github.com/go-git/go-billy/v5"
	nfs "github.com/willscott/go-nfs"
	nfshelper "github.com/willscott/go-nfs/helpers"
)

// Server manages the NFS export lifecycle.
type Server struct {
	listener net.Listener
	port     int
}

// NewServer starts an NFS server on an ephemeral port backed by the given
// filesystem.
func NewServer(fs billy.Filesystem) (*Server, error) {
	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		return nil, fmt.Errorf("nfs listen: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port

	handler := nfshelper.NewNullAuthHandler(fs)
	cacheHelper := nfshelper.NewCachingHandler(handler, 4096)

	go func() {
		_ = nfs.Serve(listener, cacheHelper)
	}()

	return &Server{listener: listener, port: port}, nil
}

// Port returns the TCP port the NFS server is listening on.
func (s *Server) Port() int {
	return s.port
}

// Close stops the NFS server by closing the listener.
func (s *Server) Close() error {
	return s.listener.Close()
}

// MountCommand returns the platform mount invocation for this export.
// Shown to the user; preview never mounts on its own.
func (s *Server) MountCommand(mountpoint string) string {
	switch runtime.GOOS {
	case "darwin":
		return fmt.Sprintf("sudo mount -t nfs -o port=%d,mountport=%d,vers=3,tcp,locallocks,noresvport,rdonly localhost:/ %s",
			s.port, s.port, mountpoint)
	default:
		return fmt.Sprintf("sudo mount -t nfs -o port=%d,mountport=%d,vers=3,tcp,nolock,ro localhost:/ %s",
			s.port, s.port, mountpoint)
	}
}

// unmountPlan returns the unmount invocations for goos, tried in order.
// darwin gets diskutil first; sudo umount is the fallback everywhere.
func unmountPlan(goos, mountpoint string) [][]string {
	if goos == "darwin" {
		return [][]string{
			{"diskutil", "unmount", mountpoint},
			{"sudo", "umount", mountpoint},
		}
	}
	return [][]string{{"sudo", "umount", mountpoint}}
}

// Unmount detaches a preview mount via the system unmount command. The
// first invocation in the plan that succeeds wins.
func Unmount(mountpoint string) error {
	var lastErr error
	for _, argv := range unmountPlan(runtime.GOOS, mountpoint) {
		out, err := exec.Command(argv[0], argv[1:]...).CombinedOutput()
		if err == nil {
			return nil
		}
		lastErr = fmt.Errorf("%s failed: %w\n%s", argv[0], err, string(out))
	}
	return lastErr
}
