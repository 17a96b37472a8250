package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/verso-build/verso/internal/apply"
	"github.com/verso-build/verso/internal/output"
	"github.com/verso-build/verso/internal/preview"
)

var previewMode string

var previewCmd = &cobra.Command{
	Use:   "preview [source] [mountpoint]",
	Short: "Transform into memory and serve the result for inspection",
	Long: `Preview runs a full pass into an in-memory tree and exports it
read-only, so the versioned output can be browsed before writing anything
to disk. NFS mode prints a mount command and serves until interrupted;
FUSE mode mounts at the given mountpoint and blocks until unmounted.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, set, err := buildSet(moduleName)
		if err != nil {
			return err
		}

		mem := memfs.New()
		applier := &apply.Applier{
			Src:     osfs.New(args[0]),
			Dst:     mem,
			Set:     set,
			Workers: workers,
		}
		report, err := applier.Run(cmd.Context())
		if err != nil {
			return err
		}
		for _, fe := range report.Errors {
			output.Warn("file failed", "file", fe.Path, "kind", fe.Kind, "message", fe.Message)
		}
		output.Info("preview tree built",
			"files", report.Files, "transformed", report.Transformed)

		switch previewMode {
		case "nfs":
			srv, err := preview.NewServer(mem)
			if err != nil {
				return err
			}
			mp := "<mountpoint>"
			if len(args) > 1 {
				mp = args[1]
			}
			fmt.Printf("Serving NFS on port %d. Mount with:\n  %s\n",
				srv.Port(), srv.MountCommand(mp))

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig

			// Best effort: the user may or may not have mounted it.
			if len(args) > 1 {
				if err := preview.Unmount(args[1]); err != nil {
					output.Debug("unmount failed", "mountpoint", args[1], "error", err)
				}
			}
			return srv.Close()
		case "fuse":
			if len(args) < 2 {
				return fmt.Errorf("fuse mode requires a mountpoint argument")
			}
			return preview.MountFUSE(mem, args[1])
		default:
			return fmt.Errorf("unknown preview mode %q", previewMode)
		}
	},
}

func init() {
	previewCmd.Flags().StringVarP(&moduleName, "module", "m", "", "Module name for per-module overrides")
	previewCmd.Flags().StringVar(&tokenFlag, "version", "", "Override the configured version token")
	previewCmd.Flags().IntVarP(&workers, "workers", "w", 0, "Per-file parallelism (0 = GOMAXPROCS)")
	previewCmd.Flags().StringVar(&previewMode, "mode", "nfs", "Export mode: nfs or fuse")
	rootCmd.AddCommand(previewCmd)
}
