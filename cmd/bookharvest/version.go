package main

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set at build time, for example:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=abc1234 -X main.date=2026-01-01"
var (
	version = ""
	commit  = ""
	date    = ""
)

// buildInfo describes the running binary.
type buildInfo struct {
	Version string
	Commit  string
	Date    string
	Dirty   bool
	Go      string
}

// currentBuild resolves the build info of this binary.
func currentBuild() buildInfo {
	bi, _ := debug.ReadBuildInfo()
	return resolveBuild(buildInfo{Version: version, Commit: commit, Date: date}, bi)
}

// resolveBuild fills what ldflags left empty from the module build info.
// bi may be nil when the binary was built without module support.
func resolveBuild(ldflags buildInfo, bi *debug.BuildInfo) buildInfo {
	out := ldflags
	out.Go = runtime.Version()

	var settings map[string]string
	if bi != nil {
		out.Go = bi.GoVersion
		settings = make(map[string]string, len(bi.Settings))
		for _, s := range bi.Settings {
			settings[s.Key] = s.Value
		}
		if out.Version == "" && bi.Main.Version != "" {
			out.Version = bi.Main.Version
		}
	}

	if out.Commit == "" {
		out.Commit = settings["vcs.revision"]
		if len(out.Commit) > 7 {
			out.Commit = out.Commit[:7]
		}
		out.Dirty = settings["vcs.modified"] == "true"
	}
	if out.Date == "" {
		out.Date = settings["vcs.time"]
	}

	if out.Version == "" {
		out.Version = "(devel)"
	}
	if out.Commit == "" {
		out.Commit = "unknown"
	}
	if out.Date == "" {
		out.Date = "unknown"
	}
	return out
}

// getVersion returns the version shown by --version and in reports.
func getVersion() string {
	return currentBuild().Version
}

// write prints the version block.
func (b buildInfo) write(w io.Writer) {
	rev := b.Commit
	if b.Dirty {
		rev += "-dirty"
	}
	fmt.Fprintf(w, "bookharvest version %s\n", b.Version)
	fmt.Fprintf(w, "  commit: %s\n", rev)
	fmt.Fprintf(w, "  built:  %s\n", b.Date)
	fmt.Fprintf(w, "  go:     %s\n", b.Go)
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version, commit, build date and Go toolchain of bookharvest.`,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			currentBuild().write(cmd.OutOrStdout())
		},
	}
}
