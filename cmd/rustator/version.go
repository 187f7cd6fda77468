package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Version metadata injected at build time via ldflags. Empty values fall
// back to the module build info, so `go install` builds still report
// something useful.
var (
	version = ""
	commit  = ""
	date    = ""
)

// getVersion returns the release version.
func getVersion() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "(devel)"
}

// vcsSetting reads one key from the VCS build settings embedded by the
// toolchain, empty if unavailable.
func vcsSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

// getCommit returns the short commit hash.
func getCommit() string {
	if commit != "" {
		return commit
	}
	if rev := vcsSetting("vcs.revision"); rev != "" {
		if len(rev) > 7 {
			return rev[:7]
		}
		return rev
	}
	return "unknown"
}

// getDate returns the build timestamp.
func getDate() string {
	if date != "" {
		return date
	}
	if ts := vcsSetting("vcs.time"); ts != "" {
		return ts
	}
	return "unknown"
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version, commit hash, and build date of rustator.`,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rustator %s (commit %s, built %s)\n",
				getVersion(), getCommit(), getDate())
		},
	}
}
