// Package misc keeps build time information.
package misc

import (
	"runtime/debug"
)

// set with -ldflags "-X codefrag/misc.version=... -X codefrag/misc.gitHash=..."
var (
	version = "dev"
	gitHash = ""
)

const appName = "codefrag"

func GetAppName() string {
	return appName
}

func GetVersion() string {
	return version
}

// GetGitHash returns commit hash from linker flags or, when absent, from VCS
// information embedded by the go tool.
func GetGitHash() string {
	if len(gitHash) > 0 {
		return gitHash
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return "unknown"
}
