package version

import (
	"fmt"

	"github.com/carlmjohnson/versioninfo"
)

/* injected with -ldflags "-X github.com/lnbitsbox/boxd/pkg/version.boxRelease=..." */

var boxRelease string

/* ** */

type BoxVersionInfoGit struct {
	Commit string `json:"commit"`
	Dirty  bool   `json:"dirty"`
}

type BoxVersionInfo struct {
	Release string            `json:"release"`
	Git     BoxVersionInfoGit `json:"git"`
}

func (v BoxVersionInfo) String() string {
	s := fmt.Sprintf("%s (%s", v.Release, v.Git.Commit)
	if v.Git.Dirty {
		s += ", dirty"
	}
	return s + ")"
}

func GetBoxRelease() *BoxVersionInfo {
	release := boxRelease
	if release == "" {
		release = "unknown"
	}

	return &BoxVersionInfo{
		Release: release,
		Git: BoxVersionInfoGit{
			Commit: versioninfo.Revision,
			Dirty:  versioninfo.DirtyBuild,
		},
	}
}
