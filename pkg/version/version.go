package version

import (
	goversion "github.com/hashicorp/go-version"
)

// EmptyValue is the value we use when running a version that wasn't compiled
// by `make`. This is helpful for telling when we're running in a unit test.
const EmptyValue = "set-by-make"

// Version is the latest tag on git for releases. On non-release commits, it may
// include additional information such as the most recent commit hash.
var Version = EmptyValue

// Compatible returns whether a client at version `local` may sync to a server
// at version `remote`. Release versions are compatible if their major and
// minor versions match. Versions that aren't releases, such as development
// builds, are compatible with everything.
func Compatible(remote, local string) bool {
	remoteVersion, err := goversion.NewVersion(remote)
	if err != nil || remoteVersion.Prerelease() != "" {
		return true
	}

	localVersion, err := goversion.NewVersion(local)
	if err != nil || localVersion.Prerelease() != "" {
		return true
	}

	remoteSegments := remoteVersion.Segments()
	localSegments := localVersion.Segments()
	return remoteSegments[0] == localSegments[0] && remoteSegments[1] == localSegments[1]
}
