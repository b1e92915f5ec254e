package version

// Build metadata injected via -ldflags; empty for plain dev builds.
var (
	// Version is a SemVer tag like v1.2.3 for releases.
	Version = ""
	// Commit is the short git SHA for the build.
	Commit = ""
)

// String returns a compact version for display in the dashboard footer:
// the release tag when set, "dev-<sha>" for tagged dev builds, else "dev".
func String() string {
	if Version != "" {
		return Version
	}
	if Commit != "" {
		return "dev-" + Commit
	}
	return "dev"
}
