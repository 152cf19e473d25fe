package version

var (
	// Version is the semantic version injected at build time.
	Version = "dev"
	// Commit is the git commit hash injected at build time.
	Commit = "unknown"
	// BuildDate is the build timestamp injected at build time.
	BuildDate = "unknown"
)
