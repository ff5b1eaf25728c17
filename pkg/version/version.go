// Package version exposes hearth's build identity.
package version

// Set via ldflags during release builds.
//
//nolint:gochecknoglobals // intentionally global for ldflags injection
var (
	version = "dev"
	buildID = "dev"
)

// Version returns the release version.
func Version() string {
	return version
}

// BuildID returns the build identifier.
func BuildID() string {
	return buildID
}

// Full returns the version with its build ID.
func Full() string {
	return version + " (build: " + buildID + ")"
}
