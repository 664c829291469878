// Package version carries build metadata for the atlas binaries, stamped at
// build time via -ldflags "-X".
package version

//nolint:revive // Overwritten by the build.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
