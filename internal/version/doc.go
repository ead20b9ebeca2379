// Package version holds the build metadata of the garden controller.
//
// Version, Commit and BuildTime are set through -ldflags at build time.
package version
