// Package vars holds build-time variables populated via the linker
// (ldflags).
package vars

import "fmt"

var (
	// Name of the project
	Name = "steamquery"

	// Version of application (git tag), e.g. v1.2.3
	Version = "dev"

	// Commit is the current git commit, full or short SHA
	Commit = "unknown"
)

// String renders a one-line version banner.
func String() string {
	return fmt.Sprintf("%s %s (%s)", Name, Version, Commit)
}
