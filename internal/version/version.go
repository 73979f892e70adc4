// Package version holds the release version, overridable at link time with
// -ldflags "-X github.com/shpitdev/zuno-lead-enrichment/internal/version.Current=1.2.3".
package version

var Current = "0.1.0"
