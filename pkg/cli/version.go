package cli

import "os"

var version = "dev"

// SetVersionInfo sets the version reported by GetVersion and advertised to
// MCP clients in the server's Implementation.Version.
func SetVersionInfo(v string) {
	version = v
}

// GetVersion returns the current qualitykeeper version.
func GetVersion() string {
	return version
}

var cmdStderr = os.Stderr
