package version

// Version values are set at build time using -ldflags.
var Version = "dev"
var GitCommit = ""

// String renders the version line shown in help output.
func String(program string) string {
	if Version == "" || Version == "dev" {
		return program + " dev"
	}
	if GitCommit != "" {
		return program + " version " + Version + " (" + GitCommit + ")"
	}
	return program + " version " + Version
}
