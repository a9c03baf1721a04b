package version

// Version is the current release, overridden at build time with
// -ldflags "-X github.com/Dicklesworthstone/loopline/pkg/version.Version=...".
var Version = "v0.3.0"
