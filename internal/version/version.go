package version

// Version is the release tag this build was cut from; overridden with
// -ldflags "-X ...internal/version.Version=v1.2.3" on release builds.
var Version = "dev"
