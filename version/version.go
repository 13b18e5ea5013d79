package version

// Version is the current release of the safeher backend.
const Version = "0.1.0"
