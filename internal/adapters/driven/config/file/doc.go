// Package file loads run configuration from a TOML file.
//
// The file is project-local by convention (confsync.toml next to the
// documentation tree), so a checkout carries its publishing setup.
// Values are read once and flattened into dot-notation keys; a handful
// of CONFSYNC_* environment variables override the file, which keeps
// tokens out of committed configuration.
package file
