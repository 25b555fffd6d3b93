// Package domain defines the core business entities for confsync.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - SourceItem: A file or directory in the documentation tree
//   - SourceKey: The canonical durable identifier for a source item
//   - PageIdentity: The binding between a source item and a remote page
//   - ChangeRecord: One entry of a changeset driving a partial run
//   - RunReport: The outcome of a publish run
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
