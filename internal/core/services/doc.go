// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The publish pipeline runs in two phases. Phase A interprets the
// changeset, ensures the directory hierarchy and upserts content
// pages with link targets left as markers. Phase B resolves the
// markers against the full path map and rewrites the pages whose
// bodies change. Identity state lives on the remote pages, never
// on disk.
package services
