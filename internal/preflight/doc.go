// Package preflight provides readiness checks for the filesystem paths,
// binaries and model server VidiSnap depends on.
//
// The daemon runs RunAll at startup and logs each failing check; the
// "vidisnap status" command renders the same results for operators.
package preflight
