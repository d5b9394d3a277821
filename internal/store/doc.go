// Package store persists patterns, clusters, indexes, session summaries and
// engine configuration as JSON files under one root directory:
//
//	<root>/
//	  config.json
//	  PATTERNS.md
//	  sessions/<unixnano>-<sessionId>.json
//	  scopes/<scope>/patterns.json
//	  scopes/<scope>/clusters.json
//	  scopes/<scope>/index.json
//
// Every write goes to a temp file in the target directory and is renamed
// into place, so readers observe either the old or the new file. SaveScope
// writes all three scope files to temps before renaming any of them.
//
// Unparseable or invalid files are reported as ErrCorruptStore and never
// overwritten implicitly. Missing files load as empty.
//
// Writers to the same scope are serialized with LockScope. Different scopes
// never contend.
package store
