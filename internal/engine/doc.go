// Package engine is the entry point to the pattern-lifecycle engine.
//
// An Engine owns one pattern store and exposes the operations callers
// need: recording observations, running evolution, querying, previewing
// eviction and exporting the markdown report. Engine configuration is
// read from the store's config.json at Open and can be changed with
// UpdateConfig or re-read with ReloadConfig. Runs already in progress keep
// the configuration they started with.
//
// Engine methods are safe for concurrent use. Writes to one scope are
// serialized; different scopes proceed independently.
package engine
