// Package inbox ingests observation bundles dropped as JSON files into a
// directory.
//
// A bundle file looks like:
//
//	{"scope": "implement", "sessionId": "abc", "fragments": [{"type": "approach", "content": "..."}]}
//
// The watcher picks up files already present when it starts and every
// *.json file created or rewritten afterwards. Dotfiles are ignored so
// writers can stage a temp file and rename it into place. Each file is
// handled once its writes have settled, then moved to processed/ or
// failed/.
package inbox
