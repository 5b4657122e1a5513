// Package storage implements the on-disk layout (C8, §6): one JSON file
// per entity under id_info.json, versions/<id>.json, branches/<id>.json,
// and views/<id>.json, written by atomic whole-file replacement and read
// back by a directory scan that skips version and branch files that don't
// parse (an unparsable id_info.json fails the load),
// mirroring _examples/original_source/database.py's template-driven
// json.dump/json.load persistence in Go's encoding/json plus os.Rename
// idiom.
package storage

import (
	"embed"
)

//go:embed templates/*.json
var defaultTemplates embed.FS

// DefaultTemplate returns the embedded default document for one of
// "version", "branch", "view", or "id_info" — illustrative starting
// shapes for a fresh on-disk store. Only the embedded copies are read;
// there is no path override.
func DefaultTemplate(name string) ([]byte, error) {
	return defaultTemplates.ReadFile("templates/" + name + "_template.json")
}
