// assets/embed.go
//
// The static portfolio page, embedded into the binary.
// STATIC_DIR overrides it with a directory on disk during development.

package assets

import (
	"embed"
	"io/fs"
)

//go:embed web
var embedded embed.FS

// Manifest lists the paths precached by the offline worker. "/" serves
// index.html.
var Manifest = []string{"/", "/styles.css", "/app.js", "/manifest.json"}

// Site returns the embedded page rooted at web/.
func Site() fs.FS {
	sub, err := fs.Sub(embedded, "web")
	if err != nil {
		panic(err)
	}
	return sub
}
