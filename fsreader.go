package shadercombo

import (
	"os"
	"path/filepath"
)

// DirFileReader resolves paths relative to Root against the real
// filesystem; it is the production FileReader used by the CLI, and the
// seam tests substitute with an in-memory fixture set instead.
type DirFileReader struct {
	Root string
}

func (d DirFileReader) ReadFile(path string) ([]byte, error) {
	if filepath.IsAbs(path) {
		return os.ReadFile(path)
	}
	return os.ReadFile(filepath.Join(d.Root, path))
}
