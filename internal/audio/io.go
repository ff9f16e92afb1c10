package audio

import (
	"os"
	"path/filepath"
)

// writeFile creates parent directories as needed and writes data to path.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
