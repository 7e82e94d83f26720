package resolver

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteStatusFile writes the result as JSON to path atomically, via a temp
// file in the same directory and a rename, so the prompt renderer polling the
// file never observes a partial write.
func WriteStatusFile(path string, res any) error {
	buf, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}
	buf = append(buf, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".status-*")
	if err != nil {
		return fmt.Errorf("creating temp status file: %w", err)
	}

	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing temp status file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp status file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing status file: %w", err)
	}
	return nil
}
