package training

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrRunExists is returned when a run directory holds a finished run.
var ErrRunExists = errors.New("training: run already completed")

const (
	// CompleteFile marks a run directory whose training finished.
	CompleteFile = "complete.txt"
	// ConfigFile is the copy of the run configuration in a run directory.
	ConfigFile = "config.yml"
)

// RunDir returns root/<label dir>/<label type>/<train size>/<model name>.
func RunDir(root string, c Config) string {
	return filepath.Join(root, c.LabelDir, c.LabelType, c.TrainDataSize, ModelName(c))
}

// PrepareRunDir creates a fresh run directory for c and copies the
// configuration file at configPath into it. A leftover directory of an
// unfinished run is wiped; a finished one is kept and ErrRunExists is
// returned.
func PrepareRunDir(root string, c Config, configPath string) (string, error) {
	dir := RunDir(root, c)
	if IsComplete(dir) {
		return dir, fmt.Errorf("%w: %s", ErrRunExists, dir)
	}
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("failed to reset run directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}
	if err := copyFile(configPath, filepath.Join(dir, ConfigFile)); err != nil {
		return "", fmt.Errorf("failed to save config: %w", err)
	}
	return dir, nil
}

// MarkComplete writes the completion marker of dir.
func MarkComplete(dir string) error {
	return os.WriteFile(filepath.Join(dir, CompleteFile), nil, 0o644)
}

// IsComplete reports whether dir holds the completion marker.
func IsComplete(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, CompleteFile))
	return err == nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
