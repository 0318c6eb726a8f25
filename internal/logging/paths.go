package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// LogFileName is the name of the active log file.
const LogFileName = "ragcontext.log"

// DefaultLogDir returns ~/.ragcontext/logs, or a temp directory when the
// home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".ragcontext", "logs")
	}
	return filepath.Join(home, ".ragcontext", "logs")
}

// DefaultLogPath returns the default log file.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), LogFileName)
}

// FindLogFile returns explicit when it exists, else the log file in dir
// (DefaultLogDir when empty).
func FindLogFile(explicit, dir string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("log file not found: %s", explicit)
		}
		return explicit, nil
	}
	if dir == "" {
		dir = DefaultLogDir()
	}
	path := filepath.Join(dir, LogFileName)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("no log file found at %s\nRun any command (for example 'ragcontext --debug index') to create it", path)
	}
	return path, nil
}
