package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/Aman-CERP/ragcontext/internal/ui"
)

// MinDiskSpaceBytes is the free space required under the data directory
// for the lexical indexes, the embedding cache and telemetry.
const MinDiskSpaceBytes = 50 * 1024 * 1024

// CheckDiskSpace reports free space on the filesystem holding dataDir. A
// data directory that does not exist yet is measured at its closest
// existing parent, where it will be created.
func (c *Checker) CheckDiskSpace(dataDir string) CheckResult {
	result := CheckResult{Name: "disk_space", Required: true}

	dir, err := existingAncestor(dataDir)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot resolve %s: %v", dataDir, err)
		return result
	}
	result.Details = dir

	var fs syscall.Statfs_t
	if err := syscall.Statfs(dir, &fs); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check disk space: %v", err)
		return result
	}

	free := int64(fs.Bavail) * int64(fs.Bsize)
	result.Message = fmt.Sprintf("%s free (need %s)", ui.FormatBytes(free), ui.FormatBytes(MinDiskSpaceBytes))
	if free < MinDiskSpaceBytes {
		result.Status = StatusFail
		return result
	}
	result.Status = StatusPass
	return result
}

// existingAncestor walks up from path to the first directory that exists.
func existingAncestor(path string) (string, error) {
	dir, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for {
		if fi, err := os.Stat(dir); err == nil {
			if !fi.IsDir() {
				return "", fmt.Errorf("%s is not a directory", dir)
			}
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no existing parent directory")
		}
		dir = parent
	}
}
