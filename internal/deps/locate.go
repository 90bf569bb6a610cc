package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Fixed locations checked before PATH. Containers often mount media
// tools under /opt without updating PATH, so a bare tool name still
// resolves there.
var toolDirs = []string{"/opt/bin", "/opt", "/usr/bin", "/usr/local/bin"}

// LocateTool resolves a tool binary to an executable path. A
// configured value containing a path separator is taken literally.
// Bare names search the fixed directories first, then PATH.
func LocateTool(configured string) (string, error) {
	name := strings.TrimSpace(configured)
	if name == "" {
		return "", fmt.Errorf("tool not configured")
	}

	if strings.ContainsRune(name, os.PathSeparator) {
		if info, err := os.Stat(name); err == nil && isExecutable(info) {
			return name, nil
		}
		return "", fmt.Errorf("binary %q not found", name)
	}

	for _, dir := range toolDirs {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && isExecutable(info) {
			return candidate, nil
		}
	}

	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("binary %q not found", name)
}

func isExecutable(info os.FileInfo) bool {
	if info == nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
