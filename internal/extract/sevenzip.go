package extract

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Well-known executable names probed when no explicit path is configured.
var autoDetectNames = []string{"7z", "7za", "7zr"}

// ResolveCommand locates the 7-Zip executable. A configured value is used
// as-is when absolute, otherwise looked up on PATH and then relative to the
// working directory. With no configured value the well-known names are
// probed on PATH in order.
func ResolveCommand(configured string) (string, error) {
	if configured != "" {
		if filepath.IsAbs(configured) {
			return configured, nil
		}
		if resolved, err := exec.LookPath(configured); err == nil {
			return resolved, nil
		}
		if abs, err := filepath.Abs(configured); err == nil {
			if _, statErr := os.Stat(abs); statErr == nil {
				return abs, nil
			}
		}
		return "", fmt.Errorf("configured archiver %q not found", configured)
	}

	for _, name := range autoDetectNames {
		if resolved, err := exec.LookPath(name); err == nil {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("no 7-Zip executable found; configure extraction.seven_zip or install 7-Zip")
}
