package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// resolveInput finds file as given, then under dataDir.
func resolveInput(file, dataDir string) (string, error) {
	if _, err := os.Stat(file); err == nil {
		return file, nil
	}
	if dataDir != "" && !filepath.IsAbs(file) {
		candidate := filepath.Join(dataDir, file)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrFileNotFound, file)
}

// resolveOutput joins out under dir and rejects paths that leave it. The
// directory is created on demand.
func resolveOutput(dir, out string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if out == "" {
		out = "plot.png"
	}
	if filepath.IsAbs(out) {
		return "", fmt.Errorf("%w: output path must be relative to %s", ErrIO, dir)
	}
	clean := filepath.Clean(out)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: output path escapes %s", ErrIO, dir)
	}
	switch ext := filepath.Ext(clean); {
	case ext == "":
		clean += ".png"
	case !strings.EqualFold(ext, ".png"):
		return "", fmt.Errorf("%w: unsupported chart format %q, only .png is written", ErrIO, ext)
	}
	path := filepath.Join(dir, clean)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrIO, err)
	}
	return path, nil
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return strings.TrimSpace(s)
}
