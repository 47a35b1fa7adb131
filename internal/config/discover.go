package config

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charlievieth/fastwalk"
	"github.com/sirupsen/logrus"
)

// skipDirs are directories we don't descend into.
//
//nolint:gochecknoglobals // immutable lookup table.
var skipDirs = []string{
	".git",
	"node_modules",
	"vendor",
	".cache",
}

// Discover expands each root and returns the config files under it, sorted.
// A root naming a file is returned as is, whatever its extension, so Load can
// report an unsupported format. Roots that do not exist are logged and skipped.
func Discover(ctx context.Context, roots ...string) ([]string, error) {
	var files []string
	for _, root := range roots {
		expanded, err := expandPath(root)
		if err != nil {
			logrus.Debugf("Failed to expand path '%s': %v", root, err)
			continue
		}
		info, err := os.Stat(expanded)
		if err != nil {
			logrus.Warnf("skipping %s: %v", root, err)
			continue
		}
		if !info.IsDir() {
			files = append(files, expanded)
			continue
		}
		for path := range streamConfigFiles(ctx, expanded) {
			files = append(files, path)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}

const streamBufferSize = 64

// streamConfigFiles walks root and streams files with a config extension. The
// channel is closed when walking completes or ctx is canceled.
func streamConfigFiles(ctx context.Context, root string) <-chan string {
	out := make(chan string, streamBufferSize)
	go func() {
		defer close(out)
		conf := fastwalk.DefaultConfig
		_ = fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // Skip unreadable entries.
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if d.IsDir() {
				if path != root && isSkippedDir(d.Name()) {
					return fs.SkipDir
				}
				return nil
			}
			if !IsConfigFile(path) {
				return nil
			}
			select {
			case out <- path:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})
	}()
	return out
}

func isSkippedDir(name string) bool {
	for _, s := range skipDirs {
		if strings.EqualFold(name, s) {
			return true
		}
	}
	return false
}

// expandPath resolves a leading ~ and environment variables.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Clean(os.ExpandEnv(path)), nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
