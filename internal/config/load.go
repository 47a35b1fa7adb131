// Package config reads key map configuration files into attribute trees.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/ensigniasec/deck-bridge/internal/keymap"
)

const (
	maxConfigSize = 10 * 1024 * 1024 // 10MB limit to prevent memory exhaustion
)

var ErrUnsupportedFormat = errors.New("unsupported config file extension")

// Load reads the file at path and decodes it by extension: .json, .yaml/.yml or .toml.
// An empty file is an empty configuration.
func Load(path string) (keymap.Attributes, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	attrs := keymap.Attributes{}
	if len(bytes.TrimSpace(data)) == 0 {
		return attrs, nil
	}
	if err := unmarshal(path, data, &attrs); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if attrs == nil {
		attrs = keymap.Attributes{}
	}
	return attrs, nil
}

// readFile reads a file with sane limits to prevent attacks.
func readFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigSize)
	}

	return io.ReadAll(io.LimitReader(file, maxConfigSize))
}

// unmarshal decodes data using path to choose the format.
// For JSON, runs a case-insensitive key collision check before decoding.
func unmarshal(path string, data []byte, v *keymap.Attributes) error {
	switch {
	case isJSONFile(path):
		if err := detectCaseInsensitiveKeyCollisions(data); err != nil {
			return fmt.Errorf("case-insensitive key collision detected: %w", err)
		}
		return json.Unmarshal(data, v)
	case isYAMLFile(path):
		return yaml.Unmarshal(data, v)
	case isTOMLFile(path):
		return toml.Unmarshal(data, v)
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// detectCaseInsensitiveKeyCollisions reports keys that differ only by letter case.
// "Keys" next to "keys" would otherwise be silently merged by some consumers and
// ignored by others.
func detectCaseInsensitiveKeyCollisions(data []byte) error {
	var res any
	// A syntax error is left for the real decode to report.
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&res); err != nil {
		return nil
	}
	return checkCaseInsensitiveKeysRecursive(res, "")
}

func checkCaseInsensitiveKeysRecursive(obj any, path string) error {
	switch v := obj.(type) {
	case map[string]any:
		lowerToOriginal := make(map[string]string, len(v))
		for _, key := range sortedKeys(v) {
			lower := strings.ToLower(key)
			if first, exists := lowerToOriginal[lower]; exists {
				return fmt.Errorf("case-insensitive key collision at '%s': '%s' and '%s'", joinPath(path, key), key, first)
			}
			lowerToOriginal[lower] = key
			if err := checkCaseInsensitiveKeysRecursive(v[key], joinPath(path, key)); err != nil {
				return err
			}
		}

	case []any:
		for i, item := range v {
			if err := checkCaseInsensitiveKeysRecursive(item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func isYAMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func isJSONFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

func isTOMLFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// IsConfigFile reports whether path has an extension Load understands.
func IsConfigFile(path string) bool {
	return isJSONFile(path) || isYAMLFile(path) || isTOMLFile(path)
}
