//nolint:testpackage // White-box tests require access to unexported identifiers in this package.
package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ensigniasec/deck-bridge/internal/keymap"
)

const jsonConfig = `{
  "brightness": 100,
  "keys": [
    {"key": 0, "text": "foo", "component": "foo", "method": "doThing", "args": {}},
    {"key": 8, "text": "bar", "component": "bar", "method": "doThing", "args": {}}
  ]
}`

const yamlConfig = `brightness: 100
keys:
  - key: 0
    text: foo
    component: foo
    method: doThing
    args: {}
  - key: 8
    text: bar
    component: bar
    method: doThing
    args: {}
`

const tomlConfig = `brightness = 100

[[keys]]
key = 0
text = "foo"
component = "foo"
method = "doThing"
args = {}

[[keys]]
key = 8
text = "bar"
component = "bar"
method = "doThing"
args = {}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Formats(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{"deck.json", jsonConfig},
		{"deck.yaml", yamlConfig},
		{"deck.YML", yamlConfig},
		{"deck.toml", tomlConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs, err := Load(writeFile(t, dir, tt.name, tt.content))
			require.NoError(t, err)

			required, caps, err := keymap.Validate(attrs)
			require.NoError(t, err)
			assert.Equal(t, []string{"foo", "bar"}, required)
			assert.Empty(t, caps)
			assert.Equal(t, 100, keymap.Brightness(attrs))

			km := keymap.Build(attrs)
			b, ok := km.Lookup(8)
			require.True(t, ok)
			assert.Equal(t, "bar", b.Caption)
			assert.Equal(t, "black", b.Background)
		})
	}
}

func TestLoad_Empty(t *testing.T) {
	attrs, err := Load(writeFile(t, t.TempDir(), "empty.yaml", "\n"))
	require.NoError(t, err)
	assert.Empty(t, attrs)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(writeFile(t, dir, "deck.ini", "brightness=1"))
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Load(writeFile(t, dir, "bad.json", `{"keys": [`))
	require.Error(t, err)

	_, err = Load(writeFile(t, dir, "collide.json", `{"keys": [], "Keys": []}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "case-insensitive key collision")

	_, err = Load(filepath.Join(dir, "missing.json"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_TooLarge(t *testing.T) {
	path := writeFile(t, t.TempDir(), "big.json", strings.Repeat(" ", maxConfigSize+1))
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file too large")
}

func TestCaseInsensitiveCollisions(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"none", `{"keys": [{"key": 0, "text": "a"}]}`, ""},
		{"top level", `{"brightness": 1, "Brightness": 2}`, "'brightness'"},
		{"nested in list", `{"keys": [{"key": 0}, {"text": "a", "TEXT": "b"}]}`, "keys[1].text"},
		{"invalid json is left to the decoder", `{`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := detectCaseInsensitiveKeyCollisions([]byte(tt.data))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.json", jsonConfig)
	b := writeFile(t, dir, "nested/b.toml", tomlConfig)
	writeFile(t, dir, "nested/notes.txt", "ignored")
	writeFile(t, dir, ".git/config.json", "{}")
	writeFile(t, dir, "node_modules/pkg/deck.yaml", yamlConfig)
	single := writeFile(t, t.TempDir(), "deck.conf", "x")

	files, err := Discover(context.Background(), dir, single, filepath.Join(dir, "missing"))
	require.NoError(t, err)

	want := []string{a, b, single}
	assert.ElementsMatch(t, want, files)
}

func TestDiscover_Canceled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", jsonConfig)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Discover(ctx, dir)
	require.ErrorIs(t, err, context.Canceled)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("~/decks/main.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "decks", "main.yaml"), got)

	t.Setenv("DECK_DIR", "/tmp/decks")
	got, err = expandPath("$DECK_DIR/main.yaml")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/decks/main.yaml", got)
}
